package usecase

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	bCtx "github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/guard"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/auction"
	"github.com/x-xyz/tradeengine/domain/custody"
	"github.com/x-xyz/tradeengine/domain/marketcfg"
	"github.com/x-xyz/tradeengine/service/assetregistry"
	"github.com/x-xyz/tradeengine/service/ledger"
	custodyUseCase "github.com/x-xyz/tradeengine/stores/custody/usecase"
)

type memAuctionRepo struct {
	auctions map[string]*auction.Auction
}

func newMemAuctionRepo() *memAuctionRepo {
	return &memAuctionRepo{auctions: map[string]*auction.Auction{}}
}

func (r *memAuctionRepo) FindOne(c bCtx.Ctx, id string) (*auction.Auction, error) {
	a, ok := r.auctions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cpy := *a
	return &cpy, nil
}

func (r *memAuctionRepo) FindAll(c bCtx.Ctx, opts ...auction.FindAllOptionsFunc) ([]*auction.Auction, error) {
	res := []*auction.Auction{}
	for _, a := range r.auctions {
		cpy := *a
		res = append(res, &cpy)
	}
	return res, nil
}

func (r *memAuctionRepo) Insert(c bCtx.Ctx, a *auction.Auction) error {
	cpy := *a
	r.auctions[a.Id] = &cpy
	return nil
}

func (r *memAuctionRepo) Patch(c bCtx.Ctx, id string, patchable auction.Patchable) error {
	a, ok := r.auctions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if patchable.HighestBidder != nil {
		a.HighestBidder = *patchable.HighestBidder
	}
	if patchable.HighestBid != nil {
		a.HighestBid = *patchable.HighestBid
	}
	if patchable.Active != nil {
		a.Active = *patchable.Active
	}
	if patchable.Cancelled != nil {
		a.Cancelled = *patchable.Cancelled
	}
	if patchable.EndedAt != nil {
		a.EndedAt = patchable.EndedAt
	}
	return nil
}

type memHoldRepo struct {
	holds map[string]*custody.Hold
}

func newMemHoldRepo() *memHoldRepo {
	return &memHoldRepo{holds: map[string]*custody.Hold{}}
}

func (r *memHoldRepo) FindOne(c bCtx.Ctx, id domain.AssetId) (*custody.Hold, error) {
	h, ok := r.holds[id.ToLower().Key()]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return h, nil
}

func (r *memHoldRepo) Insert(c bCtx.Ctx, h *custody.Hold) error {
	r.holds[h.AssetId.ToLower().Key()] = h
	return nil
}

func (r *memHoldRepo) Remove(c bCtx.Ctx, id domain.AssetId) error {
	if _, ok := r.holds[id.ToLower().Key()]; !ok {
		return domain.ErrNotFound
	}
	delete(r.holds, id.ToLower().Key())
	return nil
}

type memActivityRepo struct {
	activities []*domain.Activity
}

func (r *memActivityRepo) Insert(c bCtx.Ctx, a *domain.Activity) error {
	r.activities = append(r.activities, a)
	return nil
}

func (r *memActivityRepo) FindAll(c bCtx.Ctx, opts ...domain.ActivityFindAllOptionsFunc) ([]*domain.Activity, error) {
	return r.activities, nil
}

type fixedMarketCfg struct {
	marketcfg.UseCase
	cfg *marketcfg.Config
}

func (f *fixedMarketCfg) Get(c bCtx.Ctx, chainId domain.ChainId) (*marketcfg.Config, error) {
	return f.cfg, nil
}

const (
	seller       = domain.Address("0x000000000000000000000000000000000000a11e")
	bidderOne    = domain.Address("0x000000000000000000000000000000000000b1d1")
	bidderTwo    = domain.Address("0x000000000000000000000000000000000000b1d2")
	feeRecipient = domain.Address("0x000000000000000000000000000000000000fee0")
	contract     = domain.Address("0x00000000000000000000000000000000000c0de0")
)

type fixture struct {
	ctx        bCtx.Ctx
	useCase    auction.UseCase
	impl       *impl
	activities *memActivityRepo
	ledger     *ledger.InMemLedger
	registry   *assetregistry.InMemRegistry
	holds      *memHoldRepo
	clock      time.Time
}

func newFixture(t *testing.T) *fixture {
	c := bCtx.Background()
	auctionRepo := newMemAuctionRepo()
	activities := &memActivityRepo{}
	holds := newMemHoldRepo()
	book := ledger.New()
	registry := assetregistry.New(domain.EscrowAccount)

	cust := custodyUseCase.New(&custodyUseCase.CustodyUseCaseCfg{
		HoldRepo: holds,
		Registry: registry,
		Engine:   domain.EscrowAccount,
	})
	cfg := &marketcfg.Config{
		ChainId:        1,
		FeeRate:        250,
		OfferFeeRate:   250,
		FeeRecipient:   feeRecipient,
		AssetContracts: []domain.Address{contract},
		MinDurationSec: 60,
		MaxDurationSec: 86400 * 30,
	}
	uc := New(&AuctionUseCaseCfg{
		AuctionRepo:  auctionRepo,
		ActivityRepo: activities,
		Custody:      cust,
		MarketCfg:    &fixedMarketCfg{cfg: cfg},
		Ledger:       book,
		Guard:        guard.New(),
	})
	f := &fixture{
		ctx:        c,
		useCase:    uc,
		impl:       uc.(*impl),
		activities: activities,
		ledger:     book,
		registry:   registry,
		holds:      holds,
		clock:      time.Now(),
	}
	f.impl.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func asset(tokenId string) domain.AssetId {
	return domain.AssetId{ChainId: 1, ContractAddress: contract, TokenId: domain.TokenId(tokenId)}
}

func (f *fixture) start(t *testing.T, startingPrice, reservePrice int64) *auction.Auction {
	id := asset("1")
	f.registry.Mint(f.ctx, seller, id)
	f.registry.SetApproval(f.ctx, seller, true)
	a, err := f.useCase.Create(f.ctx, &auction.CreatePayload{
		Seller:        seller,
		Asset:         id,
		StartingPrice: big.NewInt(startingPrice),
		ReservePrice:  big.NewInt(reservePrice),
		PayToken:      domain.NativeToken,
		Duration:      24 * time.Hour,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) fund(t *testing.T, account domain.Address, amount int64) {
	require.NoError(t, f.ledger.Deposit(f.ctx, domain.NativeToken, account, big.NewInt(amount)))
}

func (f *fixture) balance(t *testing.T, account domain.Address) *big.Int {
	bal, err := f.ledger.BalanceOf(f.ctx, domain.NativeToken, account)
	require.NoError(t, err)
	return bal
}

func TestCreateValidation(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	id := asset("1")
	f.registry.Mint(f.ctx, seller, id)
	f.registry.SetApproval(f.ctx, seller, true)

	base := auction.CreatePayload{
		Seller:        seller,
		Asset:         id,
		StartingPrice: big.NewInt(10),
		ReservePrice:  big.NewInt(50),
		PayToken:      domain.NativeToken,
		Duration:      24 * time.Hour,
	}

	p := base
	p.StartingPrice = big.NewInt(0)
	_, err := f.useCase.Create(f.ctx, &p)
	req.ErrorIs(err, domain.ErrInvalidPrice)

	// reserve below starting price
	p = base
	p.ReservePrice = big.NewInt(5)
	_, err = f.useCase.Create(f.ctx, &p)
	req.ErrorIs(err, domain.ErrInvalidPrice)

	p = base
	p.Duration = 30 * time.Minute
	_, err = f.useCase.Create(f.ctx, &p)
	req.ErrorIs(err, domain.ErrInvalidDuration)

	p = base
	p.Duration = 8 * 24 * time.Hour
	_, err = f.useCase.Create(f.ctx, &p)
	req.ErrorIs(err, domain.ErrInvalidDuration)

	_, err = f.useCase.Create(f.ctx, &base)
	req.NoError(err)
	owner, err := f.registry.OwnerOf(f.ctx, id)
	req.NoError(err)
	req.True(owner.Equals(domain.EscrowAccount))
}

func TestPlaceBidRefundsDisplacedBidder(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := f.start(t, 10, 50)
	f.fund(t, bidderOne, 100)
	f.fund(t, bidderTwo, 100)

	req.ErrorIs(f.useCase.PlaceBid(f.ctx, seller, a.Id, big.NewInt(20)), domain.ErrSelfTrade)
	// below starting price
	req.ErrorIs(f.useCase.PlaceBid(f.ctx, bidderOne, a.Id, big.NewInt(5)), domain.ErrInvalidPrice)

	req.NoError(f.useCase.PlaceBid(f.ctx, bidderOne, a.Id, big.NewInt(30)))
	req.Equal("70", f.balance(t, bidderOne).String())

	// not strictly above the standing bid
	req.ErrorIs(f.useCase.PlaceBid(f.ctx, bidderTwo, a.Id, big.NewInt(30)), domain.ErrInvalidPrice)

	req.NoError(f.useCase.PlaceBid(f.ctx, bidderTwo, a.Id, big.NewInt(60)))
	// displaced bidder got the full 30 back
	req.Equal("100", f.balance(t, bidderOne).String())
	req.Equal("40", f.balance(t, bidderTwo).String())
	req.Equal("60", f.balance(t, domain.EscrowAccount).String())

	got, err := f.useCase.Get(f.ctx, a.Id)
	req.NoError(err)
	req.True(got.HighestBidder.Equals(bidderTwo))
	req.Equal("60", got.HighestBid)
}

func TestPlaceBidAfterEndRejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := f.start(t, 10, 50)
	f.fund(t, bidderOne, 100)

	f.advance(25 * time.Hour)
	req.ErrorIs(f.useCase.PlaceBid(f.ctx, bidderOne, a.Id, big.NewInt(30)), domain.ErrExpired)
}

func TestEndPaysWinnerAboveReserve(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := f.start(t, 10, 50)
	f.fund(t, bidderOne, 100)
	req.NoError(f.useCase.PlaceBid(f.ctx, bidderOne, a.Id, big.NewInt(80)))

	// still running
	req.ErrorIs(f.useCase.End(f.ctx, bidderOne, a.Id), domain.ErrNotEnded)

	f.advance(25 * time.Hour)
	req.NoError(f.useCase.End(f.ctx, bidderOne, a.Id))

	// 2.5% of 80 floors to 2
	req.Equal("2", f.balance(t, feeRecipient).String())
	req.Equal("78", f.balance(t, seller).String())
	req.Equal("0", f.balance(t, domain.EscrowAccount).String())

	owner, err := f.registry.OwnerOf(f.ctx, a.AssetId)
	req.NoError(err)
	req.True(owner.Equals(bidderOne))

	got, err := f.useCase.Get(f.ctx, a.Id)
	req.NoError(err)
	req.False(got.Active)
	req.NotNil(got.EndedAt)

	// resolving twice must fail
	req.ErrorIs(f.useCase.End(f.ctx, bidderOne, a.Id), domain.ErrAlreadyResolved)
}

func TestEndBelowReserveReturnsAssetAndRefunds(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := f.start(t, 10, 50)
	f.fund(t, bidderOne, 100)
	req.NoError(f.useCase.PlaceBid(f.ctx, bidderOne, a.Id, big.NewInt(30)))

	f.advance(25 * time.Hour)
	req.NoError(f.useCase.End(f.ctx, seller, a.Id))

	req.Equal("100", f.balance(t, bidderOne).String())
	req.Equal("0", f.balance(t, seller).String())
	owner, err := f.registry.OwnerOf(f.ctx, a.AssetId)
	req.NoError(err)
	req.True(owner.Equals(seller))
	req.Empty(f.holds.holds)
}

func TestEndWithNoBids(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := f.start(t, 10, 50)

	f.advance(25 * time.Hour)
	req.NoError(f.useCase.End(f.ctx, seller, a.Id))

	owner, err := f.registry.OwnerOf(f.ctx, a.AssetId)
	req.NoError(err)
	req.True(owner.Equals(seller))
}

func TestCancelOnlyWithoutBids(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := f.start(t, 10, 50)

	req.ErrorIs(f.useCase.Cancel(f.ctx, bidderOne, a.Id), domain.ErrUnauthorized)

	f.fund(t, bidderOne, 100)
	req.NoError(f.useCase.PlaceBid(f.ctx, bidderOne, a.Id, big.NewInt(30)))
	req.ErrorIs(f.useCase.Cancel(f.ctx, seller, a.Id), domain.ErrHasBids)
}

func TestCancelReturnsAsset(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := f.start(t, 10, 50)

	req.NoError(f.useCase.Cancel(f.ctx, seller, a.Id))
	owner, err := f.registry.OwnerOf(f.ctx, a.AssetId)
	req.NoError(err)
	req.True(owner.Equals(seller))

	got, err := f.useCase.Get(f.ctx, a.Id)
	req.NoError(err)
	req.True(got.Cancelled)
	req.ErrorIs(f.useCase.Cancel(f.ctx, seller, a.Id), domain.ErrAlreadyResolved)
}
