package usecase

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	bCtx "github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/guard"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/marketcfg"
	"github.com/x-xyz/tradeengine/domain/settlement"
	"github.com/x-xyz/tradeengine/service/assetregistry"
	"github.com/x-xyz/tradeengine/service/ledger"
)

type memNonceRepo struct {
	used map[string]bool
}

func newMemNonceRepo() *memNonceRepo {
	return &memNonceRepo{used: map[string]bool{}}
}

func nonceKey(id domain.AssetId, nonce uint64) string {
	return fmt.Sprintf("%s:%d", id.ToLower().Key(), nonce)
}

func (r *memNonceRepo) IsUsed(c bCtx.Ctx, id domain.AssetId, nonce uint64) (bool, error) {
	return r.used[nonceKey(id, nonce)], nil
}

func (r *memNonceRepo) MarkUsed(c bCtx.Ctx, id domain.AssetId, nonce uint64) error {
	key := nonceKey(id, nonce)
	if r.used[key] {
		return domain.ErrNonceUsed
	}
	r.used[key] = true
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

type recordingBinder struct {
	bound map[string]domain.Address
}

func (b *recordingBinder) BindController(c bCtx.Ctx, name string, controller domain.Address) error {
	if b.bound == nil {
		b.bound = map[string]domain.Address{}
	}
	b.bound[name] = controller
	return nil
}

const (
	seller       = domain.Address("0x000000000000000000000000000000000000a11e")
	buyerOne     = domain.Address("0x000000000000000000000000000000000000b0b1")
	buyerTwo     = domain.Address("0x000000000000000000000000000000000000b0b2")
	feeRecipient = domain.Address("0x000000000000000000000000000000000000fee0")
	contract     = domain.Address("0x00000000000000000000000000000000000c0de0")
)

type fixture struct {
	ctx        bCtx.Ctx
	useCase    settlement.UseCase
	signerKey  *ecdsa.PrivateKey
	nonces     *memNonceRepo
	activities *memActivityRepo
	ledger     *ledger.InMemLedger
	registry   *assetregistry.InMemRegistry
	binder     *recordingBinder
}

func newFixture(t *testing.T) *fixture {
	c := bCtx.Background()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	nonces := newMemNonceRepo()
	activities := &memActivityRepo{}
	book := ledger.New()
	registry := assetregistry.New(domain.EscrowAccount)
	binder := &recordingBinder{}

	cfg := &marketcfg.Config{
		ChainId:        1,
		FeeRate:        250,
		FeeRecipient:   feeRecipient,
		AssetContracts: []domain.Address{contract},
		TrustedSigner:  domain.Address(crypto.PubkeyToAddress(key.PublicKey).Hex()),
	}
	uc := New(&SettlementUseCaseCfg{
		NonceRepo:    nonces,
		ActivityRepo: activities,
		MarketCfg:    &fixedMarketCfg{cfg: cfg},
		Ledger:       book,
		Registry:     registry,
		Binder:       binder,
		Guard:        guard.New(),
	})
	return &fixture{
		ctx:        c,
		useCase:    uc,
		signerKey:  key,
		nonces:     nonces,
		activities: activities,
		ledger:     book,
		registry:   registry,
		binder:     binder,
	}
}

func asset(tokenId string) domain.AssetId {
	return domain.AssetId{ChainId: 1, ContractAddress: contract, TokenId: domain.TokenId(tokenId)}
}

func (f *fixture) sign(t *testing.T, auth *settlement.Authorization, key *ecdsa.PrivateKey) {
	sig, err := crypto.Sign(accounts.TextHash(auth.Digest()), key)
	require.NoError(t, err)
	auth.Signature = hexutil.Encode(sig)
}

func (f *fixture) authorize(t *testing.T, id domain.AssetId, buyer domain.Address, amount int64, nonce uint64) *settlement.Authorization {
	auth := &settlement.Authorization{
		Asset:  id,
		Seller: seller,
		Buyer:  buyer,
		Amount: big.NewInt(amount),
		Nonce:  nonce,
	}
	f.sign(t, auth, f.signerKey)
	return auth
}

func (f *fixture) fund(t *testing.T, account domain.Address, amount int64) {
	require.NoError(t, f.ledger.Deposit(f.ctx, domain.NativeToken, account, big.NewInt(amount)))
}

func (f *fixture) balance(t *testing.T, account domain.Address) *big.Int {
	bal, err := f.ledger.BalanceOf(f.ctx, domain.NativeToken, account)
	require.NoError(t, err)
	return bal
}

func TestSettle(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	id := asset("1")
	f.registry.Mint(f.ctx, seller, id)
	f.registry.SetApproval(f.ctx, seller, true)
	f.fund(t, buyerOne, 1000)

	auth := f.authorize(t, id, buyerOne, 1000, 1)
	auth.BindName = "alice.eth"
	f.sign(t, auth, f.signerKey)

	req.NoError(f.useCase.Settle(f.ctx, auth, big.NewInt(1000)))

	// 2.5% fee on 1000
	req.Equal("25", f.balance(t, feeRecipient).String())
	req.Equal("975", f.balance(t, seller).String())
	req.Equal("0", f.balance(t, buyerOne).String())
	req.Equal("0", f.balance(t, domain.EscrowAccount).String())

	owner, err := f.registry.OwnerOf(f.ctx, id)
	req.NoError(err)
	req.True(owner.Equals(buyerOne))

	req.True(f.binder.bound["alice.eth"].Equals(buyerOne))

	used, err := f.nonces.IsUsed(f.ctx, id, 1)
	req.NoError(err)
	req.True(used)

	req.Len(f.activities.activities, 1)
	req.Equal(domain.ActivitySettled, f.activities.activities[0].Type)
}

func TestSettleRejectsReplay(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	id := asset("1")
	f.registry.Mint(f.ctx, seller, id)
	f.registry.SetApproval(f.ctx, seller, true)
	f.fund(t, buyerOne, 2000)

	auth := f.authorize(t, id, buyerOne, 1000, 7)
	req.NoError(f.useCase.Settle(f.ctx, auth, big.NewInt(1000)))

	// put the asset back with the seller and replay the same authorization
	f.registry.Mint(f.ctx, seller, id)
	req.ErrorIs(f.useCase.Settle(f.ctx, auth, big.NewInt(1000)), domain.ErrNonceUsed)
	req.Equal("1000", f.balance(t, buyerOne).String())
}

func TestSettleRejectsBadSignatures(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	id := asset("1")
	f.registry.Mint(f.ctx, seller, id)
	f.registry.SetApproval(f.ctx, seller, true)
	f.fund(t, buyerOne, 1000)

	// signed by a key that is not the trusted signer
	rogue, err := crypto.GenerateKey()
	req.NoError(err)
	auth := f.authorize(t, id, buyerOne, 1000, 1)
	f.sign(t, auth, rogue)
	req.ErrorIs(f.useCase.Settle(f.ctx, auth, big.NewInt(1000)), domain.ErrInvalidSignature)

	// a valid signature over different terms
	auth = f.authorize(t, id, buyerOne, 1000, 1)
	auth.Amount = big.NewInt(1)
	req.ErrorIs(f.useCase.Settle(f.ctx, auth, big.NewInt(1)), domain.ErrInvalidSignature)

	// garbage signature bytes
	auth = f.authorize(t, id, buyerOne, 1000, 1)
	auth.Signature = "0xdeadbeef"
	req.ErrorIs(f.useCase.Settle(f.ctx, auth, big.NewInt(1000)), domain.ErrInvalidSignature)

	req.Equal("1000", f.balance(t, buyerOne).String())
	owner, err := f.registry.OwnerOf(f.ctx, id)
	req.NoError(err)
	req.True(owner.Equals(seller))
}

func TestSettleRejectsPaymentMismatch(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	id := asset("1")
	f.registry.Mint(f.ctx, seller, id)
	f.registry.SetApproval(f.ctx, seller, true)
	f.fund(t, buyerOne, 2000)

	auth := f.authorize(t, id, buyerOne, 1000, 1)
	req.ErrorIs(f.useCase.Settle(f.ctx, auth, big.NewInt(999)), domain.ErrPaymentMismatch)
	req.ErrorIs(f.useCase.Settle(f.ctx, auth, big.NewInt(1001)), domain.ErrPaymentMismatch)
}

func TestSettleRejectsWrongSeller(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	id := asset("1")
	// asset sits with someone other than the authorized seller
	f.registry.Mint(f.ctx, buyerTwo, id)
	f.fund(t, buyerOne, 1000)

	auth := f.authorize(t, id, buyerOne, 1000, 1)
	req.ErrorIs(f.useCase.Settle(f.ctx, auth, big.NewInt(1000)), domain.ErrTransferFailed)
}

func TestSettleBulk(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a1, a2 := asset("1"), asset("2")
	f.registry.Mint(f.ctx, seller, a1)
	f.registry.Mint(f.ctx, seller, a2)
	f.registry.SetApproval(f.ctx, seller, true)
	f.fund(t, buyerOne, 1000)
	f.fund(t, buyerTwo, 2000)

	auths := []*settlement.Authorization{
		f.authorize(t, a1, buyerOne, 1000, 1),
		f.authorize(t, a2, buyerTwo, 2000, 1),
	}

	req.ErrorIs(f.useCase.SettleBulk(f.ctx, nil, big.NewInt(0)), domain.ErrEmptyBatch)
	req.ErrorIs(f.useCase.SettleBulk(f.ctx, auths, big.NewInt(2999)), domain.ErrPaymentMismatch)

	req.NoError(f.useCase.SettleBulk(f.ctx, auths, big.NewInt(3000)))
	// fee 25 + 50
	req.Equal("75", f.balance(t, feeRecipient).String())
	req.Equal("2925", f.balance(t, seller).String())

	o1, err := f.registry.OwnerOf(f.ctx, a1)
	req.NoError(err)
	req.True(o1.Equals(buyerOne))
	o2, err := f.registry.OwnerOf(f.ctx, a2)
	req.NoError(err)
	req.True(o2.Equals(buyerTwo))
}

func TestSettleBulkIsAllOrNothing(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a1, a2 := asset("1"), asset("2")
	f.registry.Mint(f.ctx, seller, a1)
	f.registry.Mint(f.ctx, seller, a2)
	f.registry.SetApproval(f.ctx, seller, true)
	f.fund(t, buyerOne, 1000)
	// buyerTwo cannot cover its item

	auths := []*settlement.Authorization{
		f.authorize(t, a1, buyerOne, 1000, 1),
		f.authorize(t, a2, buyerTwo, 2000, 1),
	}
	req.ErrorIs(f.useCase.SettleBulk(f.ctx, auths, big.NewInt(3000)), domain.ErrInsufficientFunds)

	// first buyer's pulled funds came back, nothing settled
	req.Equal("1000", f.balance(t, buyerOne).String())
	req.Equal("0", f.balance(t, domain.EscrowAccount).String())
	owner, err := f.registry.OwnerOf(f.ctx, a1)
	req.NoError(err)
	req.True(owner.Equals(seller))
	used, err := f.nonces.IsUsed(f.ctx, a1, 1)
	req.NoError(err)
	req.False(used)
}

func TestSettleBulkRejectsOneBadItem(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a1, a2 := asset("1"), asset("2")
	f.registry.Mint(f.ctx, seller, a1)
	f.registry.Mint(f.ctx, seller, a2)
	f.registry.SetApproval(f.ctx, seller, true)
	f.fund(t, buyerOne, 1000)
	f.fund(t, buyerTwo, 2000)

	rogue, err := crypto.GenerateKey()
	req.NoError(err)
	good := f.authorize(t, a1, buyerOne, 1000, 1)
	bad := f.authorize(t, a2, buyerTwo, 2000, 1)
	f.sign(t, bad, rogue)

	req.ErrorIs(f.useCase.SettleBulk(f.ctx, []*settlement.Authorization{good, bad}, big.NewInt(3000)), domain.ErrInvalidSignature)
	req.Equal("1000", f.balance(t, buyerOne).String())
	owner, err := f.registry.OwnerOf(f.ctx, a1)
	req.NoError(err)
	req.True(owner.Equals(seller))
}

func TestSettleBulkRejectsDuplicateAsset(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a1 := asset("1")
	f.registry.Mint(f.ctx, seller, a1)
	f.registry.SetApproval(f.ctx, seller, true)
	f.fund(t, buyerOne, 2000)

	auths := []*settlement.Authorization{
		f.authorize(t, a1, buyerOne, 1000, 1),
		f.authorize(t, a1, buyerOne, 1000, 2),
	}
	req.ErrorIs(f.useCase.SettleBulk(f.ctx, auths, big.NewInt(2000)), domain.ErrBadParamInput)
}
