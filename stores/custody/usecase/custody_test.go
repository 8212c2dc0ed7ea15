package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	bCtx "github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/custody"
	"github.com/x-xyz/tradeengine/service/assetregistry"
)

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

const (
	engine = domain.EscrowAccount
	owner  = domain.Address("0x000000000000000000000000000000000000a11e")
	buyer  = domain.Address("0x000000000000000000000000000000000000b0b0")
)

func asset(tokenId string) domain.AssetId {
	return domain.AssetId{
		ChainId:         1,
		ContractAddress: domain.Address("0x00000000000000000000000000000000000c0de0"),
		TokenId:         domain.TokenId(tokenId),
	}
}

func newFixture() (bCtx.Ctx, custody.UseCase, *assetregistry.InMemRegistry, *memHoldRepo) {
	c := bCtx.Background()
	registry := assetregistry.New(engine)
	holds := newMemHoldRepo()
	uc := New(&CustodyUseCaseCfg{
		HoldRepo: holds,
		Registry: registry,
		Engine:   engine,
	})
	return c, uc, registry, holds
}

func TestHoldAndRelease(t *testing.T) {
	req := require.New(t)
	c, uc, registry, holds := newFixture()
	id := asset("1")
	registry.Mint(c, owner, id)
	registry.SetApproval(c, owner, true)

	req.NoError(uc.Hold(c, owner, id, custody.PurposeListing, "ref-1"))
	got, err := registry.OwnerOf(c, id)
	req.NoError(err)
	req.True(got.Equals(engine))

	hold, err := uc.ActiveHold(c, id)
	req.NoError(err)
	req.NotNil(hold)
	req.Equal("ref-1", hold.RefId)
	req.True(hold.Owner.Equals(owner))

	req.NoError(uc.Release(c, buyer, id))
	got, err = registry.OwnerOf(c, id)
	req.NoError(err)
	req.True(got.Equals(buyer))

	hold, err = uc.ActiveHold(c, id)
	req.NoError(err)
	req.Nil(hold)
	req.Empty(holds.holds)
}

func TestHoldRejectsSecondEscrow(t *testing.T) {
	req := require.New(t)
	c, uc, registry, _ := newFixture()
	id := asset("1")
	registry.Mint(c, owner, id)
	registry.SetApproval(c, owner, true)

	req.NoError(uc.Hold(c, owner, id, custody.PurposeListing, "ref-1"))
	// the same asset cannot back a second listing or an auction
	req.ErrorIs(uc.Hold(c, owner, id, custody.PurposeAuction, "ref-2"), domain.ErrAlreadyEscrowed)
}

func TestHoldWithoutApproval(t *testing.T) {
	req := require.New(t)
	c, uc, registry, holds := newFixture()
	id := asset("1")
	registry.Mint(c, owner, id)

	req.ErrorIs(uc.Hold(c, owner, id, custody.PurposeListing, "ref-1"), domain.ErrTransferFailed)
	// no phantom hold left behind
	req.Empty(holds.holds)
	got, err := registry.OwnerOf(c, id)
	req.NoError(err)
	req.True(got.Equals(owner))
}

func TestHoldRejectsForeignAsset(t *testing.T) {
	req := require.New(t)
	c, uc, registry, _ := newFixture()
	id := asset("1")
	registry.Mint(c, buyer, id)
	registry.SetApproval(c, owner, true)

	// owner does not hold the asset
	req.ErrorIs(uc.Hold(c, owner, id, custody.PurposeListing, "ref-1"), domain.ErrTransferFailed)
}

func TestReleaseWithoutHold(t *testing.T) {
	req := require.New(t)
	c, uc, registry, _ := newFixture()
	id := asset("1")
	registry.Mint(c, engine, id)

	req.ErrorIs(uc.Release(c, buyer, id), domain.ErrCustodyViolation)
}
