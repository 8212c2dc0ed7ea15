package usecase

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	bCtx "github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/marketcfg"
)

type memConfigRepo struct {
	configs map[domain.ChainId]*marketcfg.Config
}

func newMemConfigRepo() *memConfigRepo {
	return &memConfigRepo{configs: map[domain.ChainId]*marketcfg.Config{}}
}

func (r *memConfigRepo) FindOne(c bCtx.Ctx, chainId domain.ChainId) (*marketcfg.Config, error) {
	cfg, ok := r.configs[chainId]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cpy := *cfg
	return &cpy, nil
}

func (r *memConfigRepo) Upsert(c bCtx.Ctx, cfg *marketcfg.Config) error {
	cpy := *cfg
	r.configs[cfg.ChainId] = &cpy
	return nil
}

const (
	admin    = domain.Address("0x000000000000000000000000000000000000ad01")
	stranger = domain.Address("0x000000000000000000000000000000000000bad0")
)

func newUseCase() marketcfg.UseCase {
	return New(&ConfigUseCaseCfg{
		ConfigRepo: newMemConfigRepo(),
		Admin:      admin,
	})
}

func TestGetReturnsDefaults(t *testing.T) {
	req := require.New(t)
	c := bCtx.Background()
	uc := newUseCase()

	cfg, err := uc.Get(c, 1)
	req.NoError(err)
	req.Equal(int64(100), cfg.FeeRate)
	req.Equal(int64(100), cfg.OfferFeeRate)
	req.Equal(time.Minute, cfg.MinDuration())
	req.Equal(180*24*time.Hour, cfg.MaxDuration())
	req.Empty(cfg.PayTokens)
}

func TestMutatorsRequireAdmin(t *testing.T) {
	req := require.New(t)
	c := bCtx.Background()
	uc := newUseCase()

	req.ErrorIs(uc.SetFeeRate(c, stranger, 1, 200), domain.ErrUnauthorized)
	req.ErrorIs(uc.SetOfferFeeRate(c, stranger, 1, 200), domain.ErrUnauthorized)
	req.ErrorIs(uc.SetFeeRecipient(c, stranger, 1, admin), domain.ErrUnauthorized)
	req.ErrorIs(uc.SetTrustedSigner(c, stranger, 1, admin), domain.ErrUnauthorized)
	req.ErrorIs(uc.SetDurationBounds(c, stranger, 1, time.Hour, 2*time.Hour), domain.ErrUnauthorized)
}

func TestSetFeeRateBounds(t *testing.T) {
	req := require.New(t)
	c := bCtx.Background()
	uc := newUseCase()

	req.ErrorIs(uc.SetFeeRate(c, admin, 1, marketcfg.MaxFeeRate+1), domain.ErrFeeTooHigh)
	req.ErrorIs(uc.SetFeeRate(c, admin, 1, -1), domain.ErrFeeTooHigh)

	req.NoError(uc.SetFeeRate(c, admin, 1, 500))
	cfg, err := uc.Get(c, 1)
	req.NoError(err)
	req.Equal(int64(500), cfg.FeeRate)
	req.Equal(int64(1), cfg.Version)
}

func TestSetDurationBounds(t *testing.T) {
	req := require.New(t)
	c := bCtx.Background()
	uc := newUseCase()

	req.ErrorIs(uc.SetDurationBounds(c, admin, 1, time.Hour, time.Hour), domain.ErrInvalidDurationBounds)
	req.ErrorIs(uc.SetDurationBounds(c, admin, 1, 2*time.Hour, time.Hour), domain.ErrInvalidDurationBounds)
	req.ErrorIs(uc.SetDurationBounds(c, admin, 1, 0, time.Hour), domain.ErrInvalidDurationBounds)

	req.NoError(uc.SetDurationBounds(c, admin, 1, time.Hour, 48*time.Hour))
	cfg, err := uc.Get(c, 1)
	req.NoError(err)
	req.Equal(time.Hour, cfg.MinDuration())
	req.Equal(48*time.Hour, cfg.MaxDuration())
}

func TestTogglePayToken(t *testing.T) {
	req := require.New(t)
	c := bCtx.Background()
	uc := newUseCase()
	weth := marketcfg.PayToken{
		Address:  domain.Address("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		Symbol:   "WETH",
		Decimals: 18,
	}

	req.NoError(uc.TogglePayToken(c, admin, 1, weth, true))
	cfg, err := uc.Get(c, 1)
	req.NoError(err)
	req.True(cfg.IsPayTokenAccepted(weth.Address))
	req.Equal(int32(18), cfg.PayTokenDecimals(weth.Address))

	// toggling twice must not duplicate the entry
	req.NoError(uc.TogglePayToken(c, admin, 1, weth, true))
	cfg, err = uc.Get(c, 1)
	req.NoError(err)
	req.Len(cfg.PayTokens, 1)

	req.NoError(uc.TogglePayToken(c, admin, 1, weth, false))
	cfg, err = uc.Get(c, 1)
	req.NoError(err)
	req.False(cfg.IsPayTokenAccepted(weth.Address))

	// the native unit stays accepted no matter what
	req.True(cfg.IsPayTokenAccepted(domain.NativeToken))
}

func TestToggleAssetContract(t *testing.T) {
	req := require.New(t)
	c := bCtx.Background()
	uc := newUseCase()
	contract := domain.Address("0x00000000000000000000000000000000000c0de0")

	cfg, err := uc.Get(c, 1)
	req.NoError(err)
	req.False(cfg.IsContractAccepted(contract))

	req.NoError(uc.ToggleAssetContract(c, admin, 1, contract, true))
	cfg, err = uc.Get(c, 1)
	req.NoError(err)
	req.True(cfg.IsContractAccepted(contract))

	req.NoError(uc.ToggleAssetContract(c, admin, 1, contract, false))
	cfg, err = uc.Get(c, 1)
	req.NoError(err)
	req.False(cfg.IsContractAccepted(contract))
}

func TestComputeSplit(t *testing.T) {
	req := require.New(t)

	cases := []struct {
		amount int64
		rate   int64
		fee    int64
	}{
		{10000, 250, 250},
		{999, 250, 24}, // floors
		{1, 250, 0},
		{10000, 0, 0},
		{10000, marketcfg.MaxFeeRate, 1000},
	}
	for _, tc := range cases {
		fee, sellerAmount := marketcfg.ComputeSplit(big.NewInt(tc.amount), tc.rate)
		req.Equal(tc.fee, fee.Int64())
		// the split always conserves the full amount
		req.Equal(tc.amount, new(big.Int).Add(fee, sellerAmount).Int64())
	}
}

func TestVersionBumpsOnEveryMutation(t *testing.T) {
	req := require.New(t)
	c := bCtx.Background()
	uc := newUseCase()

	req.NoError(uc.SetFeeRate(c, admin, 1, 200))
	req.NoError(uc.SetFeeRecipient(c, admin, 1, admin))
	req.NoError(uc.SetTrustedSigner(c, admin, 1, admin))

	cfg, err := uc.Get(c, 1)
	req.NoError(err)
	req.Equal(int64(3), cfg.Version)
	req.False(cfg.UpdatedAt.IsZero())
}
