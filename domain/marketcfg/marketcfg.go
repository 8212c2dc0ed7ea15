package marketcfg

import (
	"math/big"
	"time"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/domain"
)

const (
	// Denominator is the fixed fee scale; rates are expressed in basis points.
	Denominator = 10000
	// MaxFeeRate caps admin-set rates at 10% of the denominator.
	MaxFeeRate = 1000
)

type PayToken struct {
	Address  domain.Address `json:"address" bson:"address"`
	Symbol   string         `json:"symbol" bson:"symbol"`
	Decimals int32          `json:"decimals" bson:"decimals"`
}

// Config is the single versioned configuration document per chain. Mutations
// go through the admin operations on UseCase only; reads are unrestricted.
type Config struct {
	ChainId        domain.ChainId   `json:"chainId" bson:"chainId"`
	FeeRate        int64            `json:"feeRate" bson:"feeRate"`
	OfferFeeRate   int64            `json:"offerFeeRate" bson:"offerFeeRate"`
	FeeRecipient   domain.Address   `json:"feeRecipient" bson:"feeRecipient"`
	PayTokens      []PayToken       `json:"payTokens" bson:"payTokens"`
	AssetContracts []domain.Address `json:"assetContracts" bson:"assetContracts"`
	MinDurationSec int64            `json:"minDurationSec" bson:"minDurationSec"`
	MaxDurationSec int64            `json:"maxDurationSec" bson:"maxDurationSec"`
	TrustedSigner  domain.Address   `json:"trustedSigner" bson:"trustedSigner"`
	Version        int64            `json:"version" bson:"version"`
	UpdatedAt      time.Time        `json:"updatedAt" bson:"updatedAt"`
}

func (c *Config) MinDuration() time.Duration {
	return time.Duration(c.MinDurationSec) * time.Second
}

func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationSec) * time.Second
}

// IsPayTokenAccepted reports whether token can settle trades. The native
// unit is always accepted.
func (c *Config) IsPayTokenAccepted(token domain.Address) bool {
	if token.Equals(domain.NativeToken) {
		return true
	}
	for _, t := range c.PayTokens {
		if t.Address.Equals(token) {
			return true
		}
	}
	return false
}

func (c *Config) PayTokenDecimals(token domain.Address) int32 {
	for _, t := range c.PayTokens {
		if t.Address.Equals(token) {
			return t.Decimals
		}
	}
	return 18
}

func (c *Config) IsContractAccepted(contract domain.Address) bool {
	for _, a := range c.AssetContracts {
		if a.Equals(contract) {
			return true
		}
	}
	return false
}

// ComputeSplit divides amount into the platform fee and the seller amount.
// fee = floor(amount * rate / Denominator), seller = amount - fee, so the
// two always sum back to amount.
func ComputeSplit(amount *big.Int, rate int64) (fee, seller *big.Int) {
	fee = new(big.Int).Mul(amount, big.NewInt(rate))
	fee.Div(fee, big.NewInt(Denominator))
	seller = new(big.Int).Sub(amount, fee)
	return fee, seller
}

type Repo interface {
	FindOne(ctx ctx.Ctx, chainId domain.ChainId) (*Config, error)
	Upsert(ctx ctx.Ctx, cfg *Config) error
}

// UseCase owns the mutable marketplace configuration. Every mutator checks
// the caller against the configured admin identity and bumps the config
// version. Rate changes apply to operations initiated afterwards only; in
// flight listings, auctions and offers keep the price fixed at creation.
type UseCase interface {
	Get(ctx ctx.Ctx, chainId domain.ChainId) (*Config, error)
	SetFeeRate(ctx ctx.Ctx, caller domain.Address, chainId domain.ChainId, rate int64) error
	SetOfferFeeRate(ctx ctx.Ctx, caller domain.Address, chainId domain.ChainId, rate int64) error
	SetFeeRecipient(ctx ctx.Ctx, caller domain.Address, chainId domain.ChainId, recipient domain.Address) error
	TogglePayToken(ctx ctx.Ctx, caller domain.Address, chainId domain.ChainId, token PayToken, accepted bool) error
	ToggleAssetContract(ctx ctx.Ctx, caller domain.Address, chainId domain.ChainId, contract domain.Address, accepted bool) error
	SetDurationBounds(ctx ctx.Ctx, caller domain.Address, chainId domain.ChainId, min, max time.Duration) error
	SetTrustedSigner(ctx ctx.Ctx, caller domain.Address, chainId domain.ChainId, signer domain.Address) error
}
