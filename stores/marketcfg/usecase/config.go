package usecase

import (
	"time"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/log"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/marketcfg"
)

const (
	defaultFeeRate      = 100 // 1%
	defaultOfferFeeRate = 100
	defaultMinDuration  = time.Minute
	defaultMaxDuration  = 180 * 24 * time.Hour
)

type ConfigUseCaseCfg struct {
	ConfigRepo marketcfg.Repo
	// Admin is the only identity allowed through the mutators.
	Admin domain.Address
}

type impl struct {
	configRepo marketcfg.Repo
	admin      domain.Address
}

func New(cfg *ConfigUseCaseCfg) marketcfg.UseCase {
	return &impl{
		configRepo: cfg.ConfigRepo,
		admin:      cfg.Admin.ToLower(),
	}
}

func (im *impl) Get(ctx ctx.Ctx, chainId domain.ChainId) (*marketcfg.Config, error) {
	cfg, err := im.configRepo.FindOne(ctx, chainId)
	if err == domain.ErrNotFound {
		return defaultConfig(chainId), nil
	}
	if err != nil {
		ctx.WithFields(log.Fields{
			"err":     err,
			"chainId": chainId,
		}).Error("configRepo.FindOne failed")
		return nil, err
	}
	return cfg, nil
}

func defaultConfig(chainId domain.ChainId) *marketcfg.Config {
	return &marketcfg.Config{
		ChainId:        chainId,
		FeeRate:        defaultFeeRate,
		OfferFeeRate:   defaultOfferFeeRate,
		MinDurationSec: int64(defaultMinDuration / time.Second),
		MaxDurationSec: int64(defaultMaxDuration / time.Second),
	}
}

// mutate loads the current config, applies fn and persists the bumped
// version. Callers must already be authorized.
func (im *impl) mutate(ctx ctx.Ctx, chainId domain.ChainId, fn func(*marketcfg.Config) error) error {
	cfg, err := im.Get(ctx, chainId)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	cfg.Version++
	cfg.UpdatedAt = time.Now()
	if err := im.configRepo.Upsert(ctx, cfg); err != nil {
		ctx.WithFields(log.Fields{
			"err":     err,
			"chainId": chainId,
		}).Error("configRepo.Upsert failed")
		return err
	}
	return nil
}

func (im *impl) authorize(caller domain.Address) error {
	if !caller.Equals(im.admin) {
		return domain.ErrUnauthorized
	}
	return nil
}

func (im *impl) SetFeeRate(ctx ctx.Ctx, caller domain.Address, chainId domain.ChainId, rate int64) error {
	if err := im.authorize(caller); err != nil {
		return err
	}
	if rate < 0 || rate > marketcfg.MaxFeeRate {
		return domain.ErrFeeTooHigh
	}
	return im.mutate(ctx, chainId, func(cfg *marketcfg.Config) error {
		cfg.FeeRate = rate
		return nil
	})
}

func (im *impl) SetOfferFeeRate(ctx ctx.Ctx, caller domain.Address, chainId domain.ChainId, rate int64) error {
	if err := im.authorize(caller); err != nil {
		return err
	}
	if rate < 0 || rate > marketcfg.MaxFeeRate {
		return domain.ErrFeeTooHigh
	}
	return im.mutate(ctx, chainId, func(cfg *marketcfg.Config) error {
		cfg.OfferFeeRate = rate
		return nil
	})
}

func (im *impl) SetFeeRecipient(ctx ctx.Ctx, caller domain.Address, chainId domain.ChainId, recipient domain.Address) error {
	if err := im.authorize(caller); err != nil {
		return err
	}
	return im.mutate(ctx, chainId, func(cfg *marketcfg.Config) error {
		cfg.FeeRecipient = recipient.ToLower()
		return nil
	})
}

func (im *impl) TogglePayToken(ctx ctx.Ctx, caller domain.Address, chainId domain.ChainId, token marketcfg.PayToken, accepted bool) error {
	if err := im.authorize(caller); err != nil {
		return err
	}
	return im.mutate(ctx, chainId, func(cfg *marketcfg.Config) error {
		token.Address = token.Address.ToLower()
		filtered := cfg.PayTokens[:0]
		for _, t := range cfg.PayTokens {
			if !t.Address.Equals(token.Address) {
				filtered = append(filtered, t)
			}
		}
		cfg.PayTokens = filtered
		if accepted {
			cfg.PayTokens = append(cfg.PayTokens, token)
		}
		return nil
	})
}

func (im *impl) ToggleAssetContract(ctx ctx.Ctx, caller domain.Address, chainId domain.ChainId, contract domain.Address, accepted bool) error {
	if err := im.authorize(caller); err != nil {
		return err
	}
	return im.mutate(ctx, chainId, func(cfg *marketcfg.Config) error {
		contract = contract.ToLower()
		filtered := cfg.AssetContracts[:0]
		for _, a := range cfg.AssetContracts {
			if !a.Equals(contract) {
				filtered = append(filtered, a)
			}
		}
		cfg.AssetContracts = filtered
		if accepted {
			cfg.AssetContracts = append(cfg.AssetContracts, contract)
		}
		return nil
	})
}

func (im *impl) SetDurationBounds(ctx ctx.Ctx, caller domain.Address, chainId domain.ChainId, min, max time.Duration) error {
	if err := im.authorize(caller); err != nil {
		return err
	}
	if min <= 0 || min >= max {
		return domain.ErrInvalidDurationBounds
	}
	return im.mutate(ctx, chainId, func(cfg *marketcfg.Config) error {
		cfg.MinDurationSec = int64(min / time.Second)
		cfg.MaxDurationSec = int64(max / time.Second)
		return nil
	})
}

func (im *impl) SetTrustedSigner(ctx ctx.Ctx, caller domain.Address, chainId domain.ChainId, signer domain.Address) error {
	if err := im.authorize(caller); err != nil {
		return err
	}
	return im.mutate(ctx, chainId, func(cfg *marketcfg.Config) error {
		cfg.TrustedSigner = signer.ToLower()
		return nil
	})
}
