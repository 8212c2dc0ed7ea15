package usecase

import (
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/ethereum"
	"github.com/x-xyz/tradeengine/base/guard"
	"github.com/x-xyz/tradeengine/base/log"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/marketcfg"
	"github.com/x-xyz/tradeengine/domain/settlement"
)

type SettlementUseCaseCfg struct {
	NonceRepo    settlement.NonceRepo
	ActivityRepo domain.ActivityRepo
	MarketCfg    marketcfg.UseCase
	Ledger       domain.Ledger
	Registry     domain.AssetRegistry
	// Binder may be nil when no name-resolution service is wired.
	Binder domain.ControllerBinder
	Guard  *guard.Guard
}

type impl struct {
	nonceRepo    settlement.NonceRepo
	activityRepo domain.ActivityRepo
	marketCfg    marketcfg.UseCase
	ledger       domain.Ledger
	registry     domain.AssetRegistry
	binder       domain.ControllerBinder
	guard        *guard.Guard
}

func New(cfg *SettlementUseCaseCfg) settlement.UseCase {
	return &impl{
		nonceRepo:    cfg.NonceRepo,
		activityRepo: cfg.ActivityRepo,
		marketCfg:    cfg.MarketCfg,
		ledger:       cfg.Ledger,
		registry:     cfg.Registry,
		binder:       cfg.Binder,
		guard:        cfg.Guard,
	}
}

func (im *impl) emit(ctx ctx.Ctx, activity *domain.Activity) {
	if err := im.activityRepo.Insert(ctx, activity); err != nil {
		ctx.WithFields(log.Fields{
			"err":      err,
			"activity": activity,
		}).Error("activityRepo.Insert failed")
	}
}

// validate checks one authorization against the current registry and nonce
// state without changing anything.
func (im *impl) validate(ctx ctx.Ctx, cfg *marketcfg.Config, auth *settlement.Authorization) error {
	if auth.Amount == nil || auth.Amount.Sign() <= 0 {
		return domain.ErrInvalidPrice
	}
	if auth.Seller.Equals(auth.Buyer) {
		return domain.ErrSelfTrade
	}
	if cfg.TrustedSigner.IsEmpty() {
		return domain.ErrInvalidSignature
	}
	valid, err := ethereum.ValidateMsgSignature(auth.Digest(), auth.Signature, string(cfg.TrustedSigner))
	if err != nil || !valid {
		return domain.ErrInvalidSignature
	}
	used, err := im.nonceRepo.IsUsed(ctx, auth.Asset, auth.Nonce)
	if err != nil {
		return err
	}
	if used {
		return domain.ErrNonceUsed
	}
	owner, err := im.registry.OwnerOf(ctx, auth.Asset)
	if err != nil {
		return err
	}
	if !owner.Equals(auth.Seller) {
		return domain.ErrTransferFailed
	}
	return nil
}

func (im *impl) Settle(ctx ctx.Ctx, auth *settlement.Authorization, payment *big.Int) error {
	if auth == nil {
		return domain.ErrBadParamInput
	}
	return im.SettleBulk(ctx, []*settlement.Authorization{auth}, payment)
}

// SettleBulk verifies every authorization before anything moves, then pulls
// all buyer payments into escrow, and only then commits asset transfers and
// nonce consumption. A buyer with insufficient funds fails the batch during
// acquisition, with every already pulled payment refunded.
func (im *impl) SettleBulk(ctx ctx.Ctx, auths []*settlement.Authorization, totalPayment *big.Int) error {
	if len(auths) == 0 {
		return domain.ErrEmptyBatch
	}

	keys := make([]string, 0, len(auths))
	seen := map[string]bool{}
	sum := new(big.Int)
	for _, auth := range auths {
		if auth == nil || auth.Amount == nil {
			return domain.ErrBadParamInput
		}
		key := auth.Asset.Key()
		if seen[key] {
			// one asset cannot settle twice in a batch
			return domain.ErrBadParamInput
		}
		seen[key] = true
		keys = append(keys, key)
		sum.Add(sum, auth.Amount)
	}
	if totalPayment == nil || totalPayment.Cmp(sum) != 0 {
		return domain.ErrPaymentMismatch
	}

	sort.Strings(keys)
	releases := make([]func(), 0, len(keys))
	defer func() {
		for _, release := range releases {
			release()
		}
	}()
	for _, key := range keys {
		release, err := im.guard.Enter("settle:" + key)
		if err != nil {
			return domain.ErrReentrantCall
		}
		releases = append(releases, release)
	}

	cfgs := map[domain.ChainId]*marketcfg.Config{}
	for _, auth := range auths {
		cfg, ok := cfgs[auth.Asset.ChainId]
		if !ok {
			var err error
			cfg, err = im.marketCfg.Get(ctx, auth.Asset.ChainId)
			if err != nil {
				return err
			}
			cfgs[auth.Asset.ChainId] = cfg
		}
		if err := im.validate(ctx, cfg, auth); err != nil {
			return err
		}
	}

	// acquisition: pull every payment into escrow, refunding on any failure
	pulled := 0
	for ; pulled < len(auths); pulled++ {
		auth := auths[pulled]
		if err := im.ledger.Transfer(ctx, domain.NativeToken, auth.Buyer, domain.EscrowAccount, auth.Amount); err != nil {
			for i := 0; i < pulled; i++ {
				a := auths[i]
				if rerr := im.ledger.Transfer(ctx, domain.NativeToken, domain.EscrowAccount, a.Buyer, a.Amount); rerr != nil {
					ctx.WithField("err", rerr).Error("failed to refund buyer during batch unwind")
					return domain.ErrCustodyViolation
				}
			}
			return err
		}
	}

	now := time.Now()
	for _, auth := range auths {
		if err := im.settleOne(ctx, cfgs[auth.Asset.ChainId], auth, now); err != nil {
			return err
		}
	}
	return nil
}

// settleOne commits a single validated and funded authorization: burn the
// nonce, move the asset, pay the seller. Failures past this point mean the
// engine's view diverged from the boundaries mid batch.
func (im *impl) settleOne(ctx ctx.Ctx, cfg *marketcfg.Config, auth *settlement.Authorization, now time.Time) error {
	if err := im.nonceRepo.MarkUsed(ctx, auth.Asset, auth.Nonce); err != nil {
		ctx.WithFields(log.Fields{
			"err":   err,
			"asset": auth.Asset,
			"nonce": auth.Nonce,
		}).Error("nonceRepo.MarkUsed failed after funds were escrowed")
		return domain.ErrCustodyViolation
	}
	if err := im.registry.TransferOwnership(ctx, auth.Seller, auth.Buyer, auth.Asset); err != nil {
		ctx.WithFields(log.Fields{
			"err":   err,
			"asset": auth.Asset,
		}).Error("asset transfer failed after nonce consumption")
		return domain.ErrCustodyViolation
	}

	fee, sellerAmount := marketcfg.ComputeSplit(auth.Amount, cfg.FeeRate)
	if fee.Sign() > 0 && !cfg.FeeRecipient.IsEmpty() {
		if err := im.ledger.Transfer(ctx, domain.NativeToken, domain.EscrowAccount, cfg.FeeRecipient, fee); err != nil {
			ctx.WithField("err", err).Error("fee disbursement failed")
			return domain.ErrCustodyViolation
		}
	}
	if err := im.ledger.Transfer(ctx, domain.NativeToken, domain.EscrowAccount, auth.Seller, sellerAmount); err != nil {
		ctx.WithField("err", err).Error("seller disbursement failed")
		return domain.ErrCustodyViolation
	}

	// resolver rebinding is best effort; settlement stands either way
	if im.binder != nil && auth.BindName != "" {
		if err := im.binder.BindController(ctx, auth.BindName, auth.Buyer); err != nil {
			ctx.WithFields(log.Fields{
				"err":  err,
				"name": auth.BindName,
			}).Warn("controller rebinding failed")
		}
	}

	im.emit(ctx, &domain.Activity{
		AssetId:       auth.Asset.ToLower(),
		Type:          domain.ActivitySettled,
		Actor:         auth.Buyer.ToLower(),
		Counterparty:  auth.Seller.ToLower(),
		Amount:        auth.Amount.String(),
		DisplayAmount: decimal.NewFromBigInt(auth.Amount, -cfg.PayTokenDecimals(domain.NativeToken)).String(),
		Fee:           fee.String(),
		PayToken:      domain.NativeToken,
		Time:          now,
	})
	return nil
}
