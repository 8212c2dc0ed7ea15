package usecase

import (
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/guard"
	"github.com/x-xyz/tradeengine/base/log"
	"github.com/x-xyz/tradeengine/base/ptr"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/marketcfg"
	"github.com/x-xyz/tradeengine/domain/offer"
)

type OfferUseCaseCfg struct {
	OfferRepo    offer.Repo
	ActivityRepo domain.ActivityRepo
	MarketCfg    marketcfg.UseCase
	Ledger       domain.Ledger
	Registry     domain.AssetRegistry
	Guard        *guard.Guard
}

type impl struct {
	offerRepo    offer.Repo
	activityRepo domain.ActivityRepo
	marketCfg    marketcfg.UseCase
	ledger       domain.Ledger
	registry     domain.AssetRegistry
	guard        *guard.Guard
	now          func() time.Time
}

func New(cfg *OfferUseCaseCfg) offer.UseCase {
	return &impl{
		offerRepo:    cfg.OfferRepo,
		activityRepo: cfg.ActivityRepo,
		marketCfg:    cfg.MarketCfg,
		ledger:       cfg.Ledger,
		registry:     cfg.Registry,
		guard:        cfg.Guard,
		now:          time.Now,
	}
}

func (im *impl) Get(ctx ctx.Ctx, id string) (*offer.Offer, error) {
	o, err := im.offerRepo.FindOne(ctx, id)
	if err != nil {
		ctx.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("offerRepo.FindOne failed")
		return nil, err
	}
	return o, nil
}

func (im *impl) FindAll(ctx ctx.Ctx, opts ...offer.FindAllOptionsFunc) ([]*offer.Offer, error) {
	res, err := im.offerRepo.FindAll(ctx, opts...)
	if err != nil {
		ctx.WithField("err", err).Error("offerRepo.FindAll failed")
		return nil, err
	}
	return res, nil
}

func (im *impl) emit(ctx ctx.Ctx, activity *domain.Activity) {
	if err := im.activityRepo.Insert(ctx, activity); err != nil {
		ctx.WithFields(log.Fields{
			"err":      err,
			"activity": activity,
		}).Error("activityRepo.Insert failed")
	}
}

func displayAmount(cfg *marketcfg.Config, token domain.Address, amount *big.Int) string {
	return decimal.NewFromBigInt(amount, -cfg.PayTokenDecimals(token)).String()
}

// Make locks the maker's funds under escrow for the whole lifetime of the
// offer. The named owner must hold the asset right now; an offer against an
// escrowed or foreign asset is rejected up front.
func (im *impl) Make(ctx ctx.Ctx, payload *offer.MakePayload) (*offer.Offer, error) {
	cfg, err := im.marketCfg.Get(ctx, payload.Asset.ChainId)
	if err != nil {
		return nil, err
	}
	if payload.Price == nil || payload.Price.Sign() <= 0 {
		return nil, domain.ErrInvalidPrice
	}
	if !cfg.IsPayTokenAccepted(payload.PayToken) {
		return nil, domain.ErrPayTokenNotAccepted
	}
	if !cfg.IsContractAccepted(payload.Asset.ContractAddress) {
		return nil, domain.ErrContractNotAccepted
	}
	now := im.now()
	if !payload.ValidUntil.After(now) {
		return nil, domain.ErrInvalidDuration
	}
	if payload.Maker.Equals(payload.Owner) {
		return nil, domain.ErrSelfTrade
	}
	actualOwner, err := im.registry.OwnerOf(ctx, payload.Asset)
	if err != nil {
		return nil, err
	}
	if !actualOwner.Equals(payload.Owner) {
		return nil, domain.ErrBadParamInput
	}

	if err := im.ledger.Transfer(ctx, payload.PayToken, payload.Maker, domain.EscrowAccount, payload.Price); err != nil {
		return nil, err
	}

	o := &offer.Offer{
		Id:         uuid.NewString(),
		AssetId:    payload.Asset.ToLower(),
		Owner:      payload.Owner.ToLower(),
		Maker:      payload.Maker.ToLower(),
		Price:      payload.Price.String(),
		PayToken:   payload.PayToken.ToLower(),
		OfferedAt:  now,
		ValidUntil: payload.ValidUntil,
		Name:       payload.Name,
	}
	if err := im.offerRepo.Insert(ctx, o); err != nil {
		ctx.WithFields(log.Fields{
			"err":   err,
			"offer": o,
		}).Error("offerRepo.Insert failed")
		if rerr := im.ledger.Transfer(ctx, payload.PayToken, domain.EscrowAccount, payload.Maker, payload.Price); rerr != nil {
			ctx.WithField("err", rerr).Error("failed to refund maker after insert failure")
			return nil, domain.ErrCustodyViolation
		}
		return nil, err
	}

	im.emit(ctx, &domain.Activity{
		EntityId:      o.Id,
		AssetId:       o.AssetId,
		Type:          domain.ActivityOfferMade,
		Actor:         o.Maker,
		Counterparty:  o.Owner,
		Amount:        o.Price,
		DisplayAmount: displayAmount(cfg, o.PayToken, payload.Price),
		PayToken:      o.PayToken,
		Time:          now,
	})
	return o, nil
}

// Accept settles an offer: the asset moves from the owner straight to the
// maker and the owner receives the fee adjusted price out of escrow. Other
// open offers on the same asset named in supersededIds are cancelled and
// refunded in the same operation.
func (im *impl) Accept(ctx ctx.Ctx, caller domain.Address, id string, supersededIds []string) error {
	release, err := im.guard.Enter("offer:" + id)
	if err != nil {
		return domain.ErrReentrantCall
	}
	defer release()

	o, err := im.offerRepo.FindOne(ctx, id)
	if err != nil {
		return err
	}
	if !caller.Equals(o.Owner) {
		return domain.ErrUnauthorized
	}
	now := im.now()
	if o.AcceptedAt != nil || o.Cancelled {
		return domain.ErrAlreadyResolved
	}
	if !now.Before(o.ValidUntil) {
		return domain.ErrExpired
	}
	price, ok := o.PriceBig()
	if !ok {
		return xerrors.Errorf("malformed price %q on offer %s", o.Price, o.Id)
	}

	// every superseded offer must be a different open offer on the same
	// asset before anything moves
	superseded := make([]*offer.Offer, 0, len(supersededIds))
	for _, sid := range supersededIds {
		if sid == id {
			return domain.ErrBadParamInput
		}
		s, err := im.offerRepo.FindOne(ctx, sid)
		if err != nil {
			return err
		}
		if s.AssetId.Key() != o.AssetId.Key() {
			return domain.ErrBadParamInput
		}
		if s.AcceptedAt != nil || s.Cancelled {
			return domain.ErrAlreadyResolved
		}
		superseded = append(superseded, s)
	}

	cfg, err := im.marketCfg.Get(ctx, o.ChainId)
	if err != nil {
		return err
	}

	// the asset moves first; a failed transfer leaves the offer untouched
	if err := im.registry.TransferOwnership(ctx, o.Owner, o.Maker, o.AssetId); err != nil {
		ctx.WithFields(log.Fields{
			"err":   err,
			"asset": o.AssetId,
		}).Warn("registry.TransferOwnership rejected")
		return domain.ErrTransferFailed
	}

	if err := im.offerRepo.Patch(ctx, id, offer.Patchable{AcceptedAt: ptr.Time(now)}); err != nil {
		if rerr := im.registry.TransferOwnership(ctx, o.Maker, o.Owner, o.AssetId); rerr != nil {
			ctx.WithField("err", rerr).Error("failed to return asset after patch failure")
			return domain.ErrCustodyViolation
		}
		return err
	}

	fee, ownerAmount := marketcfg.ComputeSplit(price, cfg.OfferFeeRate)
	if fee.Sign() > 0 && !cfg.FeeRecipient.IsEmpty() {
		if err := im.ledger.Transfer(ctx, o.PayToken, domain.EscrowAccount, cfg.FeeRecipient, fee); err != nil {
			ctx.WithField("err", err).Error("fee disbursement failed")
			return domain.ErrCustodyViolation
		}
	}
	if err := im.ledger.Transfer(ctx, o.PayToken, domain.EscrowAccount, o.Owner, ownerAmount); err != nil {
		ctx.WithField("err", err).Error("owner disbursement failed")
		return domain.ErrCustodyViolation
	}

	im.emit(ctx, &domain.Activity{
		EntityId:      o.Id,
		AssetId:       o.AssetId,
		Type:          domain.ActivityOfferAccepted,
		Actor:         o.Owner,
		Counterparty:  o.Maker,
		Amount:        o.Price,
		DisplayAmount: displayAmount(cfg, o.PayToken, price),
		Fee:           fee.String(),
		PayToken:      o.PayToken,
		Time:          now,
	})

	for _, s := range superseded {
		if err := im.cancelAndRefund(ctx, s, offer.ReasonSuperseded, now); err != nil {
			return err
		}
	}
	return nil
}

// Reject cancels and refunds offers on assets the caller holds. The whole
// batch is validated before the first refund.
func (im *impl) Reject(ctx ctx.Ctx, caller domain.Address, ids []string) error {
	if len(ids) == 0 {
		return domain.ErrEmptyBatch
	}
	now := im.now()
	rejected := make([]*offer.Offer, 0, len(ids))
	for _, id := range ids {
		o, err := im.offerRepo.FindOne(ctx, id)
		if err != nil {
			return err
		}
		if o.AcceptedAt != nil || o.Cancelled {
			return domain.ErrAlreadyResolved
		}
		owner, err := im.registry.OwnerOf(ctx, o.AssetId)
		if err != nil {
			return err
		}
		if !owner.Equals(caller) {
			return domain.ErrUnauthorized
		}
		rejected = append(rejected, o)
	}
	for _, o := range rejected {
		if err := im.cancelAndRefund(ctx, o, offer.ReasonRejected, now); err != nil {
			return err
		}
	}
	return nil
}

// Cancel lets the maker withdraw an unaccepted offer, expired or not, and
// reclaim the locked funds.
func (im *impl) Cancel(ctx ctx.Ctx, caller domain.Address, id string) error {
	release, err := im.guard.Enter("offer:" + id)
	if err != nil {
		return domain.ErrReentrantCall
	}
	defer release()

	o, err := im.offerRepo.FindOne(ctx, id)
	if err != nil {
		return err
	}
	if !caller.Equals(o.Maker) {
		return domain.ErrUnauthorized
	}
	if o.AcceptedAt != nil || o.Cancelled {
		return domain.ErrAlreadyResolved
	}
	return im.cancelAndRefund(ctx, o, offer.ReasonWithdrawn, im.now())
}

// cancelAndRefund marks the offer cancelled and hands the locked funds back
// to the maker in full.
func (im *impl) cancelAndRefund(ctx ctx.Ctx, o *offer.Offer, reason string, now time.Time) error {
	price, ok := o.PriceBig()
	if !ok {
		return xerrors.Errorf("malformed price %q on offer %s", o.Price, o.Id)
	}
	if err := im.offerRepo.Patch(ctx, o.Id, offer.Patchable{
		Cancelled:    ptr.Bool(true),
		CancelReason: &reason,
		CancelledAt:  ptr.Time(now),
	}); err != nil {
		return err
	}
	if err := im.ledger.Transfer(ctx, o.PayToken, domain.EscrowAccount, o.Maker, price); err != nil {
		ctx.WithFields(log.Fields{
			"err": err,
			"id":  o.Id,
		}).Error("maker refund failed")
		return domain.ErrCustodyViolation
	}
	im.emit(ctx, &domain.Activity{
		EntityId: o.Id,
		AssetId:  o.AssetId,
		Type:     domain.ActivityOfferCancelled,
		Actor:    o.Maker,
		Amount:   o.Price,
		PayToken: o.PayToken,
		Reason:   reason,
		Time:     now,
	})
	return nil
}
