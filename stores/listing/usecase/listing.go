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
	"github.com/x-xyz/tradeengine/domain/custody"
	"github.com/x-xyz/tradeengine/domain/listing"
	"github.com/x-xyz/tradeengine/domain/marketcfg"
)

type ListingUseCaseCfg struct {
	ListingRepo  listing.Repo
	ActivityRepo domain.ActivityRepo
	Custody      custody.UseCase
	MarketCfg    marketcfg.UseCase
	Ledger       domain.Ledger
	Guard        *guard.Guard
}

type impl struct {
	listingRepo  listing.Repo
	activityRepo domain.ActivityRepo
	custody      custody.UseCase
	marketCfg    marketcfg.UseCase
	ledger       domain.Ledger
	guard        *guard.Guard
	// now is swappable so expiry paths can be tested without waiting
	now func() time.Time
}

func New(cfg *ListingUseCaseCfg) listing.UseCase {
	return &impl{
		listingRepo:  cfg.ListingRepo,
		activityRepo: cfg.ActivityRepo,
		custody:      cfg.Custody,
		marketCfg:    cfg.MarketCfg,
		ledger:       cfg.Ledger,
		guard:        cfg.Guard,
		now:          time.Now,
	}
}

func (im *impl) Get(ctx ctx.Ctx, id string) (*listing.Listing, error) {
	l, err := im.listingRepo.FindOne(ctx, id)
	if err != nil {
		ctx.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("listingRepo.FindOne failed")
		return nil, err
	}
	return l, nil
}

func (im *impl) FindAll(ctx ctx.Ctx, opts ...listing.FindAllOptionsFunc) ([]*listing.Listing, error) {
	res, err := im.listingRepo.FindAll(ctx, opts...)
	if err != nil {
		ctx.WithField("err", err).Error("listingRepo.FindAll failed")
		return nil, err
	}
	return res, nil
}

func (im *impl) validateCreate(ctx ctx.Ctx, cfg *marketcfg.Config, payload *listing.CreatePayload) error {
	if payload.Price == nil || payload.Price.Sign() <= 0 {
		return domain.ErrInvalidPrice
	}
	if payload.Duration < cfg.MinDuration() || payload.Duration > cfg.MaxDuration() {
		return domain.ErrInvalidDuration
	}
	if !cfg.IsPayTokenAccepted(payload.PayToken) {
		return domain.ErrPayTokenNotAccepted
	}
	if !cfg.IsContractAccepted(payload.Asset.ContractAddress) {
		return domain.ErrContractNotAccepted
	}
	return nil
}

func (im *impl) emit(ctx ctx.Ctx, activity *domain.Activity) {
	// the trade already committed; a missed activity record must not undo it
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

func (im *impl) create(ctx ctx.Ctx, cfg *marketcfg.Config, payload *listing.CreatePayload) (*listing.Listing, error) {
	id := uuid.NewString()
	if err := im.custody.Hold(ctx, payload.Seller, payload.Asset, custody.PurposeListing, id); err != nil {
		return nil, err
	}

	now := im.now()
	l := &listing.Listing{
		Id:        id,
		AssetId:   payload.Asset.ToLower(),
		Seller:    payload.Seller.ToLower(),
		Price:     payload.Price.String(),
		PayToken:  payload.PayToken.ToLower(),
		CreatedAt: now,
		Deadline:  now.Add(payload.Duration),
		Metadata:  payload.Metadata,
		Name:      payload.Name,
		Active:    true,
	}
	if err := im.listingRepo.Insert(ctx, l); err != nil {
		ctx.WithFields(log.Fields{
			"err":     err,
			"listing": l,
		}).Error("listingRepo.Insert failed")
		if rerr := im.custody.Release(ctx, payload.Seller, payload.Asset); rerr != nil {
			ctx.WithField("err", rerr).Error("failed to release asset after insert failure")
		}
		return nil, err
	}

	im.emit(ctx, &domain.Activity{
		EntityId:      l.Id,
		AssetId:       l.AssetId,
		Type:          domain.ActivityListingCreated,
		Actor:         l.Seller,
		Amount:        l.Price,
		DisplayAmount: displayAmount(cfg, l.PayToken, payload.Price),
		PayToken:      l.PayToken,
		Time:          now,
	})
	return l, nil
}

func (im *impl) Create(ctx ctx.Ctx, payload *listing.CreatePayload) (*listing.Listing, error) {
	cfg, err := im.marketCfg.Get(ctx, payload.Asset.ChainId)
	if err != nil {
		return nil, err
	}
	if err := im.validateCreate(ctx, cfg, payload); err != nil {
		return nil, err
	}
	return im.create(ctx, cfg, payload)
}

// CreateBulk lists several assets in one shot. Every entry is validated
// before the first custody transfer; a custody failure mid batch unwinds
// everything created so far.
func (im *impl) CreateBulk(ctx ctx.Ctx, payloads []*listing.CreatePayload) ([]*listing.Listing, error) {
	if len(payloads) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	cfgs := map[domain.ChainId]*marketcfg.Config{}
	for _, payload := range payloads {
		cfg, ok := cfgs[payload.Asset.ChainId]
		if !ok {
			var err error
			cfg, err = im.marketCfg.Get(ctx, payload.Asset.ChainId)
			if err != nil {
				return nil, err
			}
			cfgs[payload.Asset.ChainId] = cfg
		}
		if err := im.validateCreate(ctx, cfg, payload); err != nil {
			return nil, err
		}
	}

	created := []*listing.Listing{}
	for _, payload := range payloads {
		l, err := im.create(ctx, cfgs[payload.Asset.ChainId], payload)
		if err != nil {
			im.unwind(ctx, created)
			return nil, err
		}
		created = append(created, l)
	}
	return created, nil
}

func (im *impl) unwind(ctx ctx.Ctx, created []*listing.Listing) {
	for _, l := range created {
		if err := im.custody.Release(ctx, l.Seller, l.AssetId); err != nil {
			ctx.WithFields(log.Fields{
				"err": err,
				"id":  l.Id,
			}).Error("failed to release asset during bulk unwind")
			continue
		}
		if err := im.listingRepo.Remove(ctx, l.Id); err != nil {
			ctx.WithFields(log.Fields{
				"err": err,
				"id":  l.Id,
			}).Error("failed to remove listing during bulk unwind")
		}
	}
}

func (im *impl) Buy(ctx ctx.Ctx, buyer domain.Address, id string, payment *big.Int) error {
	release, err := im.guard.Enter("listing:" + id)
	if err != nil {
		return domain.ErrReentrantCall
	}
	defer release()

	l, err := im.listingRepo.FindOne(ctx, id)
	if err != nil {
		return err
	}
	if l.SoldAt != nil || l.Cancelled {
		return domain.ErrAlreadyResolved
	}
	if !l.Active {
		return domain.ErrNotActive
	}
	now := im.now()
	if !now.Before(l.Deadline) {
		return domain.ErrExpired
	}
	if buyer.Equals(l.Seller) {
		return domain.ErrSelfTrade
	}
	price, ok := l.PriceBig()
	if !ok {
		return xerrors.Errorf("malformed price %q on listing %s", l.Price, l.Id)
	}
	if payment == nil || payment.Sign() <= 0 {
		return domain.ErrPaymentMismatch
	}
	if l.PayToken.Equals(domain.NativeToken) {
		if payment.Cmp(price) < 0 {
			return domain.ErrInsufficientFunds
		}
	} else if payment.Cmp(price) != 0 {
		// non native assets settle by exact pre-approved transfer
		return domain.ErrPaymentMismatch
	}

	cfg, err := im.marketCfg.Get(ctx, l.ChainId)
	if err != nil {
		return err
	}
	fee, sellerAmount := marketcfg.ComputeSplit(price, cfg.FeeRate)

	// acquire the buyer's funds; a failure here aborts with no effects
	if err := im.ledger.Transfer(ctx, l.PayToken, buyer, domain.EscrowAccount, payment); err != nil {
		return err
	}

	// commit state before any outbound transfer
	buyerLower := buyer.ToLower()
	if err := im.listingRepo.Patch(ctx, id, listing.Patchable{
		Active: ptr.Bool(false),
		SoldAt: ptr.Time(now),
		Buyer:  &buyerLower,
	}); err != nil {
		if rerr := im.ledger.Transfer(ctx, l.PayToken, domain.EscrowAccount, buyer, payment); rerr != nil {
			ctx.WithField("err", rerr).Error("failed to refund buyer after patch failure")
			return domain.ErrCustodyViolation
		}
		return err
	}

	if err := im.disburse(ctx, cfg, l, buyer, price, payment, fee, sellerAmount); err != nil {
		return err
	}
	if err := im.custody.Release(ctx, buyer, l.AssetId); err != nil {
		return err
	}

	im.emit(ctx, &domain.Activity{
		EntityId:      l.Id,
		AssetId:       l.AssetId,
		Type:          domain.ActivityListingSold,
		Actor:         buyerLower,
		Counterparty:  l.Seller,
		Amount:        price.String(),
		DisplayAmount: displayAmount(cfg, l.PayToken, price),
		Fee:           fee.String(),
		PayToken:      l.PayToken,
		Time:          now,
	})
	return nil
}

// disburse pays the seller and fee recipient out of escrow and refunds any
// excess native payment. Escrow holds the full payment by now, so a failure
// is a custody bug, not a caller error.
func (im *impl) disburse(ctx ctx.Ctx, cfg *marketcfg.Config, l *listing.Listing, buyer domain.Address, price, payment, fee, sellerAmount *big.Int) error {
	if fee.Sign() > 0 && !cfg.FeeRecipient.IsEmpty() {
		if err := im.ledger.Transfer(ctx, l.PayToken, domain.EscrowAccount, cfg.FeeRecipient, fee); err != nil {
			ctx.WithField("err", err).Error("fee disbursement failed")
			return domain.ErrCustodyViolation
		}
	}
	if err := im.ledger.Transfer(ctx, l.PayToken, domain.EscrowAccount, l.Seller, sellerAmount); err != nil {
		ctx.WithField("err", err).Error("seller disbursement failed")
		return domain.ErrCustodyViolation
	}
	if excess := new(big.Int).Sub(payment, price); excess.Sign() > 0 {
		if err := im.ledger.Transfer(ctx, l.PayToken, domain.EscrowAccount, buyer, excess); err != nil {
			ctx.WithField("err", err).Error("excess refund failed")
			return domain.ErrCustodyViolation
		}
	}
	return nil
}

func (im *impl) Cancel(ctx ctx.Ctx, caller domain.Address, id string) error {
	release, err := im.guard.Enter("listing:" + id)
	if err != nil {
		return domain.ErrReentrantCall
	}
	defer release()

	l, err := im.listingRepo.FindOne(ctx, id)
	if err != nil {
		return err
	}
	if !caller.Equals(l.Seller) {
		return domain.ErrUnauthorized
	}
	if l.SoldAt != nil || l.Cancelled {
		return domain.ErrAlreadyResolved
	}
	if !l.Active {
		return domain.ErrNotActive
	}

	now := im.now()
	if err := im.listingRepo.Patch(ctx, id, listing.Patchable{
		Active:      ptr.Bool(false),
		Cancelled:   ptr.Bool(true),
		CancelledAt: ptr.Time(now),
	}); err != nil {
		return err
	}
	if err := im.custody.Release(ctx, l.Seller, l.AssetId); err != nil {
		return err
	}

	im.emit(ctx, &domain.Activity{
		EntityId: l.Id,
		AssetId:  l.AssetId,
		Type:     domain.ActivityListingCancelled,
		Actor:    l.Seller,
		Amount:   l.Price,
		PayToken: l.PayToken,
		Time:     now,
	})
	return nil
}
