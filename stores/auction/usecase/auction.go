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
	"github.com/x-xyz/tradeengine/domain/auction"
	"github.com/x-xyz/tradeengine/domain/custody"
	"github.com/x-xyz/tradeengine/domain/marketcfg"
)

type AuctionUseCaseCfg struct {
	AuctionRepo  auction.Repo
	ActivityRepo domain.ActivityRepo
	Custody      custody.UseCase
	MarketCfg    marketcfg.UseCase
	Ledger       domain.Ledger
	Guard        *guard.Guard
}

type impl struct {
	auctionRepo  auction.Repo
	activityRepo domain.ActivityRepo
	custody      custody.UseCase
	marketCfg    marketcfg.UseCase
	ledger       domain.Ledger
	guard        *guard.Guard
	// now is swappable so expiry paths can be tested without waiting
	now func() time.Time
}

func New(cfg *AuctionUseCaseCfg) auction.UseCase {
	return &impl{
		auctionRepo:  cfg.AuctionRepo,
		activityRepo: cfg.ActivityRepo,
		custody:      cfg.Custody,
		marketCfg:    cfg.MarketCfg,
		ledger:       cfg.Ledger,
		guard:        cfg.Guard,
		now:          time.Now,
	}
}

func (im *impl) Get(ctx ctx.Ctx, id string) (*auction.Auction, error) {
	a, err := im.auctionRepo.FindOne(ctx, id)
	if err != nil {
		ctx.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("auctionRepo.FindOne failed")
		return nil, err
	}
	return a, nil
}

func (im *impl) FindAll(ctx ctx.Ctx, opts ...auction.FindAllOptionsFunc) ([]*auction.Auction, error) {
	res, err := im.auctionRepo.FindAll(ctx, opts...)
	if err != nil {
		ctx.WithField("err", err).Error("auctionRepo.FindAll failed")
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

func (im *impl) Create(ctx ctx.Ctx, payload *auction.CreatePayload) (*auction.Auction, error) {
	cfg, err := im.marketCfg.Get(ctx, payload.Asset.ChainId)
	if err != nil {
		return nil, err
	}
	if payload.StartingPrice == nil || payload.StartingPrice.Sign() <= 0 {
		return nil, domain.ErrInvalidPrice
	}
	if payload.ReservePrice == nil || payload.ReservePrice.Cmp(payload.StartingPrice) < 0 {
		return nil, domain.ErrInvalidPrice
	}
	if payload.Duration < auction.MinDuration || payload.Duration > auction.MaxDuration {
		return nil, domain.ErrInvalidDuration
	}
	if !cfg.IsPayTokenAccepted(payload.PayToken) {
		return nil, domain.ErrPayTokenNotAccepted
	}
	if !cfg.IsContractAccepted(payload.Asset.ContractAddress) {
		return nil, domain.ErrContractNotAccepted
	}

	id := uuid.NewString()
	if err := im.custody.Hold(ctx, payload.Seller, payload.Asset, custody.PurposeAuction, id); err != nil {
		return nil, err
	}

	now := im.now()
	a := &auction.Auction{
		Id:            id,
		AssetId:       payload.Asset.ToLower(),
		Seller:        payload.Seller.ToLower(),
		StartingPrice: payload.StartingPrice.String(),
		ReservePrice:  payload.ReservePrice.String(),
		PayToken:      payload.PayToken.ToLower(),
		StartTime:     now,
		EndTime:       now.Add(payload.Duration),
		Metadata:      payload.Metadata,
		Name:          payload.Name,
		Active:        true,
	}
	if err := im.auctionRepo.Insert(ctx, a); err != nil {
		ctx.WithFields(log.Fields{
			"err":     err,
			"auction": a,
		}).Error("auctionRepo.Insert failed")
		if rerr := im.custody.Release(ctx, payload.Seller, payload.Asset); rerr != nil {
			ctx.WithField("err", rerr).Error("failed to release asset after insert failure")
		}
		return nil, err
	}

	im.emit(ctx, &domain.Activity{
		EntityId:      a.Id,
		AssetId:       a.AssetId,
		Type:          domain.ActivityAuctionCreated,
		Actor:         a.Seller,
		Amount:        a.StartingPrice,
		DisplayAmount: displayAmount(cfg, a.PayToken, payload.StartingPrice),
		PayToken:      a.PayToken,
		Time:          now,
	})
	return a, nil
}

// PlaceBid escrows the new bid and refunds the displaced bidder in full
// before the record names the new highest bidder. The previous bidder is
// never left unpaid while a higher bid stands.
func (im *impl) PlaceBid(ctx ctx.Ctx, bidder domain.Address, id string, amount *big.Int) error {
	release, err := im.guard.Enter("auction:" + id)
	if err != nil {
		return domain.ErrReentrantCall
	}
	defer release()

	a, err := im.auctionRepo.FindOne(ctx, id)
	if err != nil {
		return err
	}
	if a.EndedAt != nil || a.Cancelled {
		return domain.ErrAlreadyResolved
	}
	if !a.Active {
		return domain.ErrNotActive
	}
	now := im.now()
	if now.Before(a.StartTime) {
		return domain.ErrNotStarted
	}
	if !now.Before(a.EndTime) {
		return domain.ErrExpired
	}
	if bidder.Equals(a.Seller) {
		return domain.ErrSelfTrade
	}
	startingPrice, ok := a.StartingPriceBig()
	if !ok {
		return xerrors.Errorf("malformed starting price %q on auction %s", a.StartingPrice, a.Id)
	}
	if amount == nil || amount.Cmp(startingPrice) < 0 {
		return domain.ErrInvalidPrice
	}
	prevBid := a.HighestBidBig()
	if amount.Cmp(prevBid) <= 0 {
		return domain.ErrInvalidPrice
	}

	// acquire the new bid first so the displaced bidder's refund can never
	// bounce for lack of escrow funds
	if err := im.ledger.Transfer(ctx, a.PayToken, bidder, domain.EscrowAccount, amount); err != nil {
		return err
	}
	if !a.HighestBidder.IsEmpty() {
		if err := im.ledger.Transfer(ctx, a.PayToken, domain.EscrowAccount, a.HighestBidder, prevBid); err != nil {
			ctx.WithFields(log.Fields{
				"err":    err,
				"id":     id,
				"bidder": a.HighestBidder,
			}).Error("displaced bidder refund failed")
			return domain.ErrCustodyViolation
		}
	}

	bidderLower := bidder.ToLower()
	if err := im.auctionRepo.Patch(ctx, id, auction.Patchable{
		HighestBidder: &bidderLower,
		HighestBid:    ptr.String(amount.String()),
	}); err != nil {
		ctx.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("failed to record new highest bid after refund")
		return domain.ErrCustodyViolation
	}

	cfg, err := im.marketCfg.Get(ctx, a.ChainId)
	if err != nil {
		return err
	}
	if !a.HighestBidder.IsEmpty() {
		im.emit(ctx, &domain.Activity{
			EntityId:      a.Id,
			AssetId:       a.AssetId,
			Type:          domain.ActivityBidRefunded,
			Actor:         a.HighestBidder,
			Amount:        prevBid.String(),
			DisplayAmount: displayAmount(cfg, a.PayToken, prevBid),
			PayToken:      a.PayToken,
			Time:          now,
		})
	}
	im.emit(ctx, &domain.Activity{
		EntityId:      a.Id,
		AssetId:       a.AssetId,
		Type:          domain.ActivityBidPlaced,
		Actor:         bidderLower,
		Amount:        amount.String(),
		DisplayAmount: displayAmount(cfg, a.PayToken, amount),
		PayToken:      a.PayToken,
		Time:          now,
	})
	return nil
}

// End resolves an auction exactly once. With a bid at or above the reserve
// the asset goes to the winner and the seller is paid; otherwise the asset
// returns to the seller and any standing bid is refunded.
func (im *impl) End(ctx ctx.Ctx, caller domain.Address, id string) error {
	release, err := im.guard.Enter("auction:" + id)
	if err != nil {
		return domain.ErrReentrantCall
	}
	defer release()

	a, err := im.auctionRepo.FindOne(ctx, id)
	if err != nil {
		return err
	}
	if a.EndedAt != nil || a.Cancelled {
		return domain.ErrAlreadyResolved
	}
	if !a.Active {
		return domain.ErrNotActive
	}
	now := im.now()
	if now.Before(a.EndTime) {
		return domain.ErrNotEnded
	}
	reserve, ok := a.ReservePriceBig()
	if !ok {
		return xerrors.Errorf("malformed reserve price %q on auction %s", a.ReservePrice, a.Id)
	}
	cfg, err := im.marketCfg.Get(ctx, a.ChainId)
	if err != nil {
		return err
	}

	highestBid := a.HighestBidBig()
	won := !a.HighestBidder.IsEmpty() && highestBid.Cmp(reserve) >= 0

	if err := im.auctionRepo.Patch(ctx, id, auction.Patchable{
		Active:  ptr.Bool(false),
		EndedAt: ptr.Time(now),
	}); err != nil {
		return err
	}

	if won {
		fee, sellerAmount := marketcfg.ComputeSplit(highestBid, cfg.FeeRate)
		if fee.Sign() > 0 && !cfg.FeeRecipient.IsEmpty() {
			if err := im.ledger.Transfer(ctx, a.PayToken, domain.EscrowAccount, cfg.FeeRecipient, fee); err != nil {
				ctx.WithField("err", err).Error("fee disbursement failed")
				return domain.ErrCustodyViolation
			}
		}
		if err := im.ledger.Transfer(ctx, a.PayToken, domain.EscrowAccount, a.Seller, sellerAmount); err != nil {
			ctx.WithField("err", err).Error("seller disbursement failed")
			return domain.ErrCustodyViolation
		}
		if err := im.custody.Release(ctx, a.HighestBidder, a.AssetId); err != nil {
			return err
		}
		im.emit(ctx, &domain.Activity{
			EntityId:      a.Id,
			AssetId:       a.AssetId,
			Type:          domain.ActivityAuctionEnded,
			Actor:         caller.ToLower(),
			Counterparty:  a.HighestBidder,
			Amount:        highestBid.String(),
			DisplayAmount: displayAmount(cfg, a.PayToken, highestBid),
			Fee:           fee.String(),
			PayToken:      a.PayToken,
			Time:          now,
		})
		return nil
	}

	if !a.HighestBidder.IsEmpty() {
		if err := im.ledger.Transfer(ctx, a.PayToken, domain.EscrowAccount, a.HighestBidder, highestBid); err != nil {
			ctx.WithField("err", err).Error("bidder refund failed")
			return domain.ErrCustodyViolation
		}
		im.emit(ctx, &domain.Activity{
			EntityId:      a.Id,
			AssetId:       a.AssetId,
			Type:          domain.ActivityBidRefunded,
			Actor:         a.HighestBidder,
			Amount:        highestBid.String(),
			DisplayAmount: displayAmount(cfg, a.PayToken, highestBid),
			PayToken:      a.PayToken,
			Time:          now,
		})
	}
	if err := im.custody.Release(ctx, a.Seller, a.AssetId); err != nil {
		return err
	}
	im.emit(ctx, &domain.Activity{
		EntityId: a.Id,
		AssetId:  a.AssetId,
		Type:     domain.ActivityAuctionEnded,
		Actor:    caller.ToLower(),
		Amount:   highestBid.String(),
		PayToken: a.PayToken,
		Reason:   "reserve not met",
		Time:     now,
	})
	return nil
}

// Cancel returns the asset to the seller. Once any bid stands the auction
// can only resolve through End.
func (im *impl) Cancel(ctx ctx.Ctx, caller domain.Address, id string) error {
	release, err := im.guard.Enter("auction:" + id)
	if err != nil {
		return domain.ErrReentrantCall
	}
	defer release()

	a, err := im.auctionRepo.FindOne(ctx, id)
	if err != nil {
		return err
	}
	if !caller.Equals(a.Seller) {
		return domain.ErrUnauthorized
	}
	if a.EndedAt != nil || a.Cancelled {
		return domain.ErrAlreadyResolved
	}
	if !a.Active {
		return domain.ErrNotActive
	}
	if !a.HighestBidder.IsEmpty() {
		return domain.ErrHasBids
	}

	now := im.now()
	if err := im.auctionRepo.Patch(ctx, id, auction.Patchable{
		Active:    ptr.Bool(false),
		Cancelled: ptr.Bool(true),
		EndedAt:   ptr.Time(now),
	}); err != nil {
		return err
	}
	if err := im.custody.Release(ctx, a.Seller, a.AssetId); err != nil {
		return err
	}

	im.emit(ctx, &domain.Activity{
		EntityId: a.Id,
		AssetId:  a.AssetId,
		Type:     domain.ActivityAuctionCancelled,
		Actor:    a.Seller,
		Time:     now,
	})
	return nil
}
