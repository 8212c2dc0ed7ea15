package usecase

import (
	"time"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/log"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/custody"
)

type CustodyUseCaseCfg struct {
	HoldRepo custody.Repo
	Registry domain.AssetRegistry
	// Engine is the registry identity that holds escrowed assets.
	Engine domain.Address
}

type impl struct {
	holdRepo custody.Repo
	registry domain.AssetRegistry
	engine   domain.Address
}

func New(cfg *CustodyUseCaseCfg) custody.UseCase {
	return &impl{
		holdRepo: cfg.HoldRepo,
		registry: cfg.Registry,
		engine:   cfg.Engine.ToLower(),
	}
}

func (im *impl) ActiveHold(ctx ctx.Ctx, id domain.AssetId) (*custody.Hold, error) {
	hold, err := im.holdRepo.FindOne(ctx, id)
	if err == domain.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		ctx.WithFields(log.Fields{
			"err":   err,
			"asset": id,
		}).Error("holdRepo.FindOne failed")
		return nil, err
	}
	return hold, nil
}

// Hold escrows an asset. An asset under an active hold cannot be escrowed
// again, so one asset can never back a listing and an auction at once.
func (im *impl) Hold(ctx ctx.Ctx, from domain.Address, id domain.AssetId, purpose custody.HoldPurpose, refId string) error {
	existing, err := im.ActiveHold(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrAlreadyEscrowed
	}

	if err := im.registry.TransferOwnership(ctx, from, im.engine, id); err != nil {
		ctx.WithFields(log.Fields{
			"err":   err,
			"asset": id,
			"from":  from,
		}).Warn("registry.TransferOwnership rejected")
		return domain.ErrTransferFailed
	}

	hold := &custody.Hold{
		AssetId: id.ToLower(),
		Owner:   from.ToLower(),
		Purpose: purpose,
		RefId:   refId,
		HeldAt:  time.Now(),
	}
	if err := im.holdRepo.Insert(ctx, hold); err != nil {
		// hand the asset back; an untracked escrow is a custody bug waiting
		// to happen
		if rerr := im.registry.TransferOwnership(ctx, im.engine, from, id); rerr != nil {
			ctx.WithFields(log.Fields{
				"err":   rerr,
				"asset": id,
			}).Error("failed to return asset after hold insert failure")
			return domain.ErrCustodyViolation
		}
		return err
	}
	return nil
}

// Release moves a held asset to its destination and retires the hold. A
// release without an active hold means internal state diverged from the
// registry and is unrecoverable.
func (im *impl) Release(ctx ctx.Ctx, to domain.Address, id domain.AssetId) error {
	hold, err := im.ActiveHold(ctx, id)
	if err != nil {
		return err
	}
	if hold == nil {
		ctx.WithFields(log.Fields{
			"asset": id,
			"to":    to,
		}).Error("release without active hold")
		return domain.ErrCustodyViolation
	}

	if err := im.holdRepo.Remove(ctx, id); err != nil {
		ctx.WithFields(log.Fields{
			"err":   err,
			"asset": id,
		}).Error("holdRepo.Remove failed")
		return err
	}
	if err := im.registry.TransferOwnership(ctx, im.engine, to, id); err != nil {
		ctx.WithFields(log.Fields{
			"err":   err,
			"asset": id,
			"to":    to,
		}).Error("escrowed asset not transferable")
		return domain.ErrCustodyViolation
	}
	return nil
}
