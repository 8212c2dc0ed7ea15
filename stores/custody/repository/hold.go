package repository

import (
	bCtx "github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/log"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/custody"
	"github.com/x-xyz/tradeengine/service/query"
	"go.mongodb.org/mongo-driver/bson"
)

type holdMongoRepo struct {
	q query.Mongo
}

func NewHoldRepo(q query.Mongo) custody.Repo {
	return &holdMongoRepo{q: q}
}

func assetSelector(id domain.AssetId) bson.M {
	id = id.ToLower()
	return bson.M{
		"chainId":         id.ChainId,
		"contractAddress": id.ContractAddress,
		"tokenID":         id.TokenId,
	}
}

func (r *holdMongoRepo) FindOne(ctx bCtx.Ctx, id domain.AssetId) (*custody.Hold, error) {
	hold := &custody.Hold{}
	if err := r.q.FindOne(ctx, domain.TableHolds, assetSelector(id), hold); err == query.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		ctx.WithField("err", err).Error("q.FindOne failed")
		return nil, err
	}
	return hold, nil
}

func (r *holdMongoRepo) Insert(ctx bCtx.Ctx, hold *custody.Hold) error {
	hold.AssetId = hold.AssetId.ToLower()
	hold.Owner = hold.Owner.ToLower()
	if err := r.q.Insert(ctx, domain.TableHolds, hold); err != nil {
		ctx.WithFields(log.Fields{
			"err":  err,
			"hold": hold,
		}).Error("q.Insert failed")
		return err
	}
	return nil
}

func (r *holdMongoRepo) Remove(ctx bCtx.Ctx, id domain.AssetId) error {
	if err := r.q.Remove(ctx, domain.TableHolds, assetSelector(id)); err == query.ErrNotFound {
		return domain.ErrNotFound
	} else if err != nil {
		ctx.WithField("err", err).Error("q.Remove failed")
		return err
	}
	return nil
}
