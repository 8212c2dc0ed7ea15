package repository

import (
	bCtx "github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/log"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/service/query"
	"go.mongodb.org/mongo-driver/bson"
)

type activityMongoRepo struct {
	q query.Mongo
}

func NewActivityRepo(q query.Mongo) domain.ActivityRepo {
	return &activityMongoRepo{q: q}
}

func (r *activityMongoRepo) makeQuery(opts ...domain.ActivityFindAllOptionsFunc) (bson.M, *domain.ActivityFindAllOptions, error) {
	options, err := domain.GetActivityFindAllOptions(opts...)
	if err != nil {
		return nil, nil, err
	}
	qry := bson.M{}
	if options.EntityId != nil {
		qry["entityId"] = *options.EntityId
	}
	if options.Asset != nil {
		asset := options.Asset.ToLower()
		qry["chainId"] = asset.ChainId
		qry["contractAddress"] = asset.ContractAddress
		qry["tokenID"] = asset.TokenId
	}
	if options.Type != nil {
		qry["type"] = *options.Type
	}
	if options.Actor != nil {
		qry["actor"] = *options.Actor
	}
	return qry, &options, nil
}

func (r *activityMongoRepo) Insert(ctx bCtx.Ctx, activity *domain.Activity) error {
	activity.AssetId = activity.AssetId.ToLower()
	activity.Actor = activity.Actor.ToLower()
	activity.Counterparty = activity.Counterparty.ToLower()
	if err := r.q.Insert(ctx, domain.TableActivities, activity); err != nil {
		ctx.WithFields(log.Fields{
			"err":      err,
			"activity": activity,
		}).Error("q.Insert failed")
		return err
	}
	return nil
}

func (r *activityMongoRepo) FindAll(ctx bCtx.Ctx, opts ...domain.ActivityFindAllOptionsFunc) ([]*domain.Activity, error) {
	qry, options, err := r.makeQuery(opts...)
	if err != nil {
		ctx.WithField("err", err).Error("makeQuery failed")
		return nil, err
	}
	offset, limit := 0, 0
	if options.Offset != nil {
		offset = int(*options.Offset)
	}
	if options.Limit != nil {
		limit = int(*options.Limit)
	}
	res := []*domain.Activity{}
	if err := r.q.Search(ctx, domain.TableActivities, offset, limit, "-time", qry, &res); err != nil {
		ctx.WithField("err", err).Error("q.Search failed")
		return nil, err
	}
	return res, nil
}
