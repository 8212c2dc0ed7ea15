package repository

import (
	bCtx "github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/database/mongoclient"
	"github.com/x-xyz/tradeengine/base/log"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/offer"
	"github.com/x-xyz/tradeengine/service/query"
	"go.mongodb.org/mongo-driver/bson"
)

type offerMongoRepo struct {
	q query.Mongo
}

func NewOfferRepo(q query.Mongo) offer.Repo {
	return &offerMongoRepo{q: q}
}

func (r *offerMongoRepo) makeQuery(opts ...offer.FindAllOptionsFunc) (bson.M, *offer.FindAllOptions, error) {
	options, err := offer.GetFindAllOptions(opts...)
	if err != nil {
		return nil, nil, err
	}
	qry := bson.M{}
	if options.Asset != nil {
		qry["chainId"] = options.Asset.ChainId
		qry["contractAddress"] = options.Asset.ContractAddress
		qry["tokenID"] = options.Asset.TokenId
	}
	if options.Owner != nil {
		qry["owner"] = *options.Owner
	}
	if options.Maker != nil {
		qry["maker"] = *options.Maker
	}
	if options.Open != nil && *options.Open {
		qry["acceptedAt"] = nil
		qry["cancelled"] = false
	}
	if options.ChainId != nil {
		qry["chainId"] = *options.ChainId
	}
	return qry, &options, nil
}

func (r *offerMongoRepo) FindOne(ctx bCtx.Ctx, id string) (*offer.Offer, error) {
	res := &offer.Offer{}
	if err := r.q.FindOne(ctx, domain.TableOffers, bson.M{"id": id}, res); err == query.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		ctx.WithField("err", err).Error("q.FindOne failed")
		return nil, err
	}
	return res, nil
}

func (r *offerMongoRepo) FindAll(ctx bCtx.Ctx, opts ...offer.FindAllOptionsFunc) ([]*offer.Offer, error) {
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
	res := []*offer.Offer{}
	if err := r.q.Search(ctx, domain.TableOffers, offset, limit, "-offeredAt", qry, &res); err != nil {
		ctx.WithField("err", err).Error("q.Search failed")
		return nil, err
	}
	return res, nil
}

func (r *offerMongoRepo) Insert(ctx bCtx.Ctx, o *offer.Offer) error {
	o.AssetId = o.AssetId.ToLower()
	o.Owner = o.Owner.ToLower()
	o.Maker = o.Maker.ToLower()
	o.PayToken = o.PayToken.ToLower()
	if err := r.q.Insert(ctx, domain.TableOffers, o); err != nil {
		ctx.WithFields(log.Fields{
			"err":   err,
			"offer": o,
		}).Error("q.Insert failed")
		return err
	}
	return nil
}

func (r *offerMongoRepo) Patch(ctx bCtx.Ctx, id string, patchable offer.Patchable) error {
	update, err := mongoclient.MakeBsonM(&patchable)
	if err != nil {
		ctx.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return err
	}
	if err := r.q.Patch(ctx, domain.TableOffers, bson.M{"id": id}, update); err == query.ErrNotFound {
		return domain.ErrNotFound
	} else if err != nil {
		ctx.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("q.Patch failed")
		return err
	}
	return nil
}
