package repository

import (
	bCtx "github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/database/mongoclient"
	"github.com/x-xyz/tradeengine/base/log"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/listing"
	"github.com/x-xyz/tradeengine/service/query"
	"go.mongodb.org/mongo-driver/bson"
)

type listingMongoRepo struct {
	q query.Mongo
}

func NewListingRepo(q query.Mongo) listing.Repo {
	return &listingMongoRepo{q: q}
}

func (r *listingMongoRepo) makeQuery(opts ...listing.FindAllOptionsFunc) (bson.M, *listing.FindAllOptions, error) {
	options, err := listing.GetFindAllOptions(opts...)
	if err != nil {
		return nil, nil, err
	}
	qry := bson.M{}
	if options.Seller != nil {
		qry["seller"] = *options.Seller
	}
	if options.Asset != nil {
		qry["chainId"] = options.Asset.ChainId
		qry["contractAddress"] = options.Asset.ContractAddress
		qry["tokenID"] = options.Asset.TokenId
	}
	if options.Active != nil {
		qry["active"] = *options.Active
	}
	if options.ChainId != nil {
		qry["chainId"] = *options.ChainId
	}
	return qry, &options, nil
}

func (r *listingMongoRepo) FindOne(ctx bCtx.Ctx, id string) (*listing.Listing, error) {
	res := &listing.Listing{}
	if err := r.q.FindOne(ctx, domain.TableListings, bson.M{"id": id}, res); err == query.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		ctx.WithField("err", err).Error("q.FindOne failed")
		return nil, err
	}
	return res, nil
}

func (r *listingMongoRepo) FindAll(ctx bCtx.Ctx, opts ...listing.FindAllOptionsFunc) ([]*listing.Listing, error) {
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
	res := []*listing.Listing{}
	if err := r.q.Search(ctx, domain.TableListings, offset, limit, "-createdAt", qry, &res); err != nil {
		ctx.WithField("err", err).Error("q.Search failed")
		return nil, err
	}
	return res, nil
}

func (r *listingMongoRepo) Insert(ctx bCtx.Ctx, l *listing.Listing) error {
	l.AssetId = l.AssetId.ToLower()
	l.Seller = l.Seller.ToLower()
	l.PayToken = l.PayToken.ToLower()
	if err := r.q.Insert(ctx, domain.TableListings, l); err != nil {
		ctx.WithFields(log.Fields{
			"err":     err,
			"listing": l,
		}).Error("q.Insert failed")
		return err
	}
	return nil
}

func (r *listingMongoRepo) Remove(ctx bCtx.Ctx, id string) error {
	if err := r.q.Remove(ctx, domain.TableListings, bson.M{"id": id}); err == query.ErrNotFound {
		return domain.ErrNotFound
	} else if err != nil {
		ctx.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("q.Remove failed")
		return err
	}
	return nil
}

func (r *listingMongoRepo) Patch(ctx bCtx.Ctx, id string, patchable listing.Patchable) error {
	update, err := mongoclient.MakeBsonM(&patchable)
	if err != nil {
		ctx.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return err
	}
	if err := r.q.Patch(ctx, domain.TableListings, bson.M{"id": id}, update); err == query.ErrNotFound {
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
