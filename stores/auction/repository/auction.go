package repository

import (
	bCtx "github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/database/mongoclient"
	"github.com/x-xyz/tradeengine/base/log"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/auction"
	"github.com/x-xyz/tradeengine/service/query"
	"go.mongodb.org/mongo-driver/bson"
)

type auctionMongoRepo struct {
	q query.Mongo
}

func NewAuctionRepo(q query.Mongo) auction.Repo {
	return &auctionMongoRepo{q: q}
}

func (r *auctionMongoRepo) makeQuery(opts ...auction.FindAllOptionsFunc) (bson.M, *auction.FindAllOptions, error) {
	options, err := auction.GetFindAllOptions(opts...)
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

func (r *auctionMongoRepo) FindOne(ctx bCtx.Ctx, id string) (*auction.Auction, error) {
	res := &auction.Auction{}
	if err := r.q.FindOne(ctx, domain.TableAuctions, bson.M{"id": id}, res); err == query.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		ctx.WithField("err", err).Error("q.FindOne failed")
		return nil, err
	}
	return res, nil
}

func (r *auctionMongoRepo) FindAll(ctx bCtx.Ctx, opts ...auction.FindAllOptionsFunc) ([]*auction.Auction, error) {
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
	res := []*auction.Auction{}
	if err := r.q.Search(ctx, domain.TableAuctions, offset, limit, "-startTime", qry, &res); err != nil {
		ctx.WithField("err", err).Error("q.Search failed")
		return nil, err
	}
	return res, nil
}

func (r *auctionMongoRepo) Insert(ctx bCtx.Ctx, a *auction.Auction) error {
	a.AssetId = a.AssetId.ToLower()
	a.Seller = a.Seller.ToLower()
	a.PayToken = a.PayToken.ToLower()
	if err := r.q.Insert(ctx, domain.TableAuctions, a); err != nil {
		ctx.WithFields(log.Fields{
			"err":     err,
			"auction": a,
		}).Error("q.Insert failed")
		return err
	}
	return nil
}

func (r *auctionMongoRepo) Patch(ctx bCtx.Ctx, id string, patchable auction.Patchable) error {
	update, err := mongoclient.MakeBsonM(&patchable)
	if err != nil {
		ctx.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return err
	}
	if err := r.q.Patch(ctx, domain.TableAuctions, bson.M{"id": id}, update); err == query.ErrNotFound {
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
