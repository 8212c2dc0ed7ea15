package repository

import (
	bCtx "github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/log"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/marketcfg"
	"github.com/x-xyz/tradeengine/service/query"
	"go.mongodb.org/mongo-driver/bson"
)

type configMongoRepo struct {
	q query.Mongo
}

func NewConfigRepo(q query.Mongo) marketcfg.Repo {
	return &configMongoRepo{q: q}
}

func (r *configMongoRepo) FindOne(ctx bCtx.Ctx, chainId domain.ChainId) (*marketcfg.Config, error) {
	cfg := &marketcfg.Config{}
	qry := bson.M{"chainId": chainId}
	if err := r.q.FindOne(ctx, domain.TableConfigs, qry, cfg); err == query.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		ctx.WithField("err", err).Error("q.FindOne failed")
		return nil, err
	}
	return cfg, nil
}

func (r *configMongoRepo) Upsert(ctx bCtx.Ctx, cfg *marketcfg.Config) error {
	selector := bson.M{"chainId": cfg.ChainId}
	if err := r.q.Upsert(ctx, domain.TableConfigs, selector, cfg); err != nil {
		ctx.WithFields(log.Fields{
			"err":     err,
			"chainId": cfg.ChainId,
		}).Error("q.Upsert failed")
		return err
	}
	return nil
}
