package repository

import (
	"time"

	bCtx "github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/log"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/settlement"
	"github.com/x-xyz/tradeengine/service/query"
	"go.mongodb.org/mongo-driver/bson"
)

type nonceMongoRepo struct {
	q query.Mongo
}

func NewNonceRepo(q query.Mongo) settlement.NonceRepo {
	return &nonceMongoRepo{q: q}
}

func nonceSelector(id domain.AssetId, nonce uint64) bson.M {
	id = id.ToLower()
	return bson.M{
		"chainId":         id.ChainId,
		"contractAddress": id.ContractAddress,
		"tokenID":         id.TokenId,
		"nonce":           nonce,
	}
}

func (r *nonceMongoRepo) IsUsed(ctx bCtx.Ctx, id domain.AssetId, nonce uint64) (bool, error) {
	res := &settlement.ConsumedNonce{}
	err := r.q.FindOne(ctx, domain.TableNonces, nonceSelector(id, nonce), res)
	if err == query.ErrNotFound {
		return false, nil
	}
	if err != nil {
		ctx.WithField("err", err).Error("q.FindOne failed")
		return false, err
	}
	return true, nil
}

func (r *nonceMongoRepo) MarkUsed(ctx bCtx.Ctx, id domain.AssetId, nonce uint64) error {
	consumed := &settlement.ConsumedNonce{
		AssetId:    id.ToLower(),
		Nonce:      nonce,
		ConsumedAt: time.Now(),
	}
	if err := r.q.Insert(ctx, domain.TableNonces, consumed); err != nil {
		if err == query.ErrDuplicateKey {
			return domain.ErrNonceUsed
		}
		ctx.WithFields(log.Fields{
			"err":   err,
			"asset": id,
			"nonce": nonce,
		}).Error("q.Insert failed")
		return err
	}
	return nil
}
