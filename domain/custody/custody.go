package custody

import (
	"time"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/domain"
)

type HoldPurpose string

const (
	PurposeListing HoldPurpose = "listing"
	PurposeAuction HoldPurpose = "auction"
)

// Hold records an asset under engine escrow. At most one active hold may
// exist per asset; an asset is either with its owner, under exactly one
// hold, or with its new owner after resolution.
type Hold struct {
	domain.AssetId `bson:"inline"`
	Owner          domain.Address `json:"owner" bson:"owner"`
	Purpose        HoldPurpose    `json:"purpose" bson:"purpose"`
	RefId          string         `json:"refId" bson:"refId"`
	HeldAt         time.Time      `json:"heldAt" bson:"heldAt"`
}

type Repo interface {
	FindOne(ctx ctx.Ctx, id domain.AssetId) (*Hold, error)
	Insert(ctx ctx.Ctx, hold *Hold) error
	Remove(ctx ctx.Ctx, id domain.AssetId) error
}

// UseCase escrows assets for listings and auctions. Hold moves the asset
// from the seller into engine custody; Release moves a held asset out. No
// asset is ever released twice for the same hold.
type UseCase interface {
	Hold(ctx ctx.Ctx, from domain.Address, id domain.AssetId, purpose HoldPurpose, refId string) error
	Release(ctx ctx.Ctx, to domain.Address, id domain.AssetId) error
	ActiveHold(ctx ctx.Ctx, id domain.AssetId) (*Hold, error)
}
