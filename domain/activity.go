package domain

import (
	"time"

	"github.com/x-xyz/tradeengine/base/ctx"
)

type ActivityType string

const (
	ActivityListingCreated   ActivityType = "listingCreated"
	ActivityListingSold      ActivityType = "listingSold"
	ActivityListingCancelled ActivityType = "listingCancelled"
	ActivityAuctionCreated   ActivityType = "auctionCreated"
	ActivityBidPlaced        ActivityType = "bidPlaced"
	ActivityBidRefunded      ActivityType = "bidRefunded"
	ActivityAuctionEnded     ActivityType = "auctionEnded"
	ActivityAuctionCancelled ActivityType = "auctionCancelled"
	ActivityOfferMade        ActivityType = "offerMade"
	ActivityOfferAccepted    ActivityType = "offerAccepted"
	ActivityOfferCancelled   ActivityType = "offerCancelled"
	ActivitySettled          ActivityType = "settled"
)

// Activity is the structured record emitted on every state transition, for
// external indexing.
type Activity struct {
	EntityId      string       `json:"entityId" bson:"entityId"`
	AssetId       `bson:"inline"`
	Type          ActivityType `json:"type" bson:"type"`
	Actor         Address      `json:"actor" bson:"actor"`
	Counterparty  Address      `json:"counterparty" bson:"counterparty"`
	Amount        string       `json:"amount" bson:"amount"`
	DisplayAmount string       `json:"displayAmount" bson:"displayAmount"`
	Fee           string       `json:"fee" bson:"fee"`
	PayToken      Address      `json:"payToken" bson:"payToken"`
	Reason        string       `json:"reason,omitempty" bson:"reason,omitempty"`
	Time          time.Time    `json:"time" bson:"time"`
}

type ActivityFindAllOptions struct {
	EntityId *string
	Asset    *AssetId
	Type     *ActivityType
	Actor    *Address
	Offset   *int32
	Limit    *int32
}

type ActivityFindAllOptionsFunc func(*ActivityFindAllOptions) error

func GetActivityFindAllOptions(opts ...ActivityFindAllOptionsFunc) (ActivityFindAllOptions, error) {
	res := ActivityFindAllOptions{}
	for _, opt := range opts {
		if err := opt(&res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func ActivityWithEntityId(id string) ActivityFindAllOptionsFunc {
	return func(opts *ActivityFindAllOptions) error {
		opts.EntityId = &id
		return nil
	}
}

func ActivityWithAsset(asset AssetId) ActivityFindAllOptionsFunc {
	return func(opts *ActivityFindAllOptions) error {
		opts.Asset = &asset
		return nil
	}
}

func ActivityWithType(t ActivityType) ActivityFindAllOptionsFunc {
	return func(opts *ActivityFindAllOptions) error {
		opts.Type = &t
		return nil
	}
}

func ActivityWithActor(actor Address) ActivityFindAllOptionsFunc {
	return func(opts *ActivityFindAllOptions) error {
		lowered := actor.ToLower()
		opts.Actor = &lowered
		return nil
	}
}

func ActivityWithPagination(offset, limit int32) ActivityFindAllOptionsFunc {
	return func(opts *ActivityFindAllOptions) error {
		opts.Offset = &offset
		opts.Limit = &limit
		return nil
	}
}

type ActivityRepo interface {
	Insert(ctx ctx.Ctx, activity *Activity) error
	FindAll(ctx ctx.Ctx, opts ...ActivityFindAllOptionsFunc) ([]*Activity, error)
}
