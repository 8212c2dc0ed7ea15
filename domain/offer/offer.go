package offer

import (
	"math/big"
	"time"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/domain"
)

const (
	ReasonSuperseded = "superseded"
	ReasonRejected   = "rejected by owner"
	ReasonWithdrawn  = "withdrawn"
)

// Offer is a reserved, refundable payment plus an asset transfer intent.
// Funds equal to Price stay locked under the engine escrow account from
// creation until acceptance or cancellation.
type Offer struct {
	Id             string `json:"id" bson:"id"`
	domain.AssetId `bson:"inline"`
	Owner          domain.Address `json:"owner" bson:"owner"`
	Maker          domain.Address `json:"maker" bson:"maker"`
	Price          string         `json:"price" bson:"price"`
	PayToken       domain.Address `json:"payToken" bson:"payToken"`
	OfferedAt      time.Time      `json:"offeredAt" bson:"offeredAt"`
	ValidUntil     time.Time      `json:"validUntil" bson:"validUntil"`
	AcceptedAt     *time.Time     `json:"acceptedAt" bson:"acceptedAt"`
	Cancelled      bool           `json:"cancelled" bson:"cancelled"`
	CancelReason   string         `json:"cancelReason" bson:"cancelReason"`
	CancelledAt    *time.Time     `json:"cancelledAt" bson:"cancelledAt"`
	Name           string         `json:"name" bson:"name"`
}

func (o *Offer) PriceBig() (*big.Int, bool) {
	return new(big.Int).SetString(o.Price, 10)
}

// Open reports whether the offer can still be accepted or cancelled.
func (o *Offer) Open(now time.Time) bool {
	return o.AcceptedAt == nil && !o.Cancelled && now.Before(o.ValidUntil)
}

type Patchable struct {
	AcceptedAt   *time.Time `bson:"acceptedAt,omitempty"`
	Cancelled    *bool      `bson:"cancelled,omitempty"`
	CancelReason *string    `bson:"cancelReason,omitempty"`
	CancelledAt  *time.Time `bson:"cancelledAt,omitempty"`
}

type MakePayload struct {
	Maker      domain.Address `json:"maker"`
	Owner      domain.Address `json:"owner"`
	Asset      domain.AssetId `json:"asset"`
	Price      *big.Int       `json:"price"`
	PayToken   domain.Address `json:"payToken"`
	ValidUntil time.Time      `json:"validUntil"`
	Name       string         `json:"name"`
}

type FindAllOptions struct {
	Asset   *domain.AssetId
	Owner   *domain.Address
	Maker   *domain.Address
	Open    *bool
	ChainId *domain.ChainId
	Offset  *int32
	Limit   *int32
}

type FindAllOptionsFunc func(*FindAllOptions) error

func GetFindAllOptions(opts ...FindAllOptionsFunc) (FindAllOptions, error) {
	res := FindAllOptions{}
	for _, opt := range opts {
		if err := opt(&res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func WithAsset(asset domain.AssetId) FindAllOptionsFunc {
	return func(opts *FindAllOptions) error {
		lowered := asset.ToLower()
		opts.Asset = &lowered
		return nil
	}
}

func WithOwner(owner domain.Address) FindAllOptionsFunc {
	return func(opts *FindAllOptions) error {
		lowered := owner.ToLower()
		opts.Owner = &lowered
		return nil
	}
}

func WithMaker(maker domain.Address) FindAllOptionsFunc {
	return func(opts *FindAllOptions) error {
		lowered := maker.ToLower()
		opts.Maker = &lowered
		return nil
	}
}

func WithOpen(open bool) FindAllOptionsFunc {
	return func(opts *FindAllOptions) error {
		opts.Open = &open
		return nil
	}
}

func WithPagination(offset, limit int32) FindAllOptionsFunc {
	return func(opts *FindAllOptions) error {
		opts.Offset = &offset
		opts.Limit = &limit
		return nil
	}
}

type Repo interface {
	FindOne(ctx ctx.Ctx, id string) (*Offer, error)
	FindAll(ctx ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Offer, error)
	Insert(ctx ctx.Ctx, offer *Offer) error
	Patch(ctx ctx.Ctx, id string, patchable Patchable) error
}

type UseCase interface {
	Make(ctx ctx.Ctx, payload *MakePayload) (*Offer, error)
	// Accept transfers the asset from the owner's holding directly to the
	// maker; supersededIds are other open offers on the same asset the
	// owner wants refunded in the same operation.
	Accept(ctx ctx.Ctx, caller domain.Address, id string, supersededIds []string) error
	// Reject cancels and refunds offers; the caller must own the underlying
	// asset of every id.
	Reject(ctx ctx.Ctx, caller domain.Address, ids []string) error
	// Cancel lets the maker withdraw an unaccepted offer and reclaim funds.
	Cancel(ctx ctx.Ctx, caller domain.Address, id string) error
	Get(ctx ctx.Ctx, id string) (*Offer, error)
	FindAll(ctx ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Offer, error)
}
