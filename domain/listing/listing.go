package listing

import (
	"math/big"
	"time"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/domain"
)

// Listing is a fixed price sale. Active implies the listing is neither sold
// nor cancelled; once SoldAt or Cancelled is set, Active turns false for
// good. The asset sits in engine escrow for the whole active span.
type Listing struct {
	Id             string `json:"id" bson:"id"`
	domain.AssetId `bson:"inline"`
	Seller         domain.Address `json:"seller" bson:"seller"`
	Price          string         `json:"price" bson:"price"`
	PayToken       domain.Address `json:"payToken" bson:"payToken"`
	CreatedAt      time.Time      `json:"createdAt" bson:"createdAt"`
	Deadline       time.Time      `json:"deadline" bson:"deadline"`
	Metadata       string         `json:"metadata" bson:"metadata"`
	Name           string         `json:"name" bson:"name"`
	Active         bool           `json:"active" bson:"active"`
	Cancelled      bool           `json:"cancelled" bson:"cancelled"`
	CancelledAt    *time.Time     `json:"cancelledAt" bson:"cancelledAt"`
	SoldAt         *time.Time     `json:"soldAt" bson:"soldAt"`
	Buyer          domain.Address `json:"buyer" bson:"buyer"`
}

func (l *Listing) PriceBig() (*big.Int, bool) {
	return new(big.Int).SetString(l.Price, 10)
}

type Patchable struct {
	Active      *bool           `bson:"active,omitempty"`
	Cancelled   *bool           `bson:"cancelled,omitempty"`
	CancelledAt *time.Time      `bson:"cancelledAt,omitempty"`
	SoldAt      *time.Time      `bson:"soldAt,omitempty"`
	Buyer       *domain.Address `bson:"buyer,omitempty"`
}

// CreatePayload carries everything a seller supplies when listing an asset.
type CreatePayload struct {
	Seller   domain.Address `json:"seller"`
	Asset    domain.AssetId `json:"asset"`
	Price    *big.Int       `json:"price"`
	PayToken domain.Address `json:"payToken"`
	Duration time.Duration  `json:"duration"`
	Metadata string         `json:"metadata"`
	Name     string         `json:"name"`
}

type FindAllOptions struct {
	Seller   *domain.Address
	Asset    *domain.AssetId
	Active   *bool
	ChainId  *domain.ChainId
	Offset   *int32
	Limit    *int32
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

func WithSeller(seller domain.Address) FindAllOptionsFunc {
	return func(opts *FindAllOptions) error {
		lowered := seller.ToLower()
		opts.Seller = &lowered
		return nil
	}
}

func WithAsset(asset domain.AssetId) FindAllOptionsFunc {
	return func(opts *FindAllOptions) error {
		lowered := asset.ToLower()
		opts.Asset = &lowered
		return nil
	}
}

func WithActive(active bool) FindAllOptionsFunc {
	return func(opts *FindAllOptions) error {
		opts.Active = &active
		return nil
	}
}

func WithChainId(chainId domain.ChainId) FindAllOptionsFunc {
	return func(opts *FindAllOptions) error {
		opts.ChainId = &chainId
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
	FindOne(ctx ctx.Ctx, id string) (*Listing, error)
	FindAll(ctx ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Listing, error)
	Insert(ctx ctx.Ctx, listing *Listing) error
	Patch(ctx ctx.Ctx, id string, patchable Patchable) error
	// Remove deletes a listing document outright; only the bulk-create
	// unwind path uses it.
	Remove(ctx ctx.Ctx, id string) error
}

type UseCase interface {
	Create(ctx ctx.Ctx, payload *CreatePayload) (*Listing, error)
	// CreateBulk validates every entry before any custody transfer happens;
	// the batch either fully succeeds or leaves no trace.
	CreateBulk(ctx ctx.Ctx, payloads []*CreatePayload) ([]*Listing, error)
	Buy(ctx ctx.Ctx, buyer domain.Address, id string, payment *big.Int) error
	Cancel(ctx ctx.Ctx, caller domain.Address, id string) error
	Get(ctx ctx.Ctx, id string) (*Listing, error)
	FindAll(ctx ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Listing, error)
}
