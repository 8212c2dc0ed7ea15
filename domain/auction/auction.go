package auction

import (
	"math/big"
	"time"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/domain"
)

const (
	MinDuration = time.Hour
	MaxDuration = 7 * 24 * time.Hour
)

// Auction is a time boxed ascending auction with a reserve price. The
// highest bid is monotonically non decreasing and HighestBid is zero exactly
// when HighestBidder is empty. End resolves the auction exactly once.
type Auction struct {
	Id             string `json:"id" bson:"id"`
	domain.AssetId `bson:"inline"`
	Seller         domain.Address `json:"seller" bson:"seller"`
	StartingPrice  string         `json:"startingPrice" bson:"startingPrice"`
	ReservePrice   string         `json:"reservePrice" bson:"reservePrice"`
	PayToken       domain.Address `json:"payToken" bson:"payToken"`
	StartTime      time.Time      `json:"startTime" bson:"startTime"`
	EndTime        time.Time      `json:"endTime" bson:"endTime"`
	HighestBidder  domain.Address `json:"highestBidder" bson:"highestBidder"`
	HighestBid     string         `json:"highestBid" bson:"highestBid"`
	Metadata       string         `json:"metadata" bson:"metadata"`
	Name           string         `json:"name" bson:"name"`
	Active         bool           `json:"active" bson:"active"`
	Cancelled      bool           `json:"cancelled" bson:"cancelled"`
	EndedAt        *time.Time     `json:"endedAt" bson:"endedAt"`
}

func (a *Auction) StartingPriceBig() (*big.Int, bool) {
	return new(big.Int).SetString(a.StartingPrice, 10)
}

func (a *Auction) ReservePriceBig() (*big.Int, bool) {
	return new(big.Int).SetString(a.ReservePrice, 10)
}

// HighestBidBig returns the current highest bid, zero when no bid exists.
func (a *Auction) HighestBidBig() *big.Int {
	if a.HighestBid == "" {
		return new(big.Int)
	}
	bid, ok := new(big.Int).SetString(a.HighestBid, 10)
	if !ok {
		return new(big.Int)
	}
	return bid
}

type Patchable struct {
	HighestBidder *domain.Address `bson:"highestBidder,omitempty"`
	HighestBid    *string         `bson:"highestBid,omitempty"`
	Active        *bool           `bson:"active,omitempty"`
	Cancelled     *bool           `bson:"cancelled,omitempty"`
	EndedAt       *time.Time      `bson:"endedAt,omitempty"`
}

type CreatePayload struct {
	Seller        domain.Address `json:"seller"`
	Asset         domain.AssetId `json:"asset"`
	StartingPrice *big.Int       `json:"startingPrice"`
	ReservePrice  *big.Int       `json:"reservePrice"`
	PayToken      domain.Address `json:"payToken"`
	Duration      time.Duration  `json:"duration"`
	Metadata      string         `json:"metadata"`
	Name          string         `json:"name"`
}

type FindAllOptions struct {
	Seller  *domain.Address
	Asset   *domain.AssetId
	Active  *bool
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
	FindOne(ctx ctx.Ctx, id string) (*Auction, error)
	FindAll(ctx ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Auction, error)
	Insert(ctx ctx.Ctx, auction *Auction) error
	Patch(ctx ctx.Ctx, id string, patchable Patchable) error
}

type UseCase interface {
	Create(ctx ctx.Ctx, payload *CreatePayload) (*Auction, error)
	PlaceBid(ctx ctx.Ctx, bidder domain.Address, id string, amount *big.Int) error
	// End resolves the auction once now >= EndTime; callable by anyone.
	End(ctx ctx.Ctx, caller domain.Address, id string) error
	// Cancel returns the asset to the seller; only possible while no bid
	// has been accepted.
	Cancel(ctx ctx.Ctx, caller domain.Address, id string) error
	Get(ctx ctx.Ctx, id string) (*Auction, error)
	FindAll(ctx ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Auction, error)
}
