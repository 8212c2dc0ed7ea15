package domain

import (
	"fmt"
	"strings"
)

type ChainId int32

type Address string

const EmptyAddress = Address("0x0000000000000000000000000000000000000000")

// NativeToken is the sentinel pay token address for the chain native unit.
// It is always an accepted payment asset.
const NativeToken = EmptyAddress

// EscrowAccount is the ledger account the engine locks funds under while a
// bid or offer is outstanding.
const EscrowAccount = Address("0x000000000000000000000000000000000000e5c0")

func (a Address) ToLower() Address {
	return Address(strings.ToLower(string(a)))
}

func (a Address) ToLowerStr() string {
	return strings.ToLower(string(a))
}

func (a Address) IsEmpty() bool {
	return len(a) == 0 || a == EmptyAddress
}

func (a Address) Equals(b Address) bool {
	return a.ToLowerStr() == b.ToLowerStr()
}

type TokenId string

func (i TokenId) String() string {
	return string(i)
}

// AssetId identifies a non fungible asset by contract and token id.
type AssetId struct {
	ChainId         ChainId `json:"chainId" bson:"chainId"`
	ContractAddress Address `json:"contractAddress" bson:"contractAddress"`
	TokenId         TokenId `json:"tokenId" bson:"tokenID"`
}

func (id AssetId) ToLower() AssetId {
	id.ContractAddress = id.ContractAddress.ToLower()
	return id
}

func (id AssetId) Key() string {
	return fmt.Sprintf("%d:%s:%s", id.ChainId, id.ContractAddress.ToLowerStr(), id.TokenId)
}

type Table string

const (
	TableListings   Table = "listings"
	TableAuctions   Table = "auctions"
	TableOffers     Table = "offers"
	TableHolds      Table = "holds"
	TableConfigs    Table = "configs"
	TableActivities Table = "activities"
	TableNonces     Table = "settlement_nonces"
)
