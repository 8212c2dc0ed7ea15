package domain

import (
	"math/big"

	"github.com/x-xyz/tradeengine/base/ctx"
)

// Ledger is the value-transfer boundary. It is the authoritative balance
// book for the native unit and every accepted fungible pay token. Transfers
// are atomic: on error no balance moved.
type Ledger interface {
	BalanceOf(ctx ctx.Ctx, token, account Address) (*big.Int, error)
	// Transfer moves amount of token from one account to another. The
	// service performs its own authorization; the engine only ever moves
	// funds it custodies or funds the caller explicitly supplied.
	Transfer(ctx ctx.Ctx, token, from, to Address, amount *big.Int) error
}

// AssetRegistry is the asset-holding boundary. Ownership transfers are all
// or nothing and the approval check is performed by the registry, not by
// the engine.
type AssetRegistry interface {
	OwnerOf(ctx ctx.Ctx, id AssetId) (Address, error)
	TransferOwnership(ctx ctx.Ctx, from, to Address, id AssetId) error
}

// ControllerBinder updates the external name-resolution binding for an asset
// after settlement. Consumed fire and forget; failures must not abort the
// settlement that triggered them.
type ControllerBinder interface {
	BindController(ctx ctx.Ctx, name string, controller Address) error
}
