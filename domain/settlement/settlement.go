package settlement

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/domain"
)

// Authorization is a signed statement by the trusted signer permitting one
// specific asset transfer at one specific price. It is consumed exactly
// once: the nonce is bound into the digest and tracked after settlement, so
// a returned asset cannot be re-sold with a stale signature.
type Authorization struct {
	Asset     domain.AssetId `json:"asset"`
	Seller    domain.Address `json:"seller"`
	Buyer     domain.Address `json:"buyer"`
	Amount    *big.Int       `json:"amount"`
	Nonce     uint64         `json:"nonce"`
	Signature string         `json:"signature"`
	// BindName, when set, is the resolver name whose controller binding is
	// updated to the buyer after settlement.
	BindName string `json:"bindName,omitempty"`
}

// Digest is the keccak256 hash of the packed authorization tuple. The
// trusted signer signs this digest with the Ethereum signed-message prefix.
func (a *Authorization) Digest() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, int64(a.Asset.ChainId))
	buf.Write(common.HexToAddress(string(a.Asset.ContractAddress)).Bytes())
	buf.WriteString(string(a.Asset.TokenId))
	buf.Write(common.HexToAddress(string(a.Seller)).Bytes())
	buf.Write(common.HexToAddress(string(a.Buyer)).Bytes())
	buf.Write(math.U256Bytes(new(big.Int).Set(a.Amount)))
	binary.Write(&buf, binary.BigEndian, a.Nonce)
	return crypto.Keccak256(buf.Bytes())
}

// ConsumedNonce marks an authorization as spent for a given asset.
type ConsumedNonce struct {
	domain.AssetId `bson:"inline"`
	Nonce          uint64    `json:"nonce" bson:"nonce"`
	ConsumedAt     time.Time `json:"consumedAt" bson:"consumedAt"`
}

type NonceRepo interface {
	IsUsed(ctx ctx.Ctx, id domain.AssetId, nonce uint64) (bool, error)
	MarkUsed(ctx ctx.Ctx, id domain.AssetId, nonce uint64) error
}

type UseCase interface {
	// Settle verifies the authorization against the configured trusted
	// signer and executes the trade: payment must equal Amount exactly.
	Settle(ctx ctx.Ctx, auth *Authorization, payment *big.Int) error
	// SettleBulk settles several authorizations atomically. totalPayment
	// must equal the sum of the per item amounts, and every signature and
	// nonce is verified before any state changes.
	SettleBulk(ctx ctx.Ctx, auths []*Authorization, totalPayment *big.Int) error
}
