package usecase

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	bCtx "github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/domain"
)

const signingMsg = "Sign in to the trade engine"

func TestSignAndParseToken(t *testing.T) {
	req := require.New(t)
	c := bCtx.Background()
	uc := New(&AuthUseCaseCfg{JwtSecret: "secret", SigningMsg: signingMsg})

	key, err := crypto.GenerateKey()
	req.NoError(err)
	address := domain.Address(crypto.PubkeyToAddress(key.PublicKey).Hex())

	sig, err := crypto.Sign(accounts.TextHash([]byte(signingMsg)), key)
	req.NoError(err)

	token, err := uc.SignToken(c, address, hexutil.Encode(sig))
	req.NoError(err)

	parsed, err := uc.ParseToken(c, token)
	req.NoError(err)
	req.True(domain.Address(parsed).Equals(address))
}

func TestSignTokenRejectsBadSignature(t *testing.T) {
	req := require.New(t)
	c := bCtx.Background()
	uc := New(&AuthUseCaseCfg{JwtSecret: "secret", SigningMsg: signingMsg})

	key, err := crypto.GenerateKey()
	req.NoError(err)
	address := domain.Address(crypto.PubkeyToAddress(key.PublicKey).Hex())

	// signature over a different message
	sig, err := crypto.Sign(accounts.TextHash([]byte("something else")), key)
	req.NoError(err)
	_, err = uc.SignToken(c, address, hexutil.Encode(sig))
	req.ErrorIs(err, domain.ErrInvalidSignature)

	// someone else's signature
	other, err := crypto.GenerateKey()
	req.NoError(err)
	sig, err = crypto.Sign(accounts.TextHash([]byte(signingMsg)), other)
	req.NoError(err)
	_, err = uc.SignToken(c, address, hexutil.Encode(sig))
	req.ErrorIs(err, domain.ErrInvalidSignature)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	req := require.New(t)
	c := bCtx.Background()
	uc := New(&AuthUseCaseCfg{JwtSecret: "secret", SigningMsg: signingMsg})

	_, err := uc.ParseToken(c, "not-a-token")
	req.Error(err)
}
