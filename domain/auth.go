package domain

import (
	"github.com/golang-jwt/jwt"

	"github.com/x-xyz/tradeengine/base/ctx"
)

type JwtCustomClaims struct {
	Address string `json:"address"`
	jwt.StandardClaims
}

// AuthUseCase issues bearer tokens to wallet holders. A token is only signed
// after the caller proves control of the address by signing the configured
// message.
type AuthUseCase interface {
	SignToken(ctx ctx.Ctx, address Address, signature string) (string, error)
	ParseToken(ctx ctx.Ctx, token string) (string, error)
}
