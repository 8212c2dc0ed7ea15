package http

import (
	"math/big"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/delivery"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/settlement"
	authMiddleware "github.com/x-xyz/tradeengine/stores/auth/delivery/http/middleware"
)

type handler struct {
	settlement settlement.UseCase
}

func New(e *echo.Echo, authMw *authMiddleware.AuthMiddleware, settlement settlement.UseCase) {
	h := &handler{settlement: settlement}

	g := e.Group("/settlements")
	g.POST("", h.settle, authMw.Auth())
	g.POST("/bulk", h.settleBulk, authMw.Auth())
}

func (h *handler) settle(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		Asset     domain.AssetId `json:"asset"`
		Seller    domain.Address `json:"seller"`
		Buyer     domain.Address `json:"buyer"`
		Amount    string         `json:"amount"`
		Nonce     uint64         `json:"nonce"`
		Signature string         `json:"signature"`
		BindName  string         `json:"bindName"`
		Payment   string         `json:"payment"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}
	amount, ok := new(big.Int).SetString(p.Amount, 10)
	if !ok {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}
	payment, ok := new(big.Int).SetString(p.Payment, 10)
	if !ok {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}

	auth := &settlement.Authorization{
		Asset:     p.Asset,
		Seller:    p.Seller,
		Buyer:     p.Buyer,
		Amount:    amount,
		Nonce:     p.Nonce,
		Signature: p.Signature,
		BindName:  p.BindName,
	}
	if err := h.settlement.Settle(ctx, auth, payment); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

// settleBulk takes the vectorized form: parallel arrays that must all have
// the same length.
func (h *handler) settleBulk(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		Assets       []domain.AssetId `json:"assets"`
		Sellers      []domain.Address `json:"sellers"`
		Buyers       []domain.Address `json:"buyers"`
		Amounts      []string         `json:"amounts"`
		Nonces       []uint64         `json:"nonces"`
		Signatures   []string         `json:"signatures"`
		BindNames    []string         `json:"bindNames"`
		TotalPayment string           `json:"totalPayment"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}

	n := len(p.Assets)
	if len(p.Sellers) != n || len(p.Buyers) != n || len(p.Amounts) != n ||
		len(p.Nonces) != n || len(p.Signatures) != n {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrArityMismatch)
	}
	if len(p.BindNames) != 0 && len(p.BindNames) != n {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrArityMismatch)
	}
	totalPayment, ok := new(big.Int).SetString(p.TotalPayment, 10)
	if !ok {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}

	auths := make([]*settlement.Authorization, 0, n)
	for i := 0; i < n; i++ {
		amount, ok := new(big.Int).SetString(p.Amounts[i], 10)
		if !ok {
			return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
		}
		auth := &settlement.Authorization{
			Asset:     p.Assets[i],
			Seller:    p.Sellers[i],
			Buyer:     p.Buyers[i],
			Amount:    amount,
			Nonce:     p.Nonces[i],
			Signature: p.Signatures[i],
		}
		if len(p.BindNames) == n {
			auth.BindName = p.BindNames[i]
		}
		auths = append(auths, auth)
	}

	if err := h.settlement.SettleBulk(ctx, auths, totalPayment); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}
