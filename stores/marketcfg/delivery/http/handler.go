package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/delivery"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/marketcfg"
	authMiddleware "github.com/x-xyz/tradeengine/stores/auth/delivery/http/middleware"
)

type handler struct {
	marketCfg marketcfg.UseCase
}

func New(e *echo.Echo, authMw *authMiddleware.AuthMiddleware, marketCfg marketcfg.UseCase) {
	h := &handler{marketCfg: marketCfg}

	g := e.Group("/config")
	g.GET("/:chainId", h.get)

	admin := g.Group("/:chainId", authMw.Auth(), authMw.IsAdmin())
	admin.PUT("/fee-rate", h.setFeeRate)
	admin.PUT("/offer-fee-rate", h.setOfferFeeRate)
	admin.PUT("/fee-recipient", h.setFeeRecipient)
	admin.PUT("/pay-tokens", h.togglePayToken)
	admin.PUT("/asset-contracts", h.toggleAssetContract)
	admin.PUT("/duration-bounds", h.setDurationBounds)
	admin.PUT("/trusted-signer", h.setTrustedSigner)
}

func chainIdParam(c echo.Context) (domain.ChainId, error) {
	v, err := strconv.ParseInt(c.Param("chainId"), 10, 32)
	if err != nil {
		return 0, domain.ErrBadParamInput
	}
	return domain.ChainId(v), nil
}

func (h *handler) get(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	chainId, err := chainIdParam(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if cfg, err := h.marketCfg.Get(ctx, chainId); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, cfg)
	}
}

func (h *handler) setFeeRate(c echo.Context) error {
	return h.setRate(c, h.marketCfg.SetFeeRate)
}

func (h *handler) setOfferFeeRate(c echo.Context) error {
	return h.setRate(c, h.marketCfg.SetOfferFeeRate)
}

func (h *handler) setRate(c echo.Context, set func(ctx.Ctx, domain.Address, domain.ChainId, int64) error) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	caller := c.Get("address").(domain.Address)

	chainId, err := chainIdParam(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	type params struct {
		Rate int64 `json:"rate"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}

	if err := set(ctx, caller, chainId, p.Rate); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) setFeeRecipient(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	caller := c.Get("address").(domain.Address)

	chainId, err := chainIdParam(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	type params struct {
		Recipient domain.Address `json:"recipient"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}

	if err := h.marketCfg.SetFeeRecipient(ctx, caller, chainId, p.Recipient); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) togglePayToken(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	caller := c.Get("address").(domain.Address)

	chainId, err := chainIdParam(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	type params struct {
		Token    marketcfg.PayToken `json:"token"`
		Accepted bool               `json:"accepted"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}

	if err := h.marketCfg.TogglePayToken(ctx, caller, chainId, p.Token, p.Accepted); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) toggleAssetContract(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	caller := c.Get("address").(domain.Address)

	chainId, err := chainIdParam(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	type params struct {
		Contract domain.Address `json:"contract"`
		Accepted bool           `json:"accepted"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}

	if err := h.marketCfg.ToggleAssetContract(ctx, caller, chainId, p.Contract, p.Accepted); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) setDurationBounds(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	caller := c.Get("address").(domain.Address)

	chainId, err := chainIdParam(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	type params struct {
		MinSec int64 `json:"minSec"`
		MaxSec int64 `json:"maxSec"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}

	min := time.Duration(p.MinSec) * time.Second
	max := time.Duration(p.MaxSec) * time.Second
	if err := h.marketCfg.SetDurationBounds(ctx, caller, chainId, min, max); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) setTrustedSigner(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	caller := c.Get("address").(domain.Address)

	chainId, err := chainIdParam(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	type params struct {
		Signer domain.Address `json:"signer"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}

	if err := h.marketCfg.SetTrustedSigner(ctx, caller, chainId, p.Signer); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}
