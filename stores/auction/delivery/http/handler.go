package http

import (
	"math/big"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/delivery"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/auction"
	authMiddleware "github.com/x-xyz/tradeengine/stores/auth/delivery/http/middleware"
)

type handler struct {
	auction auction.UseCase
}

func New(e *echo.Echo, authMw *authMiddleware.AuthMiddleware, auction auction.UseCase) {
	h := &handler{auction: auction}

	g := e.Group("/auctions")
	g.GET("", h.findAll)
	g.GET("/:id", h.get)
	g.POST("", h.create, authMw.Auth())
	g.POST("/:id/bid", h.placeBid, authMw.Auth())
	g.POST("/:id/end", h.end, authMw.Auth())
	g.POST("/:id/cancel", h.cancel, authMw.Auth())
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	seller := c.Get("address").(domain.Address)

	type params struct {
		Asset         domain.AssetId `json:"asset"`
		StartingPrice string         `json:"startingPrice"`
		ReservePrice  string         `json:"reservePrice"`
		PayToken      domain.Address `json:"payToken"`
		DurationSec   int64          `json:"durationSec"`
		Metadata      string         `json:"metadata"`
		Name          string         `json:"name"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}
	startingPrice, ok := new(big.Int).SetString(p.StartingPrice, 10)
	if !ok {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}
	reservePrice, ok := new(big.Int).SetString(p.ReservePrice, 10)
	if !ok {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}

	payload := &auction.CreatePayload{
		Seller:        seller,
		Asset:         p.Asset,
		StartingPrice: startingPrice,
		ReservePrice:  reservePrice,
		PayToken:      p.PayToken,
		Duration:      time.Duration(p.DurationSec) * time.Second,
		Metadata:      p.Metadata,
		Name:          p.Name,
	}
	if a, err := h.auction.Create(ctx, payload); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusCreated, a)
	}
}

func (h *handler) placeBid(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	bidder := c.Get("address").(domain.Address)

	type params struct {
		Amount string `json:"amount"`
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

	if err := h.auction.PlaceBid(ctx, bidder, c.Param("id"), amount); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) end(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	caller := c.Get("address").(domain.Address)

	if err := h.auction.End(ctx, caller, c.Param("id")); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) cancel(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	caller := c.Get("address").(domain.Address)

	if err := h.auction.Cancel(ctx, caller, c.Param("id")); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) get(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	if a, err := h.auction.Get(ctx, c.Param("id")); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, a)
	}
}

func (h *handler) findAll(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		Seller  *domain.Address `query:"seller"`
		Active  *bool           `query:"active"`
		ChainId *domain.ChainId `query:"chainId"`
		Offset  int32           `query:"offset"`
		Limit   int32           `query:"limit"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}

	opts := []auction.FindAllOptionsFunc{}
	if p.Seller != nil {
		opts = append(opts, auction.WithSeller(*p.Seller))
	}
	if p.Active != nil {
		opts = append(opts, auction.WithActive(*p.Active))
	}
	if p.ChainId != nil {
		opts = append(opts, auction.WithChainId(*p.ChainId))
	}
	if p.Limit > 0 {
		opts = append(opts, auction.WithPagination(p.Offset, p.Limit))
	}

	if auctions, err := h.auction.FindAll(ctx, opts...); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, auctions)
	}
}
