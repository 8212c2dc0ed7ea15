package http

import (
	"math/big"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/delivery"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/offer"
	authMiddleware "github.com/x-xyz/tradeengine/stores/auth/delivery/http/middleware"
)

type handler struct {
	offer offer.UseCase
}

func New(e *echo.Echo, authMw *authMiddleware.AuthMiddleware, offer offer.UseCase) {
	h := &handler{offer: offer}

	g := e.Group("/offers")
	g.GET("", h.findAll)
	g.GET("/:id", h.get)
	g.POST("", h.make, authMw.Auth())
	g.POST("/reject", h.reject, authMw.Auth())
	g.POST("/:id/accept", h.accept, authMw.Auth())
	g.POST("/:id/cancel", h.cancel, authMw.Auth())
}

func (h *handler) make(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	maker := c.Get("address").(domain.Address)

	type params struct {
		Asset      domain.AssetId `json:"asset"`
		Owner      domain.Address `json:"owner"`
		Price      string         `json:"price"`
		PayToken   domain.Address `json:"payToken"`
		ValidUntil time.Time      `json:"validUntil"`
		Name       string         `json:"name"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}
	price, ok := new(big.Int).SetString(p.Price, 10)
	if !ok {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}

	payload := &offer.MakePayload{
		Maker:      maker,
		Owner:      p.Owner,
		Asset:      p.Asset,
		Price:      price,
		PayToken:   p.PayToken,
		ValidUntil: p.ValidUntil,
		Name:       p.Name,
	}
	if o, err := h.offer.Make(ctx, payload); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusCreated, o)
	}
}

func (h *handler) accept(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	caller := c.Get("address").(domain.Address)

	type params struct {
		SupersededIds []string `json:"supersededIds"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}

	if err := h.offer.Accept(ctx, caller, c.Param("id"), p.SupersededIds); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) reject(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	caller := c.Get("address").(domain.Address)

	type params struct {
		Ids []string `json:"ids"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}

	if err := h.offer.Reject(ctx, caller, p.Ids); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) cancel(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	caller := c.Get("address").(domain.Address)

	if err := h.offer.Cancel(ctx, caller, c.Param("id")); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) get(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	if o, err := h.offer.Get(ctx, c.Param("id")); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, o)
	}
}

func (h *handler) findAll(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		Owner  *domain.Address `query:"owner"`
		Maker  *domain.Address `query:"maker"`
		Open   *bool           `query:"open"`
		Offset int32           `query:"offset"`
		Limit  int32           `query:"limit"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}

	opts := []offer.FindAllOptionsFunc{}
	if p.Owner != nil {
		opts = append(opts, offer.WithOwner(*p.Owner))
	}
	if p.Maker != nil {
		opts = append(opts, offer.WithMaker(*p.Maker))
	}
	if p.Open != nil {
		opts = append(opts, offer.WithOpen(*p.Open))
	}
	if p.Limit > 0 {
		opts = append(opts, offer.WithPagination(p.Offset, p.Limit))
	}

	if offers, err := h.offer.FindAll(ctx, opts...); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, offers)
	}
}
