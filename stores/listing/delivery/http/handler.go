package http

import (
	"math/big"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/delivery"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/domain/listing"
	authMiddleware "github.com/x-xyz/tradeengine/stores/auth/delivery/http/middleware"
)

type handler struct {
	listing listing.UseCase
}

func New(e *echo.Echo, authMw *authMiddleware.AuthMiddleware, listing listing.UseCase) {
	h := &handler{listing: listing}

	g := e.Group("/listings")
	g.GET("", h.findAll)
	g.GET("/:id", h.get)
	g.POST("", h.create, authMw.Auth())
	g.POST("/bulk", h.createBulk, authMw.Auth())
	g.POST("/:id/buy", h.buy, authMw.Auth())
	g.POST("/:id/cancel", h.cancel, authMw.Auth())
}

type createParams struct {
	Asset       domain.AssetId `json:"asset"`
	Price       string         `json:"price"`
	PayToken    domain.Address `json:"payToken"`
	DurationSec int64          `json:"durationSec"`
	Metadata    string         `json:"metadata"`
	Name        string         `json:"name"`
}

func (p *createParams) toPayload(seller domain.Address) (*listing.CreatePayload, error) {
	price, ok := new(big.Int).SetString(p.Price, 10)
	if !ok {
		return nil, domain.ErrBadParamInput
	}
	return &listing.CreatePayload{
		Seller:   seller,
		Asset:    p.Asset,
		Price:    price,
		PayToken: p.PayToken,
		Duration: time.Duration(p.DurationSec) * time.Second,
		Metadata: p.Metadata,
		Name:     p.Name,
	}, nil
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	seller := c.Get("address").(domain.Address)

	p := &createParams{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}
	payload, err := p.toPayload(seller)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if l, err := h.listing.Create(ctx, payload); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusCreated, l)
	}
}

func (h *handler) createBulk(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	seller := c.Get("address").(domain.Address)

	type params struct {
		Listings []*createParams `json:"listings"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}

	payloads := make([]*listing.CreatePayload, 0, len(p.Listings))
	for _, entry := range p.Listings {
		payload, err := entry.toPayload(seller)
		if err != nil {
			return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
		}
		payloads = append(payloads, payload)
	}

	if listings, err := h.listing.CreateBulk(ctx, payloads); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusCreated, listings)
	}
}

func (h *handler) buy(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	buyer := c.Get("address").(domain.Address)

	type params struct {
		Payment string `json:"payment"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}
	payment, ok := new(big.Int).SetString(p.Payment, 10)
	if !ok {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}

	if err := h.listing.Buy(ctx, buyer, c.Param("id"), payment); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) cancel(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	caller := c.Get("address").(domain.Address)

	if err := h.listing.Cancel(ctx, caller, c.Param("id")); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) get(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	if l, err := h.listing.Get(ctx, c.Param("id")); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, l)
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

	opts := []listing.FindAllOptionsFunc{}
	if p.Seller != nil {
		opts = append(opts, listing.WithSeller(*p.Seller))
	}
	if p.Active != nil {
		opts = append(opts, listing.WithActive(*p.Active))
	}
	if p.ChainId != nil {
		opts = append(opts, listing.WithChainId(*p.ChainId))
	}
	if p.Limit > 0 {
		opts = append(opts, listing.WithPagination(p.Offset, p.Limit))
	}

	if listings, err := h.listing.FindAll(ctx, opts...); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, listings)
	}
}
