package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/delivery"
	"github.com/x-xyz/tradeengine/domain"
)

type handler struct {
	activity domain.ActivityRepo
}

func New(e *echo.Echo, activity domain.ActivityRepo) {
	h := &handler{activity: activity}

	g := e.Group("/activities")
	g.GET("", h.findAll)
}

func (h *handler) findAll(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		EntityId *string              `query:"entityId"`
		Type     *domain.ActivityType `query:"type"`
		Actor    *domain.Address      `query:"actor"`
		Offset   int32                `query:"offset"`
		Limit    int32                `query:"limit"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}

	opts := []domain.ActivityFindAllOptionsFunc{}
	if p.EntityId != nil {
		opts = append(opts, domain.ActivityWithEntityId(*p.EntityId))
	}
	if p.Type != nil {
		opts = append(opts, domain.ActivityWithType(*p.Type))
	}
	if p.Actor != nil {
		opts = append(opts, domain.ActivityWithActor(*p.Actor))
	}
	if p.Limit > 0 {
		opts = append(opts, domain.ActivityWithPagination(p.Offset, p.Limit))
	}

	if activities, err := h.activity.FindAll(ctx, opts...); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, activities)
	}
}
