package delivery

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/x-xyz/tradeengine/domain"
	"github.com/x-xyz/tradeengine/service/query"
)

type JsonResponseStatus string

const (
	JsonResponseStatusSuccess JsonResponseStatus = "success"
	JsonResponseStatusFail    JsonResponseStatus = "fail"
)

type JsonResponse struct {
	Data   interface{}        `json:"data"`
	Status JsonResponseStatus `json:"status"`
}

// statusOf maps an engine error to its HTTP status through the error
// category, so every handler reports rejections consistently.
func statusOf(err error) int {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, query.ErrNotFound) {
		return http.StatusNotFound
	}
	switch domain.Categorize(err) {
	case domain.CategoryValidation:
		return http.StatusBadRequest
	case domain.CategoryUnauthorized:
		return http.StatusUnauthorized
	case domain.CategoryState:
		return http.StatusConflict
	case domain.CategoryPayment:
		return http.StatusBadRequest
	case domain.CategorySignature:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func MakeJsonResp(c echo.Context, status int, data interface{}) error {
	if err, ok := data.(error); ok {
		status = statusOf(err)
		data = err.Error()
	}

	if status >= 400 {
		return c.JSON(status, JsonResponse{data, JsonResponseStatusFail})
	}

	if status >= 200 && status < 300 {
		return c.JSON(status, JsonResponse{data, JsonResponseStatusSuccess})
	}

	return c.JSON(status, data)
}
