package weather

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/weather", h.GetWeather)
}

func (h *Handler) GetWeather(c echo.Context) error {
	var q Query
	err := echo.QueryParamsBinder(c).
		MustFloat64("lat", &q.Lat).
		MustFloat64("lon", &q.Lon).
		BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "lat and lon query parameters are required")
	}
	if err := c.Validate(&q); err != nil {
		return err
	}
	cond, err := h.svc.Current(c.Request().Context(), Location{Lat: q.Lat, Lon: q.Lon})
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return echo.NewHTTPError(http.StatusBadGateway, MsgUnavailable)
		}
		return echo.NewHTTPError(http.StatusBadGateway, MsgFetchError)
	}
	return c.JSON(http.StatusOK, cond)
}
