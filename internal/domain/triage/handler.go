package triage

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kalinga/kalinga/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/triage", auth.RequireRole(auth.RoleResponder))
	g.POST("/classify", h.Classify)
	g.GET("/facilities", h.ListFacilities)
	g.GET("/cohorts", h.GetCohorts)
	g.POST("/cohorts/regenerate", h.RegenerateCohorts)
}

func (h *Handler) Classify(c echo.Context) error {
	var v Vitals
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&v); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.svc.Assess(v))
}

func (h *Handler) ListFacilities(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Facilities())
}

func (h *Handler) GetCohorts(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Snapshot())
}

func (h *Handler) RegenerateCohorts(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Regenerate(c.Request().Context()))
}
