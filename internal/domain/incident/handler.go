package incident

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kalinga/kalinga/internal/domain/triage"
	"github.com/kalinga/kalinga/internal/platform/auth"
	"github.com/kalinga/kalinga/pkg/pagination"
)

// Source supplies the current generation cycle.
type Source interface {
	Snapshot() triage.Snapshot
}

type Handler struct {
	src Source
}

func NewHandler(src Source) *Handler {
	return &Handler{src: src}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/incidents", auth.RequireRole(auth.RoleResponder))
	g.GET("", h.ListIncidents)
}

// ListIncidents projects the current cohorts on every call, so the list
// always reflects the latest regeneration.
func (h *Handler) ListIncidents(c echo.Context) error {
	all := Filter(Project(h.src.Snapshot()), c.QueryParam("facility"))
	return c.JSON(http.StatusOK, pagination.Page(all, pagination.FromContext(c)))
}
