package audit

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/leanifi/emar/internal/domain/user"
	"github.com/leanifi/emar/internal/platform/auth"
	"github.com/leanifi/emar/pkg/pagination"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes mounts the audit trail view for administrators.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("/admin", auth.RequireRole(user.RoleAdmin))
	admin.GET("/audit", h.ListEntries)
}

func (h *Handler) ListEntries(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.repo.ListRecent(c.Request().Context(), pg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	if items == nil {
		items = []*Entry{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
