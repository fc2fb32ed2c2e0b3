package user

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/leanifi/emar/internal/platform/auth"
	"github.com/leanifi/emar/internal/platform/db"
	"github.com/leanifi/emar/pkg/pagination"
)

// DoseStats supplies the dose counts shown on the admin dashboard.
// Implemented by the dose service.
type DoseStats interface {
	CountMissed(ctx context.Context) (int, error)
	CountLoggedSince(ctx context.Context, since time.Time) (int, error)
}

type Handler struct {
	svc           *Service
	doseStats     DoseStats
	secureCookies bool
}

func NewHandler(svc *Service, doseStats DoseStats, secureCookies bool) *Handler {
	return &Handler{svc: svc, doseStats: doseStats, secureCookies: secureCookies}
}

// RegisterRoutes mounts auth routes and the admin/clinician patient surface.
// public carries no session middleware; api requires a valid session.
func (h *Handler) RegisterRoutes(public, api *echo.Group) {
	public.POST("/auth/login", h.Login)

	api.POST("/auth/logout", h.Logout)
	api.POST("/auth/change-password", h.ChangePassword)

	admin := api.Group("/admin", auth.RequireRole(RoleAdmin))
	admin.GET("/patients", h.ListPatients)
	admin.POST("/patients", h.CreatePatient)
	admin.GET("/patients/:id", h.GetPatient)
	admin.PUT("/patients/:id", h.UpdatePatient)
	admin.DELETE("/patients/:id", h.DeletePatient)
	admin.GET("/stats", h.Stats)

	clinician := api.Group("/clinician", auth.RequireRole(RoleAdmin, RoleClinician))
	clinician.GET("/patients", h.ListPatients)
}

type loginRequest struct {
	LeanifiID string `json:"leanifiId"`
	Password  string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.LeanifiID == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Leanifi ID and password are required")
	}

	u, token, err := h.svc.Login(c.Request().Context(), req.LeanifiID, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	auth.SetSessionCookie(c, token, h.secureCookies)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    u.Summary(),
	})
}

func (h *Handler) Logout(c echo.Context) error {
	auth.ClearSessionCookie(c)
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	userID := auth.UserIDFromContext(c.Request().Context())
	err := h.svc.ChangePassword(c.Request().Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, ErrWrongPassword) {
			return echo.NewHTTPError(http.StatusBadRequest, "Current password is incorrect")
		}
		if db.IsNoRows(err) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

type createPatientRequest struct {
	LeanifiID          string   `json:"leanifiId"`
	Password           string   `json:"password"`
	Name               string   `json:"name"`
	Age                *int     `json:"age"`
	Gender             string   `json:"gender"`
	Weight             *float64 `json:"weight"`
	TreatmentStartDate string   `json:"treatmentStartDate"`
	Allergies          string   `json:"allergies"`
	MedicalHistory     string   `json:"medicalHistory"`
	FamilyHistory      string   `json:"familyHistory"`
	Medications        string   `json:"medications"`
	SocialHistory      string   `json:"socialHistory"`
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req createPatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	u := User{
		LeanifiID:      req.LeanifiID,
		Name:           req.Name,
		Age:            req.Age,
		Gender:         req.Gender,
		WeightKG:       req.Weight,
		Allergies:      req.Allergies,
		MedicalHistory: req.MedicalHistory,
		FamilyHistory:  req.FamilyHistory,
		Medications:    req.Medications,
		SocialHistory:  req.SocialHistory,
	}
	if req.TreatmentStartDate != "" {
		d, err := ParseDate(req.TreatmentStartDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid treatmentStartDate")
		}
		u.TreatmentStartDate = &d
	}

	if err := h.svc.CreatePatient(c.Request().Context(), &u, req.Password); err != nil {
		if errors.Is(err, ErrDuplicateLeanifiID) {
			return echo.NewHTTPError(http.StatusConflict, "Leanifi ID already exists")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, &u)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), pg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	if items == nil {
		items = []*User{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		if db.IsNoRows(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	return c.JSON(http.StatusOK, u)
}

type updatePatientRequest struct {
	Name               *string  `json:"name"`
	Age                *int     `json:"age"`
	Gender             *string  `json:"gender"`
	Weight             *float64 `json:"weight"`
	TreatmentStartDate *string  `json:"treatmentStartDate"`
	Allergies          *string  `json:"allergies"`
	MedicalHistory     *string  `json:"medicalHistory"`
	FamilyHistory      *string  `json:"familyHistory"`
	Medications        *string  `json:"medications"`
	SocialHistory      *string  `json:"socialHistory"`
	IsActive           *bool    `json:"isActive"`
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updatePatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	upd := PatientUpdate{
		Name:           req.Name,
		Age:            req.Age,
		Gender:         req.Gender,
		Weight:         req.Weight,
		Allergies:      req.Allergies,
		MedicalHistory: req.MedicalHistory,
		FamilyHistory:  req.FamilyHistory,
		Medications:    req.Medications,
		SocialHistory:  req.SocialHistory,
		IsActive:       req.IsActive,
	}
	if req.TreatmentStartDate != nil {
		d, err := ParseDate(*req.TreatmentStartDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid treatmentStartDate")
		}
		upd.TreatmentStartDate = &d
	}

	actorID := auth.UserIDFromContext(c.Request().Context())
	u, err := h.svc.UpdatePatient(c.Request().Context(), actorID, id, upd)
	if err != nil {
		if db.IsNoRows(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		if db.IsNoRows(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	total, active, err := h.svc.PatientCounts(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	missed, thisWeek := 0, 0
	if h.doseStats != nil {
		if missed, err = h.doseStats.CountMissed(ctx); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
		}
		weekStart := time.Now().UTC().AddDate(0, 0, -7)
		if thisWeek, err = h.doseStats.CountLoggedSince(ctx, weekStart); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
		}
	}

	return c.JSON(http.StatusOK, map[string]int{
		"totalPatients":  total,
		"activePatients": active,
		"missedDoses":    missed,
		"dosesThisWeek":  thisWeek,
	})
}

// ParseDate accepts a bare date or a full RFC 3339 timestamp, as the browser
// clients send both.
func ParseDate(s string) (time.Time, error) {
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, s)
}
