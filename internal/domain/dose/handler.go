package dose

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/leanifi/emar/internal/domain/user"
	"github.com/leanifi/emar/internal/platform/auth"
	"github.com/leanifi/emar/internal/platform/db"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the clinician dose log and the patient self-service
// surface. api requires a valid session.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinician := api.Group("/clinician", auth.RequireRole(user.RoleAdmin, user.RoleClinician))
	clinician.POST("/doses", h.LogClinicianDose)
	clinician.GET("/doses", h.ListPatientDoses)

	patient := api.Group("/patient", auth.RequireRole(user.RolePatient))
	patient.GET("/me", h.Me)
	patient.GET("/doses", h.ListOwnDoses)
	patient.POST("/doses", h.LogOwnDose)
	patient.POST("/missed-dose", h.ReportMissedDose)
}

type clinicianDoseRequest struct {
	PatientID         string   `json:"patientId"`
	Date              string   `json:"date"`
	Time              string   `json:"time"`
	Dosage            string   `json:"dosage"`
	InjectionSite     string   `json:"injectionSite"`
	Status            string   `json:"status"`
	BatchNumber       string   `json:"batchNumber"`
	ClinicianInitials string   `json:"clinicianInitials"`
	SideEffects       []string `json:"sideEffects"`
	SideEffectsNotes  string   `json:"sideEffectsNotes"`
	PhotoURL          string   `json:"photoUrl"`
	Notes             string   `json:"notes"`
	MissedReason      string   `json:"missedReason"`
	MissedReasonNotes string   `json:"missedReasonNotes"`
}

func (h *Handler) LogClinicianDose(c echo.Context) error {
	var req clinicianDoseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.PatientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patientId is required")
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patientId")
	}

	clinicianID := auth.UserIDFromContext(c.Request().Context())
	d, err := h.svc.LogClinicianDose(c.Request().Context(), clinicianID, ClinicianDoseInput{
		PatientID:         patientID,
		Date:              req.Date,
		Time:              req.Time,
		Dosage:            req.Dosage,
		InjectionSite:     req.InjectionSite,
		Status:            req.Status,
		BatchNumber:       req.BatchNumber,
		ClinicianInitials: req.ClinicianInitials,
		SideEffects:       req.SideEffects,
		SideEffectsNotes:  req.SideEffectsNotes,
		PhotoURL:          req.PhotoURL,
		Notes:             req.Notes,
		MissedReason:      req.MissedReason,
		MissedReasonNotes: req.MissedReasonNotes,
	})
	if err != nil {
		if db.IsNoRows(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, doseResponse(d))
}

func (h *Handler) ListPatientDoses(c echo.Context) error {
	raw := c.QueryParam("patientId")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patientId is required")
	}
	patientID, err := uuid.Parse(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patientId")
	}

	doses, err := h.svc.ListForPatient(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	return c.JSON(http.StatusOK, dosesResponse(doses))
}

func (h *Handler) Me(c echo.Context) error {
	patientID := auth.UserIDFromContext(c.Request().Context())
	profile, err := h.svc.Profile(c.Request().Context(), patientID)
	if err != nil {
		if db.IsNoRows(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"patient": profile,
	})
}

func (h *Handler) ListOwnDoses(c echo.Context) error {
	patientID := auth.UserIDFromContext(c.Request().Context())
	doses, err := h.svc.ListForPatient(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	return c.JSON(http.StatusOK, dosesResponse(doses))
}

type patientDoseRequest struct {
	Date             string   `json:"date"`
	Time             string   `json:"time"`
	Dosage           string   `json:"dosage"`
	InjectionSite    string   `json:"injectionSite"`
	SideEffects      []string `json:"sideEffects"`
	SideEffectsNotes string   `json:"sideEffectsNotes"`
	PhotoURL         string   `json:"photoUrl"`
	Notes            string   `json:"notes"`
}

func (h *Handler) LogOwnDose(c echo.Context) error {
	var req patientDoseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	patientID := auth.UserIDFromContext(c.Request().Context())
	d, err := h.svc.LogPatientDose(c.Request().Context(), patientID, PatientDoseInput{
		Date:             req.Date,
		Time:             req.Time,
		Dosage:           req.Dosage,
		InjectionSite:    req.InjectionSite,
		SideEffects:      req.SideEffects,
		SideEffectsNotes: req.SideEffectsNotes,
		PhotoURL:         req.PhotoURL,
		Notes:            req.Notes,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateDate) {
			return echo.NewHTTPError(http.StatusConflict, "Dose already logged for this date")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, doseResponse(d))
}

type missedDoseRequest struct {
	Date              string `json:"date"`
	MissedReason      string `json:"missedReason"`
	MissedReasonNotes string `json:"missedReasonNotes"`
}

func (h *Handler) ReportMissedDose(c echo.Context) error {
	var req missedDoseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	patientID := auth.UserIDFromContext(c.Request().Context())
	d, err := h.svc.ReportMissedDose(c.Request().Context(), patientID, MissedDoseInput{
		Date:              req.Date,
		MissedReason:      req.MissedReason,
		MissedReasonNotes: req.MissedReasonNotes,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateDate) {
			return echo.NewHTTPError(http.StatusConflict, "Dose already logged for this date")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, doseResponse(d))
}

// The browser clients key off a success flag on every 2xx body.
func doseResponse(d *Dose) map[string]interface{} {
	return map[string]interface{}{"success": true, "dose": d.View()}
}

func dosesResponse(doses []*Dose) map[string]interface{} {
	return map[string]interface{}{"success": true, "doses": Views(doses)}
}
