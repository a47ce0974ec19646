package admission

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(
		auth.RoleManager, auth.RoleDoctor, auth.RoleNurse, auth.RoleFrontDesk, auth.RoleBilling))
	read.GET("/admissions", h.ListAdmissions)
	read.GET("/admissions/:id", h.GetAdmission)
	read.GET("/admissions/:id/billing", h.GetBilling)

	clinical := auth.RequireRole(auth.RoleDoctor, auth.RoleNurse)
	api.POST("/admissions", h.Admit, auth.RequireRole(auth.RoleDoctor, auth.RoleFrontDesk))
	api.POST("/admissions/:id/notes", h.AddNote, clinical)
	api.PUT("/admissions/:id", h.UpdateStay, clinical)
	api.POST("/admissions/:id/discharge", h.Discharge, auth.RequireRole(auth.RoleDoctor))
	api.POST("/admissions/:id/transfer", h.Transfer, auth.RequireRole(auth.RoleDoctor, auth.RoleManager))
	api.POST("/admissions/:id/cancel", h.CancelAdmission, auth.RequireRole(auth.RoleDoctor, auth.RoleManager))
}

func (h *Handler) Admit(c echo.Context) error {
	var a Admission
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	a.AdmittedBy = actor.ID
	branchID, err := actor.ScopeBranch(a.BranchID)
	if err != nil {
		return err
	}
	a.BranchID = branchID
	if err := h.svc.Admit(c.Request().Context(), &a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, &a)
}

func (h *Handler) GetAdmission(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return admissionError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// GetBilling exposes the derived running total for an admission.
func (h *Handler) GetBilling(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return admissionError(err)
	}
	now := time.Now()
	return c.JSON(http.StatusOK, echo.Map{
		"admission_number":     a.AdmissionNumber,
		"daily_rate":           a.DailyRate,
		"billed_days":          a.BilledDays(now),
		"total_billing_amount": a.TotalBillingAmount(now),
	})
}

func (h *Handler) ListAdmissions(c echo.Context) error {
	actor := auth.ActorFromContext(c.Request().Context())

	var requested uuid.UUID
	if q := c.QueryParam("branch_id"); q != "" {
		parsed, err := uuid.Parse(q)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid branch_id")
		}
		requested = parsed
	}
	branchID, err := actor.ScopeBranch(requested)
	if err != nil {
		return err
	}

	f := ListFilter{BranchID: branchID, Status: c.QueryParam("status")}
	if q := c.QueryParam("patient_id"); q != "" {
		parsed, err := uuid.Parse(q)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = parsed
	}

	pg := pagination.FromContext(c)
	admissions, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(admissions, total, pg.Limit, pg.Offset))
}

func (h *Handler) AddNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var n DailyNote
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	n.AdmissionID = id
	n.AuthorID = actor.ID
	if err := h.svc.AddNote(c.Request().Context(), &n); err != nil {
		return admissionError(err)
	}
	return c.JSON(http.StatusCreated, &n)
}

func (h *Handler) UpdateStay(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateStay(c.Request().Context(), id, in)
	if err != nil {
		return admissionError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Discharge(c.Request().Context(), id)
	if err != nil {
		return admissionError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Transfer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Transfer(c.Request().Context(), id)
	if err != nil {
		return admissionError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CancelAdmission(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return admissionError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func admissionError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotAdmitted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
