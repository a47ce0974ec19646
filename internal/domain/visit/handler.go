package visit

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/medicore/internal/domain/labtest"
	"github.com/medicore/medicore/internal/domain/prescription"
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
	clocking := api.Group("/clocking")

	clocking.POST("/clock-in", h.FrontDeskClockIn, auth.RequireRole(auth.RoleFrontDesk))
	clocking.POST("/nurse-clock-in", h.NurseClockIn, auth.RequireRole(auth.RoleNurse))
	clocking.POST("/doctor-clock-in", h.DoctorClockIn, auth.RequireRole(auth.RoleDoctor))
	clocking.POST("/lab-clock-in", h.LabClockIn, auth.RequireRole(auth.RoleLab))
	clocking.POST("/pharmacy-clock-in", h.PharmacyClockIn, auth.RequireRole(auth.RolePharmacy))
	clocking.POST("/billing-clock-in", h.BillingClockIn, auth.RequireRole(auth.RoleBilling))

	stageRoles := auth.RequireRole(auth.RoleFrontDesk, auth.RoleNurse, auth.RoleDoctor,
		auth.RoleLab, auth.RolePharmacy, auth.RoleBilling)
	clocking.POST("/:id/clock-out", h.ClockOut, stageRoles)
	clocking.POST("/:id/handoff", h.Handoff, stageRoles)
	clocking.POST("/:id/return", h.Return, stageRoles)
	clocking.POST("/:id/cancel", h.Cancel, auth.RequireRole(auth.RoleFrontDesk, auth.RoleManager))
	clocking.GET("/queue", h.Queue, auth.RequireRole(auth.Roles...))
	clocking.GET("/:id", h.Detail, auth.RequireRole(auth.Roles...))

	// generic visit surface
	api.POST("/visits", h.CreateVisit, auth.RequireRole(auth.RoleFrontDesk))
	api.GET("/visits", h.ListVisits, auth.RequireRole(auth.Roles...))
}

func (h *Handler) FrontDeskClockIn(c echo.Context) error {
	var in FrontDeskInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	branchID, err := actor.ScopeBranch(in.BranchID)
	if err != nil {
		return err
	}
	in.BranchID = branchID

	v, err := h.svc.FrontDeskClockIn(c.Request().Context(), in, actor)
	if err != nil {
		return visitError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

// CreateVisit is the generic visit-creation surface; it shares the
// front-desk clock-in semantics.
func (h *Handler) CreateVisit(c echo.Context) error {
	return h.FrontDeskClockIn(c)
}

func (h *Handler) NurseClockIn(c echo.Context) error {
	var in NurseInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	v, err := h.svc.NurseClockIn(c.Request().Context(), in, actor)
	if err != nil {
		return visitError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DoctorClockIn(c echo.Context) error {
	var in DoctorInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	v, err := h.svc.DoctorClockIn(c.Request().Context(), in, actor)
	if err != nil {
		return visitError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) LabClockIn(c echo.Context) error {
	var in LabInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	v, err := h.svc.LabClockIn(c.Request().Context(), in, actor)
	if err != nil {
		return visitError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) PharmacyClockIn(c echo.Context) error {
	var in PharmacyInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	v, err := h.svc.PharmacyClockIn(c.Request().Context(), in, actor)
	if err != nil {
		return visitError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) BillingClockIn(c echo.Context) error {
	var in BillingInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	v, err := h.svc.BillingClockIn(c.Request().Context(), in, actor)
	if err != nil {
		return visitError(err)
	}
	return c.JSON(http.StatusOK, v)
}

type clockOutRequest struct {
	Notes      *string `json:"notes,omitempty"`
	NextAction *string `json:"next_action,omitempty"`
}

func (h *Handler) ClockOut(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req clockOutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	v, err := h.svc.ClockOut(c.Request().Context(), id, actor, req.Notes, req.NextAction)
	if err != nil {
		return visitError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Handoff(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.ActorFromContext(c.Request().Context())
	v, err := h.svc.Handoff(c.Request().Context(), id, actor)
	if err != nil {
		return visitError(err)
	}
	return c.JSON(http.StatusOK, v)
}

type returnRequest struct {
	Reason *string `json:"reason,omitempty"`
}

func (h *Handler) Return(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req returnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	v, err := h.svc.Return(c.Request().Context(), id, actor, req.Reason)
	if err != nil {
		return visitError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return visitError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Detail(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, timeline, err := h.svc.Detail(c.Request().Context(), id)
	if err != nil {
		return visitError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"visit": v, "timeline": timeline})
}

func (h *Handler) Queue(c echo.Context) error {
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

	pg := pagination.FromContext(c)
	visits, total, err := h.svc.Queue(c.Request().Context(), actor,
		Stage(c.QueryParam("stage")), branchID, c.QueryParam("search"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(visits, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListVisits(c echo.Context) error {
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
	visits, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(visits, total, pg.Limit, pg.Offset))
}

// visitError maps workflow errors onto HTTP statuses: stage and clocking
// violations are 400s, conflicts 409, unknown records 404. Anything else is
// a generic 500; the cause travels on Internal for the request log only.
func visitError(err error) *echo.HTTPError {
	var active *ErrActiveVisitExists
	var mismatch *ErrStageMismatch
	var invalid *ErrInvalidInput
	var unresolved *ErrUnresolvedClockIn
	switch {
	case errors.As(err, &active):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &mismatch), errors.As(err, &invalid), errors.As(err, &unresolved):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPatientNotFound),
		errors.Is(err, labtest.ErrNotFound), errors.Is(err, prescription.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotInProgress), errors.Is(err, ErrNotClockedIn),
		errors.Is(err, ErrAlreadyClocked), errors.Is(err, ErrTerminal),
		errors.Is(err, ErrStageNotFound), errors.Is(err, labtest.ErrFinalized),
		errors.Is(err, prescription.ErrNotActive):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
