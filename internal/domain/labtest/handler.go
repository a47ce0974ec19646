package labtest

import (
	"errors"
	"net/http"

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
		auth.RoleManager, auth.RoleDoctor, auth.RoleLab, auth.RoleNurse, auth.RoleBilling, auth.RoleFrontDesk))
	read.GET("/lab-tests/:id", h.GetLabTest)
	read.GET("/lab-tests", h.ListLabTests)
	read.GET("/visits/:visitId/lab-tests", h.ListByVisit)

	// Walk-in lab work skips the visit pipeline entirely.
	api.POST("/lab-tests", h.OrderLabTest, auth.RequireRole(auth.RoleDoctor, auth.RoleLab, auth.RoleFrontDesk))
	api.POST("/lab-tests/:id/start", h.StartLabTest, auth.RequireRole(auth.RoleLab))
	api.POST("/lab-tests/:id/complete", h.CompleteLabTest, auth.RequireRole(auth.RoleLab))
	api.POST("/lab-tests/:id/cancel", h.CancelLabTest, auth.RequireRole(auth.RoleDoctor, auth.RoleLab, auth.RoleManager))
}

func (h *Handler) OrderLabTest(c echo.Context) error {
	var lt LabTest
	if err := c.Bind(&lt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	lt.OrderedBy = actor.ID
	branchID, err := actor.ScopeBranch(lt.BranchID)
	if err != nil {
		return err
	}
	lt.BranchID = branchID
	if err := h.svc.Order(c.Request().Context(), &lt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, lt)
}

func (h *Handler) GetLabTest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	lt, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "lab test not found")
	}
	return c.JSON(http.StatusOK, lt)
}

func (h *Handler) StartLabTest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.ActorFromContext(c.Request().Context())
	lt, err := h.svc.Start(c.Request().Context(), id, actor.ID)
	if err != nil {
		return labTestError(err)
	}
	return c.JSON(http.StatusOK, lt)
}

func (h *Handler) CompleteLabTest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var res Result
	if err := c.Bind(&res); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	lt, err := h.svc.Complete(c.Request().Context(), id, actor.ID, res)
	if err != nil {
		return labTestError(err)
	}
	return c.JSON(http.StatusOK, lt)
}

func (h *Handler) CancelLabTest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	lt, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return labTestError(err)
	}
	return c.JSON(http.StatusOK, lt)
}

func (h *Handler) ListByVisit(c echo.Context) error {
	visitID, err := uuid.Parse(c.Param("visitId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	tests, err := h.svc.ListByVisit(c.Request().Context(), visitID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tests)
}

func (h *Handler) ListLabTests(c echo.Context) error {
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
	tests, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(tests, total, pg.Limit, pg.Offset))
}

func labTestError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrFinalized):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrMissingResult):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
