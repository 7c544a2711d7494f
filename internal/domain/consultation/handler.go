package consultation

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lawfirm/booking/internal/domain/scheduling"
	"github.com/lawfirm/booking/internal/platform/auth"
	"github.com/lawfirm/booking/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts booking on public and consultation management on
// staff. submitMW wraps the public booking endpoint only.
func (h *Handler) RegisterRoutes(public, staff *echo.Group, submitMW ...echo.MiddlewareFunc) {
	public.POST("/consultations", h.Submit, submitMW...)

	staff.GET("/lawyers/:id/consultations", h.ListByLawyer)
	staff.PATCH("/consultations/:id/status", h.UpdateStatus)
}

func (h *Handler) Submit(c echo.Context) error {
	var req SubmitConsultation
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	appt, err := h.svc.ReserveSlot(c.Request().Context(), req)
	if err != nil {
		return scheduling.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid consultation id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !ValidStatus(req.Status) {
		v := &scheduling.ValidationError{}
		v.Add("status", "must be one of pending, confirmed, cancelled, completed")
		return scheduling.HTTPError(v)
	}
	sess := auth.SessionFromContext(c.Request().Context())
	appt, err := h.svc.UpdateStatus(c.Request().Context(), sess, id, req.Status, req.Reason)
	if err != nil {
		return scheduling.HTTPError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListByLawyer(c echo.Context) error {
	lawyerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lawyer id")
	}
	v := &scheduling.ValidationError{}
	f := ListFilter{
		Date:   scheduling.QueryDate(c, "date", v),
		Status: c.QueryParam("status"),
	}
	if err := v.Err(); err != nil {
		return scheduling.HTTPError(err)
	}

	pg := pagination.FromContext(c)
	sess := auth.SessionFromContext(c.Request().Context())
	items, total, err := h.svc.ListByLawyer(c.Request().Context(), sess, lawyerID, f, pg.Limit, pg.Offset)
	if err != nil {
		return scheduling.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
