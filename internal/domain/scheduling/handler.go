package scheduling

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lawfirm/booking/internal/platform/auth"
	"github.com/lawfirm/booking/pkg/calendar"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the availability reads on public and rule
// management on staff. readMW is applied to the cacheable reads only.
func (h *Handler) RegisterRoutes(public, staff *echo.Group, readMW ...echo.MiddlewareFunc) {
	public.GET("/availability", h.GetAvailability, readMW...)
	public.GET("/availability/check", h.CheckAvailability)
	public.GET("/time_slots", h.GetTimeSlots, readMW...)

	staff.GET("/lawyers/:id/rules", h.ListRules)
	staff.POST("/lawyers/:id/rules", h.CreateRule)
	staff.DELETE("/lawyers/:id/rules/:rule_id", h.DeactivateRule)
}

func (h *Handler) GetAvailability(c echo.Context) error {
	v := &ValidationError{}
	lawyerID := QueryUUID(c, "lawyer", v)

	var req WindowRequest
	req.StartDate = QueryDate(c, "start_date", v)
	req.EndDate = QueryDate(c, "end_date", v)
	if raw := c.QueryParam("weeks"); raw != "" {
		weeks, err := strconv.Atoi(raw)
		if err != nil || weeks < 1 {
			v.Add("weeks", "must be a positive integer")
		}
		req.Weeks = weeks
	}
	if err := v.Err(); err != nil {
		return HTTPError(err)
	}

	res, err := h.svc.ResolveAvailability(c.Request().Context(), lawyerID, req)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GetTimeSlots(c echo.Context) error {
	v := &ValidationError{}
	lawyerID := QueryUUID(c, "lawyer", v)
	if c.QueryParam("date") == "" {
		v.Add("date", "is required")
	}
	if err := v.Err(); err != nil {
		return HTTPError(err)
	}
	list, err := h.svc.ResolveTimeSlots(c.Request().Context(), lawyerID, c.QueryParam("date"))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) CheckAvailability(c echo.Context) error {
	v := &ValidationError{}
	lawyerID := QueryUUID(c, "lawyer", v)
	if err := v.Err(); err != nil {
		return HTTPError(err)
	}
	check, err := h.svc.CheckAvailability(c.Request().Context(), lawyerID, c.QueryParam("date"), c.QueryParam("time"))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, check)
}

// -- Rule management --

type ruleRequest struct {
	Kind                RuleKind            `json:"kind"`
	Weekdays            calendar.WeekdaySet `json:"weekdays"`
	SpecificDate        *calendar.Date      `json:"specific_date"`
	StartTime           *calendar.ClockTime `json:"start_time"`
	EndTime             *calendar.ClockTime `json:"end_time"`
	MaxAppointments     int                 `json:"max_appointments"`
	SlotDurationMinutes int                 `json:"slot_duration_minutes"`
}

func (h *Handler) CreateRule(c echo.Context) error {
	lawyerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lawyer id")
	}
	var req ruleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v := &ValidationError{}
	if req.StartTime == nil {
		v.Add("start_time", "is required")
	}
	if req.EndTime == nil {
		v.Add("end_time", "is required")
	}
	if err := v.Err(); err != nil {
		return HTTPError(err)
	}

	rule := &Rule{
		LawyerID:            lawyerID,
		Kind:                req.Kind,
		Weekdays:            req.Weekdays,
		SpecificDate:        req.SpecificDate,
		StartTime:           *req.StartTime,
		EndTime:             *req.EndTime,
		MaxAppointments:     req.MaxAppointments,
		SlotDurationMinutes: req.SlotDurationMinutes,
	}
	sess := auth.SessionFromContext(c.Request().Context())
	if err := h.svc.CreateRule(c.Request().Context(), sess, rule); err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, rule)
}

func (h *Handler) ListRules(c echo.Context) error {
	lawyerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lawyer id")
	}
	sess := auth.SessionFromContext(c.Request().Context())
	rules, err := h.svc.ListRules(c.Request().Context(), sess, lawyerID)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, rules)
}

func (h *Handler) DeactivateRule(c echo.Context) error {
	lawyerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lawyer id")
	}
	ruleID, err := uuid.Parse(c.Param("rule_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid rule id")
	}
	sess := auth.SessionFromContext(c.Request().Context())
	if err := h.svc.DeactivateRule(c.Request().Context(), sess, lawyerID, ruleID); err != nil {
		return HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// QueryUUID reads a required uuid query parameter, recording a field error
// in v when it is missing or malformed.
func QueryUUID(c echo.Context, name string, v *ValidationError) uuid.UUID {
	raw := c.QueryParam(name)
	if raw == "" {
		v.Add(name, "is required")
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		v.Add(name, "must be a uuid")
		return uuid.Nil
	}
	return id
}

// QueryDate reads an optional YYYY-MM-DD query parameter.
func QueryDate(c echo.Context, name string, v *ValidationError) *calendar.Date {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		v.Add(name, "must be a valid YYYY-MM-DD date")
		return nil
	}
	return &d
}
