package blocking

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lawfirm/booking/internal/domain/scheduling"
	"github.com/lawfirm/booking/internal/platform/auth"
	"github.com/lawfirm/booking/pkg/calendar"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(staff *echo.Group) {
	staff.GET("/lawyers/:id/blocks", h.List)
	staff.POST("/lawyers/:id/blocks", h.BlockDate)
	staff.POST("/lawyers/:id/blocks/range", h.BlockRange)
	staff.POST("/lawyers/:id/blocks/unblock", h.BulkUnblock)
	staff.DELETE("/lawyers/:id/blocks/:date", h.Unblock)
}

func lawyerParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid lawyer id")
	}
	return id, nil
}

type blockDateRequest struct {
	Date   calendar.Date `json:"date"`
	Reason string        `json:"reason"`
}

func (h *Handler) BlockDate(c echo.Context) error {
	lawyerID, err := lawyerParam(c)
	if err != nil {
		return err
	}
	var req blockDateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess := auth.SessionFromContext(c.Request().Context())
	res, err := h.svc.BlockDate(c.Request().Context(), sess, BlockDateCommand{
		LawyerID: lawyerID, Date: req.Date, Reason: req.Reason,
	})
	if err != nil {
		return scheduling.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

type blockRangeRequest struct {
	StartDate calendar.Date `json:"start_date"`
	EndDate   calendar.Date `json:"end_date"`
	Reason    string        `json:"reason"`
}

func (h *Handler) BlockRange(c echo.Context) error {
	lawyerID, err := lawyerParam(c)
	if err != nil {
		return err
	}
	var req blockRangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess := auth.SessionFromContext(c.Request().Context())
	res, err := h.svc.BlockRange(c.Request().Context(), sess, BlockRangeCommand{
		LawyerID: lawyerID, Start: req.StartDate, End: req.EndDate, Reason: req.Reason,
	})
	if err != nil {
		return scheduling.HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Unblock(c echo.Context) error {
	lawyerID, err := lawyerParam(c)
	if err != nil {
		return err
	}
	d, err := calendar.ParseDate(c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date")
	}
	sess := auth.SessionFromContext(c.Request().Context())
	res, err := h.svc.Unblock(c.Request().Context(), sess, UnblockCommand{LawyerID: lawyerID, Date: d})
	if err != nil {
		return scheduling.HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

type bulkUnblockRequest struct {
	Dates []calendar.Date `json:"dates"`
}

func (h *Handler) BulkUnblock(c echo.Context) error {
	lawyerID, err := lawyerParam(c)
	if err != nil {
		return err
	}
	var req bulkUnblockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess := auth.SessionFromContext(c.Request().Context())
	res, err := h.svc.BulkUnblock(c.Request().Context(), sess, BulkUnblockCommand{LawyerID: lawyerID, Dates: req.Dates})
	if err != nil {
		return scheduling.HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c echo.Context) error {
	lawyerID, err := lawyerParam(c)
	if err != nil {
		return err
	}
	v := &scheduling.ValidationError{}
	from := scheduling.QueryDate(c, "from", v)
	to := scheduling.QueryDate(c, "to", v)
	if err := v.Err(); err != nil {
		return scheduling.HTTPError(err)
	}
	sess := auth.SessionFromContext(c.Request().Context())
	blocks, err := h.svc.ListBlocked(c.Request().Context(), sess, lawyerID, from, to)
	if err != nil {
		return scheduling.HTTPError(err)
	}
	return c.JSON(http.StatusOK, blocks)
}
