package enforcement

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"planguard/internal/logger"
	"planguard/pkg/errors"
)

type Handler struct {
	service Service
	logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		meetings := v1.Group("/meetings")
		{
			meetings.GET("/:id/due-dates", h.GetDueDates)
			meetings.GET("/:id/enforcement-report", h.GetReport)
			meetings.GET("/:id/gates/close", h.CheckCloseGate)
			meetings.GET("/:id/gates/implement", h.CheckImplementGate)
		}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// GetDueDates godoc
// @Summary      Get regulatory due dates
// @Description  Derive per-rule deadlines from the meeting's scheduled date and its resolved rule pack
// @Tags         enforcement
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Meeting ID"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /meetings/{id}/due-dates [get]
func (h *Handler) GetDueDates(c *gin.Context) {
	dueDates, err := h.service.DueDates(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dueDates)
}

// GetReport godoc
// @Summary      Get the enforcement report
// @Description  Evaluate the meeting's evidence against its rule pack without gating any transition
// @Tags         enforcement
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Meeting ID"
// @Success      200  {object}  models.EnforcementReport
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /meetings/{id}/enforcement-report [get]
func (h *Handler) GetReport(c *gin.Context) {
	report, err := h.service.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// CheckCloseGate godoc
// @Summary      Check the meeting-close gate
// @Description  Report whether the meeting may transition to CLOSED; denial reasons distinguish workflow preconditions from missing evidence
// @Tags         enforcement
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Meeting ID"
// @Success      200  {object}  models.GateDecision
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /meetings/{id}/gates/close [get]
func (h *Handler) CheckCloseGate(c *gin.Context) {
	decision, err := h.service.CanCloseMeeting(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// CheckImplementGate godoc
// @Summary      Check the plan-implementation gate
// @Description  Report whether the plan may be implemented, including the fixed initial-IEP consent precondition
// @Tags         enforcement
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Meeting ID"
// @Success      200  {object}  models.GateDecision
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /meetings/{id}/gates/implement [get]
func (h *Handler) CheckImplementGate(c *gin.Context) {
	decision, err := h.service.CanImplementPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}
