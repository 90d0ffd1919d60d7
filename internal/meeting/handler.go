package meeting

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
			meetings.POST("", h.CreateMeeting)
			meetings.GET("/:id", h.GetMeeting)
			meetings.POST("/:id/held", h.MarkHeld)
			meetings.POST("/:id/close", h.Close)
			meetings.POST("/:id/cancel", h.Cancel)
			meetings.POST("/:id/evidence", h.SubmitEvidence)
			meetings.GET("/:id/evidence", h.ListEvidence)
		}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// CreateMeeting godoc
// @Summary      Create a plan meeting
// @Description  Create a meeting in SCHEDULED status for a plan type and scope
// @Tags         meetings
// @Accept       json
// @Produce      json
// @Param        meeting  body      CreateMeetingRequest  true  "Meeting data"
// @Success      201      {object}  Meeting
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /meetings [post]
func (h *Handler) CreateMeeting(c *gin.Context) {
	var req CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	m, err := h.service.CreateMeeting(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

// GetMeeting godoc
// @Summary      Get a meeting
// @Tags         meetings
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Meeting ID"
// @Success      200  {object}  Meeting
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /meetings/{id} [get]
func (h *Handler) GetMeeting(c *gin.Context) {
	m, err := h.service.GetMeeting(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// MarkHeld godoc
// @Summary      Mark a meeting as held
// @Description  Transition a SCHEDULED meeting to HELD and record the held timestamp
// @Tags         meetings
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Meeting ID"
// @Success      200  {object}  Meeting
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      409  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /meetings/{id}/held [post]
func (h *Handler) MarkHeld(c *gin.Context) {
	m, err := h.service.MarkHeld(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Close godoc
// @Summary      Close a meeting
// @Description  Run the enforcement gate and close the meeting when every required rule is satisfied; a denied gate returns 409 with the rule-by-rule decision
// @Tags         meetings
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Meeting ID"
// @Success      200  {object}  models.GateDecision
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      409  {object}  models.GateDecision
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /meetings/{id}/close [post]
func (h *Handler) Close(c *gin.Context) {
	decision, _, err := h.service.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	if !decision.Allowed {
		c.JSON(http.StatusConflict, decision)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// Cancel godoc
// @Summary      Cancel a meeting
// @Description  Cancel a SCHEDULED or HELD meeting; cancellation never runs the enforcement gate
// @Tags         meetings
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Meeting ID"
// @Success      200  {object}  Meeting
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      409  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /meetings/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	m, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// SubmitEvidence godoc
// @Summary      Submit compliance evidence
// @Description  Attach evidence to a meeting; resubmitting the same evidence type replaces the earlier record
// @Tags         meetings
// @Accept       json
// @Produce      json
// @Param        id        path      string                 true  "Meeting ID"
// @Param        evidence  body      SubmitEvidenceRequest  true  "Evidence data"
// @Success      200       {object}  Evidence
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      404       {object}  errors.ErrorResponse
// @Failure      409       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /meetings/{id}/evidence [post]
func (h *Handler) SubmitEvidence(c *gin.Context) {
	var req SubmitEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	ev, err := h.service.SubmitEvidence(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// ListEvidence godoc
// @Summary      List meeting evidence
// @Tags         meetings
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Meeting ID"
// @Success      200  {array}   Evidence
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /meetings/{id}/evidence [get]
func (h *Handler) ListEvidence(c *gin.Context) {
	evidence, err := h.service.ListEvidence(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, evidence)
}
