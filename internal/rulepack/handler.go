package rulepack

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"planguard/internal/constants"
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
		packs := v1.Group("/packs")
		{
			packs.GET("", h.ListPacks)
			packs.POST("", h.CreatePack)
			packs.GET("/:id", h.GetPack)
			packs.PUT("/:id/rules", h.SetRules)
			packs.POST("/:id/activate", h.Activate)
			packs.POST("/:id/deactivate", h.Deactivate)
		}

		rules := v1.Group("/pack-rules")
		{
			rules.PUT("/:id/evidence-requirements", h.SetEvidenceRequirements)
		}

		audit := v1.Group("/audit")
		{
			audit.GET("/packs", h.GetAuditLogs)
		}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// ListPacks godoc
// @Summary      List rule packs
// @Description  Get rule packs, optionally filtered by scope and plan type
// @Tags         rule-packs
// @Accept       json
// @Produce      json
// @Param        scope_type  query     string  false  "Scope type (STATE, DISTRICT, SCHOOL)"
// @Param        scope_id    query     string  false  "Scope identifier"
// @Param        plan_type   query     string  false  "Plan type (IEP, PLAN504, BIP, ALL)"
// @Param        active      query     bool    false  "Only active packs"
// @Success      200         {array}   RulePack
// @Failure      500         {object}  errors.ErrorResponse
// @Router       /packs [get]
func (h *Handler) ListPacks(c *gin.Context) {
	filter := PackFilter{
		ScopeType:  c.Query("scope_type"),
		ScopeID:    c.Query("scope_id"),
		PlanType:   c.Query("plan_type"),
		ActiveOnly: c.Query("active") == "true",
	}

	packs, err := h.service.ListPacks(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, packs)
}

// CreatePack godoc
// @Summary      Create a rule pack
// @Description  Create a new rule pack; the version is assigned per scope key, and an active pack atomically deactivates its siblings
// @Tags         rule-packs
// @Accept       json
// @Produce      json
// @Param        pack  body      CreatePackRequest  true  "Rule pack data"
// @Success      201   {object}  RulePack
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      409   {object}  errors.ErrorResponse
// @Failure      500   {object}  errors.ErrorResponse
// @Router       /packs [post]
func (h *Handler) CreatePack(c *gin.Context) {
	var req CreatePackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	pack, err := h.service.CreatePack(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, pack)
}

// GetPack godoc
// @Summary      Get a rule pack
// @Description  Get a rule pack with its rules and evidence requirements
// @Tags         rule-packs
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Pack ID"
// @Success      200  {object}  RulePack
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /packs/{id} [get]
func (h *Handler) GetPack(c *gin.Context) {
	pack, err := h.service.GetPack(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, pack)
}

// SetRules godoc
// @Summary      Replace a pack's rule set
// @Description  Full-replace the pack's rules in one transaction; callers pass the complete desired rule set, not a diff
// @Tags         rule-packs
// @Accept       json
// @Produce      json
// @Param        id     path      string           true  "Pack ID"
// @Param        rules  body      SetRulesRequest  true  "Complete rule set"
// @Success      200    {object}  RulePack
// @Failure      400    {object}  errors.ErrorResponse
// @Failure      404    {object}  errors.ErrorResponse
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /packs/{id}/rules [put]
func (h *Handler) SetRules(c *gin.Context) {
	var req SetRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	pack, err := h.service.SetRules(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, pack)
}

// SetEvidenceRequirements godoc
// @Summary      Replace a pack rule's evidence requirements
// @Description  Full-replace the evidence requirements of one pack rule in one transaction
// @Tags         rule-packs
// @Accept       json
// @Produce      json
// @Param        id            path      string                          true  "Pack rule ID"
// @Param        requirements  body      SetEvidenceRequirementsRequest  true  "Complete requirement set"
// @Success      200           {object}  PackRule
// @Failure      400           {object}  errors.ErrorResponse
// @Failure      404           {object}  errors.ErrorResponse
// @Failure      500           {object}  errors.ErrorResponse
// @Router       /pack-rules/{id}/evidence-requirements [put]
func (h *Handler) SetEvidenceRequirements(c *gin.Context) {
	var req SetEvidenceRequirementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	rule, err := h.service.SetEvidenceRequirements(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// Activate godoc
// @Summary      Activate a rule pack
// @Description  Activate the pack, atomically deactivating any sibling pack for the same scope key
// @Tags         rule-packs
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Pack ID"
// @Success      200  {object}  RulePack
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /packs/{id}/activate [post]
func (h *Handler) Activate(c *gin.Context) {
	pack, err := h.service.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, pack)
}

// Deactivate godoc
// @Summary      Deactivate a rule pack
// @Description  Deactivate the pack, leaving its scope key with no enforcement
// @Tags         rule-packs
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Pack ID"
// @Success      200  {object}  RulePack
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /packs/{id}/deactivate [post]
func (h *Handler) Deactivate(c *gin.Context) {
	pack, err := h.service.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, pack)
}

// GetAuditLogs godoc
// @Summary      Get pack audit logs
// @Description  Get the audit trail of pack mutations, optionally for one pack
// @Tags         audit
// @Accept       json
// @Produce      json
// @Param        pack_id  query     string  false  "Filter by pack ID"
// @Param        limit    query     int     false  "Maximum number of logs to return (1-1000)" default(100)
// @Success      200      {array}   PackAuditLog
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /audit/packs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	packID := c.Query("pack_id")
	var packIDPtr *string
	if packID != "" {
		packIDPtr = &packID
	}

	logs, err := h.service.GetAuditLogs(c.Request.Context(), packIDPtr, parseLimit(c.Query("limit")))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}
