package catalog

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
	v1 := router.Group("/api/v1/catalog")
	{
		defs := v1.Group("/rule-definitions")
		{
			defs.GET("", h.ListRuleDefinitions)
			defs.POST("", h.CreateRuleDefinition)
			defs.GET("/:key", h.GetRuleDefinition)
			defs.PATCH("/:key", h.UpdateRuleDefinition)
		}

		types := v1.Group("/evidence-types")
		{
			types.GET("", h.ListEvidenceTypes)
			types.POST("", h.CreateEvidenceType)
		}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// ListRuleDefinitions godoc
// @Summary      List rule definitions
// @Description  Get all rule definitions in the catalog
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Success      200  {array}   RuleDefinition
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /catalog/rule-definitions [get]
func (h *Handler) ListRuleDefinitions(c *gin.Context) {
	defs, err := h.service.ListRuleDefinitions(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, defs)
}

// CreateRuleDefinition godoc
// @Summary      Create a rule definition
// @Description  Create a new rule definition with a stable key and default config
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Param        definition  body      CreateRuleDefinitionRequest  true  "Rule definition data"
// @Success      201         {object}  RuleDefinition
// @Failure      400         {object}  errors.ErrorResponse
// @Failure      409         {object}  errors.ErrorResponse
// @Failure      500         {object}  errors.ErrorResponse
// @Router       /catalog/rule-definitions [post]
func (h *Handler) CreateRuleDefinition(c *gin.Context) {
	var req CreateRuleDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	def, err := h.service.CreateRuleDefinition(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, def)
}

// GetRuleDefinition godoc
// @Summary      Get a rule definition by key
// @Description  Get a rule definition by its stable key
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Param        key  path      string  true  "Rule definition key"
// @Success      200  {object}  RuleDefinition
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /catalog/rule-definitions/{key} [get]
func (h *Handler) GetRuleDefinition(c *gin.Context) {
	def, err := h.service.GetRuleDefinition(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// UpdateRuleDefinition godoc
// @Summary      Update a rule definition
// @Description  Update descriptive fields of a rule definition; key and default config are immutable
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Param        key         path      string                       true  "Rule definition key"
// @Param        definition  body      UpdateRuleDefinitionRequest  true  "Updated fields"
// @Success      200         {object}  RuleDefinition
// @Failure      404         {object}  errors.ErrorResponse
// @Failure      500         {object}  errors.ErrorResponse
// @Router       /catalog/rule-definitions/{key} [patch]
func (h *Handler) UpdateRuleDefinition(c *gin.Context) {
	var req UpdateRuleDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	def, err := h.service.UpdateRuleDefinition(c.Request.Context(), c.Param("key"), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// ListEvidenceTypes godoc
// @Summary      List evidence types
// @Description  Get evidence types, optionally filtered by the plan type they apply to
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Param        plan_type  query     string  false  "Plan type filter (IEP, PLAN504, BIP)"
// @Success      200        {array}   RuleEvidenceType
// @Failure      400        {object}  errors.ErrorResponse
// @Failure      500        {object}  errors.ErrorResponse
// @Router       /catalog/evidence-types [get]
func (h *Handler) ListEvidenceTypes(c *gin.Context) {
	types, err := h.service.ListEvidenceTypes(c.Request.Context(), c.Query("plan_type"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

// CreateEvidenceType godoc
// @Summary      Create an evidence type
// @Description  Create a new evidence type in the catalog
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Param        evidenceType  body      CreateEvidenceTypeRequest  true  "Evidence type data"
// @Success      201           {object}  RuleEvidenceType
// @Failure      400           {object}  errors.ErrorResponse
// @Failure      409           {object}  errors.ErrorResponse
// @Failure      500           {object}  errors.ErrorResponse
// @Router       /catalog/evidence-types [post]
func (h *Handler) CreateEvidenceType(c *gin.Context) {
	var req CreateEvidenceTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	et, err := h.service.CreateEvidenceType(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, et)
}
