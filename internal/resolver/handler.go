package resolver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"planguard/internal/logger"
	"planguard/internal/rulepack"
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
		v1.GET("/packs/resolve", h.ResolveActivePack)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// resolveResponse wraps the pack so "no pack applies" is an explicit body,
// not an empty 200.
type resolveResponse struct {
	Pack *rulepack.RulePack `json:"pack"`
}

// ResolveActivePack godoc
// @Summary      Resolve the applicable rule pack
// @Description  Resolve the single active rule pack for a jurisdiction and plan type, most specific scope first
// @Tags         packs
// @Accept       json
// @Produce      json
// @Param        schoolId    query     string  false  "School identifier"
// @Param        districtId  query     string  false  "District identifier"
// @Param        stateCode   query     string  false  "State code"
// @Param        planType    query     string  true   "Plan type (IEP, PLAN504, BIP)"
// @Param        asOf        query     string  false  "Resolution instant (RFC 3339), defaults to now"
// @Success      200  {object}  resolveResponse
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /packs/resolve [get]
func (h *Handler) ResolveActivePack(c *gin.Context) {
	q := Query{
		SchoolID:   c.Query("schoolId"),
		DistrictID: c.Query("districtId"),
		StateCode:  c.Query("stateCode"),
		PlanType:   c.Query("planType"),
	}
	if q.PlanType == "" {
		h.handleError(c, errors.ErrValidation.WithDetail("message", "planType is required"))
		return
	}
	if raw := c.Query("asOf"); raw != "" {
		asOf, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.handleError(c, errors.ErrValidation.WithDetail("message", "asOf must be RFC 3339"))
			return
		}
		q.AsOf = asOf
	}

	pack, err := h.service.ResolveActivePack(c.Request.Context(), q)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resolveResponse{Pack: pack})
}
