package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chronicle/internal/audit"
	"chronicle/internal/logger"
	"chronicle/internal/routing"
	"chronicle/internal/sourcing"
	"chronicle/pkg/errors"
)

type BaseHandler struct {
	Logger logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

type Handler struct {
	BaseHandler
	Sourcing *sourcing.Service
	Router   *routing.Router
}

func NewHandler(src *sourcing.Service, router *routing.Router, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{Logger: log},
		Sourcing:    src,
		Router:      router,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		events := v1.Group("/events")
		{
			events.POST("", h.AppendEvent)
			events.POST("/query", h.QueryEvents)
		}

		entities := v1.Group("/entities/:entityType/:entityId")
		{
			entities.GET("", h.RebuildEntity)
			entities.GET("/audit", h.GetAuditTrail)
			entities.GET("/audit/export", h.ExportAuditTrail)
			entities.GET("/audit/validate", h.ValidateAuditTrail)
		}

		rules := v1.Group("/rules")
		{
			rules.GET("/routing", h.ListRoutingRules)
			rules.POST("/routing", h.CreateRoutingRule)
			rules.GET("/compliance", h.ListComplianceRules)
			rules.POST("/compliance", h.CreateComplianceRule)
		}

		chains := v1.Group("/chains")
		{
			chains.GET("", h.ListChains)
			chains.POST("", h.CreateChain)
		}

		retention := v1.Group("/retention")
		{
			retention.GET("/policies", h.ListRetentionPolicies)
			retention.POST("/policies", h.CreateRetentionPolicy)
			retention.GET("/stats", h.GetRetentionStats)
		}

		v1.GET("/compliance/report", h.GetComplianceReport)
		v1.GET("/routing/stats", h.GetRoutingStats)
	}
}

// AppendEvent godoc
// @Summary      Append an event
// @Description  Validate and append one event to the log, deriving its audit, compliance and retention records
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        event  body      AppendEventRequest  true  "Event data"
// @Success      201    {object}  sourcing.AppendResult
// @Failure      400    {object}  errors.ErrorResponse
// @Failure      409    {object}  errors.ErrorResponse
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /events [post]
func (h *Handler) AppendEvent(c *gin.Context) {
	var req AppendEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	result, err := h.Sourcing.AppendEventWithAudit(c.Request.Context(), req.ToEvent())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// QueryEvents godoc
// @Summary      Query events
// @Description  Filter, sort and paginate events from the log
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        query  body      QueryRequest  true  "Query definition"
// @Success      200    {object}  query.Result
// @Failure      400    {object}  errors.ErrorResponse
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /events/query [post]
func (h *Handler) QueryEvents(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	result, err := h.Sourcing.Query(c.Request.Context(), req.ToQuery())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RebuildEntity godoc
// @Summary      Rebuild entity state
// @Description  Replay the entity's events in order and return the folded state
// @Tags         entities
// @Produce      json
// @Param        entityType  path      string  true  "Entity type"
// @Param        entityId    path      string  true  "Entity ID"
// @Success      200         {object}  sourcing.RebuildResult
// @Failure      500         {object}  errors.ErrorResponse
// @Router       /entities/{entityType}/{entityId} [get]
func (h *Handler) RebuildEntity(c *gin.Context) {
	result, err := h.Sourcing.RebuildEntityWithAudit(c.Request.Context(), c.Param("entityType"), c.Param("entityId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAuditTrail godoc
// @Summary      Get an entity's audit trail
// @Tags         entities
// @Produce      json
// @Param        entityType  path      string  true  "Entity type"
// @Param        entityId    path      string  true  "Entity ID"
// @Success      200         {object}  event.AuditTrail
// @Router       /entities/{entityType}/{entityId}/audit [get]
func (h *Handler) GetAuditTrail(c *gin.Context) {
	trail := h.Sourcing.Audit().Trail(c.Param("entityType"), c.Param("entityId"))
	c.JSON(http.StatusOK, trail)
}

// ExportAuditTrail godoc
// @Summary      Export an entity's audit trail
// @Description  Export the audit trail as json, xml or csv
// @Tags         entities
// @Produce      json
// @Param        entityType  path      string  true   "Entity type"
// @Param        entityId    path      string  true   "Entity ID"
// @Param        format      query     string  false  "Export format (json, xml, csv)"  default(json)
// @Success      200         {string}  string  "Exported trail"
// @Failure      400         {object}  errors.ErrorResponse
// @Router       /entities/{entityType}/{entityId}/audit/export [get]
func (h *Handler) ExportAuditTrail(c *gin.Context) {
	format := audit.ExportFormat(c.DefaultQuery("format", string(audit.FormatJSON)))

	data, err := h.Sourcing.ExportAuditTrail(c.Request.Context(), c.Param("entityType"), c.Param("entityId"), format)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Data(http.StatusOK, contentTypeFor(format), data)
}

func contentTypeFor(format audit.ExportFormat) string {
	switch format {
	case audit.FormatXML:
		return "application/xml"
	case audit.FormatCSV:
		return "text/csv"
	default:
		return "application/json"
	}
}

// ValidateAuditTrail godoc
// @Summary      Validate an entity's audit trail
// @Description  Check trail ordering, large sequence gaps and entry count against the event log
// @Tags         entities
// @Produce      json
// @Param        entityType  path      string  true  "Entity type"
// @Param        entityId    path      string  true  "Entity ID"
// @Success      200         {object}  event.TrailValidation
// @Failure      500         {object}  errors.ErrorResponse
// @Router       /entities/{entityType}/{entityId}/audit/validate [get]
func (h *Handler) ValidateAuditTrail(c *gin.Context) {
	validation, err := h.Sourcing.ValidateAuditTrail(c.Request.Context(), c.Param("entityType"), c.Param("entityId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, validation)
}

// ListRoutingRules godoc
// @Summary      List routing rules
// @Tags         routing
// @Produce      json
// @Success      200  {array}  routing.Rule
// @Router       /rules/routing [get]
func (h *Handler) ListRoutingRules(c *gin.Context) {
	c.JSON(http.StatusOK, h.Router.Rules().Rules())
}

// CreateRoutingRule godoc
// @Summary      Register a routing rule
// @Tags         routing
// @Accept       json
// @Produce      json
// @Param        rule  body      CreateRoutingRuleRequest  true  "Routing rule"
// @Success      201   {object}  routing.Rule
// @Failure      400   {object}  errors.ErrorResponse
// @Router       /rules/routing [post]
func (h *Handler) CreateRoutingRule(c *gin.Context) {
	var req CreateRoutingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	rule := req.ToRule()
	h.Router.Rules().Add(rule)
	c.JSON(http.StatusCreated, rule)
}

// ListChains godoc
// @Summary      List filter chain names
// @Tags         routing
// @Produce      json
// @Success      200  {array}  string
// @Router       /chains [get]
func (h *Handler) ListChains(c *gin.Context) {
	c.JSON(http.StatusOK, h.Router.Chains().Names())
}

// CreateChain godoc
// @Summary      Register a filter chain
// @Description  Register or replace a named filter chain. Chain names global, entity-{type} and destination-{name} are consulted by the router.
// @Tags         routing
// @Accept       json
// @Produce      json
// @Param        chain  body      CreateChainRequest  true  "Filter chain"
// @Success      201    {object}  routing.FilterChain
// @Failure      400    {object}  errors.ErrorResponse
// @Router       /chains [post]
func (h *Handler) CreateChain(c *gin.Context) {
	var req CreateChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	chain := routing.FilterChain{Name: req.Name, Filters: req.Filters}
	h.Router.Chains().Register(chain)
	c.JSON(http.StatusCreated, chain)
}

// ListComplianceRules godoc
// @Summary      List compliance rules
// @Tags         compliance
// @Produce      json
// @Success      200  {array}  event.ComplianceRule
// @Router       /rules/compliance [get]
func (h *Handler) ListComplianceRules(c *gin.Context) {
	c.JSON(http.StatusOK, h.Sourcing.Compliance().Rules())
}

// CreateComplianceRule godoc
// @Summary      Register a compliance rule
// @Tags         compliance
// @Accept       json
// @Produce      json
// @Param        rule  body      CreateComplianceRuleRequest  true  "Compliance rule"
// @Success      201   {object}  event.ComplianceRule
// @Failure      400   {object}  errors.ErrorResponse
// @Router       /rules/compliance [post]
func (h *Handler) CreateComplianceRule(c *gin.Context) {
	var req CreateComplianceRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	rule := req.ToRule()
	h.Sourcing.Compliance().AddRule(rule)
	c.JSON(http.StatusCreated, rule)
}

// GetComplianceReport godoc
// @Summary      Get the compliance report
// @Description  Aggregate pass/fail counts and per-rule failure details for all checks run so far
// @Tags         compliance
// @Produce      json
// @Success      200  {object}  event.ComplianceReport
// @Router       /compliance/report [get]
func (h *Handler) GetComplianceReport(c *gin.Context) {
	c.JSON(http.StatusOK, h.Sourcing.Compliance().Report())
}

// ListRetentionPolicies godoc
// @Summary      List retention policies
// @Tags         retention
// @Produce      json
// @Success      200  {array}  event.RetentionPolicy
// @Router       /retention/policies [get]
func (h *Handler) ListRetentionPolicies(c *gin.Context) {
	c.JSON(http.StatusOK, h.Sourcing.Retention().Policies())
}

// CreateRetentionPolicy godoc
// @Summary      Register a retention policy
// @Description  Policies are consulted in registration order; the first match wins
// @Tags         retention
// @Accept       json
// @Produce      json
// @Param        policy  body      CreateRetentionPolicyRequest  true  "Retention policy"
// @Success      201     {object}  event.RetentionPolicy
// @Failure      400     {object}  errors.ErrorResponse
// @Router       /retention/policies [post]
func (h *Handler) CreateRetentionPolicy(c *gin.Context) {
	var req CreateRetentionPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	policy := req.ToPolicy()
	h.Sourcing.Retention().AddPolicy(policy)
	c.JSON(http.StatusCreated, policy)
}

// GetRetentionStats godoc
// @Summary      Get retention assignment stats
// @Tags         retention
// @Produce      json
// @Success      200  {object}  event.RetentionStats
// @Router       /retention/stats [get]
func (h *Handler) GetRetentionStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Sourcing.Retention().Stats())
}

// GetRoutingStats godoc
// @Summary      Get router stats
// @Tags         routing
// @Produce      json
// @Success      200  {object}  routing.Stats
// @Router       /routing/stats [get]
func (h *Handler) GetRoutingStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Router.Stats())
}
