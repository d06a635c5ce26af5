package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"gonzs/app"
	"gonzs/domain/association"
	"gonzs/domain/core"
	"gonzs/domain/labelset"
	"gonzs/internal"
	"gonzs/internal/config"
	apperrors "gonzs/internal/errors"
	"gonzs/internal/report"
)

// AssociationHandler serves permutation tests, sweeps and replicated sweeps
type AssociationHandler struct {
	service  *app.AssociationService
	defaults config.AnalysisConfig
	limits   config.LimitsConfig
	policy   report.SubstitutionPolicy
	logger   *internal.Logger
}

// NewAssociationHandler creates a new association handler
func NewAssociationHandler(service *app.AssociationService, cfg *config.Config, logger *internal.Logger) *AssociationHandler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if cfg == nil {
		cfg = defaultConfig()
	}
	return &AssociationHandler{
		service:  service,
		defaults: cfg.Analysis,
		limits:   cfg.Limits,
		policy: report.SubstitutionPolicy{
			Threshold: cfg.Report.SubstituteThreshold,
			Value:     cfg.Report.SubstituteValue,
		},
		logger: logger.Component("AssociationHandler"),
	}
}

// RegisterRoutes mounts the handler on router
func (h *AssociationHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/api/v1")
	v1.POST("/test", h.Test)
	v1.POST("/sweep", h.Sweep)
	v1.POST("/replicates", h.Replicates)
	v1.GET("/analyses/:fingerprint", h.GetAnalysis)
	v1.GET("/evaluators", h.ListEvaluators)
}

// AnalysisRequestBody is the JSON body shared by the analysis endpoints.
// Omitted options fall back to the server configuration.
type AnalysisRequestBody struct {
	Query            []int     `json:"query" binding:"required"`
	Reference        []int     `json:"reference" binding:"required"`
	UniverseSize     int       `json:"universe_size"`
	Iterations       int       `json:"iterations"`
	Fractions        []float64 `json:"fractions"`
	Replicates       int       `json:"replicates"`
	Evaluator        string    `json:"evaluator"`
	Seed             *int64    `json:"seed"`
	StrictDegenerate *bool     `json:"strict_degenerate"`
}

func (h *AssociationHandler) toRequest(body AnalysisRequestBody) (app.AnalysisRequest, error) {
	cfg := h.defaults.Config
	if body.Iterations != 0 {
		cfg.Iterations = body.Iterations
	}
	if len(body.Fractions) > 0 {
		cfg.Fractions = body.Fractions
	}
	if body.Replicates != 0 {
		cfg.Replicates = body.Replicates
	}
	if body.Evaluator != "" {
		cfg.Evaluator = body.Evaluator
	}
	if body.Seed != nil {
		cfg.Seed = *body.Seed
	}
	if body.StrictDegenerate != nil {
		cfg.StrictDegenerate = *body.StrictDegenerate
	}

	universeSize := body.UniverseSize
	if universeSize == 0 {
		universeSize = h.defaults.UniverseSize
	}
	if err := h.limits.Check(cfg, universeSize); err != nil {
		return app.AnalysisRequest{}, apperrors.Wrap(err, "request exceeds server limits")
	}
	universe, err := labelset.NewUniverse(universeSize)
	if err != nil {
		return app.AnalysisRequest{}, apperrors.Wrap(err, "invalid universe")
	}

	query, err := labelset.NewWithin(body.Query, universe)
	if err != nil {
		return app.AnalysisRequest{}, apperrors.Wrap(err, "invalid query")
	}
	reference, err := labelset.NewWithin(body.Reference, universe)
	if err != nil {
		return app.AnalysisRequest{}, apperrors.Wrap(err, "invalid reference")
	}

	return app.AnalysisRequest{
		Query:        query,
		Reference:    reference,
		UniverseSize: universeSize,
		Config:       cfg,
	}, nil
}

// bind decodes the body into an analysis request, answering 400 itself on failure
func (h *AssociationHandler) bind(c *gin.Context) (app.AnalysisRequest, bool) {
	var body AnalysisRequestBody
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.limits.MaxBodyBytes)
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error(), "code": apperrors.CodeInvalidInput})
		return app.AnalysisRequest{}, false
	}
	req, err := h.toRequest(body)
	if err != nil {
		h.fail(c, err)
		return app.AnalysisRequest{}, false
	}
	return req, true
}

func (h *AssociationHandler) fail(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": apperrors.CodeOf(err)})
}

// Health reports liveness
func (h *AssociationHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListEvaluators returns the registered evaluation function names
func (h *AssociationHandler) ListEvaluators(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"evaluators": h.service.Evaluators()})
}

// Test runs one permutation test on the full query
func (h *AssociationHandler) Test(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	result, err := h.service.Test(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Sweep runs one replicate of the fraction sweep. ?substitute=true adds the
// table with the configured substitution policy applied.
func (h *AssociationHandler) Sweep(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	result, err := h.service.Sweep(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	if c.Query("substitute") != "true" {
		c.JSON(http.StatusOK, result)
		return
	}
	substituted, changed := h.policy.Apply(result.Table)
	c.JSON(http.StatusOK, gin.H{
		"result":      result,
		"substituted": substituted,
		"policy":      h.policy,
		"changed":     changed,
	})
}

// Replicates runs the replicated sweep. ?format=markdown or ?format=html
// returns the rendered summary instead of JSON.
func (h *AssociationHandler) Replicates(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	result, err := h.service.Replicate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	summary := report.Summarize(result.Collection)
	title := "Replicates " + result.Fingerprint.Short()
	switch c.Query("format") {
	case "markdown":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.RenderMarkdown(title, summary)))
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8", report.RenderHTML(title, summary))
	default:
		c.JSON(http.StatusOK, gin.H{"result": result, "summary": summary})
	}
}

// GetAnalysis returns a memoized result by request fingerprint
func (h *AssociationHandler) GetAnalysis(c *gin.Context) {
	fingerprint, err := core.ParseHash(c.Param("fingerprint"))
	if err != nil {
		h.fail(c, apperrors.Wrap(err, "invalid fingerprint"))
		return
	}
	cached, err := h.service.Lookup(c.Request.Context(), fingerprint)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"fingerprint": cached.Fingerprint,
		"kind":        cached.Kind,
		"analysis_id": cached.AnalysisID,
		"created_at":  cached.CreatedAt,
		"result":      json.RawMessage(cached.Payload),
	})
}

// defaultConfig is used when the handler is built without a loaded configuration
func defaultConfig() *config.Config {
	return &config.Config{
		Analysis: config.AnalysisConfig{Config: association.DefaultConfig()},
		Report:   config.ReportConfig{SubstituteThreshold: 1.96},
		Limits:   config.DefaultLimits(),
	}
}
