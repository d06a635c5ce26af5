package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonzs/adapters/battery"
	"gonzs/adapters/stats/senses"
	"gonzs/app"
	"gonzs/domain/association"
	"gonzs/domain/core"
	"gonzs/internal"
	"gonzs/internal/config"
	"gonzs/internal/testkit"
)

func newRouter(t *testing.T) (*gin.Engine, *testkit.InMemoryResultCache) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := internal.NewLoggerTo(internal.LogLevelError, io.Discard)
	kit := testkit.NewTestKit()
	tester := battery.NewPermutationTester(kit.RNGAdapter())
	tester.SetWorkers(2)
	cache := kit.ResultCache()

	service := app.NewAssociationService(senses.NewSenseEngine(), tester, battery.NewSubsetSampler(), kit.RNGAdapter(), cache, logger)

	cfg := &config.Config{
		Analysis: config.AnalysisConfig{
			Config: association.Config{
				Iterations: 40,
				Fractions:  []float64{0.5, 1.0},
				Replicates: 2,
				Evaluator:  "overlap",
				Seed:       1,
				Workers:    2,
			},
			UniverseSize: 200,
		},
		Report: config.ReportConfig{SubstituteThreshold: 1.96},
		Limits: config.LimitsConfig{
			MaxIterations:   500,
			MaxReplicates:   5,
			MaxFractions:    10,
			MaxUniverseSize: 10000,
			MaxBodyBytes:    1 << 20,
		},
	}

	router := gin.New()
	NewAssociationHandler(service, cfg, logger).RegisterRoutes(router)
	return router, cache
}

func labels(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for l := from; l <= to; l++ {
		out = append(out, l)
	}
	return out
}

func post(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestEvaluators(t *testing.T) {
	router, _ := newRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/evaluators", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "overlap")
	assert.Contains(t, w.Body.String(), "jaccard")
}

func TestPostTest(t *testing.T) {
	router, _ := newRouter(t)
	w := post(t, router, "/api/v1/test", AnalysisRequestBody{Query: labels(1, 40), Reference: labels(21, 80)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result app.TestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 40, result.Outcome.SampleSize)
	assert.Equal(t, 200, result.UniverseSize)
	assert.Equal(t, 40, result.Config.Iterations)
}

func TestPostSweepAndLookup(t *testing.T) {
	router, cache := newRouter(t)
	body := AnalysisRequestBody{Query: labels(1, 40), Reference: labels(21, 80)}

	w := post(t, router, "/api/v1/sweep?substitute=true", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload struct {
		Result      app.SweepResult        `json:"result"`
		Substituted association.SweepTable `json:"substituted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Len(t, payload.Result.Table.Rows, 2)
	assert.Len(t, payload.Substituted.Rows, 2)
	assert.Equal(t, 1, cache.Len())

	get := httptest.NewRecorder()
	router.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+payload.Result.Fingerprint.String(), nil))
	assert.Equal(t, http.StatusOK, get.Code)
	assert.Contains(t, get.Body.String(), `"kind":"sweep"`)

	missing := httptest.NewRecorder()
	router.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+core.NewHash([]byte("missing")).String(), nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Contains(t, missing.Body.String(), "NOT_FOUND")

	malformed := httptest.NewRecorder()
	router.ServeHTTP(malformed, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/deadbeef", nil))
	assert.Equal(t, http.StatusBadRequest, malformed.Code)
	assert.Contains(t, malformed.Body.String(), "INVALID_INPUT")
}

func TestPostReplicates(t *testing.T) {
	router, _ := newRouter(t)
	body := AnalysisRequestBody{Query: labels(1, 40), Reference: labels(21, 80)}

	w := post(t, router, "/api/v1/replicates", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"summary"`)
	assert.Contains(t, w.Body.String(), `"sample_size":20`)

	md := post(t, router, "/api/v1/replicates?format=markdown", body)
	require.Equal(t, http.StatusOK, md.Code)
	assert.True(t, strings.HasPrefix(md.Body.String(), "# Replicates "))

	page := post(t, router, "/api/v1/replicates?format=html", body)
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "<table>")
}

func TestDegenerateIsUnprocessable(t *testing.T) {
	router, _ := newRouter(t)
	strict := true
	body := AnalysisRequestBody{
		Query:            labels(1, 50),
		Reference:        labels(1, 10),
		UniverseSize:     50,
		StrictDegenerate: &strict,
	}

	w := post(t, router, "/api/v1/test", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "DEGENERATE_DISTRIBUTION")

	// without strict mode the flagged outcome is returned with NaN encoded as a string
	body.StrictDegenerate = nil
	w = post(t, router, "/api/v1/test", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"NaN"`)
	assert.Contains(t, w.Body.String(), `"degenerate":true`)
}

func TestBadRequests(t *testing.T) {
	router, _ := newRouter(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing reference", map[string]interface{}{"query": []int{1, 2}}},
		{"duplicate labels", AnalysisRequestBody{Query: []int{1, 1}, Reference: []int{2}}},
		{"unknown evaluator", AnalysisRequestBody{Query: []int{1}, Reference: []int{2}, Evaluator: "nope"}},
		{"bad fraction", AnalysisRequestBody{Query: []int{1}, Reference: []int{2}, Fractions: []float64{1.5}}},
		{"label outside universe", AnalysisRequestBody{Query: []int{1}, Reference: []int{201}}},
		{"too many iterations", AnalysisRequestBody{Query: []int{1}, Reference: []int{2}, Iterations: 501}},
		{"too many replicates", AnalysisRequestBody{Query: []int{1}, Reference: []int{2}, Replicates: 6}},
		{"too many fractions", AnalysisRequestBody{Query: []int{1}, Reference: []int{2}, Fractions: make([]float64, 11)}},
		{"universe too large", AnalysisRequestBody{Query: []int{1}, Reference: []int{2}, UniverseSize: 10001}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, router, "/api/v1/sweep", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), "INVALID_INPUT")
		})
	}
}

func TestOversizedBodyIsRejected(t *testing.T) {
	router, cache := newRouter(t)
	body := AnalysisRequestBody{Query: make([]int, 700000), Reference: []int{2}}

	w := post(t, router, "/api/v1/test", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_INPUT")
	assert.Equal(t, 0, cache.Len())
}
