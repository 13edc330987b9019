package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ericksa/lexiguard/internal/analysis"
	"github.com/ericksa/lexiguard/internal/audit"
	"github.com/ericksa/lexiguard/internal/config"
	"github.com/ericksa/lexiguard/internal/metrics"
	"github.com/ericksa/lexiguard/internal/pipeline"
	"github.com/ericksa/lexiguard/internal/store"
	"github.com/ericksa/lexiguard/pkg/mcp"
)

const contractText = "The Provider shall indemnify the Client against all losses. " +
	"Payment is due within thirty days of invoice. The warranty period is twelve months."

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	st := store.NewMemoryStore()
	m := metrics.New()
	auditor := audit.NewAuditor(st, zap.NewNop())
	svc := pipeline.NewService(st,
		analysis.NewClassifier(nil, nil, nil),
		analysis.NewSegmenter(analysis.NewRuleDetector(), analysis.DefaultMinClauseLength),
		pipeline.WithAuditor(auditor),
		pipeline.WithMetrics(m))
	tools := mcp.NewHandler(svc, auditor, zap.NewNop(), "test")
	return NewServer(cfg, svc, tools, m, zap.NewNop()).Router()
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return do(t, h, req)
}

func upload(t *testing.T, h http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/analyze/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return do(t, h, req)
}

func decodeAnalyze(t *testing.T, rec *httptest.ResponseRecorder) analyzeResponse {
	t.Helper()
	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["error"]
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(t, nil), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"LexiGuard API"}`, rec.Body.String())
}

func TestAnalyze(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := postJSON(t, h, "/analyze", map[string]string{"text": contractText, "filename": "msa.txt"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeAnalyze(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, 55, resp.RiskScore)
	assert.Equal(t, "Found 1 high-risk clauses.", resp.Summary)
	require.Len(t, resp.Details, 2)
	assert.Equal(t, analysis.LevelHigh, resp.Details[0].Level)
	assert.Equal(t, analysis.GeneralRiskType, resp.Details[0].Type)
	assert.NotEmpty(t, resp.ID)
	assert.False(t, resp.Duplicate)

	rec = postJSON(t, h, "/analyze", map[string]string{"text": contractText})
	require.Equal(t, http.StatusOK, rec.Code)
	again := decodeAnalyze(t, rec)
	assert.True(t, again.Duplicate)
	assert.Equal(t, resp.ID, again.ID)
}

func TestAnalyze_Validation(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := postJSON(t, h, "/analyze", map[string]string{"filename": "a.txt"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No text provided", errorOf(t, rec))

	rec = postJSON(t, h, "/analyze", map[string]string{"text": "  \n "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON body", errorOf(t, rec))
}

func TestAnalyze_Preflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := do(t, newTestRouter(t, nil), req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUpload(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := upload(t, h, "nda.txt", []byte(contractText))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeAnalyze(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, 55, resp.RiskScore)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/contracts/"+resp.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stored store.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, "nda.txt", stored.Filename)
	assert.Equal(t, "upload", stored.Source)
}

func TestUpload_Errors(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := upload(t, h, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", errorOf(t, rec))

	rec = upload(t, h, "sheet.xlsx", []byte("cells"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = upload(t, h, "broken.docx", []byte("not a zip archive"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = upload(t, h, "empty.txt", []byte{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.Server.MaxUploadSize = 64
	h := newTestRouter(t, cfg)

	rec := upload(t, h, "big.txt", bytes.Repeat([]byte("indemnify "), 100))
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}, rec.Code)
}

func TestAnalyze_BodyTooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.Server.MaxUploadSize = 64
	h := newTestRouter(t, cfg)

	rec := postJSON(t, h, "/analyze", map[string]string{"text": strings.Repeat("indemnify ", 100)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request body is too large", errorOf(t, rec))

	rec = postJSON(t, h, "/tools/analyze_contract", map[string]string{"text": strings.Repeat("indemnify ", 100)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = postJSON(t, h, "/analyze", map[string]string{"text": "short"})
	assert.NotEqual(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestContracts(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/contracts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	first := decodeAnalyze(t, postJSON(t, h, "/analyze", map[string]string{"text": contractText, "filename": "a.txt"}))
	second := decodeAnalyze(t, postJSON(t, h, "/analyze", map[string]string{"text": "The Supplier may terminate this agreement at any time.", "filename": "b.txt"}))

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/contracts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []contractSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, "a.txt", list[1].Filename)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/contracts/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContractReport(t *testing.T) {
	h := newTestRouter(t, nil)
	resp := decodeAnalyze(t, postJSON(t, h, "/analyze", map[string]string{"text": contractText, "filename": "msa.txt"}))

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/contracts/"+resp.ID+"/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Contract Risk Analysis Report")
	assert.Contains(t, body, "File: msa.txt")
	assert.Contains(t, body, "Overall Risk Score: 55")
	assert.Contains(t, body, "- General Risk (High)")

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/contracts/nope/report", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAudit(t *testing.T) {
	h := newTestRouter(t, nil)
	postJSON(t, h, "/analyze", map[string]string{"text": contractText})
	postJSON(t, h, "/analyze", map[string]string{"text": contractText})

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/audit", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var events []store.AuditEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionDuplicateDetected, events[0].Action)
	assert.Equal(t, audit.ActionAnalyzeContract, events[1].Action)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/audit?limit=1", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 1)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/audit?limit=lots", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKeywords(t *testing.T) {
	rec := do(t, newTestRouter(t, nil), httptest.NewRequest(http.MethodGet, "/keywords", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var sets []analysis.KeywordSet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sets))
	require.Len(t, sets, 3)
	assert.Equal(t, analysis.LevelHigh, sets[0].Level)
	assert.Equal(t, analysis.LevelMedium, sets[1].Level)
	assert.Equal(t, analysis.LevelLow, sets[2].Level)
}

func TestTools(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/tools", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed map[string][]mcp.ToolDef
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed["tools"], 4)

	rec = postJSON(t, h, "/tools/analyze_contract", map[string]string{"text": contractText})
	require.Equal(t, http.StatusOK, rec.Code)
	var result mcp.AnalyzeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 55, result.RiskScore)

	rec = postJSON(t, h, "/tools/drop_tables", map[string]string{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, nil)
	postJSON(t, h, "/analyze", map[string]string{"text": contractText})

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `lexiguard_analyses_total{outcome="analyzed"} 1`)
	assert.Contains(t, rec.Body.String(), `lexiguard_http_requests_total{method="POST",route="/analyze",status="200"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	rec := do(t, newTestRouter(t, cfg), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfigureRedactsSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.MinIO.SecretKey = "super-secret"
	rec := do(t, newTestRouter(t, cfg), httptest.NewRequest(http.MethodGet, "/configure", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "super-secret")
}
