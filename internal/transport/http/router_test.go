package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"estimator/internal/analyst"
	"estimator/internal/catalog"
	"estimator/internal/estimate"
	"estimator/internal/gateway/provider"
	"estimator/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnalyst struct {
	specs    []estimate.FeatureSpec
	extract  error
	chatOut  string
	chatErr  error
	lastText string
}

func (s *stubAnalyst) ExtractFeatures(ctx context.Context, text string) ([]estimate.FeatureSpec, error) {
	s.lastText = text
	return s.specs, s.extract
}

func (s *stubAnalyst) Summarize(ctx context.Context, sum *estimate.Summary) string {
	return "<b>summary</b>"
}

func (s *stubAnalyst) Chat(ctx context.Context, message string, history []provider.Message) (string, error) {
	return s.chatOut, s.chatErr
}

type stubEngine struct {
	sum      *estimate.Summary
	err      error
	lastRate float64
}

func (s *stubEngine) EstimateAt(specs []estimate.FeatureSpec, hourlyRate float64) (*estimate.Summary, error) {
	s.lastRate = hourlyRate
	return s.sum, s.err
}

type stubAudit struct {
	appended []string
	recs     []store.EstimateRecord
}

func (s *stubAudit) Append(ctx context.Context, requestID, source, input string, sum *estimate.Summary) error {
	s.appended = append(s.appended, requestID)
	return nil
}

func (s *stubAudit) List(ctx context.Context, limit int) ([]store.EstimateRecord, error) {
	return s.recs, nil
}

func (s *stubAudit) Get(ctx context.Context, requestID string) (*store.EstimateRecord, error) {
	for i := range s.recs {
		if s.recs[i].RequestID == requestID {
			return &s.recs[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func newTestServer(t *testing.T, a FeatureAnalyst, e Estimator, audit AuditLog) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Addr:        ":0",
		Analyst:     a,
		Engine:      e,
		Audit:       audit,
		MaxUploadMB: 1,
	})
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func happyEstimateDeps() (*stubAnalyst, *stubEngine, *stubAudit) {
	return &stubAnalyst{specs: []estimate.FeatureSpec{{Name: "Login"}}},
		&stubEngine{sum: &estimate.Summary{TotalTimeHours: 32, TotalCost: 1152}},
		&stubAudit{}
}

func TestHealthAlways200(t *testing.T) {
	a, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)
	w := doJSON(t, srv, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"store":false`)
}

func TestFeaturesEndpoint(t *testing.T) {
	a, e, _ := happyEstimateDeps()
	reg, err := catalog.NewRegistry("")
	require.NoError(t, err)
	srv, err := NewServer(ServerConfig{
		Addr:        ":0",
		Analyst:     a,
		Engine:      e,
		Catalog:     reg,
		MaxUploadMB: 1,
	})
	require.NoError(t, err)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/features", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "User Authentication")
	assert.Contains(t, w.Body.String(), `"total_count"`)
	assert.Contains(t, w.Body.String(), "mvp")
}

func TestEstimateFromText(t *testing.T) {
	a, e, audit := happyEstimateDeps()
	srv := newTestServer(t, a, e, audit)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/estimate", estimateRequest{Text: "build a shop"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp estimateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "text", resp.Source)
	assert.Equal(t, "<b>summary</b>", resp.Summary)
	assert.Equal(t, 32.0, resp.Estimate.TotalTimeHours)
	assert.Equal(t, "build a shop", a.lastText)
	assert.Len(t, audit.appended, 1)
}

func TestEstimateRequirementsAliasAndRate(t *testing.T) {
	a, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/estimate",
		map[string]any{"requirements": "a crm", "hourly_rate": 55})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a crm", a.lastText)
	assert.Equal(t, 55.0, e.lastRate)
}

func TestEstimateMultipartTextField(t *testing.T) {
	a, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("requirements", "an inventory tool"))
	require.NoError(t, mw.WriteField("hourly_rate", "45"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/estimate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "an inventory tool", a.lastText)
	assert.Equal(t, 45.0, e.lastRate)
}

func TestEstimateEmptyText(t *testing.T) {
	a, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)
	w := doJSON(t, srv, http.MethodPost, "/api/v1/estimate", estimateRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEstimateInsufficientInput(t *testing.T) {
	a := &stubAnalyst{extract: estimate.ErrInsufficientInput}
	_, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)
	w := doJSON(t, srv, http.MethodPost, "/api/v1/estimate", estimateRequest{Text: "hmm"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestEstimateProviderDown(t *testing.T) {
	a := &stubAnalyst{extract: errors.New("status=500: upstream sad")}
	_, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)
	w := doJSON(t, srv, http.MethodPost, "/api/v1/estimate", estimateRequest{Text: "a portal"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestEstimateNoProvider(t *testing.T) {
	a := &stubAnalyst{extract: analyst.ErrNoProvider}
	_, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)
	w := doJSON(t, srv, http.MethodPost, "/api/v1/estimate", estimateRequest{Text: "a portal"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestEstimateFromTxtUpload(t *testing.T) {
	a, e, audit := happyEstimateDeps()
	srv := newTestServer(t, a, e, audit)

	body, contentType := multipartUpload(t, "file", "brief.txt", []byte("a booking site with payments"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/estimate", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp estimateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "file", resp.Source)
	assert.Equal(t, "a booking site with payments", a.lastText)
}

func TestEstimateUploadCombinesFormText(t *testing.T) {
	a, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("requirements", "also needs an admin panel"))
	fw, err := mw.CreateFormFile("file", "brief.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("a booking site"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/estimate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, a.lastText, "also needs an admin panel")
	assert.Contains(t, a.lastText, "a booking site")
}

func TestEstimateUnsupportedUpload(t *testing.T) {
	a, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)

	body, contentType := multipartUpload(t, "file", "photo.png", []byte("png bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/estimate", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), ".png")
}

func TestEstimateUploadTooLarge(t *testing.T) {
	a, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)

	big := bytes.Repeat([]byte("x"), 2<<20) // 2 MiB against a 1 MiB cap
	body, contentType := multipartUpload(t, "file", "brief.txt", big)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/estimate", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestEstimateMultipartWithoutFile(t *testing.T) {
	a, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)

	body, contentType := multipartUpload(t, "document", "brief.txt", []byte("text"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/estimate", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat(t *testing.T) {
	a := &stubAnalyst{chatOut: "<b>about 3 weeks</b>"}
	_, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/chat", chatRequest{
		Message: "how long for a shop",
		History: []chatMessage{{Role: "user", Content: "hi"}, {Role: "system", Content: "dropped"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "about 3 weeks")

	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ConversationID)
	assert.Nil(t, resp.Estimate, "no extracted features means no attached numbers")
}

func TestChatEmbedsEstimate(t *testing.T) {
	a := &stubAnalyst{
		chatOut: "<b>here are the numbers</b>",
		specs:   []estimate.FeatureSpec{{Name: "Login"}},
	}
	_, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/chat", chatRequest{Message: "estimate a login portal"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Estimate)
	assert.Equal(t, 32.0, resp.Estimate.TotalTimeHours)
}

func TestChatEstimateIsBestEffort(t *testing.T) {
	a := &stubAnalyst{chatOut: "<b>hard to say</b>", extract: errors.New("upstream sad")}
	_, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/chat", chatRequest{Message: "estimate something vague"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Reply, "hard to say")
	assert.Nil(t, resp.Estimate)
}

func TestChatEchoesConversationID(t *testing.T) {
	a := &stubAnalyst{chatOut: "<b>sure</b>"}
	_, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/chat", chatRequest{
		Message:        "and with payments?",
		ConversationID: "conv-42",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"conversation_id":"conv-42"`)
}

func TestChatEmptyMessage(t *testing.T) {
	a, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)
	w := doJSON(t, srv, http.MethodPost, "/api/v1/chat", chatRequest{Message: " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEstimatesEndpointsWithoutStore(t *testing.T) {
	a, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/estimates", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/estimates/abc", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestEstimatesListAndGet(t *testing.T) {
	a, e, audit := happyEstimateDeps()
	audit.recs = []store.EstimateRecord{{RequestID: "req-1", Source: "text"}}
	srv := newTestServer(t, a, e, audit)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/estimates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "req-1")

	w = doJSON(t, srv, http.MethodGet, "/api/v1/estimates/req-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/estimates/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	a, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/estimate", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestInvalidJSONBody(t *testing.T) {
	a, e, _ := happyEstimateDeps()
	srv := newTestServer(t, a, e, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/estimate", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
