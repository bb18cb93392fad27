package apihttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"estimator/internal/analyst"
	"estimator/internal/docext"
	"estimator/internal/estimate"
	"estimator/internal/gateway/provider"
	"estimator/internal/logger"
	"estimator/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Router holds the API dependencies.
type Router struct {
	analyst    FeatureAnalyst
	engine     Estimator
	audit      AuditLog
	catalog    CatalogView
	maxUpload  int64
	providerOK bool
	vectorOK   bool
}

// NewRouter builds the API router from the server config.
func NewRouter(cfg ServerConfig) *Router {
	return &Router{
		analyst:    cfg.Analyst,
		engine:     cfg.Engine,
		audit:      cfg.Audit,
		catalog:    cfg.Catalog,
		maxUpload:  int64(cfg.MaxUploadMB) << 20,
		providerOK: cfg.ProviderConfigured,
		vectorOK:   cfg.VectorConfigured,
	}
}

// Register mounts the API under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	group.GET("/health", r.handleHealth)
	group.GET("/features", r.handleFeatures)
	group.POST("/estimate", r.handleEstimate)
	group.POST("/chat", r.handleChat)
	group.GET("/estimates", r.handleEstimateList)
	group.GET("/estimates/:id", r.handleEstimateByID)
}

// handleHealth always answers 200; component states are informational.
func (r *Router) handleHealth(c *gin.Context) {
	catalogSize := 0
	if r.catalog != nil {
		catalogSize = r.catalog.Snapshot().Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "estimator",
		"components": gin.H{
			"provider": r.providerOK,
			"vector":   r.vectorOK,
			"store":    r.audit != nil,
			"catalog":  catalogSize,
		},
	})
}

func (r *Router) handleFeatures(c *gin.Context) {
	if r.catalog == nil {
		c.JSON(http.StatusOK, gin.H{"features": []any{}, "variations": []any{}, "total_count": 0})
		return
	}
	snap := r.catalog.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"features":    snap.Features,
		"variations":  snap.Variations,
		"total_count": snap.Len(),
		"version":     snap.Version,
	})
}

// handleEstimate accepts either a JSON body with "requirements"/"text" or a
// multipart form with a "file" field, and serves a priced feature breakdown.
// An optional hourly_rate overrides the configured rate for this request.
func (r *Router) handleEstimate(c *gin.Context) {
	text, source, hourlyRate, ok := r.readEstimateInput(c)
	if !ok {
		return
	}
	if strings.TrimSpace(text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide project text or upload a document"})
		return
	}

	ctx := c.Request.Context()
	specs, err := r.analyst.ExtractFeatures(ctx, text)
	if err != nil {
		r.writeAnalysisError(c, err)
		return
	}
	summary, err := r.engine.EstimateAt(specs, hourlyRate)
	if err != nil {
		r.writeAnalysisError(c, err)
		return
	}

	requestID := uuid.NewString()
	html := r.analyst.Summarize(ctx, summary)
	if r.audit != nil {
		if err := r.audit.Append(ctx, requestID, source, text, summary); err != nil {
			logger.Errorf("audit append failed for %s: %v", requestID, err)
		}
	}
	c.JSON(http.StatusOK, estimateResponse{
		RequestID: requestID,
		Source:    source,
		Summary:   html,
		Estimate:  summary,
	})
}

// readEstimateInput pulls text from JSON or a multipart upload. A false return
// means the response has already been written.
func (r *Router) readEstimateInput(c *gin.Context) (text, source string, hourlyRate float64, ok bool) {
	contentType := c.GetHeader("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		var req estimateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return "", "", 0, false
		}
		return req.input(), "text", req.HourlyRate, true
	}

	hourlyRate, _ = strconv.ParseFloat(c.PostForm("hourly_rate"), 64)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		// multipart without a file may still carry the requirements as a field
		text = firstForm(c, "requirements", "text")
		if text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart request needs a 'file' or 'requirements' field"})
			return "", "", 0, false
		}
		return text, "text", hourlyRate, true
	}
	if fileHeader.Size > r.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "uploaded file exceeds the size limit",
			"limit": r.maxUpload,
		})
		return "", "", 0, false
	}
	if !docext.Supported(filepathExt(fileHeader.Filename)) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unsupported file type: " + filepathExt(fileHeader.Filename) + " (expected pdf, docx, doc or txt)",
		})
		return "", "", 0, false
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return "", "", 0, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, r.maxUpload+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return "", "", 0, false
	}
	if int64(len(data)) > r.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "uploaded file exceeds the size limit"})
		return "", "", 0, false
	}
	extracted, err := docext.Extract(fileHeader.Filename, data)
	if err != nil {
		var ute *docext.UnsupportedTypeError
		if errors.As(err, &ute) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ute.Error()})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not extract text: " + err.Error()})
		}
		return "", "", 0, false
	}
	if extra := strings.TrimSpace(firstForm(c, "requirements", "text")); extra != "" {
		extracted = extra + "\n\n" + extracted
	}
	return extracted, "file", hourlyRate, true
}

func firstForm(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := c.PostForm(k); v != "" {
			return v
		}
	}
	return ""
}

func (r *Router) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message cannot be empty"})
		return
	}
	history := make([]provider.Message, 0, len(req.History))
	for _, m := range req.History {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		history = append(history, provider.Message{Role: role, Content: m.Content})
	}

	ctx := c.Request.Context()
	reply, err := r.analyst.Chat(ctx, req.Message, history)
	if err != nil {
		r.writeAnalysisError(c, err)
		return
	}
	convID := strings.TrimSpace(req.ConversationID)
	if convID == "" {
		convID = uuid.NewString()
	}
	c.JSON(http.StatusOK, chatResponse{
		Reply:          reply,
		ConversationID: convID,
		Estimate:       r.tryEstimate(ctx, req.Message),
	})
}

// tryEstimate attaches numbers to a chat reply when the message reads like a
// project brief. Best effort: any failure just yields a prose-only reply.
func (r *Router) tryEstimate(ctx context.Context, message string) *estimate.Summary {
	specs, err := r.analyst.ExtractFeatures(ctx, message)
	if err != nil || len(specs) == 0 {
		return nil
	}
	summary, err := r.engine.EstimateAt(specs, 0)
	if err != nil {
		logger.Debugf("chat estimate skipped: %v", err)
		return nil
	}
	return summary
}

func (r *Router) handleEstimateList(c *gin.Context) {
	if r.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "estimate history is not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	recs, err := r.audit.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing estimates failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"estimates": recs})
}

func (r *Router) handleEstimateByID(c *gin.Context) {
	if r.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "estimate history is not configured"})
		return
	}
	rec, err := r.audit.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "estimate not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading estimate failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// writeAnalysisError maps domain errors to status codes: thin input is the
// client's problem, missing provider is ours, anything else is the upstream's.
func (r *Router) writeAnalysisError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, estimate.ErrInsufficientInput):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "could not identify any estimable features in the input"})
	case errors.Is(err, analyst.ErrNoProvider):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model provider is not configured"})
	default:
		logger.Errorf("analysis failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "analysis backend failed, try again later"})
	}
}

func filepathExt(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx == -1 {
		return ""
	}
	return strings.ToLower(name[idx:])
}
