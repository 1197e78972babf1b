package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"spend-insight/internal/app"
	"spend-insight/internal/cache"
	"spend-insight/internal/httputil"
	"spend-insight/internal/ingest"
	"spend-insight/internal/insight"
	"spend-insight/internal/queue"
	"spend-insight/internal/statement"
)

type insightRequest struct {
	Question string `json:"question" validate:"required,min=3,max=500"`
}

type ingestTaskPayload struct {
	IDs []string `json:"ids"`
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	r := httputil.NewRouter(deps.Log)

	r.Post("/api/insight", insightHandler(deps))
	r.Post("/api/ingest", ingestHandler(deps))
	r.Post("/api/ingest/async", ingestAsyncHandler(deps))
	r.Post("/api/statements/import", importHandler(deps))
	r.Get("/api/debug/peek", peekHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps))

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("api listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("server error", "err", err)
	}
}

func insightHandler(deps app.Deps) http.HandlerFunc {
	pipeline := insight.New(deps.Log, deps.Embedder, deps.Index, deps.LLM)

	return func(w http.ResponseWriter, r *http.Request) {
		var req insightRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		ctx := r.Context()

		cacheKey := cache.GenerateCacheKey(req.Question)
		if cached, err := deps.Cache.GetInsight(ctx, cacheKey); err == nil && cached != nil {
			deps.Log.Info("cache hit", "question", req.Question)
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"insight": cached.Insight,
				"cached":  true,
			})
			return
		}

		result, err := pipeline.Run(ctx, req.Question)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to generate insight", err, http.StatusInternalServerError)
			return
		}

		// Sentinel responses are not cached; they describe the current
		// (possibly empty) index state, which the next ingest changes.
		if result != insight.SentinelNoExpenses && result != insight.SentinelNoInsight {
			cacheTTL := time.Duration(deps.Config.CacheTTL) * time.Second
			entry := &cache.InsightResult{Insight: result, CreatedAt: time.Now()}
			if err := deps.Cache.SetInsight(ctx, cacheKey, entry, cacheTTL); err != nil {
				deps.Log.Warn("failed to cache insight", "err", err)
			}
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"insight": result,
			"cached":  false,
		})
	}
}

func ingestHandler(deps app.Deps) http.HandlerFunc {
	pipeline := ingest.New(deps.Log, deps.Records, deps.Embedder, deps.Index)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		res, err := pipeline.Run(ctx)
		if err != nil {
			httputil.Fail(deps.Log, w, "ingestion failed", err, http.StatusInternalServerError)
			return
		}
		if err := deps.Cache.InvalidateAll(ctx); err != nil {
			deps.Log.Warn("failed to invalidate insight cache", "err", err)
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

func ingestAsyncHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task := queue.NewIngestTask(nil)
		if err := queue.EnqueueWithRetry(r.Context(), deps.Queue, task, 3, 200*time.Millisecond); err != nil {
			httputil.Fail(deps.Log, w, "failed to enqueue ingestion; please retry", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"task_id": task.ID.String(),
		})
	}
}

func importHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".pdf" && ext != ".txt" && ext != ".csv" {
			httputil.Fail(deps.Log, w, "unsupported file type (only PDF, TXT and CSV allowed)", nil, http.StatusBadRequest)
			return
		}

		content, err := io.ReadAll(file)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusInternalServerError)
			return
		}
		text := extractText(header.Filename, content, deps)

		expenses := statement.Parse(text)
		if len(expenses) == 0 {
			httputil.Fail(deps.Log, w, "no expense rows found in statement", nil, http.StatusBadRequest)
			return
		}
		ids := make([]string, len(expenses))
		for i := range expenses {
			expenses[i].ID = uuid.New().String()
			ids[i] = expenses[i].ID
		}

		if err := deps.Records.Insert(ctx, expenses); err != nil {
			httputil.Fail(deps.Log, w, "failed to store expenses", err, http.StatusInternalServerError)
			return
		}

		body, err := json.Marshal(ingestTaskPayload{IDs: ids})
		if err != nil {
			httputil.Fail(deps.Log, w, "marshal payload failed", err, http.StatusInternalServerError)
			return
		}
		task := queue.NewIngestTask(body)
		if err := queue.EnqueueWithRetry(ctx, deps.Queue, task, 3, 200*time.Millisecond); err != nil {
			httputil.Fail(deps.Log, w, "stored expenses but failed to enqueue ingestion; re-run ingest", err, http.StatusInternalServerError)
			return
		}

		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"imported": len(expenses),
			"task_id":  task.ID.String(),
		})
	}
}

func peekHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 100 {
				httputil.Fail(deps.Log, w, "limit must be between 1 and 100", err, http.StatusBadRequest)
				return
			}
			limit = n
		}

		hits, err := deps.Index.Peek(r.Context(), limit)
		if err != nil {
			httputil.Fail(deps.Log, w, "peek failed", err, http.StatusInternalServerError)
			return
		}

		entries := make([]map[string]any, len(hits))
		for i, h := range hits {
			entries[i] = map[string]any{
				"id":     h.ID,
				"text":   h.Metadata.Text,
				"note":   h.Metadata.Note,
				"amount": h.Metadata.Amount,
				"date":   h.Metadata.Date,
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"entries": entries,
			"count":   len(entries),
		})
	}
}

// extractText extracts text from uploaded statements, with PDF support.
func extractText(filename string, content []byte, deps app.Deps) string {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		text, err := extractPDF(content)
		if err != nil {
			deps.Log.Warn("pdf extraction failed, using raw bytes", "err", err, "filename", filename)
			return string(content)
		}
		return text
	}
	// Treat other files as plain text
	return string(content)
}

func extractPDF(content []byte) (string, error) {
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	numPages := pdfReader.NumPage()

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	return textBuilder.String(), nil
}
