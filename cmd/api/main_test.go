package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"

	"spend-insight/internal/app"
	"spend-insight/internal/cache"
	"spend-insight/internal/config"
	"spend-insight/internal/embeddings"
	"spend-insight/internal/insight"
	"spend-insight/internal/llm"
	"spend-insight/internal/queue"
	"spend-insight/internal/records"
	"spend-insight/internal/vecindex"
)

type testMocks struct {
	records  *records.MockSource
	embedder *embeddings.MockEmbedder
	index    *vecindex.MockIndex
	llm      *llm.MockClient
	cache    *cache.MockCache
	queue    *queue.MockQueue
}

func newTestDeps() (app.Deps, *testMocks) {
	m := &testMocks{
		records:  new(records.MockSource),
		embedder: new(embeddings.MockEmbedder),
		index:    new(vecindex.MockIndex),
		llm:      new(llm.MockClient),
		cache:    new(cache.MockCache),
		queue:    new(queue.MockQueue),
	}
	deps := app.Deps{
		Config: config.Config{
			CacheTTL:      60,
			MaxUploadSize: 1 << 20,
		},
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Records:  m.records,
		Embedder: m.embedder,
		Index:    m.index,
		LLM:      m.llm,
		Cache:    m.cache,
		Queue:    m.queue,
	}
	return deps, m
}

func coffeeHits() []vecindex.Hit {
	return []vecindex.Hit{
		{ID: "1", Score: 0.9, Metadata: vecindex.Metadata{Note: "Coffee", Amount: "4.50", Date: "2024-01-05"}},
		{ID: "2", Score: 0.8, Metadata: vecindex.Metadata{Note: "Coffee", Amount: "5.00", Date: "2024-02-03"}},
	}
}

func TestInsightHandler(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    string
		setup          func(*testMocks)
		wantStatusCode int
		checkResponse  func(*testing.T, *testMocks, map[string]any)
	}{
		{
			name:        "successful insight",
			requestBody: `{"question": "How is my coffee spending?"}`,
			setup: func(m *testMocks) {
				m.cache.On("GetInsight", mock.Anything, mock.Anything).Return(nil, nil).Once()
				m.embedder.On("Embed", mock.Anything, "How is my coffee spending?").
					Return(embeddings.Vector{0.1}, nil).Once()
				m.index.On("Search", mock.Anything, embeddings.Vector{0.1}, 3).
					Return(coffeeHits(), nil).Once()
				m.llm.On("Generate", mock.Anything, mock.Anything).
					Return("Coffee spend rose in February; consider a weekly budget.", nil).Once()
				m.cache.On("SetInsight", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(nil).Once()
			},
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, m *testMocks, body map[string]any) {
				if body["cached"] != false {
					t.Error("expected cached=false")
				}
				if body["insight"] == "" {
					t.Error("expected non-empty insight")
				}
			},
		},
		{
			name:        "cache hit skips pipeline",
			requestBody: `{"question": "How is my coffee spending?"}`,
			setup: func(m *testMocks) {
				m.cache.On("GetInsight", mock.Anything, mock.Anything).
					Return(&cache.InsightResult{Insight: "cached insight"}, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, m *testMocks, body map[string]any) {
				if body["cached"] != true {
					t.Error("expected cached=true")
				}
				if body["insight"] != "cached insight" {
					t.Errorf("unexpected insight: %v", body["insight"])
				}
				m.embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
			},
		},
		{
			name:           "invalid JSON payload returns 400",
			requestBody:    `{invalid json}`,
			setup:          func(m *testMocks) {},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "question too short fails validation",
			requestBody:    `{"question": "Hi"}`,
			setup:          func(m *testMocks) {},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:        "embedding failure returns 500",
			requestBody: `{"question": "How is my coffee spending?"}`,
			setup: func(m *testMocks) {
				m.cache.On("GetInsight", mock.Anything, mock.Anything).Return(nil, nil).Once()
				m.embedder.On("Embed", mock.Anything, mock.Anything).
					Return(nil, errors.New("provider down")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
		},
		{
			name:        "no data sentinel is returned but not cached",
			requestBody: `{"question": "How is my coffee spending?"}`,
			setup: func(m *testMocks) {
				m.cache.On("GetInsight", mock.Anything, mock.Anything).Return(nil, nil).Once()
				m.embedder.On("Embed", mock.Anything, mock.Anything).
					Return(embeddings.Vector{0.1}, nil).Once()
				m.index.On("Search", mock.Anything, mock.Anything, 3).
					Return([]vecindex.Hit{}, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, m *testMocks, body map[string]any) {
				if body["insight"] != insight.SentinelNoExpenses {
					t.Errorf("expected sentinel, got %v", body["insight"])
				}
				m.cache.AssertNotCalled(t, "SetInsight", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				m.llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, m := newTestDeps()
			tt.setup(m)

			handler := insightHandler(deps)
			req := httptest.NewRequest(http.MethodPost, "/api/insight", bytes.NewBufferString(tt.requestBody))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler(w, req)

			resp := w.Result()
			if resp.StatusCode != tt.wantStatusCode {
				body, _ := io.ReadAll(resp.Body)
				t.Fatalf("expected status %d, got %d. Body: %s", tt.wantStatusCode, resp.StatusCode, string(body))
			}

			if tt.checkResponse != nil {
				var body map[string]any
				if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				tt.checkResponse(t, m, body)
			}

			m.cache.AssertExpectations(t)
			m.embedder.AssertExpectations(t)
			m.index.AssertExpectations(t)
			m.llm.AssertExpectations(t)
		})
	}
}

func TestIngestHandlerReturnsCounts(t *testing.T) {
	deps, m := newTestDeps()

	m.records.On("ListAll", mock.Anything).Return([]records.Expense{}, nil).Once()
	m.cache.On("InvalidateAll", mock.Anything).Return(nil).Once()

	handler := ingestHandler(deps)
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, ok := body["embedded"]; !ok {
		t.Error("expected embedded count in response")
	}
	if _, ok := body["failed"]; !ok {
		t.Error("expected failed count in response")
	}
	m.cache.AssertExpectations(t)
}

func TestIngestHandlerSourceFailure(t *testing.T) {
	deps, m := newTestDeps()

	m.records.On("ListAll", mock.Anything).Return(nil, errors.New("db down")).Once()

	handler := ingestHandler(deps)
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/api/ingest", nil))

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Result().StatusCode)
	}
	m.cache.AssertNotCalled(t, "InvalidateAll", mock.Anything)
}

func TestIngestAsyncHandlerEnqueues(t *testing.T) {
	deps, m := newTestDeps()

	m.queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(task queue.Task) bool {
		return task.Type == queue.TaskTypeIngest
	})).Return(nil).Once()

	handler := ingestAsyncHandler(deps)
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/api/ingest/async", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["task_id"] == "" {
		t.Error("expected task_id in response")
	}
	m.queue.AssertExpectations(t)
}

func TestPeekHandler(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		setup          func(*testMocks)
		wantStatusCode int
		wantCount      float64
	}{
		{
			name: "default limit",
			url:  "/api/debug/peek",
			setup: func(m *testMocks) {
				m.index.On("Peek", mock.Anything, 10).Return(coffeeHits(), nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantCount:      2,
		},
		{
			name: "explicit limit",
			url:  "/api/debug/peek?limit=5",
			setup: func(m *testMocks) {
				m.index.On("Peek", mock.Anything, 5).Return([]vecindex.Hit{}, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantCount:      0,
		},
		{
			name:           "limit out of range",
			url:            "/api/debug/peek?limit=500",
			setup:          func(m *testMocks) {},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "limit not a number",
			url:            "/api/debug/peek?limit=ten",
			setup:          func(m *testMocks) {},
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, m := newTestDeps()
			tt.setup(m)

			handler := peekHandler(deps)
			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			resp := w.Result()
			if resp.StatusCode != tt.wantStatusCode {
				t.Fatalf("expected %d, got %d", tt.wantStatusCode, resp.StatusCode)
			}
			if tt.wantStatusCode == http.StatusOK {
				var body map[string]any
				if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if body["count"] != tt.wantCount {
					t.Errorf("count = %v, want %v", body["count"], tt.wantCount)
				}
			}
			m.index.AssertExpectations(t)
		})
	}
}

func multipartStatement(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestImportHandlerStoresAndEnqueues(t *testing.T) {
	deps, m := newTestDeps()

	m.records.On("Insert", mock.Anything, mock.MatchedBy(func(expenses []records.Expense) bool {
		return len(expenses) == 2 && expenses[0].ID != "" && expenses[0].Note == "Coffee shop"
	})).Return(nil).Once()
	m.queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(task queue.Task) bool {
		var payload ingestTaskPayload
		if task.Type != queue.TaskTypeIngest {
			return false
		}
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return false
		}
		return len(payload.IDs) == 2
	})).Return(nil).Once()

	body, contentType := multipartStatement(t, "january.txt",
		"2024-01-05 Coffee shop 4.50\n2024-01-09 Groceries 82.10\n")
	req := httptest.NewRequest(http.MethodPost, "/api/statements/import", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	importHandler(deps)(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 202, got %d. Body: %s", resp.StatusCode, string(raw))
	}
	var respBody map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if respBody["imported"] != float64(2) {
		t.Errorf("imported = %v, want 2", respBody["imported"])
	}
	m.records.AssertExpectations(t)
	m.queue.AssertExpectations(t)
}

func TestImportHandlerRejectsEmptyStatement(t *testing.T) {
	deps, m := newTestDeps()

	body, contentType := multipartStatement(t, "empty.txt", "no transactions here\n")
	req := httptest.NewRequest(http.MethodPost, "/api/statements/import", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	importHandler(deps)(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Result().StatusCode)
	}
	m.records.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestImportHandlerRejectsUnsupportedType(t *testing.T) {
	deps, _ := newTestDeps()

	body, contentType := multipartStatement(t, "statement.docx", "whatever")
	req := httptest.NewRequest(http.MethodPost, "/api/statements/import", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	importHandler(deps)(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Result().StatusCode)
	}
}
