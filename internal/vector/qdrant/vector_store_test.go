package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/vector"
)

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestStore(t *testing.T, rt roundTripFunc) *store {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return &store{
		log: log,
		cfg: Config{
			URL:        "http://qdrant:6333",
			Collection: "corpora",
			VectorDim:  3,
		},
		baseURL:  "http://qdrant:6333",
		distance: vector.DistanceCosine,
		http: &http.Client{
			Transport: rt,
			Timeout:   2 * time.Second,
		},
	}
}

func okResponse(t *testing.T, result any) *http.Response {
	t.Helper()
	body, err := json.Marshal(map[string]any{"result": result, "status": "ok"})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestUpsertRequestShape(t *testing.T) {
	var captured map[string]any
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPut {
			t.Fatalf("method: want=%s got=%s", http.MethodPut, r.Method)
		}
		if r.URL.Path != "/collections/corpora/points" {
			t.Fatalf("path: want=%q got=%q", "/collections/corpora/points", r.URL.Path)
		}
		if r.URL.RawQuery != "wait=true" {
			t.Fatalf("query: want=%q got=%q", "wait=true", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, nil), nil
	})

	err := s.Upsert(context.Background(), []vector.Point{
		{
			ID:     "11111111-1111-1111-1111-111111111111",
			Vector: []float32{1, 2, 3},
			Payload: vector.Payload{
				WorkspaceID:  "ws-1",
				DocumentID:   "doc-1",
				DocumentName: "report.pdf",
				PageStart:    1,
				PageEnd:      2,
				Snippet:      "alpha",
			},
		},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	pointsRaw, ok := captured["points"].([]any)
	if !ok {
		t.Fatalf("points type: got=%T", captured["points"])
	}
	if len(pointsRaw) != 1 {
		t.Fatalf("points length: want=1 got=%d", len(pointsRaw))
	}
	first, ok := pointsRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("point[0] type: got=%T", pointsRaw[0])
	}
	payload, ok := first["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload type: got=%T", first["payload"])
	}
	if payload["workspace_id"] != "ws-1" {
		t.Fatalf("payload workspace_id: want=%q got=%v", "ws-1", payload["workspace_id"])
	}
	if payload["document_name"] != "report.pdf" {
		t.Fatalf("payload document_name: want=%q got=%v", "report.pdf", payload["document_name"])
	}
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected http call for invalid upsert")
		return nil, nil
	})
	err := s.Upsert(context.Background(), []vector.Point{
		{ID: "p-1", Vector: []float32{1, 2}},
	})
	var operr *OperationError
	if !errors.As(err, &operr) {
		t.Fatalf("error type: got=%T (%v)", err, err)
	}
	if operr.Code != OperationErrorValidation {
		t.Fatalf("code: want=%s got=%s", OperationErrorValidation, operr.Code)
	}
}

func TestSearchFiltersByWorkspace(t *testing.T) {
	var captured map[string]any
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/corpora/points/search" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, []map[string]any{
			{
				"id":    "a",
				"score": 0.9,
				"payload": map[string]any{
					"workspace_id":  "ws-1",
					"document_id":   "doc-1",
					"document_name": "report.pdf",
					"page_start":    2,
					"page_end":      2,
					"snippet":       "beta",
				},
			},
		}), nil
	})

	matches, err := s.Search(context.Background(), []float32{1, 0, 0}, 3, vector.Filter{WorkspaceID: "ws-1"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches: want=1 got=%d", len(matches))
	}
	if matches[0].Payload.DocumentID != "doc-1" {
		t.Fatalf("payload document_id: got=%q", matches[0].Payload.DocumentID)
	}
	if matches[0].Payload.PageStart != 2 || matches[0].Payload.PageEnd != 2 {
		t.Fatalf("payload pages: got=%d..%d", matches[0].Payload.PageStart, matches[0].Payload.PageEnd)
	}

	filter, ok := captured["filter"].(map[string]any)
	if !ok {
		t.Fatalf("filter missing: %v", captured["filter"])
	}
	must, ok := filter["must"].([]any)
	if !ok || len(must) != 1 {
		t.Fatalf("must conditions: got=%v", filter["must"])
	}
	cond := must[0].(map[string]any)
	if cond["key"] != "workspace_id" {
		t.Fatalf("filter key: want=workspace_id got=%v", cond["key"])
	}
}

func TestDeleteByFilterRefusesUnfiltered(t *testing.T) {
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected http call for unfiltered delete")
		return nil, nil
	})
	err := s.DeleteByFilter(context.Background(), vector.Filter{})
	var operr *OperationError
	if !errors.As(err, &operr) {
		t.Fatalf("error type: got=%T (%v)", err, err)
	}
	if operr.Code != OperationErrorValidation {
		t.Fatalf("code: want=%s got=%s", OperationErrorValidation, operr.Code)
	}
}

func TestSearchSurfacesServerError(t *testing.T) {
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"status":{"error":"boom"}}`))),
		}, nil
	})
	_, err := s.Search(context.Background(), []float32{1, 0, 0}, 3, vector.Filter{WorkspaceID: "ws-1"})
	var operr *OperationError
	if !errors.As(err, &operr) {
		t.Fatalf("error type: got=%T (%v)", err, err)
	}
	if operr.Code != OperationErrorQueryFailed {
		t.Fatalf("code: want=%s got=%s", OperationErrorQueryFailed, operr.Code)
	}
	if !operr.Transient() {
		t.Fatalf("500 should be transient")
	}
}

func TestNormalizeScoreEuclid(t *testing.T) {
	s := newTestStore(t, nil)
	s.distance = "Euclid"
	got := s.normalizeScore(1.0)
	if got != 0.5 {
		t.Fatalf("normalizeScore(1.0): want=0.5 got=%v", got)
	}
}
