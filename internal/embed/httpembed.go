package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/corvid-labs/corpora-backend/internal/faults"
	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/platform/ctxutil"
)

type HTTPConfig struct {
	URL   string
	Model string
	Dim   int
}

type httpEmbedder struct {
	log     *logger.Logger
	cfg     HTTPConfig
	baseURL string
	http    *http.Client
}

// NewHTTPEmbedder talks to an Ollama-compatible embedding endpoint
// (POST {url}/api/embeddings with {model, prompt}).
func NewHTTPEmbedder(log *logger.Logger, cfg HTTPConfig) (Embedder, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("embedding url is required")
	}
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("embedding dim must be positive, got %d", cfg.Dim)
	}
	serviceLog := log.With("service", "HTTPEmbedder")
	serviceLog.Info("HTTP embedder selected", "url", cfg.URL, "model", cfg.Model, "dim", cfg.Dim)
	return &httpEmbedder{
		log:     serviceLog,
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *httpEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "encode"
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.encodeOne(ctx, op, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (e *httpEmbedder) encodeOne(ctx context.Context, op, text string) ([]float32, error) {
	payload, err := json.Marshal(embedRequest{Model: e.cfg.Model, Prompt: text})
	if err != nil {
		return nil, faults.Permanent(op, "encode embedding request failed", err)
	}

	callCtx, cancel := ctxutil.Default(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, faults.Permanent(op, "build embedding request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, classifyTransport(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return nil, faults.Transient(op, "read embedding response failed", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, faults.Transient(op, fmt.Sprintf("embedding backend status=%d", resp.StatusCode), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, faults.Permanent(op, fmt.Sprintf("embedding backend status=%d", resp.StatusCode), nil)
	}

	var decoded embedResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, faults.Permanent(op, "decode embedding response failed", err)
	}
	if len(decoded.Embedding) != e.cfg.Dim {
		return nil, faults.Permanent(op,
			fmt.Sprintf("embedding dimension mismatch: expected=%d got=%d", e.cfg.Dim, len(decoded.Embedding)), nil)
	}
	return decoded.Embedding, nil
}

func (e *httpEmbedder) Dim() int { return e.cfg.Dim }

func classifyTransport(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return faults.Transient(op, "embedding call timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return faults.Transient(op, "embedding call timed out", err)
	}
	return faults.Transient(op, "embedding backend unreachable", err)
}
