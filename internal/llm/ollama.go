package llm

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
)

type OllamaConfig struct {
	URL   string
	Model string
}

type ollamaClient struct {
	log     *logger.Logger
	cfg     OllamaConfig
	baseURL string
	http    *http.Client
}

// NewOllamaClient generates against an Ollama-compatible backend
// (POST {url}/api/generate, non-streaming).
func NewOllamaClient(log *logger.Logger, cfg OllamaConfig) (Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("llm url is required")
	}
	serviceLog := log.With("service", "OllamaClient")
	serviceLog.Info("Ollama LLM client selected", "url", cfg.URL, "model", cfg.Model)
	return &ollamaClient{
		log:     serviceLog,
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *ollamaClient) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	const op = "generate"

	model := params.Model
	if model == "" {
		model = c.cfg.Model
	}
	options := map[string]any{
		"temperature": params.Temperature,
	}
	if params.MaxTokens > 0 {
		options["num_predict"] = params.MaxTokens
	}
	if len(params.Stop) > 0 {
		options["stop"] = params.Stop
	}

	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  false,
		Options: options,
	})
	if err != nil {
		return "", faults.Permanent(op, "encode generate request failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", faults.Permanent(op, "build generate request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", faults.Transient(op, "llm call timed out", err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", faults.Transient(op, "llm call timed out", err)
		}
		return "", faults.Transient(op, "llm backend unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<24))
	if err != nil {
		return "", faults.Transient(op, "read generate response failed", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", faults.Transient(op, fmt.Sprintf("llm backend status=%d", resp.StatusCode), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", faults.Permanent(op, fmt.Sprintf("llm backend status=%d body=%q", resp.StatusCode, truncate(raw)), nil)
	}

	var decoded ollamaGenerateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", faults.Permanent(op, "decode generate response failed", err)
	}
	return decoded.Response, nil
}

func truncate(raw []byte) string {
	const max = 512
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
