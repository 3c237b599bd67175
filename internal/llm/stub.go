package llm

import (
	"context"
	"strings"

	"github.com/corvid-labs/corpora-backend/internal/logger"
)

type stubClient struct {
	log *logger.Logger
}

// NewStubClient is the no-backend fallback: a deterministic template answer
// assembled from whatever context passages appear in the prompt. Used when
// no LLM_URL is configured and by tests that need reproducible output.
func NewStubClient(log *logger.Logger) Client {
	serviceLog := log.With("service", "StubLLMClient")
	serviceLog.Info("Stub LLM client selected")
	return &stubClient{log: serviceLog}
}

func (c *stubClient) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	question := lastSection(prompt, "Question:")
	passages := contextLines(prompt)

	var b strings.Builder
	b.WriteString("Based on the provided context")
	if question != "" {
		b.WriteString(", regarding \"")
		b.WriteString(question)
		b.WriteString("\"")
	}
	b.WriteString(": ")
	if len(passages) == 0 {
		b.WriteString("no supporting passages were retrieved.")
		return b.String(), nil
	}
	b.WriteString(strings.Join(passages, " "))
	return b.String(), nil
}

func lastSection(prompt, marker string) string {
	idx := strings.LastIndex(prompt, marker)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(prompt[idx+len(marker):])
}

// contextLines pulls the numbered passages out of the assembled prompt
// ("[1] name (pages a-b): text").
func contextLines(prompt string) []string {
	var out []string
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[") {
			if closing := strings.Index(line, "]"); closing > 0 {
				text := strings.TrimSpace(line[closing+1:])
				if colon := strings.Index(text, ": "); colon >= 0 {
					text = strings.TrimSpace(text[colon+2:])
				}
				if text != "" {
					out = append(out, text)
				}
			}
		}
	}
	return out
}
