package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/corvid-labs/corpora-backend/internal/logger"
)

func TestStubClientDeterministicAnswer(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c := NewStubClient(log)

	prompt := strings.Join([]string{
		"Answer the question using only the context below.",
		"---",
		"Context:",
		"[1] report.pdf (pages 2-2): beta",
		"---",
		"Question:",
		"what is on page 2?",
	}, "\n")

	first, err := c.Generate(context.Background(), prompt, Params{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := c.Generate(context.Background(), prompt, Params{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if first != second {
		t.Fatalf("stub output not deterministic:\n%q\n%q", first, second)
	}
	if !strings.Contains(first, "beta") {
		t.Fatalf("answer should include retrieved snippet: %q", first)
	}
	if !strings.Contains(first, "what is on page 2?") {
		t.Fatalf("answer should echo the question: %q", first)
	}
}
