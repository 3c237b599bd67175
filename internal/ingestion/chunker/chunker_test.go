package chunker

import (
	"strings"
	"testing"

	"github.com/corvid-labs/corpora-backend/internal/ingestion/extractor"
)

func TestSplitPagesOneChunkPerTinyPage(t *testing.T) {
	// Three one-word pages under the default sizes must index as three
	// chunks, one per page, never collapse into a single merged chunk.
	s := New(Config{ChunkSize: 1000, ChunkOverlap: 150})
	chunks := s.SplitPages([]extractor.Page{
		{Number: 1, Text: "alpha\n"},
		{Number: 2, Text: "beta\n"},
		{Number: 3, Text: "gamma\n"},
	})
	if len(chunks) != 3 {
		t.Fatalf("chunks: want=3 got=%d (%+v)", len(chunks), chunks)
	}
	wantText := []string{"alpha", "beta", "gamma"}
	for i, c := range chunks {
		if c.Text != wantText[i] {
			t.Fatalf("chunk %d text: want=%q got=%q", i, wantText[i], c.Text)
		}
		if c.PageStart != i+1 || c.PageEnd != i+1 {
			t.Fatalf("chunk %d pages: want=%d..%d got=%d..%d", i, i+1, i+1, c.PageStart, c.PageEnd)
		}
	}
}

func TestSplitPagesRespectsChunkSize(t *testing.T) {
	s := New(Config{ChunkSize: 100, ChunkOverlap: 20})
	long := strings.Repeat("lorem ipsum dolor sit amet ", 40)
	chunks := s.SplitPages([]extractor.Page{{Number: 1, Text: long}})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > 100+27 {
			t.Fatalf("chunk %d too large: %d chars", c.Index, len(c.Text))
		}
		if c.PageStart != 1 || c.PageEnd != 1 {
			t.Fatalf("chunk %d pages: want=1..1 got=%d..%d", c.Index, c.PageStart, c.PageEnd)
		}
	}
}

func TestSplitPagesCoversEveryPage(t *testing.T) {
	s := New(Config{ChunkSize: 40, ChunkOverlap: 5})
	pages := []extractor.Page{
		{Number: 1, Text: "first page words here"},
		{Number: 2, Text: "second page words here"},
		{Number: 3, Text: "third page words here"},
	}
	chunks := s.SplitPages(pages)

	covered := map[int]bool{}
	for _, c := range chunks {
		if c.PageStart > c.PageEnd {
			t.Fatalf("chunk %d: page_start %d > page_end %d", c.Index, c.PageStart, c.PageEnd)
		}
		for p := c.PageStart; p <= c.PageEnd; p++ {
			covered[p] = true
		}
	}
	for _, page := range pages {
		if !covered[page.Number] {
			t.Fatalf("no chunk covers page %d", page.Number)
		}
	}
}

func TestSplitPagesIndexesAreSequential(t *testing.T) {
	s := New(Config{ChunkSize: 50, ChunkOverlap: 10})
	pages := []extractor.Page{
		{Number: 1, Text: strings.Repeat("words and more words ", 15)},
		{Number: 2, Text: strings.Repeat("words and more words ", 15)},
	}
	chunks := s.SplitPages(pages)
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk index: want=%d got=%d", i, c.Index)
		}
	}
}

func TestSplitPagesEmptyInput(t *testing.T) {
	s := New(Config{})
	if got := s.SplitPages(nil); got != nil {
		t.Fatalf("nil pages: want nil, got %v", got)
	}
	got := s.SplitPages([]extractor.Page{{Number: 1, Text: "   "}})
	if len(got) != 0 {
		t.Fatalf("blank page: want 0 chunks, got %d", len(got))
	}
	// Blank pages in the middle do not shift neighbors' numbering.
	got = s.SplitPages([]extractor.Page{
		{Number: 1, Text: "alpha"},
		{Number: 2, Text: "   "},
		{Number: 3, Text: "gamma"},
	})
	if len(got) != 2 {
		t.Fatalf("chunks: want=2 got=%d", len(got))
	}
	if got[0].PageStart != 1 || got[1].PageStart != 3 {
		t.Fatalf("page numbers: got %d and %d", got[0].PageStart, got[1].PageStart)
	}
}

func TestSnippetTruncation(t *testing.T) {
	s := New(Config{ChunkSize: 5000, ChunkOverlap: 100, SnippetLen: 10})
	chunks := s.SplitPages([]extractor.Page{{Number: 1, Text: "0123456789abcdef"}})
	if len(chunks) != 1 {
		t.Fatalf("chunks: want=1 got=%d", len(chunks))
	}
	if chunks[0].Snippet != "0123456789" {
		t.Fatalf("snippet: want=%q got=%q", "0123456789", chunks[0].Snippet)
	}
}

func TestDeterministicOutput(t *testing.T) {
	s := New(Config{ChunkSize: 80, ChunkOverlap: 16})
	pages := []extractor.Page{
		{Number: 1, Text: strings.Repeat("alpha beta gamma ", 20)},
		{Number: 2, Text: strings.Repeat("delta epsilon ", 20)},
	}
	a := s.SplitPages(pages)
	b := s.SplitPages(pages)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs:\n%+v\n%+v", i, a[i], b[i])
		}
	}
}
