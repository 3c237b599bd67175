package chunker

import (
	"strings"

	"github.com/corvid-labs/corpora-backend/internal/ingestion/extractor"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
	defaultSnippetLen   = 200
)

type Config struct {
	ChunkSize    int
	ChunkOverlap int
	SnippetLen   int
}

// Chunk is the unit of embedding and retrieval. PageStart/PageEnd cover
// every page the chunk overlaps; with per-page splitting they are equal,
// but the payload contract keeps both ends.
type Chunk struct {
	Index     int
	Text      string
	PageStart int
	PageEnd   int
	Snippet   string
}

type Splitter struct {
	chunkSize    int
	chunkOverlap int
	snippetLen   int
	separators   []string
}

func New(cfg Config) *Splitter {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = DefaultChunkOverlap
		if cfg.ChunkOverlap >= cfg.ChunkSize {
			cfg.ChunkOverlap = cfg.ChunkSize / 5
		}
	}
	if cfg.SnippetLen <= 0 {
		cfg.SnippetLen = defaultSnippetLen
	}
	return &Splitter{
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		snippetLen:   cfg.SnippetLen,
		separators:   []string{"\n\n", "\n", " ", ""},
	}
}

// SplitPages splits each page independently, so every page with any text
// yields at least one chunk no matter how short it is. A three-page document
// of one word per page indexes as three chunks, one per page. Chunks are
// numbered sequentially across the whole document.
func (s *Splitter) SplitPages(pages []extractor.Page) []Chunk {
	var chunks []Chunk
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		for _, piece := range s.splitText(page.Text, s.separators) {
			trimmed := strings.TrimSpace(piece)
			if trimmed == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				Index:     len(chunks),
				Text:      trimmed,
				PageStart: page.Number,
				PageEnd:   page.Number,
				Snippet:   s.snippet(trimmed),
			})
		}
	}
	return chunks
}

func (s *Splitter) snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= s.snippetLen {
		return text
	}
	return string(runes[:s.snippetLen])
}

// splitText is the recursive character split: try the coarsest separator
// present, merge small parts back up to chunkSize with chunkOverlap carried
// between neighbors, and recurse into parts that are still too large.
func (s *Splitter) splitText(text string, separators []string) []string {
	if text == "" {
		return nil
	}

	separator := separators[len(separators)-1]
	var nextSeparators []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			nextSeparators = separators[i+1:]
			break
		}
	}

	var parts []string
	if separator == "" {
		parts = splitEvery(text, s.chunkSize)
	} else {
		for _, p := range strings.Split(text, separator) {
			parts = append(parts, p)
		}
	}

	var final []string
	var good []string
	for _, part := range parts {
		if len(part) < s.chunkSize {
			good = append(good, part)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good, separator)...)
			good = nil
		}
		if len(nextSeparators) == 0 {
			final = append(final, part)
		} else {
			final = append(final, s.splitText(part, nextSeparators)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, separator)...)
	}
	return final
}

func splitEvery(text string, size int) []string {
	var out []string
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

func (s *Splitter) merge(parts []string, separator string) []string {
	var out []string
	var window []string
	total := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(window, separator))
		if joined != "" {
			out = append(out, joined)
		}
	}

	for _, part := range parts {
		partLen := len(part)
		if total+partLen+len(separator)*len(window) > s.chunkSize && len(window) > 0 {
			flush()
			// Keep the tail as overlap for the next chunk.
			for total > s.chunkOverlap || (total+partLen+len(separator)*len(window) > s.chunkSize && total > 0) {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, part)
		total += partLen
	}
	flush()
	return out
}
