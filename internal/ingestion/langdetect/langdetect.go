package langdetect

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

const sampleLimit = 4096

// Detect returns the ISO 639-1 code of the dominant language in text, or ""
// when no language is detected or when the result is unreliable on a sample
// longer than 64 bytes; short samples keep the best guess even when it is
// unreliable. Callers treat "" as non-fatal: the document simply carries no
// detected_language.
func Detect(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}
	if len(sample) > sampleLimit {
		sample = sample[:sampleLimit]
	}

	info := whatlanggo.Detect(sample)
	if info.Lang == -1 {
		return ""
	}
	if !info.IsReliable() && len(sample) > 64 {
		return ""
	}
	code := info.Lang.Iso6391()
	if code == "" {
		// Languages without a two-letter code fall back to ISO 639-3.
		code = info.Lang.Iso6393()
	}
	return code
}
