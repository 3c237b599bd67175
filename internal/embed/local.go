package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/corvid-labs/corpora-backend/internal/logger"
)

const localDim = 384

type localEmbedder struct {
	log *logger.Logger
}

// NewLocalEmbedder is the in-process fallback when no embedding service is
// configured: feature-hashed token counts folded into a 384-dim unit vector.
// Deterministic, so tests and the local stub stack reproduce exactly. Not a
// semantic model; similar wording still lands near itself, which is enough
// for local development.
func NewLocalEmbedder(log *logger.Logger) Embedder {
	serviceLog := log.With("service", "LocalEmbedder")
	serviceLog.Info("Local hash embedder selected", "dim", localDim)
	return &localEmbedder{log: serviceLog}
}

func (e *localEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, encodeLocal(text))
	}
	return out, nil
}

func (e *localEmbedder) Dim() int { return localDim }

func encodeLocal(text string) []float32 {
	vec := make([]float32, localDim)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum32()
		idx := int(sum % localDim)
		// Half the hash space contributes negatively so vectors spread over
		// the whole sphere instead of one orthant.
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vec[idx] += sign
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
