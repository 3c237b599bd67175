package embed

import (
	"context"
	"math"
	"testing"

	"github.com/corvid-labs/corpora-backend/internal/logger"
)

func newLocal(t *testing.T) Embedder {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewLocalEmbedder(log)
}

func TestLocalEmbedderIsDeterministic(t *testing.T) {
	e := newLocal(t)
	ctx := context.Background()

	a, err := e.Encode(ctx, []string{"the quick brown fox"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := e.Encode(ctx, []string{"the quick brown fox"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("nondeterministic at %d: %v vs %v", i, a[0][i], b[0][i])
		}
	}
}

func TestLocalEmbedderDimAndNorm(t *testing.T) {
	e := newLocal(t)
	vecs, err := e.Encode(context.Background(), []string{"alpha beta", ""})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("batch size: want=2 got=%d", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != e.Dim() {
			t.Fatalf("vec %d dim: want=%d got=%d", i, e.Dim(), len(v))
		}
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		if math.Abs(norm-1) > 1e-5 {
			t.Fatalf("vec %d norm: want=1 got=%v", i, norm)
		}
	}
}

func TestLocalEmbedderSimilarTextScoresHigher(t *testing.T) {
	e := newLocal(t)
	vecs, err := e.Encode(context.Background(), []string{
		"invoice payment due date",
		"payment due date of the invoice",
		"giraffe habitats in the savanna",
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	near := dot(vecs[0], vecs[1])
	far := dot(vecs[0], vecs[2])
	if near <= far {
		t.Fatalf("similarity ordering: near=%v far=%v", near, far)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
