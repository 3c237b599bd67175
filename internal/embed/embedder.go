package embed

import "context"

// Embedder encodes text into fixed-dimension vectors. Implementations are
// stateless and deterministic for a fixed model. Encode takes a batch of
// texts and returns one vector per text, in order; the HTTP implementation
// sends one request per text. Dim() must equal the vector store's collection
// dimension; the composition root treats a mismatch as fatal.
type Embedder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
}
