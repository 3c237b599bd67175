package localvec

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/vector"
)

// Store is the JSON-file fallback used when no Qdrant endpoint is
// configured: brute-force cosine over every point, persisted after each
// mutation. Fine for local development and tests, not for large corpora.
type Store struct {
	log  *logger.Logger
	path string

	mu     sync.RWMutex
	dim    int
	points []storedPoint
	byID   map[string]int
}

type storedPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload vector.Payload `json:"payload"`
	Seq     int64          `json:"seq"`
}

type fileState struct {
	Dim    int           `json:"dim"`
	Points []storedPoint `json:"points"`
}

func NewStore(log *logger.Logger, dir string) (*Store, error) {
	serviceLog := log.With("service", "LocalVectorStore")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vector store dir: %w", err)
	}
	s := &Store{
		log:  serviceLog,
		path: filepath.Join(dir, "vectors.json"),
		byID: map[string]int{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	serviceLog.Info("Local JSON vector store selected", "path", s.path, "points", len(s.points))
	return s, nil
}

func (s *Store) EnsureCollection(ctx context.Context, dim int, distance string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dim <= 0 {
		return fmt.Errorf("vector dim must be positive, got %d", dim)
	}
	if s.dim != 0 && s.dim != dim {
		return fmt.Errorf("vector store dim mismatch: existing=%d requested=%d", s.dim, dim)
	}
	s.dim = dim
	return s.persistLocked()
}

func (s *Store) Dim(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim, nil
}

func (s *Store) Upsert(ctx context.Context, points []vector.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		if p.ID == "" {
			return fmt.Errorf("point id is required")
		}
		if s.dim != 0 && len(p.Vector) != s.dim {
			return fmt.Errorf("point %q dimension mismatch: expected=%d got=%d", p.ID, s.dim, len(p.Vector))
		}
		if idx, ok := s.byID[p.ID]; ok {
			// Same id keeps its original insertion slot so re-runs converge.
			seq := s.points[idx].Seq
			s.points[idx] = storedPoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload, Seq: seq}
			continue
		}
		sp := storedPoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload, Seq: s.nextSeqLocked()}
		s.byID[p.ID] = len(s.points)
		s.points = append(s.points, sp)
	}
	return s.persistLocked()
}

func (s *Store) Search(ctx context.Context, query []float32, topK int, filter vector.Filter) ([]vector.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(query) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	if s.dim != 0 && len(query) != s.dim {
		return nil, fmt.Errorf("query vector dimension mismatch: expected=%d got=%d", s.dim, len(query))
	}
	if topK <= 0 {
		topK = 10
	}

	type scored struct {
		match vector.Match
		seq   int64
	}
	candidates := make([]scored, 0, len(s.points))
	for _, p := range s.points {
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		candidates = append(candidates, scored{
			match: vector.Match{Score: cosine(query, p.Vector), Payload: p.Payload},
			seq:   p.Seq,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].match.Score == candidates[j].match.Score {
			return candidates[i].seq < candidates[j].seq
		}
		return candidates[i].match.Score > candidates[j].match.Score
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	out := make([]vector.Match, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.match)
	}
	return out, nil
}

func (s *Store) DeleteByFilter(ctx context.Context, filter vector.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if filter.WorkspaceID == "" && filter.DocumentID == "" {
		return fmt.Errorf("refusing unfiltered delete")
	}
	kept := s.points[:0]
	for _, p := range s.points {
		if matchesFilter(p.Payload, filter) {
			continue
		}
		kept = append(kept, p)
	}
	s.points = kept
	s.rebuildIndexLocked()
	return s.persistLocked()
}

func matchesFilter(p vector.Payload, filter vector.Filter) bool {
	if filter.WorkspaceID != "" && p.WorkspaceID != filter.WorkspaceID {
		return false
	}
	if filter.DocumentID != "" && p.DocumentID != filter.DocumentID {
		return false
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func (s *Store) nextSeqLocked() int64 {
	var max int64
	for _, p := range s.points {
		if p.Seq > max {
			max = p.Seq
		}
	}
	return max + 1
}

func (s *Store) rebuildIndexLocked() {
	s.byID = make(map[string]int, len(s.points))
	for i, p := range s.points {
		s.byID[p.ID] = i
	}
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read vector store file: %w", err)
	}
	var state fileState
	if err := json.Unmarshal(raw, &state); err != nil {
		return fmt.Errorf("decode vector store file: %w", err)
	}
	s.dim = state.Dim
	s.points = state.Points
	s.rebuildIndexLocked()
	return nil
}

func (s *Store) persistLocked() error {
	state := fileState{Dim: s.dim, Points: s.points}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode vector store file: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write vector store file: %w", err)
	}
	return os.Rename(tmp, s.path)
}
