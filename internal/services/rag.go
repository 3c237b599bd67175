package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/corvid-labs/corpora-backend/internal/db"
	"github.com/corvid-labs/corpora-backend/internal/embed"
	"github.com/corvid-labs/corpora-backend/internal/faults"
	"github.com/corvid-labs/corpora-backend/internal/llm"
	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/repos"
	"github.com/corvid-labs/corpora-backend/internal/types"
	"github.com/corvid-labs/corpora-backend/internal/vector"
)

// NoDocumentsAnswer is returned for a workspace with nothing indexed; the
// LLM is not called. The empty-workspace policy is 200-with-empty-sources,
// not 404.
const NoDocumentsAnswer = "No documents have been ingested into this workspace yet. Upload a document and try again."

const systemInstruction = "Answer the question using only the context below. " +
	"If the context does not contain the answer, say so."

type AskRequest struct {
	WorkspaceID uuid.UUID
	Question    string
	TopK        int
	SessionID   *uuid.UUID
}

// Source follows the canonical shape: source_id is the document id.
type Source struct {
	SourceID     uuid.UUID `json:"source_id"`
	DocumentName string    `json:"document_name"`
	PageStart    int       `json:"page_start"`
	PageEnd      int       `json:"page_end"`
	Snippet      string    `json:"snippet"`
}

type AskResponse struct {
	Answer    string    `json:"answer"`
	Sources   []Source  `json:"sources"`
	SessionID uuid.UUID `json:"session_id"`
}

type RAGConfig struct {
	TopKDefault int
	HistoryN    int
	MaxTokens   int
	Temperature float64
	MaxAttempts int
	RetryDelay  time.Duration
}

func (c RAGConfig) withDefaults() RAGConfig {
	if c.TopKDefault <= 0 {
		c.TopKDefault = 3
	}
	if c.HistoryN <= 0 {
		c.HistoryN = 4
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 512
	}
	if c.Temperature < 0 {
		c.Temperature = 0
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 250 * time.Millisecond
	}
	return c
}

type RAGService interface {
	Ask(ctx context.Context, req AskRequest) (*AskResponse, error)
	Sessions(ctx context.Context, workspaceID uuid.UUID) ([]*types.ChatSession, error)
	Messages(ctx context.Context, sessionID uuid.UUID) ([]*types.ChatMessage, []*types.ChatMessageSource, error)
}

type ragService struct {
	gdb        *gorm.DB
	log        *logger.Logger
	workspaces repos.WorkspaceRepo
	sessions   repos.ChatSessionRepo
	messages   repos.ChatMessageRepo
	sources    repos.ChatMessageSourceRepo
	vectors    vector.Store
	embedder   embed.Embedder
	client     llm.Client
	cfg        RAGConfig
}

func NewRAGService(
	gdb *gorm.DB,
	baseLog *logger.Logger,
	workspaces repos.WorkspaceRepo,
	sessions repos.ChatSessionRepo,
	messages repos.ChatMessageRepo,
	sources repos.ChatMessageSourceRepo,
	vectors vector.Store,
	embedder embed.Embedder,
	client llm.Client,
	cfg RAGConfig,
) RAGService {
	return &ragService{
		gdb:        gdb,
		log:        baseLog.With("service", "RAGService"),
		workspaces: workspaces,
		sessions:   sessions,
		messages:   messages,
		sources:    sources,
		vectors:    vectors,
		embedder:   embedder,
		client:     client,
		cfg:        cfg.withDefaults(),
	}
}

func (s *ragService) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	const op = "ask"

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, faults.Validation(op, "question is required")
	}
	if _, err := s.workspaces.GetByID(ctx, nil, req.WorkspaceID); err != nil {
		if repos.IsNotFound(err) {
			return nil, faults.NotFound(op, "workspace not found")
		}
		return nil, err
	}

	session, err := s.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}
	log := s.log.With("workspace_id", req.WorkspaceID, "session_id", session.ID)

	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.TopKDefault
	}

	queryVecs, err := s.retryTransient(ctx, func(callCtx context.Context) ([][]float32, error) {
		return s.embedder.Encode(callCtx, []string{question})
	})
	if err != nil {
		return nil, err
	}

	matches, err := s.vectors.Search(ctx, queryVecs[0], topK, vector.Filter{WorkspaceID: req.WorkspaceID.String()})
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		log.Info("Ask on empty workspace")
		answer := NoDocumentsAnswer
		if err := s.persistTurn(ctx, session.ID, question, answer, nil); err != nil {
			return nil, err
		}
		return &AskResponse{Answer: answer, Sources: []Source{}, SessionID: session.ID}, nil
	}

	sources := dedupeSources(matches)

	history, err := s.messages.Recent(ctx, nil, session.ID, s.cfg.HistoryN)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(sources, history, question)

	answer, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if err := s.persistTurn(ctx, session.ID, question, answer, sources); err != nil {
		return nil, err
	}

	log.Info("Ask answered", "sources", len(sources), "top_k", topK)
	return &AskResponse{Answer: answer, Sources: sources, SessionID: session.ID}, nil
}

func (s *ragService) Sessions(ctx context.Context, workspaceID uuid.UUID) ([]*types.ChatSession, error) {
	if _, err := s.workspaces.GetByID(ctx, nil, workspaceID); err != nil {
		if repos.IsNotFound(err) {
			return nil, faults.NotFound("list_sessions", "workspace not found")
		}
		return nil, err
	}
	return s.sessions.ListByWorkspace(ctx, nil, workspaceID)
}

func (s *ragService) Messages(ctx context.Context, sessionID uuid.UUID) ([]*types.ChatMessage, []*types.ChatMessageSource, error) {
	if _, err := s.sessions.GetByID(ctx, nil, sessionID); err != nil {
		if repos.IsNotFound(err) {
			return nil, nil, faults.NotFound("list_messages", "chat session not found")
		}
		return nil, nil, err
	}
	messages, err := s.messages.ListBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]uuid.UUID, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	sources, err := s.sources.ListByMessageIDs(ctx, nil, ids)
	if err != nil {
		return nil, nil, err
	}
	return messages, sources, nil
}

func (s *ragService) resolveSession(ctx context.Context, req AskRequest) (*types.ChatSession, error) {
	const op = "resolve_session"
	if req.SessionID == nil {
		return s.sessions.Create(ctx, nil, &types.ChatSession{
			WorkspaceID: req.WorkspaceID,
			CreatedAt:   time.Now().UTC(),
		})
	}
	session, err := s.sessions.GetByID(ctx, nil, *req.SessionID)
	if err != nil {
		if repos.IsNotFound(err) {
			return nil, faults.NotFound(op, "chat session not found")
		}
		return nil, err
	}
	if session.WorkspaceID != req.WorkspaceID {
		return nil, faults.NotFound(op, "chat session does not belong to workspace")
	}
	return session, nil
}

// persistTurn writes the user message, the assistant message, and its
// sources in one unit of work; concurrent asks on the same session serialize
// here so message order stays well-defined.
func (s *ragService) persistTurn(ctx context.Context, sessionID uuid.UUID, question, answer string, sources []Source) error {
	return db.WithTransaction(ctx, s.gdb, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if _, err := s.messages.Create(ctx, tx, &types.ChatMessage{
			SessionID: sessionID,
			Role:      types.ChatRoleUser,
			Content:   question,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		assistant, err := s.messages.Create(ctx, tx, &types.ChatMessage{
			SessionID: sessionID,
			Role:      types.ChatRoleAssistant,
			Content:   answer,
			CreatedAt: now.Add(time.Microsecond),
		})
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			return nil
		}
		rows := make([]*types.ChatMessageSource, 0, len(sources))
		for _, src := range sources {
			rows = append(rows, &types.ChatMessageSource{
				MessageID:    assistant.ID,
				SourceID:     src.SourceID,
				DocumentName: src.DocumentName,
				PageStart:    src.PageStart,
				PageEnd:      src.PageEnd,
				Snippet:      src.Snippet,
			})
		}
		_, err = s.sources.CreateBulk(ctx, tx, rows)
		return err
	})
}

func (s *ragService) generate(ctx context.Context, prompt string) (string, error) {
	var answer string
	var err error
	delay := s.cfg.RetryDelay
	for attempt := 1; ; attempt++ {
		answer, err = s.client.Generate(ctx, prompt, llm.Params{
			Temperature: s.cfg.Temperature,
			MaxTokens:   s.cfg.MaxTokens,
		})
		if err == nil {
			return answer, nil
		}
		if !faults.Retryable(err) || attempt >= s.cfg.MaxAttempts {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", faults.Transient("generate", "ask aborted during backoff", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (s *ragService) retryTransient(ctx context.Context, fn func(ctx context.Context) ([][]float32, error)) ([][]float32, error) {
	var out [][]float32
	var err error
	delay := s.cfg.RetryDelay
	for attempt := 1; ; attempt++ {
		out, err = fn(ctx)
		if err == nil {
			return out, nil
		}
		if !faults.Retryable(err) || attempt >= s.cfg.MaxAttempts {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, faults.Transient("encode", "ask aborted during backoff", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// dedupeSources collapses matches to one source per (document, page range),
// keeping the first (highest-similarity) occurrence.
func dedupeSources(matches []vector.Match) []Source {
	seen := map[string]bool{}
	var out []Source
	for _, m := range matches {
		key := fmt.Sprintf("%s|%d|%d", m.Payload.DocumentID, m.Payload.PageStart, m.Payload.PageEnd)
		if seen[key] {
			continue
		}
		seen[key] = true
		sourceID, err := uuid.Parse(m.Payload.DocumentID)
		if err != nil {
			continue
		}
		out = append(out, Source{
			SourceID:     sourceID,
			DocumentName: m.Payload.DocumentName,
			PageStart:    m.Payload.PageStart,
			PageEnd:      m.Payload.PageEnd,
			Snippet:      m.Payload.Snippet,
		})
	}
	return out
}

func buildPrompt(sources []Source, history []*types.ChatMessage, question string) string {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n---\nContext:\n")
	for i, src := range sources {
		b.WriteString(fmt.Sprintf("[%d] %s (pages %d-%d): %s\n", i+1, src.DocumentName, src.PageStart, src.PageEnd, src.Snippet))
	}
	if len(history) > 0 {
		b.WriteString("---\nConversation so far:\n")
		for _, m := range history {
			b.WriteString(string(m.Role))
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}
	b.WriteString("---\nQuestion:\n")
	b.WriteString(question)
	return b.String()
}
