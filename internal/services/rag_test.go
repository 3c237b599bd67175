package services

import (
	"context"
	"strings"
	"testing"

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
	"github.com/corvid-labs/corpora-backend/internal/vector/localvec"
)

type ragHarness struct {
	gdb      *gorm.DB
	log      *logger.Logger
	rag      RAGService
	vectors  *localvec.Store
	embedder embed.Embedder
	ws       *types.Workspace
	messages repos.ChatMessageRepo
	sources  repos.ChatMessageSourceRepo
}

func newRAGHarness(t *testing.T) *ragHarness {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	sqlite, err := db.NewSQLiteService(log, t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteService: %v", err)
	}
	if err := sqlite.AutoMigrateAll(); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	gdb := sqlite.DB()

	vectors, err := localvec.NewStore(log, t.TempDir())
	if err != nil {
		t.Fatalf("localvec.NewStore: %v", err)
	}
	embedder := embed.NewLocalEmbedder(log)
	if err := vectors.EnsureCollection(context.Background(), embedder.Dim(), vector.DistanceCosine); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	workspaces := repos.NewWorkspaceRepo(gdb, log)
	sessions := repos.NewChatSessionRepo(gdb, log)
	messages := repos.NewChatMessageRepo(gdb, log)
	sources := repos.NewChatMessageSourceRepo(gdb, log)

	ws, err := workspaces.Create(context.Background(), nil, &types.Workspace{Name: "rag-test"})
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}

	rag := NewRAGService(gdb, log, workspaces, sessions, messages, sources,
		vectors, embedder, llm.NewStubClient(log), RAGConfig{})

	return &ragHarness{
		gdb:      gdb,
		log:      log,
		rag:      rag,
		vectors:  vectors,
		embedder: embedder,
		ws:       ws,
		messages: messages,
		sources:  sources,
	}
}

func (h *ragHarness) indexChunk(t *testing.T, id string, docID uuid.UUID, name, text string, pageStart, pageEnd int) {
	t.Helper()
	vecs, err := h.embedder.Encode(context.Background(), []string{text})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	err = h.vectors.Upsert(context.Background(), []vector.Point{{
		ID:     id,
		Vector: vecs[0],
		Payload: vector.Payload{
			WorkspaceID:  h.ws.ID.String(),
			DocumentID:   docID.String(),
			DocumentName: name,
			PageStart:    pageStart,
			PageEnd:      pageEnd,
			Snippet:      text,
		},
	}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestAskEmptyWorkspaceReturnsNoDocumentsAnswer(t *testing.T) {
	h := newRAGHarness(t)

	resp, err := h.rag.Ask(context.Background(), AskRequest{
		WorkspaceID: h.ws.ID,
		Question:    "anything in here?",
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Answer != NoDocumentsAnswer {
		t.Fatalf("answer: want=%q got=%q", NoDocumentsAnswer, resp.Answer)
	}
	if len(resp.Sources) != 0 {
		t.Fatalf("sources: want empty, got %d", len(resp.Sources))
	}
	if resp.SessionID == uuid.Nil {
		t.Fatalf("session was not created")
	}
}

func TestAskReturnsWorkspaceScopedSources(t *testing.T) {
	h := newRAGHarness(t)
	ctx := context.Background()

	docID := uuid.New()
	h.indexChunk(t, uuid.New().String(), docID, "doc.pdf", "page two discusses beta release planning", 2, 2)
	h.indexChunk(t, uuid.New().String(), docID, "doc.pdf", "page one covers alpha design goals", 1, 1)

	resp, err := h.rag.Ask(ctx, AskRequest{
		WorkspaceID: h.ws.ID,
		Question:    "what is on page two about beta release planning?",
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Answer == "" {
		t.Fatalf("empty answer")
	}
	if len(resp.Sources) == 0 {
		t.Fatalf("no sources returned")
	}
	top := resp.Sources[0]
	if top.DocumentName != "doc.pdf" {
		t.Fatalf("source document: want=doc.pdf got=%q", top.DocumentName)
	}
	if top.SourceID != docID {
		t.Fatalf("source id: want=%s got=%s", docID, top.SourceID)
	}
	if !(top.PageStart <= 2 && 2 <= top.PageEnd) {
		t.Fatalf("expected top source to cover page 2, got %d..%d", top.PageStart, top.PageEnd)
	}
}

func TestAskPersistsAlternatingMessagePairs(t *testing.T) {
	h := newRAGHarness(t)
	ctx := context.Background()

	docID := uuid.New()
	h.indexChunk(t, uuid.New().String(), docID, "doc.pdf", "quarterly revenue grew by ten percent", 1, 1)

	var sessionID uuid.UUID
	for i := 0; i < 3; i++ {
		req := AskRequest{WorkspaceID: h.ws.ID, Question: "how did quarterly revenue change?"}
		if sessionID != uuid.Nil {
			req.SessionID = &sessionID
		}
		resp, err := h.rag.Ask(ctx, req)
		if err != nil {
			t.Fatalf("Ask #%d: %v", i, err)
		}
		sessionID = resp.SessionID
	}

	messages, sources, err := h.rag.Messages(ctx, sessionID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 6 {
		t.Fatalf("messages: want=6 got=%d", len(messages))
	}
	for i, m := range messages {
		wantRole := types.ChatRoleUser
		if i%2 == 1 {
			wantRole = types.ChatRoleAssistant
		}
		if m.Role != wantRole {
			t.Fatalf("message %d role: want=%s got=%s", i, wantRole, m.Role)
		}
	}
	if len(sources) == 0 {
		t.Fatalf("assistant sources not persisted")
	}
	for _, src := range sources {
		if src.PageStart > src.PageEnd {
			t.Fatalf("source page range invalid: %d..%d", src.PageStart, src.PageEnd)
		}
	}
}

func TestAskUnknownSessionIsNotFound(t *testing.T) {
	h := newRAGHarness(t)

	bogus := uuid.New()
	_, err := h.rag.Ask(context.Background(), AskRequest{
		WorkspaceID: h.ws.ID,
		Question:    "hello?",
		SessionID:   &bogus,
	})
	if faults.KindOf(err) != faults.KindNotFound {
		t.Fatalf("kind: want=%s got=%s (err=%v)", faults.KindNotFound, faults.KindOf(err), err)
	}
}

func TestAskSessionFromOtherWorkspaceIsNotFound(t *testing.T) {
	h := newRAGHarness(t)
	ctx := context.Background()

	otherWS, err := repos.NewWorkspaceRepo(h.gdb, h.log).Create(ctx, nil, &types.Workspace{Name: "other"})
	if err != nil {
		t.Fatalf("create other workspace: %v", err)
	}
	session, err := repos.NewChatSessionRepo(h.gdb, h.log).Create(ctx, nil, &types.ChatSession{WorkspaceID: otherWS.ID})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	_, err = h.rag.Ask(ctx, AskRequest{
		WorkspaceID: h.ws.ID,
		Question:    "cross-workspace?",
		SessionID:   &session.ID,
	})
	if faults.KindOf(err) != faults.KindNotFound {
		t.Fatalf("kind: want=%s got=%s (err=%v)", faults.KindNotFound, faults.KindOf(err), err)
	}
}

func TestAskDeterministicWithStubLLM(t *testing.T) {
	h := newRAGHarness(t)
	ctx := context.Background()

	docID := uuid.New()
	h.indexChunk(t, uuid.New().String(), docID, "doc.pdf", "alpha beta gamma", 1, 3)

	first, err := h.rag.Ask(ctx, AskRequest{WorkspaceID: h.ws.ID, Question: "what are the greek letters?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	second, err := h.rag.Ask(ctx, AskRequest{WorkspaceID: h.ws.ID, Question: "what are the greek letters?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if first.Answer != second.Answer {
		t.Fatalf("answers differ:\n%q\n%q", first.Answer, second.Answer)
	}
	if !strings.Contains(first.Answer, "alpha beta gamma") {
		t.Fatalf("answer should ground on the retrieved snippet: %q", first.Answer)
	}
}

func TestBuildPromptShape(t *testing.T) {
	sources := []Source{
		{DocumentName: "doc.pdf", PageStart: 1, PageEnd: 2, Snippet: "alpha"},
	}
	history := []*types.ChatMessage{
		{Role: types.ChatRoleUser, Content: "hi"},
		{Role: types.ChatRoleAssistant, Content: "hello"},
	}
	prompt := buildPrompt(sources, history, "what next?")

	for _, want := range []string{
		"[1] doc.pdf (pages 1-2): alpha",
		"user: hi",
		"assistant: hello",
		"Question:\nwhat next?",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Index(prompt, "Context:") > strings.Index(prompt, "Question:") {
		t.Fatalf("context should precede question")
	}
}

func TestDedupeSourcesKeepsHighestSimilarity(t *testing.T) {
	docID := uuid.New().String()
	matches := []vector.Match{
		{Score: 0.9, Payload: vector.Payload{DocumentID: docID, DocumentName: "a.pdf", PageStart: 1, PageEnd: 1, Snippet: "best"}},
		{Score: 0.8, Payload: vector.Payload{DocumentID: docID, DocumentName: "a.pdf", PageStart: 1, PageEnd: 1, Snippet: "worse"}},
		{Score: 0.7, Payload: vector.Payload{DocumentID: docID, DocumentName: "a.pdf", PageStart: 2, PageEnd: 2, Snippet: "other page"}},
	}
	out := dedupeSources(matches)
	if len(out) != 2 {
		t.Fatalf("deduped length: want=2 got=%d", len(out))
	}
	if out[0].Snippet != "best" {
		t.Fatalf("kept occurrence: want=best got=%q", out[0].Snippet)
	}
}
