package chatbot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tsheringp/pharmstock-backend/pkg/config"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
)

type stubGenerator struct {
	sql        string
	sqlErr     error
	summary    string
	summaryErr error
}

func (s *stubGenerator) GenerateSQL(ctx context.Context, question, schema string) (string, error) {
	return s.sql, s.sqlErr
}

func (s *stubGenerator) Summarize(ctx context.Context, question string, rows []map[string]any) (string, error) {
	return s.summary, s.summaryErr
}

type stubHistory struct {
	saved map[string][]Turn
}

func newStubHistory() *stubHistory {
	return &stubHistory{saved: map[string][]Turn{}}
}

func (s *stubHistory) Load(ctx context.Context, userID, conversationID string) ([]Turn, error) {
	return s.saved[userID+"/"+conversationID], nil
}

func (s *stubHistory) Save(ctx context.Context, userID, conversationID string, turns []Turn) error {
	s.saved[userID+"/"+conversationID] = turns
	return nil
}

type stubRunner struct {
	queries []string
	rows    []map[string]any
	err     error
}

func (s *stubRunner) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func testChatbotConfig() config.ChatbotConfig {
	return config.ChatbotConfig{
		StatementTimeout: 5 * time.Second,
		MaxRows:          20,
		HistoryTTL:       24 * time.Hour,
		HistoryMaxTurns:  10,
	}
}

func TestAskMatchesPredefinedQuery(t *testing.T) {
	runner := &stubRunner{rows: []map[string]any{{"name": "Paracetamol 500mg", "stock": 3}}}
	generator := &stubGenerator{summary: "Paracetamol is running low with 3 units left."}
	history := newStubHistory()

	svc, err := NewService(generator, history, runner, testChatbotConfig(), nil)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	reply, err := svc.Ask(context.Background(), AskInput{
		UserID: uuid.New(),
		Role:   enums.UserRolePharmacy,
		Query:  "Which drugs are low stock?",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if reply.Reply != "Paracetamol is running low with 3 units left." {
		t.Fatalf("unexpected reply %q", reply.Reply)
	}
	if reply.ConversationID == "" {
		t.Fatalf("expected a conversation id")
	}
	if len(runner.queries) != 1 || !strings.Contains(runner.queries[0], "stock <= 10") {
		t.Fatalf("expected the low stock query, got %v", runner.queries)
	}
}

func TestAskRunsValidatedGeneratedSQL(t *testing.T) {
	runner := &stubRunner{rows: []map[string]any{{"name": "Insulin 100IU"}}}
	generator := &stubGenerator{
		sql:     "SELECT d.name FROM drugs d WHERE d.price > 100 LIMIT 20",
		summary: "Only Insulin costs more than 100.",
	}
	svc, _ := NewService(generator, newStubHistory(), runner, testChatbotConfig(), nil)

	reply, err := svc.Ask(context.Background(), AskInput{
		UserID: uuid.New(),
		Role:   enums.UserRolePharmacy,
		Query:  "Which items cost more than 100?",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if reply.Reply != "Only Insulin costs more than 100." {
		t.Fatalf("unexpected reply %q", reply.Reply)
	}
	if len(runner.queries) != 1 || !strings.Contains(runner.queries[0], "d.price > 100") {
		t.Fatalf("expected the generated query, got %v", runner.queries)
	}
}

func TestAskRejectsInvalidGeneratedSQLAndFallsBack(t *testing.T) {
	runner := &stubRunner{rows: []map[string]any{{"name": "Aspirin 75mg", "stock": 50}}}
	generator := &stubGenerator{
		sql:     "SELECT d.shelf_position FROM drugs d",
		summary: "Here is your stock overview.",
	}
	svc, _ := NewService(generator, newStubHistory(), runner, testChatbotConfig(), nil)

	_, err := svc.Ask(context.Background(), AskInput{
		UserID: uuid.New(),
		Role:   enums.UserRolePharmacy,
		Query:  "Where is the aspirin shelved?",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	// The hallucinated column must never reach the runner.
	for _, query := range runner.queries {
		if strings.Contains(query, "shelf_position") {
			t.Fatalf("invalid sql was executed: %q", query)
		}
	}
	if len(runner.queries) != 1 {
		t.Fatalf("expected one fallback query, got %v", runner.queries)
	}
}

func TestAskUpstreamFailureUsesMarkdownFallback(t *testing.T) {
	runner := &stubRunner{rows: []map[string]any{{"name": "Aspirin 75mg", "stock": 50}}}
	generator := &stubGenerator{
		sqlErr:     fmt.Errorf("model unavailable"),
		summaryErr: fmt.Errorf("model unavailable"),
	}
	svc, _ := NewService(generator, newStubHistory(), runner, testChatbotConfig(), nil)

	reply, err := svc.Ask(context.Background(), AskInput{
		UserID: uuid.New(),
		Role:   enums.UserRolePharmacy,
		Query:  "Show me my stock levels",
	})
	if err != nil {
		t.Fatalf("upstream failure must not surface, got %v", err)
	}
	if !strings.Contains(reply.Reply, "| name | stock |") {
		t.Fatalf("expected markdown table fallback, got %q", reply.Reply)
	}
	if !strings.Contains(reply.Reply, "Aspirin 75mg") {
		t.Fatalf("expected row data in fallback, got %q", reply.Reply)
	}
}

func TestAskAppendsHistoryAndTrims(t *testing.T) {
	runner := &stubRunner{rows: []map[string]any{}}
	generator := &stubGenerator{summary: "Nothing found."}
	history := newStubHistory()

	cfg := testChatbotConfig()
	cfg.HistoryMaxTurns = 2
	svc, _ := NewService(generator, history, runner, cfg, nil)

	userID := uuid.New()
	conversationID := uuid.NewString()
	for i := 0; i < 4; i++ {
		_, err := svc.Ask(context.Background(), AskInput{
			UserID:         userID,
			Role:           enums.UserRolePharmacy,
			Query:          fmt.Sprintf("stock question %d", i),
			ConversationID: conversationID,
		})
		if err != nil {
			t.Fatalf("ask %d: %v", i, err)
		}
	}

	turns := history.saved[userID.String()+"/"+conversationID]
	if len(turns) != 4 {
		t.Fatalf("expected history trimmed to 4 turns got %d", len(turns))
	}
	if turns[len(turns)-2].Role != "user" || turns[len(turns)-1].Role != "assistant" {
		t.Fatalf("unexpected turn ordering %+v", turns)
	}
}

func TestAskSeedsHistoryFromClientTurns(t *testing.T) {
	runner := &stubRunner{rows: []map[string]any{}}
	generator := &stubGenerator{summary: "Nothing found."}
	history := newStubHistory()
	svc, _ := NewService(generator, history, runner, testChatbotConfig(), nil)

	userID := uuid.New()
	seed := []Turn{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}

	reply, err := svc.Ask(context.Background(), AskInput{
		UserID:  userID,
		Role:    enums.UserRolePharmacy,
		Query:   "Which drugs are low stock?",
		History: seed,
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	turns := history.saved[userID.String()+"/"+reply.ConversationID]
	if len(turns) != 4 {
		t.Fatalf("expected seeded history of 4 turns got %d", len(turns))
	}
	if turns[0].Content != "earlier question" || turns[1].Content != "earlier answer" {
		t.Fatalf("expected client turns first, got %+v", turns)
	}

	// A stored conversation keeps its own turns; the client copy is ignored.
	_, err = svc.Ask(context.Background(), AskInput{
		UserID:         userID,
		Role:           enums.UserRolePharmacy,
		Query:          "And expiring drugs?",
		ConversationID: reply.ConversationID,
		History:        []Turn{{Role: "user", Content: "stale client copy"}},
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	turns = history.saved[userID.String()+"/"+reply.ConversationID]
	if len(turns) != 6 {
		t.Fatalf("expected 6 turns got %d", len(turns))
	}
	if turns[0].Content != "earlier question" {
		t.Fatalf("stored turns must win over the client copy, got %+v", turns)
	}
}

func TestAskRequiresQuery(t *testing.T) {
	svc, _ := NewService(&stubGenerator{}, newStubHistory(), &stubRunner{}, testChatbotConfig(), nil)

	_, err := svc.Ask(context.Background(), AskInput{
		UserID: uuid.New(),
		Role:   enums.UserRolePharmacy,
		Query:  "   ",
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSellerGetsPendingOrdersQuery(t *testing.T) {
	runner := &stubRunner{rows: []map[string]any{}}
	generator := &stubGenerator{summary: "You have no pending orders."}
	svc, _ := NewService(generator, newStubHistory(), runner, testChatbotConfig(), nil)

	_, err := svc.Ask(context.Background(), AskInput{
		UserID: uuid.New(),
		Role:   enums.UserRoleSeller,
		Query:  "What orders are pending?",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(runner.queries) != 1 || !strings.Contains(runner.queries[0], "oi.seller_id = ?") {
		t.Fatalf("expected pending orders query, got %v", runner.queries)
	}
}
