package chatbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tsheringp/pharmstock-backend/internal/chatbot/sqlguard"
	"github.com/tsheringp/pharmstock-backend/pkg/config"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
	pkgerrors "github.com/tsheringp/pharmstock-backend/pkg/errors"
	"github.com/tsheringp/pharmstock-backend/pkg/logger"
)

// Generator produces SQL for a question and turns query results into prose.
type Generator interface {
	GenerateSQL(ctx context.Context, question, schema string) (string, error)
	Summarize(ctx context.Context, question string, rows []map[string]any) (string, error)
}

// HistoryStore keeps per-conversation turns.
type HistoryStore interface {
	Load(ctx context.Context, userID, conversationID string) ([]Turn, error)
	Save(ctx context.Context, userID, conversationID string, turns []Turn) error
}

// QueryRunner executes a read-only query and returns its rows as maps.
type QueryRunner interface {
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// Turn is one exchange in a conversation.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Service answers natural-language questions about the caller's data.
type Service interface {
	Ask(ctx context.Context, input AskInput) (*Reply, error)
}

// AskInput carries one chatbot question. History holds client-supplied prior
// turns and only seeds a conversation that has no stored turns yet.
type AskInput struct {
	UserID         uuid.UUID
	Role           enums.UserRole
	Query          string
	ConversationID string
	History        []Turn
}

// Reply is the chatbot response envelope.
type Reply struct {
	Reply          string    `json:"reply"`
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
}

type service struct {
	generator Generator
	history   HistoryStore
	runner    QueryRunner
	cfg       config.ChatbotConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the chatbot service with the required dependencies.
func NewService(generator Generator, history HistoryStore, runner QueryRunner, cfg config.ChatbotConfig, logg *logger.Logger) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("query runner required")
	}
	if history == nil {
		return nil, fmt.Errorf("history store required")
	}
	return &service{
		generator: generator,
		history:   history,
		runner:    runner,
		cfg:       cfg,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) Ask(ctx context.Context, input AskInput) (*Reply, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	question := strings.TrimSpace(input.Query)
	if question == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query is required")
	}

	conversationID := input.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	rows, err := s.resolveRows(ctx, input.UserID, input.Role, question)
	if err != nil {
		return nil, err
	}

	reply := s.compose(ctx, question, rows)

	s.appendHistory(ctx, input.UserID.String(), conversationID, question, reply, input.History)

	return &Reply{
		Reply:          reply,
		ConversationID: conversationID,
		Timestamp:      s.now(),
	}, nil
}

// resolveRows picks the data path: a predefined parameterized query when the
// question matches one, otherwise generated SQL that must pass the allow-list
// validator. Invalid generated SQL falls back to the role's default query.
func (s *service) resolveRows(ctx context.Context, userID uuid.UUID, role enums.UserRole, question string) ([]map[string]any, error) {
	if predefined := matchPredefined(question, role); predefined != nil {
		rows, err := s.runner.Query(ctx, predefined.SQL, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "run predefined query")
		}
		return rows, nil
	}

	generated := s.generateSQL(ctx, question)
	if generated != "" {
		result := sqlguard.Validate(generated, CanonicalSchema)
		if result.Valid {
			rows, err := s.runner.Query(ctx, generated)
			if err == nil {
				return rows, nil
			}
			if s.logg != nil {
				s.logg.Error(ctx, "generated query failed, falling back", err)
			}
		} else if s.logg != nil {
			s.logg.Warn(ctx, "generated sql rejected: "+strings.Join(result.Invalid, "; "))
		}
	}

	fallback := fallbackPredefined(role)
	rows, err := s.runner.Query(ctx, fallback.SQL, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "run fallback query")
	}
	return rows, nil
}

func (s *service) generateSQL(ctx context.Context, question string) string {
	if s.generator == nil {
		return ""
	}
	generated, err := s.generator.GenerateSQL(ctx, question, schemaPrompt())
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "sql generation unavailable")
		}
		return ""
	}
	return strings.TrimSpace(generated)
}

// compose asks the text model to phrase the answer; when the model is down
// the deterministic Markdown formatter takes over so the user still gets the
// data.
func (s *service) compose(ctx context.Context, question string, rows []map[string]any) string {
	if len(rows) > s.cfg.MaxRows && s.cfg.MaxRows > 0 {
		rows = rows[:s.cfg.MaxRows]
	}
	if s.generator != nil {
		reply, err := s.generator.Summarize(ctx, question, rows)
		if err == nil && strings.TrimSpace(reply) != "" {
			return reply
		}
		if err != nil && s.logg != nil {
			s.logg.Warn(ctx, "summarization unavailable, using markdown fallback")
		}
	}
	return FormatMarkdown(rows)
}

func (s *service) appendHistory(ctx context.Context, userID, conversationID, question, reply string, seed []Turn) {
	turns, err := s.history.Load(ctx, userID, conversationID)
	if err != nil {
		turns = nil
	}
	if len(turns) == 0 && len(seed) > 0 {
		turns = append([]Turn(nil), seed...)
	}
	now := s.now()
	turns = append(turns,
		Turn{Role: "user", Content: question, Timestamp: now},
		Turn{Role: "assistant", Content: reply, Timestamp: now},
	)
	if max := s.cfg.HistoryMaxTurns * 2; max > 0 && len(turns) > max {
		turns = turns[len(turns)-max:]
	}
	if err := s.history.Save(ctx, userID, conversationID, turns); err != nil && s.logg != nil {
		s.logg.Error(ctx, "persist conversation history failed", err)
	}
}
