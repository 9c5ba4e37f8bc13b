package chatbot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tsheringp/pharmstock-backend/pkg/config"
	pkgerrors "github.com/tsheringp/pharmstock-backend/pkg/errors"
)

const sqlSystemPrompt = `You translate questions about a pharmacy inventory
database into a single PostgreSQL SELECT statement. Use only the tables and
columns listed in the schema. Never write INSERT, UPDATE, DELETE or DDL.
Always add LIMIT 20. Reply with the SQL statement only, no explanation and no
code fences.`

const summarySystemPrompt = `You are a pharmacy inventory assistant. Answer
the user's question using only the query results provided. Be concise and
factual. If the results are empty, say no matching records were found.`

// openaiGenerator implements Generator against the OpenAI chat API.
type openaiGenerator struct {
	client openai.Client
	model  string
}

// NewOpenAIGenerator builds a Generator from the OpenAI config. A missing API
// key returns nil so callers can run with the Markdown fallback only.
func NewOpenAIGenerator(cfg config.OpenAIConfig) Generator {
	if cfg.APIKey == "" {
		return nil
	}
	return &openaiGenerator{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}
}

func (g *openaiGenerator) GenerateSQL(ctx context.Context, question, schema string) (string, error) {
	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(sqlSystemPrompt),
			openai.UserMessage(fmt.Sprintf("Schema:\n%s\nQuestion: %s", schema, question)),
		},
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "generate sql")
	}
	if len(completion.Choices) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeUpstream, "empty completion")
	}
	return stripCodeFences(completion.Choices[0].Message.Content), nil
}

func (g *openaiGenerator) Summarize(ctx context.Context, question string, rows []map[string]any) (string, error) {
	payload, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode rows: %w", err)
	}

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summarySystemPrompt),
			openai.UserMessage(fmt.Sprintf("Question: %s\nResults: %s", question, payload)),
		},
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "summarize results")
	}
	if len(completion.Choices) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeUpstream, "empty completion")
	}
	return completion.Choices[0].Message.Content, nil
}

func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```sql")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
