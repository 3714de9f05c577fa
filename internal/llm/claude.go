// Package llm provides the Claude-backed decision source.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/nhle/mail-agent/internal/agent"
)

// ErrNoAPIKey is returned when no Anthropic API key is configured.
var ErrNoAPIKey = errors.New("anthropic API key is not configured")

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 4096
	trimmedNote      = "(Earlier conversation was trimmed.)"
	nextActionPrompt = "Choose the next action."
)

type messagesAPI interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Config configures a Claude decision source.
type Config struct {
	APIKey     string
	Model      string
	MaxTokens  int
	BaseURL    string
	HTTPClient *http.Client
}

// Claude asks Claude for the next decision. Tool choice is forced so
// every reply carries exactly one tool use; render_page is the terminal
// tool.
type Claude struct {
	messages  messagesAPI
	model     string
	maxTokens int
	tools     []anthropic.ToolUnionParam
	decoder   *toolDecoder
	now       func() time.Time
}

var _ agent.DecisionSource = (*Claude)(nil)

// NewClaude creates a Claude decision source.
func NewClaude(cfg Config) (*Claude, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	client := anthropic.NewClient(opts...)

	return newClaude(&client.Messages, cfg.Model, cfg.MaxTokens)
}

func newClaude(messages messagesAPI, model string, maxTokens int) (*Claude, error) {
	if model == "" {
		model = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	defs := toolDefinitions()
	decoder, err := newToolDecoder(defs)
	if err != nil {
		return nil, err
	}
	tools, err := convertTools(defs)
	if err != nil {
		return nil, err
	}

	return &Claude{
		messages:  messages,
		model:     model,
		maxTokens: maxTokens,
		tools:     tools,
		decoder:   decoder,
		now:       time.Now,
	}, nil
}

// Decide asks the model for exactly one decision. Parallel tool use is
// disabled so each decision sees the results of every earlier one; a
// reply that still carries several tool uses yields the first.
func (c *Claude) Decide(ctx context.Context, t agent.Transcript) (agent.Decision, error) {
	log := zerolog.Ctx(ctx)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: buildSystemPrompt(c.now())}},
		Messages:  convertTranscript(t),
		Tools:     c.tools,
		ToolChoice: anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{
			DisableParallelToolUse: anthropic.Bool(true),
		}},
	}

	start := time.Now()
	msg, err := c.messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("claude API error (%d): %w", apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("calling claude: %w", err)
	}
	log.Debug().
		Dur("duration", time.Since(start)).
		Int64("input_tokens", msg.Usage.InputTokens).
		Int64("output_tokens", msg.Usage.OutputTokens).
		Msg("claude replied")

	var uses []anthropic.ContentBlockUnion
	for _, block := range msg.Content {
		if block.Type == "tool_use" {
			uses = append(uses, block)
		}
	}

	if len(uses) == 0 {
		return nil, fmt.Errorf("%w: reply contained no tool use (stop reason %q)",
			agent.ErrDecisionUnavailable, msg.StopReason)
	}
	if len(uses) > 1 {
		log.Warn().Int("tool_uses", len(uses)).Str("kept", uses[0].Name).Msg("discarding extra tool uses")
	}
	return c.decoder.decode(uses[0].Name, uses[0].Input)
}

// convertTranscript maps turns onto alternating messages. Consecutive
// turns of one role share a message, the first message is always from
// the user and the last one carries the notices and the request for
// the next action.
func convertTranscript(t agent.Transcript) []anthropic.MessageParam {
	var msgs []anthropic.MessageParam

	appendText := func(role anthropic.MessageParamRole, text string) {
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, anthropic.NewTextBlock(text))
			return
		}
		msgs = append(msgs, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(text)},
		})
	}

	for i, turn := range t.Turns {
		role := anthropic.MessageParamRoleUser
		if turn.Role == agent.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
			if i == 0 {
				appendText(anthropic.MessageParamRoleUser, trimmedNote)
			}
		}
		appendText(role, turn.Content)
	}

	if n := len(msgs); n == 0 || msgs[n-1].Role == anthropic.MessageParamRoleAssistant || len(t.Notices) > 0 {
		var b strings.Builder
		for _, notice := range t.Notices {
			b.WriteString(notice)
			b.WriteString("\n")
		}
		b.WriteString(nextActionPrompt)
		appendText(anthropic.MessageParamRoleUser, b.String())
	}

	return msgs
}

func convertTools(defs []toolDef) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(def.Schema, &schema); err != nil {
			return nil, fmt.Errorf("encoding schema for %s: %w", def.Name, err)
		}
		tool := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: schema,
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out, nil
}
