package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-agent/internal/agent"
	"github.com/nhle/mail-agent/internal/mailbox/memory"
	"github.com/nhle/mail-agent/internal/model"
)

type fakeMessages struct {
	reply   *anthropic.Message
	replies []*anthropic.Message
	err     error
	params  anthropic.MessageNewParams
	calls   int
}

func (f *fakeMessages) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.params = params
	f.calls++
	if len(f.replies) > 0 {
		r := f.replies[0]
		f.replies = f.replies[1:]
		return r, nil
	}
	return f.reply, f.err
}

func toolUse(name, input string) anthropic.ContentBlockUnion {
	return anthropic.ContentBlockUnion{Type: "tool_use", ID: "toolu_" + name, Name: name, Input: json.RawMessage(input)}
}

func newTestClaude(t *testing.T, f *fakeMessages) *Claude {
	t.Helper()
	c, err := newClaude(f, "", 0)
	require.NoError(t, err)
	return c
}

func textOf(p anthropic.ContentBlockParamUnion) string {
	if p.OfText == nil {
		return ""
	}
	return p.OfText.Text
}

func TestDecideMapsEveryTool(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  agent.Decision
	}{
		{toolListMail, `{"maxResults": 5}`, agent.ListMail{MaxResults: 5}},
		{toolListMail, ``, agent.ListMail{}},
		{toolListMail, `{"maxResults": 150}`, agent.ListMail{MaxResults: 150}},
		{toolListMail, `{"maxResults": 0}`, agent.ListMail{}},
		{toolReadMail, `{"id": "abc"}`, agent.ReadMail{ID: "abc"}},
		{toolSendMail, `{"to": "a@b.c", "subject": "s", "body": ""}`, agent.SendMail{To: "a@b.c", Subject: "s"}},
		{toolDeleteMail, `{"id": "abc"}`, agent.DeleteMail{ID: "abc"}},
		{toolRenderPage, `{"html": "<html></html>"}`, agent.Terminal{Output: "<html></html>"}},
		{toolRenderPage, `{"html": ""}`, agent.Terminal{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeMessages{reply: &anthropic.Message{Content: []anthropic.ContentBlockUnion{toolUse(tt.name, tt.input)}}}
			got, err := newTestClaude(t, f).Decide(t.Context(), agent.Transcript{
				Turns: []agent.Turn{{Role: agent.RoleUser, Content: "Initial inbox request"}},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecideRejectsInvalidInput(t *testing.T) {
	tests := map[string]anthropic.ContentBlockUnion{
		"missing id":      toolUse(toolReadMail, `{}`),
		"wrong type":      toolUse(toolListMail, `{"maxResults": "ten"}`),
		"extra field":     toolUse(toolDeleteMail, `{"id": "1", "force": true}`),
		"missing html":    toolUse(toolRenderPage, `{}`),
		"not json object": toolUse(toolReadMail, `[1,2]`),
	}

	for name, block := range tests {
		t.Run(name, func(t *testing.T) {
			f := &fakeMessages{reply: &anthropic.Message{Content: []anthropic.ContentBlockUnion{block}}}
			_, err := newTestClaude(t, f).Decide(t.Context(), agent.Transcript{})
			assert.ErrorIs(t, err, agent.ErrDecisionUnavailable)
		})
	}
}

func TestDecideUnknownTool(t *testing.T) {
	f := &fakeMessages{reply: &anthropic.Message{Content: []anthropic.ContentBlockUnion{toolUse("archive_mail", `{}`)}}}
	_, err := newTestClaude(t, f).Decide(t.Context(), agent.Transcript{})
	assert.ErrorIs(t, err, agent.ErrUnknownToolKind)
}

func TestDecideWithoutToolUse(t *testing.T) {
	f := &fakeMessages{reply: &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "text", Text: "hello"}}}}
	_, err := newTestClaude(t, f).Decide(t.Context(), agent.Transcript{})
	assert.ErrorIs(t, err, agent.ErrDecisionUnavailable)
}

func TestDecideKeepsOnlyFirstToolUse(t *testing.T) {
	f := &fakeMessages{reply: &anthropic.Message{Content: []anthropic.ContentBlockUnion{
		{Type: "text", Text: "Let me look."},
		toolUse(toolDeleteMail, `{"id": "1"}`),
		toolUse(toolRenderPage, `{"html": "<html>deleted</html>"}`),
	}}}

	got, err := newTestClaude(t, f).Decide(t.Context(), agent.Transcript{})
	require.NoError(t, err)
	assert.Equal(t, agent.DeleteMail{ID: "1"}, got)
}

func TestRunAsksAgainAfterEachToolCall(t *testing.T) {
	f := &fakeMessages{replies: []*anthropic.Message{
		{Content: []anthropic.ContentBlockUnion{
			toolUse(toolDeleteMail, `{"id": "1"}`),
			toolUse(toolRenderPage, `{"html": "<html>too early</html>"}`),
		}},
		{Content: []anthropic.ContentBlockUnion{
			toolUse(toolRenderPage, `{"html": "<html>deleted</html>"}`),
		}},
	}}
	mbox := memory.New(model.Message{Subject: "hello", From: "a@b.c", Body: "hi"})
	conv := agent.NewConversationContext(0)

	html, err := agent.New(newTestClaude(t, f), agent.Options{}).Run(t.Context(), conv, mbox, "delete it")
	require.NoError(t, err)

	assert.Equal(t, "<html>deleted</html>", html)
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, []string{"1"}, mbox.Trashed())

	turns := conv.Turns()
	require.Len(t, turns, 3)
	assert.Contains(t, turns[1].Content, "DeleteMail result")
	assert.Equal(t, agent.RenderedMarker, turns[2].Content)
}

func TestDecidePropagatesAPIError(t *testing.T) {
	boom := errors.New("connection refused")
	f := &fakeMessages{err: boom}
	_, err := newTestClaude(t, f).Decide(t.Context(), agent.Transcript{})
	assert.ErrorIs(t, err, boom)
}

func TestRequestParams(t *testing.T) {
	f := &fakeMessages{reply: &anthropic.Message{Content: []anthropic.ContentBlockUnion{toolUse(toolListMail, `{}`)}}}
	c := newTestClaude(t, f)

	_, err := c.Decide(t.Context(), agent.Transcript{Turns: []agent.Turn{{Role: agent.RoleUser, Content: "hi"}}})
	require.NoError(t, err)

	assert.Equal(t, anthropic.Model(defaultModel), f.params.Model)
	assert.Equal(t, int64(defaultMaxTokens), f.params.MaxTokens)
	assert.Len(t, f.params.Tools, 5)
	require.NotNil(t, f.params.ToolChoice.OfAny)
	assert.True(t, f.params.ToolChoice.OfAny.DisableParallelToolUse.Valid())
	assert.True(t, f.params.ToolChoice.OfAny.DisableParallelToolUse.Value)
	require.Len(t, f.params.System, 1)
	assert.Contains(t, f.params.System[0].Text, "render_page")
}

func TestConvertTranscript(t *testing.T) {
	msgs := convertTranscript(agent.Transcript{
		Turns: []agent.Turn{
			{Role: agent.RoleAssistant, Content: "ListMail returned no data."},
			{Role: agent.RoleUser, Content: "User clicked: Inbox"},
			{Role: agent.RoleAssistant, Content: "ListMail returned no data."},
			{Role: agent.RoleAssistant, Content: "ListMail returned no data."},
		},
		Notices: []string{"WARNING: You have already called ListMail 2 times in a row. You should move on."},
	})

	require.Len(t, msgs, 5)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, trimmedNote, textOf(msgs[0].Content[0]))
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[3].Role)
	assert.Len(t, msgs[3].Content, 2)

	last := msgs[4]
	assert.Equal(t, anthropic.MessageParamRoleUser, last.Role)
	assert.Contains(t, textOf(last.Content[0]), "ListMail 2 times")
	assert.Contains(t, textOf(last.Content[0]), nextActionPrompt)
}

func TestConvertTranscriptEndsWithUserTurn(t *testing.T) {
	msgs := convertTranscript(agent.Transcript{
		Turns: []agent.Turn{{Role: agent.RoleUser, Content: "Initial inbox request"}},
	})
	require.Len(t, msgs, 1)
	assert.Equal(t, "Initial inbox request", textOf(msgs[0].Content[0]))
}

func TestNewClaudeRequiresKey(t *testing.T) {
	_, err := NewClaude(Config{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
