package agent

import "sync"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultMaxTurns is the context size used when none is configured.
const DefaultMaxTurns = 40

// Turn is a single entry in the conversation context.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is what the decision source sees: the ordered turns plus
// any advisory notices raised during the current interaction.
type Transcript struct {
	Turns   []Turn
	Notices []string
}

// ConversationContext is the bounded history of one session. Once it
// holds more than maxTurns turns the oldest are dropped.
type ConversationContext struct {
	mu       sync.Mutex
	turns    []Turn
	maxTurns int
	notices  map[ToolKind]string
}

// NewConversationContext creates an empty context keeping at most
// maxTurns turns.
func NewConversationContext(maxTurns int) *ConversationContext {
	if maxTurns <= 1 {
		maxTurns = DefaultMaxTurns
	}
	return &ConversationContext{
		turns:    make([]Turn, 0, maxTurns),
		maxTurns: maxTurns,
		notices:  make(map[ToolKind]string),
	}
}

// Append adds a turn and drops the oldest turns beyond the limit.
func (c *ConversationContext) Append(role Role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, Turn{Role: role, Content: content})
	if over := len(c.turns) - c.maxTurns; over > 0 {
		c.turns = append(c.turns[:0], c.turns[over:]...)
	}
}

// ReplaceTail swaps the last n turns for t.
func (c *ConversationContext) ReplaceTail(n int, t Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n = min(n, len(c.turns))
	c.turns = append(c.turns[:len(c.turns)-n], t)
}

// SetNotice records the latest notice for kind, replacing any earlier
// one for the same kind.
func (c *ConversationContext) SetNotice(kind ToolKind, text string) {
	c.mu.Lock()
	c.notices[kind] = text
	c.mu.Unlock()
}

// ClearNotices drops every notice.
func (c *ConversationContext) ClearNotices() {
	c.mu.Lock()
	clear(c.notices)
	c.mu.Unlock()
}

// Turns returns a copy of the turns.
func (c *ConversationContext) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn(nil), c.turns...)
}

// Transcript returns a snapshot for the decision source. Notices are
// ordered by tool kind.
func (c *ConversationContext) Transcript() Transcript {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := Transcript{Turns: append([]Turn(nil), c.turns...)}
	for _, kind := range ToolKinds() {
		if n, ok := c.notices[kind]; ok {
			t.Notices = append(t.Notices, n)
		}
	}
	return t
}

// Len returns the number of turns.
func (c *ConversationContext) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Reset clears turns and notices.
func (c *ConversationContext) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = c.turns[:0]
	clear(c.notices)
}
