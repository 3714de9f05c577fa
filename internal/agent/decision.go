package agent

import "fmt"

// ToolKind enumerates the mailbox tools a decision can invoke.
type ToolKind int

const (
	KindListMail ToolKind = iota + 1
	KindReadMail
	KindSendMail
	KindDeleteMail
)

// ToolKinds returns every valid kind in declaration order.
func ToolKinds() []ToolKind {
	return []ToolKind{KindListMail, KindReadMail, KindSendMail, KindDeleteMail}
}

func (k ToolKind) String() string {
	switch k {
	case KindListMail:
		return "ListMail"
	case KindReadMail:
		return "ReadMail"
	case KindSendMail:
		return "SendMail"
	case KindDeleteMail:
		return "DeleteMail"
	default:
		return fmt.Sprintf("ToolKind(%d)", int(k))
	}
}

// ParseToolKind maps a kind name back to its value.
func ParseToolKind(s string) (ToolKind, bool) {
	for _, k := range ToolKinds() {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Decision is the closed set of answers a decision source can give:
// Terminal, ListMail, ReadMail, SendMail or DeleteMail.
type Decision interface {
	isDecision()
}

// ToolCall is a decision that asks for a mailbox operation.
type ToolCall interface {
	Decision
	Kind() ToolKind
}

// Terminal ends the loop with the rendered page.
type Terminal struct {
	Output string
}

// ListMail lists recent inbox messages.
type ListMail struct {
	MaxResults int
}

// ReadMail fetches one message.
type ReadMail struct {
	ID string
}

// SendMail sends a plain-text message.
type SendMail struct {
	To      string
	Subject string
	Body    string
}

// DeleteMail moves a message to the trash.
type DeleteMail struct {
	ID string
}

func (Terminal) isDecision()   {}
func (ListMail) isDecision()   {}
func (ReadMail) isDecision()   {}
func (SendMail) isDecision()   {}
func (DeleteMail) isDecision() {}

func (ListMail) Kind() ToolKind   { return KindListMail }
func (ReadMail) Kind() ToolKind   { return KindReadMail }
func (SendMail) Kind() ToolKind   { return KindSendMail }
func (DeleteMail) Kind() ToolKind { return KindDeleteMail }
