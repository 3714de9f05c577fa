package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/mail-agent/internal/mailbox"
	"github.com/nhle/mail-agent/internal/model"
)

var errMissingID = &mailbox.ValidationError{Fields: []string{"id"}, Reason: "required fields are empty"}

// Dispatch runs call against mbox. Mailbox failures come back as a
// failed ToolResult; the error is only set for a kind the dispatcher
// does not know.
func Dispatch(ctx context.Context, mbox mailbox.Client, call ToolCall) (ToolResult, error) {
	switch c := call.(type) {
	case ListMail:
		msgs, err := mbox.ListRecent(ctx, mailbox.ClampListSize(c.MaxResults))
		if err != nil {
			return FailedResult("", err), nil
		}
		items := make([]Record, 0, len(msgs))
		for _, m := range msgs {
			items = append(items, summaryRecord(m))
		}
		return ListResult(items), nil

	case ReadMail:
		if strings.TrimSpace(c.ID) == "" {
			return FailedResult("", errMissingID), nil
		}
		msg, err := mbox.Read(ctx, c.ID)
		if err != nil {
			return FailedResult(c.ID, err), nil
		}
		return ObjectResult(c.ID, messageRecord(msg)), nil

	case SendMail:
		draft := model.Draft{To: c.To, Subject: c.Subject, Body: c.Body}
		if err := mailbox.ValidateDraft(draft); err != nil {
			return FailedResult("", err), nil
		}
		receipt, err := mbox.Send(ctx, draft)
		if err != nil {
			return FailedResult("", err), nil
		}
		return ObjectResult("", Record{
			{Name: "status", Value: "sent"},
			{Name: "messageId", Value: receipt.MessageID},
			{Name: "to", Value: c.To},
			{Name: "subject", Value: c.Subject},
		}), nil

	case DeleteMail:
		if strings.TrimSpace(c.ID) == "" {
			return FailedResult("", errMissingID), nil
		}
		receipt, err := mbox.Trash(ctx, c.ID)
		if err != nil {
			return FailedResult(c.ID, err), nil
		}
		return ObjectResult(c.ID, Record{
			{Name: "status", Value: "moved to trash"},
			{Name: "id", Value: receipt.ID},
		}), nil

	default:
		return ToolResult{}, fmt.Errorf("%w: %T", ErrUnknownToolKind, call)
	}
}

func summaryRecord(m model.MessageSummary) Record {
	return Record{
		{Name: "id", Value: m.ID},
		{Name: "subject", Value: m.Subject},
		{Name: "from", Value: m.From},
		{Name: "date", Value: m.Date},
		{Name: "snippet", Value: m.Snippet},
	}
}

func messageRecord(m *model.Message) Record {
	return Record{
		{Name: "id", Value: m.ID},
		{Name: "subject", Value: m.Subject},
		{Name: "from", Value: m.From},
		{Name: "to", Value: m.To},
		{Name: "date", Value: m.Date},
		{Name: "body", Value: m.Body},
	}
}

// targetOf returns the identifier a call acts on, for logs and the
// action journal.
func targetOf(call ToolCall) string {
	switch c := call.(type) {
	case ReadMail:
		return c.ID
	case DeleteMail:
		return c.ID
	case SendMail:
		return c.To
	default:
		return ""
	}
}

// outcomeOf summarizes a result for the action journal.
func outcomeOf(r ToolResult) string {
	if r.Failed() {
		if errors.Is(r.Err(), mailbox.ErrNotFound) {
			return "not found"
		}
		return r.Err().Error()
	}
	return "ok"
}
