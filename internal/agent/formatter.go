package agent

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nhle/mail-agent/internal/mailbox"
)

// MissingValue stands in for empty field values.
const MissingValue = "N/A"

// Format renders a tool result as the text appended to the context.
// It is the only view the decision source gets of a tool outcome.
func Format(result ToolResult, kind ToolKind) string {
	if result.Failed() {
		return failureLine(kind, result.Target, result.Err())
	}

	if result.Single() {
		var b strings.Builder
		if result.Target != "" {
			fmt.Fprintf(&b, "%s result for ID %s:", kind, result.Target)
		} else {
			fmt.Fprintf(&b, "%s result:", kind)
		}
		for _, f := range result.Item {
			b.WriteString("\n")
			writeField(&b, f)
		}
		return b.String()
	}

	if len(result.Items) == 0 {
		return fmt.Sprintf("%s returned no data.", kind)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s returned %d result(s):", kind, len(result.Items))
	for _, rec := range result.Items {
		b.WriteString("\n")
		for i, f := range rec {
			if i > 0 {
				b.WriteString(", ")
			}
			writeField(&b, f)
		}
	}
	return b.String()
}

func writeField(b *strings.Builder, f Field) {
	b.WriteString(capitalize(f.Name))
	b.WriteString(": ")
	if strings.TrimSpace(f.Value) == "" {
		b.WriteString(MissingValue)
		return
	}
	b.WriteString(f.Value)
}

func failureLine(kind ToolKind, target string, err error) string {
	if target != "" {
		return fmt.Sprintf("Failed to run %s for ID %s: %s", kind, target, failureReason(err))
	}
	return fmt.Sprintf("Failed to run %s: %s", kind, failureReason(err))
}

func failureReason(err error) string {
	var verr *mailbox.ValidationError
	switch {
	case mailbox.IsUnauthorized(err):
		return "mailbox authorization expired; ask the user to sign in again"
	case errors.Is(err, mailbox.ErrNotFound):
		return "message not found"
	case errors.As(err, &verr):
		return verr.Error()
	default:
		return err.Error()
	}
}

func capitalize(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}
