package mailbox

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
)

// PreferredBody returns plain when it is non-empty, otherwise html.
func PreferredBody(plain, html string) string {
	if strings.TrimSpace(plain) != "" {
		return plain
	}
	return html
}

// ParseBody reads an RFC 822 message and returns its text/plain part,
// falling back to the text/html part. Attachments are skipped.
func ParseBody(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("reading message: %w", err)
	}
	defer mr.Close()

	var plain, html string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return PreferredBody(plain, html), fmt.Errorf("reading message part: %w", err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case (contentType == "" || strings.HasPrefix(contentType, "text/plain")) && plain == "":
			plain = string(body)
		case strings.HasPrefix(contentType, "text/html") && html == "":
			html = string(body)
		}
	}

	return PreferredBody(plain, html), nil
}
