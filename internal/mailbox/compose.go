package mailbox

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/mail-agent/internal/model"
)

// ValidateDraft checks that every field is present and that header
// values cannot inject extra header lines.
func ValidateDraft(draft model.Draft) error {
	var missing []string
	if strings.TrimSpace(draft.To) == "" {
		missing = append(missing, "to")
	}
	if strings.TrimSpace(draft.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(draft.Body) == "" {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: "required fields are empty"}
	}

	var unsafe []string
	if strings.ContainsAny(draft.To, "\r\n") {
		unsafe = append(unsafe, "to")
	}
	if strings.ContainsAny(draft.Subject, "\r\n") {
		unsafe = append(unsafe, "subject")
	}
	if len(unsafe) > 0 {
		return &ValidationError{Fields: unsafe, Reason: "header values must not contain line breaks"}
	}
	return nil
}

// Compose builds a plain-text RFC 822 message for draft. from may be
// empty when the provider fills in the sender itself.
func Compose(from string, draft model.Draft) ([]byte, error) {
	if err := ValidateDraft(draft); err != nil {
		return nil, err
	}

	to, err := mail.ParseAddressList(draft.To)
	if err != nil {
		return nil, &ValidationError{Fields: []string{"to"}, Reason: err.Error()}
	}

	var h mail.Header
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.SetSubject(draft.Subject)
	h.SetAddressList("To", to)
	if from != "" {
		sender, err := mail.ParseAddress(from)
		if err != nil {
			return nil, fmt.Errorf("parsing sender %q: %w", from, err)
		}
		h.SetAddressList("From", []*mail.Address{sender})
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, draft.Body); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Recipients returns the bare addresses of a To header value.
func Recipients(to string) ([]string, error) {
	list, err := mail.ParseAddressList(to)
	if err != nil {
		return nil, &ValidationError{Fields: []string{"to"}, Reason: err.Error()}
	}
	addrs := make([]string, 0, len(list))
	for _, a := range list {
		addrs = append(addrs, a.Address)
	}
	return addrs, nil
}

// EncodeBase64URL encodes raw with the URL-safe alphabet and no padding.
func EncodeBase64URL(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeBase64URL decodes URL-safe base64 with or without padding.
func DecodeBase64URL(s string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return "", fmt.Errorf("decoding base64url body: %w", err)
	}
	return string(data), nil
}
