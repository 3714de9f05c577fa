// Package memory provides an in-process mailbox used by the demo mode
// and by tests.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/nhle/mail-agent/internal/mailbox"
	"github.com/nhle/mail-agent/internal/model"
)

// Mailbox keeps messages in memory. Inbox order is newest first.
type Mailbox struct {
	mu           sync.Mutex
	inbox        []model.Message
	trash        []model.Message
	sent         []model.Draft
	nextID       int
	unauthorized bool
}

var _ mailbox.Client = (*Mailbox)(nil)

// New returns a mailbox holding msgs, newest first.
func New(msgs ...model.Message) *Mailbox {
	m := &Mailbox{nextID: 1}
	for _, msg := range msgs {
		m.Deliver(msg)
	}
	return m
}

// Seeded returns a mailbox with a few sample messages for demo mode.
func Seeded() *Mailbox {
	now := time.Now()
	return New(
		model.Message{
			Subject: "Welcome to your inbox",
			From:    "Mail Agent <hello@mailagent.local>",
			To:      "you@mailagent.local",
			Date:    now.Add(-72 * time.Hour).Format(time.RFC1123Z),
			Body:    "This is a demo mailbox. Ask the agent to list, read, send or delete messages.",
		},
		model.Message{
			Subject: "Team lunch on Friday",
			From:    "Priya Raman <priya@example.com>",
			To:      "you@mailagent.local",
			Date:    now.Add(-26 * time.Hour).Format(time.RFC1123Z),
			Body:    "Are you joining us at noon? Reply so I can book the table.",
		},
		model.Message{
			Subject: "Invoice #1042",
			From:    "billing@example.com",
			To:      "you@mailagent.local",
			Date:    now.Add(-2 * time.Hour).Format(time.RFC1123Z),
			Body:    "Your invoice for October is attached. Amount due: 120.00 EUR.",
		},
	)
}

// Deliver adds msg to the top of the inbox, assigning an id when empty.
func (m *Mailbox) Deliver(msg model.Message) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = strconv.Itoa(m.nextID)
		m.nextID++
	}
	m.inbox = append([]model.Message{msg}, m.inbox...)
	return msg.ID
}

// SetUnauthorized makes every call fail with an AuthError while on.
func (m *Mailbox) SetUnauthorized(on bool) {
	m.mu.Lock()
	m.unauthorized = on
	m.mu.Unlock()
}

// Sent returns the drafts accepted by Send.
func (m *Mailbox) Sent() []model.Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Draft(nil), m.sent...)
}

// Trashed returns the ids of trashed messages.
func (m *Mailbox) Trashed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.trash))
	for _, msg := range m.trash {
		ids = append(ids, msg.ID)
	}
	return ids
}

func (m *Mailbox) checkAuth() error {
	if m.unauthorized {
		return &mailbox.AuthError{Provider: "memory", Message: "credentials revoked"}
	}
	return nil
}

func (m *Mailbox) ListRecent(ctx context.Context, maxResults int) ([]model.MessageSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkAuth(); err != nil {
		return nil, err
	}

	n := min(mailbox.ClampListSize(maxResults), len(m.inbox))
	out := make([]model.MessageSummary, 0, n)
	for _, msg := range m.inbox[:n] {
		out = append(out, model.MessageSummary{
			ID:      msg.ID,
			Subject: model.OrDefault(msg.Subject, model.NoSubject),
			From:    model.OrDefault(msg.From, model.NoSender),
			Date:    model.OrDefault(msg.Date, model.NoDate),
			Snippet: msg.Snippet,
		})
	}
	return out, nil
}

func (m *Mailbox) Read(ctx context.Context, id string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkAuth(); err != nil {
		return nil, err
	}

	for _, msg := range m.inbox {
		if msg.ID == id {
			msg.Subject = model.OrDefault(msg.Subject, model.NoSubject)
			msg.From = model.OrDefault(msg.From, model.NoSender)
			msg.To = model.OrDefault(msg.To, model.NoRecipient)
			msg.Date = model.OrDefault(msg.Date, model.NoDate)
			msg.Body = model.OrDefault(msg.Body, model.NoBody)
			return &msg, nil
		}
	}
	return nil, mailbox.ErrNotFound
}

func (m *Mailbox) Send(ctx context.Context, draft model.Draft) (*model.SendReceipt, error) {
	if err := mailbox.ValidateDraft(draft); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkAuth(); err != nil {
		return nil, err
	}

	m.sent = append(m.sent, draft)
	id := "sent-" + strconv.Itoa(len(m.sent))
	return &model.SendReceipt{MessageID: id}, nil
}

func (m *Mailbox) Trash(ctx context.Context, id string) (*model.TrashReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkAuth(); err != nil {
		return nil, err
	}

	for i, msg := range m.inbox {
		if msg.ID == id {
			m.inbox = append(m.inbox[:i], m.inbox[i+1:]...)
			m.trash = append(m.trash, msg)
			return &model.TrashReceipt{ID: id}, nil
		}
	}
	return nil, mailbox.ErrNotFound
}
