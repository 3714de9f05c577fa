// Package imap implements mailbox.Client over IMAP for reading and
// SMTP for sending.
package imap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mail-agent/internal/mailbox"
	"github.com/nhle/mail-agent/internal/model"
)

const providerName = "imap"

// trashFolders are tried in order when no trash folder is configured.
var trashFolders = []string{
	"[Gmail]/Trash", "Trash", "Deleted Items", "Deleted Messages", "INBOX.Trash",
}

// Client wraps go-imap v2 for the mailbox operations. Each call opens
// its own connection.
type Client struct {
	imapCfg  model.IMAPConfig
	smtpCfg  model.SMTPConfig
	password string
}

var _ mailbox.Client = (*Client)(nil)

// New creates an IMAP/SMTP mailbox client. The same username and
// password are used for both protocols.
func New(imapCfg model.IMAPConfig, smtpCfg model.SMTPConfig, password string) *Client {
	return &Client{imapCfg: imapCfg, smtpCfg: smtpCfg, password: password}
}

// connect dials the server, logs in and selects INBOX. The caller must
// log out of the returned client.
func (c *Client) connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.imapCfg.Host + ":" + c.imapCfg.Port

	var client *imapclient.Client
	var err error
	if c.imapCfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.imapCfg.Username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &mailbox.AuthError{
			Provider: providerName,
			Message:  fmt.Sprintf("login failed for %s: %v", c.imapCfg.Username, err),
		}
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	return client, nil
}

// ListRecent returns the newest maxResults inbox messages, newest first.
func (c *Client) ListRecent(ctx context.Context, maxResults int) ([]model.MessageSummary, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	searchData, err := client.UIDSearch(listCriteria(), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return []model.MessageSummary{}, nil
	}
	if limit := mailbox.ClampListSize(maxResults); len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	bufs, err := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetching envelopes: %w", err)
	}

	return newestFirst(bufs), nil
}

// Read fetches the full message for a UID and decodes its body.
func (c *Client) Read(ctx context.Context, id string) (*model.Message, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}

	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, mailbox.ErrNotFound
	}
	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message %s: %w", id, err)
	}

	summary := summaryFromEnvelope(buf.UID, buf.Envelope)
	out := &model.Message{
		ID:      summary.ID,
		Subject: summary.Subject,
		From:    summary.From,
		To:      recipientsFromEnvelope(buf.Envelope),
		Date:    summary.Date,
		Body:    model.NoBody,
	}

	if raw := buf.FindBodySection(bodySection); raw != nil {
		body, err := mailbox.ParseBody(bytes.NewReader(raw))
		if err != nil && body == "" {
			body = string(raw)
		}
		out.Body = model.OrDefault(body, model.NoBody)
	}
	out.Snippet = snippet(out.Body)

	return out, nil
}

// Send composes draft and delivers it over SMTP.
func (c *Client) Send(_ context.Context, draft model.Draft) (*model.SendReceipt, error) {
	raw, err := mailbox.Compose(c.imapCfg.Username, draft)
	if err != nil {
		return nil, err
	}
	rcpts, err := mailbox.Recipients(draft.To)
	if err != nil {
		return nil, err
	}

	if err := sendSMTP(c.smtpCfg, c.imapCfg.Username, c.password, rcpts, raw); err != nil {
		return nil, err
	}

	return &model.SendReceipt{MessageID: fmt.Sprintf("smtp-%d", time.Now().UnixNano())}, nil
}

// Trash moves a message into the trash folder. Servers without a known
// trash folder get the \Deleted flag instead, so the message stays
// recoverable until expunged and drops out of ListRecent. Unknown or
// already deleted ids are mailbox.ErrNotFound.
func (c *Client) Trash(ctx context.Context, id string) (*model.TrashReceipt, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}

	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	uidSet := imap.UIDSetNum(uid)

	found, err := client.UIDSearch(existsCriteria(uidSet), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("looking up message %s: %w", id, err)
	}
	if len(found.AllUIDs()) == 0 {
		return nil, fmt.Errorf("message %s: %w", id, mailbox.ErrNotFound)
	}

	for _, folder := range trashCandidates(c.imapCfg.TrashFolder) {
		if _, err := client.Move(uidSet, folder).Wait(); err == nil {
			return &model.TrashReceipt{ID: id}, nil
		}
	}

	storeCmd := client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return nil, fmt.Errorf("flagging message %s deleted: %w", id, err)
	}

	return &model.TrashReceipt{ID: id}, nil
}

// listCriteria matches inbox messages not already flagged \Deleted.
func listCriteria() *imap.SearchCriteria {
	return &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagDeleted}}
}

// existsCriteria matches uids that are still listed.
func existsCriteria(uids imap.UIDSet) *imap.SearchCriteria {
	c := listCriteria()
	c.UID = []imap.UIDSet{uids}
	return c
}

// trashCandidates returns the folders to try moving into, in order.
func trashCandidates(configured string) []string {
	if configured != "" {
		return []string{configured}
	}
	return trashFolders
}

// newestFirst turns fetched envelopes, oldest first, into summaries
// ordered newest first.
func newestFirst(bufs []*imapclient.FetchMessageBuffer) []model.MessageSummary {
	out := make([]model.MessageSummary, 0, len(bufs))
	for i := len(bufs) - 1; i >= 0; i-- {
		out = append(out, summaryFromEnvelope(bufs[i].UID, bufs[i].Envelope))
	}
	return out
}

func summaryFromEnvelope(uid imap.UID, env *imap.Envelope) model.MessageSummary {
	s := model.MessageSummary{
		ID:      strconv.FormatUint(uint64(uid), 10),
		Subject: model.NoSubject,
		From:    model.NoSender,
		Date:    model.NoDate,
	}
	if env == nil {
		return s
	}

	s.Subject = model.OrDefault(env.Subject, model.NoSubject)
	if !env.Date.IsZero() {
		s.Date = env.Date.Format(time.RFC1123Z)
	}
	if len(env.From) > 0 {
		from := env.From[0]
		if from.Name != "" {
			s.From = fmt.Sprintf("%s <%s>", from.Name, from.Addr())
		} else {
			s.From = model.OrDefault(from.Addr(), model.NoSender)
		}
	}
	return s
}

func recipientsFromEnvelope(env *imap.Envelope) string {
	if env == nil || len(env.To) == 0 {
		return model.NoRecipient
	}
	var out bytes.Buffer
	for i, to := range env.To {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(to.Addr())
	}
	return out.String()
}

func snippet(body string) string {
	runes := []rune(body)
	if len(runes) > 120 {
		return string(runes[:120]) + "..."
	}
	return body
}

// parseUID converts a message id to a UID.
func parseUID(id string) (imap.UID, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil || uid == 0 {
		return 0, fmt.Errorf("invalid message id %q: %w", id, errors.Join(mailbox.ErrNotFound, err))
	}
	return imap.UID(uid), nil
}
