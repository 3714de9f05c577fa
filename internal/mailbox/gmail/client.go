// Package gmail implements mailbox.Client against the Gmail REST API.
package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/oauth2"

	"github.com/nhle/mail-agent/internal/auth"
	"github.com/nhle/mail-agent/internal/mailbox"
	"github.com/nhle/mail-agent/internal/model"
)

const providerName = "gmail"

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://gmail.googleapis.com/gmail/v1.
	BaseURL string

	// Tokens supplies the bearer token for each request.
	Tokens oauth2.TokenSource

	// OnUnauthorized runs when the API answers 401, before the
	// AuthError is returned. Sessions use it to clear their tokens.
	OnUnauthorized func()

	// Concurrency bounds parallel metadata fetches while listing.
	Concurrency int

	HTTPClient *http.Client
}

// Client is a thin HTTP client for the Gmail users.messages endpoints.
// It retries on HTTP 429 with exponential backoff.
type Client struct {
	baseURL        string
	tokens         oauth2.TokenSource
	onUnauthorized func()
	concurrency    int
	httpClient     *http.Client
	maxRetries     int
}

var _ mailbox.Client = (*Client)(nil)

// New creates a Gmail client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		tokens:         cfg.Tokens,
		onUnauthorized: cfg.OnUnauthorized,
		concurrency:    concurrency,
		httpClient:     httpClient,
		maxRetries:     3,
	}
}

// ListRecent lists inbox messages and fetches subject, sender and date
// for each of them.
func (c *Client) ListRecent(ctx context.Context, maxResults int) ([]model.MessageSummary, error) {
	q := url.Values{}
	q.Set("labelIds", "INBOX")
	q.Set("maxResults", strconv.Itoa(mailbox.ClampListSize(maxResults)))

	var list listResponse
	if err := c.do(ctx, http.MethodGet, "/users/me/messages?"+q.Encode(), nil, &list); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	if len(list.Messages) == 0 {
		return []model.MessageSummary{}, nil
	}

	summaries := make([]model.MessageSummary, len(list.Messages))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(c.concurrency).WithCancelOnError()
	for i, ref := range list.Messages {
		p.Go(func(ctx context.Context) error {
			meta, err := c.metadata(ctx, ref.ID)
			if err != nil {
				return err
			}
			summaries[i] = meta
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("fetching message metadata: %w", err)
	}

	return summaries, nil
}

func (c *Client) metadata(ctx context.Context, id string) (model.MessageSummary, error) {
	q := url.Values{}
	q.Set("format", "metadata")
	q["metadataHeaders"] = []string{"Subject", "From", "Date"}

	var msg message
	path := "/users/me/messages/" + url.PathEscape(id) + "?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &msg); err != nil {
		return model.MessageSummary{}, err
	}

	return model.MessageSummary{
		ID:      msg.ID,
		Subject: model.OrDefault(headerValue(msg.Payload.Headers, "Subject"), model.NoSubject),
		From:    model.OrDefault(headerValue(msg.Payload.Headers, "From"), model.NoSender),
		Date:    model.OrDefault(headerValue(msg.Payload.Headers, "Date"), model.NoDate),
		Snippet: msg.Snippet,
	}, nil
}

// Read fetches a full message and decodes its preferred body part.
func (c *Client) Read(ctx context.Context, id string) (*model.Message, error) {
	var msg message
	path := "/users/me/messages/" + url.PathEscape(id) + "?format=full"
	if err := c.do(ctx, http.MethodGet, path, nil, &msg); err != nil {
		return nil, fmt.Errorf("reading message %s: %w", id, err)
	}

	plain, html := collectBodies(msg.Payload)
	body := mailbox.PreferredBody(plain, html)

	h := msg.Payload.Headers
	return &model.Message{
		ID:      msg.ID,
		Subject: model.OrDefault(headerValue(h, "Subject"), model.NoSubject),
		From:    model.OrDefault(headerValue(h, "From"), model.NoSender),
		To:      model.OrDefault(headerValue(h, "To"), model.NoRecipient),
		Date:    model.OrDefault(headerValue(h, "Date"), model.NoDate),
		Body:    model.OrDefault(body, model.NoBody),
		Snippet: msg.Snippet,
	}, nil
}

// Send composes draft and submits it as a base64url raw message.
func (c *Client) Send(ctx context.Context, draft model.Draft) (*model.SendReceipt, error) {
	raw, err := mailbox.Compose("", draft)
	if err != nil {
		return nil, err
	}

	var sent messageRef
	req := sendRequest{Raw: mailbox.EncodeBase64URL(raw)}
	if err := c.do(ctx, http.MethodPost, "/users/me/messages/send", req, &sent); err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}

	return &model.SendReceipt{MessageID: sent.ID}, nil
}

// Trash moves a message to the trash.
func (c *Client) Trash(ctx context.Context, id string) (*model.TrashReceipt, error) {
	var trashed messageRef
	path := "/users/me/messages/" + url.PathEscape(id) + "/trash"
	if err := c.do(ctx, http.MethodPost, path, nil, &trashed); err != nil {
		return nil, fmt.Errorf("trashing message %s: %w", id, err)
	}

	return &model.TrashReceipt{ID: model.OrDefault(trashed.ID, id)}, nil
}

// do builds the request, attaches the bearer token, handles rate
// limiting and maps 401/404 onto mailbox errors.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	tok, err := c.tokens.Token()
	if err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			return &mailbox.AuthError{Provider: providerName, Message: "not signed in"}
		}
		return &mailbox.AuthError{Provider: providerName, Message: err.Error()}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		tok.SetAuthHeader(req)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}

		case resp.StatusCode == http.StatusUnauthorized:
			if c.onUnauthorized != nil {
				c.onUnauthorized()
			}
			return &mailbox.AuthError{
				Provider: providerName,
				Message:  "access token rejected; sign in again",
			}

		case resp.StatusCode == http.StatusNotFound:
			return mailbox.ErrNotFound

		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			var apiErr errorResponse
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
				return fmt.Errorf(
					"gmail API error (%d) on %s %s: %s",
					resp.StatusCode, method, path, apiErr.Error.Message,
				)
			}
			return fmt.Errorf(
				"unexpected status %d on %s %s: %s",
				resp.StatusCode, method, path, string(respBody),
			)
		}

		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}
		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and falls back to
// exponential backoff capped at 30s.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if h := resp.Header.Get("Retry-After"); h != "" {
		if seconds, err := strconv.Atoi(h); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

func headerValue(headers []header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// collectBodies walks the MIME tree and returns the first text/plain
// and text/html bodies found.
func collectBodies(part messagePart) (plain, html string) {
	if part.Body.Data != "" {
		decoded, err := mailbox.DecodeBase64URL(part.Body.Data)
		if err == nil {
			switch {
			case strings.HasPrefix(part.MimeType, "text/plain"):
				plain = decoded
			case strings.HasPrefix(part.MimeType, "text/html"):
				html = decoded
			case len(part.Parts) == 0:
				plain = decoded
			}
		}
	}

	for _, child := range part.Parts {
		p, h := collectBodies(child)
		if plain == "" {
			plain = p
		}
		if html == "" {
			html = h
		}
	}
	return plain, html
}
