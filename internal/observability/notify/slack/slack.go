// Package slack posts guard toasts to a Slack incoming webhook.
package slack

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

	toast "github.com/coverdesk/portal-gate/internal/notify"
	obsnotify "github.com/coverdesk/portal-gate/internal/observability/notify"
)

var _ obsnotify.Sink = (*Client)(nil)

const (
	defaultTimeout  = 5 * time.Second
	defaultUsername = "portal-gate"
	defaultTitle    = "Portal access notice"
	retryStep       = 200 * time.Millisecond
	maxRetryAfter   = 30 * time.Second
	errorBodyLimit  = 4096
)

// Config describes a webhook destination.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// PortalURL is joined with a toast's path to link the affected page.
	PortalURL string
}

// Client delivers toasts to one webhook.
type Client struct {
	webhook  string
	channel  string
	username string
	retries  int
	portal   *url.URL
	http     *http.Client
}

// NewClient validates cfg and applies defaults.
func NewClient(cfg Config) (*Client, error) {
	webhook := strings.TrimSpace(cfg.WebhookURL)
	if webhook == "" {
		return nil, errors.New("slack webhook url is required")
	}

	hc := cfg.Client
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = defaultUsername
	}

	return &Client{
		webhook:  webhook,
		channel:  strings.TrimSpace(cfg.Channel),
		username: username,
		retries:  max(cfg.RetryLimit, 0),
		portal:   parsePortalURL(cfg.PortalURL),
		http:     hc,
	}, nil
}

func parsePortalURL(raw string) *url.URL {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return u
}

type message struct {
	Text     string  `json:"text"`
	Username string  `json:"username"`
	Channel  string  `json:"channel,omitempty"`
	Blocks   []block `json:"blocks,omitempty"`
}

type block struct {
	Type string     `json:"type"`
	Text *blockText `json:"text,omitempty"`
}

type blockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// deliveryError carries the webhook status so SendToast can stop on 4xx.
type deliveryError struct {
	status     int
	body       string
	retryAfter time.Duration
}

func (e *deliveryError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("slack webhook returned %d", e.status)
	}
	return fmt.Sprintf("slack webhook returned %d: %s", e.status, e.body)
}

func (e *deliveryError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= http.StatusInternalServerError
}

// SendToast posts t. Transport failures, 429 and 5xx replies are retried up
// to RetryLimit times with a linear backoff; a Retry-After header overrides
// the step when present.
func (c *Client) SendToast(ctx context.Context, t toast.Toast) error {
	body, err := json.Marshal(c.formatMessage(t))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		lastErr = c.post(ctx, body)
		if lastErr == nil {
			return nil
		}

		wait := time.Duration(attempt+1) * retryStep
		var de *deliveryError
		if errors.As(lastErr, &de) {
			if !de.retryable() {
				return lastErr
			}
			if de.retryAfter > 0 {
				wait = de.retryAfter
			}
		}
		if attempt == c.retries {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}
	return lastErr
}

func (c *Client) formatMessage(t toast.Toast) message {
	at := t.At
	if at.IsZero() {
		at = time.Now()
	}
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = defaultTitle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n", kindEmoji(t.Kind), slackEscaper.Replace(title))
	writeField(&b, "Kind", string(t.Kind))
	writeField(&b, "Page", c.pageRef(t.Path))
	writeField(&b, "Detail", slackEscaper.Replace(t.Message))
	writeField(&b, "Timestamp", at.UTC().Format(time.RFC3339))
	text := strings.TrimSuffix(b.String(), "\n")

	return message{
		Text:     text,
		Username: c.username,
		Channel:  c.channel,
		Blocks:   []block{{Type: "section", Text: &blockText{Type: "mrkdwn", Text: text}}},
	}
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func kindEmoji(k toast.Kind) string {
	switch k {
	case toast.KindError:
		return ":rotating_light:"
	case toast.KindWarning:
		return ":warning:"
	default:
		return ":information_source:"
	}
}

func writeField(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "• %s: %s\n", label, value)
}

// pageRef renders a path as a portal link when PortalURL is set, else as code.
func (c *Client) pageRef(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	label := slackEscaper.Replace(p)
	ref, err := url.Parse(p)
	if c.portal == nil || err != nil || ref.IsAbs() || ref.Host != "" {
		return "`" + label + "`"
	}
	link := c.portal.JoinPath(ref.Path)
	link.RawQuery = ref.RawQuery
	return fmt.Sprintf("<%s|%s>", link.String(), label)
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return &deliveryError{
		status:     resp.StatusCode,
		body:       strings.TrimSpace(string(raw)),
		retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// parseRetryAfter reads delay-seconds only, capped at maxRetryAfter.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter)
}
