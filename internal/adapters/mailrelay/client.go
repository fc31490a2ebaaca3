// Package mailrelay sends templated transactional mail through an HTTP
// mail relay API. The relay owns the template rendering; this client only
// ships the template key and its data.
package mailrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nordtolk/booking-api/internal/core"
	apperrors "github.com/nordtolk/booking-api/internal/errors"
)

const defaultTimeout = 10 * time.Second

// Options configures the mail relay client.
type Options struct {
	Endpoint  string
	APIKey    string
	FromEmail string
	FromName  string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements core.Mailer against the relay's send endpoint.
type Client struct {
	endpoint  string
	apiKey    string
	fromEmail string
	fromName  string
	http      *http.Client
	logger    *slog.Logger
}

var _ core.Mailer = (*Client)(nil)

// NewClient constructs a mail relay client.
func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		panic("mail relay Endpoint is required")
	}
	if opts.FromEmail == "" {
		panic("mail relay FromEmail is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "mailrelay")
	}

	return &Client{
		endpoint:  opts.Endpoint,
		apiKey:    opts.APIKey,
		fromEmail: opts.FromEmail,
		fromName:  opts.FromName,
		http:      httpClient,
		logger:    logger,
	}
}

type sendRequest struct {
	FromEmail string         `json:"from_email"`
	FromName  string         `json:"from_name,omitempty"`
	ToEmail   string         `json:"to_email"`
	ToName    string         `json:"to_name,omitempty"`
	Subject   string         `json:"subject"`
	Template  string         `json:"template"`
	Data      map[string]any `json:"data,omitempty"`
}

// Send delivers one templated email.
func (c *Client) Send(ctx context.Context, msg core.EmailMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return apperrors.Validation("email recipient is required")
	}

	body, err := json.Marshal(sendRequest{
		FromEmail: c.fromEmail,
		FromName:  c.fromName,
		ToEmail:   msg.To,
		ToName:    msg.ToName,
		Subject:   msg.Subject,
		Template:  msg.Template,
		Data:      msg.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDelivery, "mail relay unreachable")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.Wrapf(
			fmt.Errorf("mail relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
			apperrors.ErrCodeDelivery, "send mail to %s", msg.To)
	}

	c.logger.DebugContext(ctx, "email delivered", "recipient", msg.To, "template", msg.Template)
	return nil
}
