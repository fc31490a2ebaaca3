// Package smsgw sends SMS through a Twilio-compatible messaging API.
package smsgw

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nordtolk/booking-api/internal/core"
	apperrors "github.com/nordtolk/booking-api/internal/errors"
)

const defaultTimeout = 10 * time.Second

// Options configures the SMS gateway client.
type Options struct {
	// Endpoint is the messages URL, e.g.
	// https://api.twilio.com/2010-04-01/Accounts/{sid}/Messages.json
	Endpoint   string
	AccountSID string
	AuthToken  string
	From       string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements core.SMSGateway over a form-encoded messages endpoint.
type Client struct {
	endpoint   string
	accountSID string
	authToken  string
	from       string
	http       *http.Client
	logger     *slog.Logger
}

var _ core.SMSGateway = (*Client)(nil)

// NewClient constructs an SMS gateway client.
func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		panic("SMS gateway Endpoint is required")
	}
	if opts.From == "" {
		panic("SMS gateway From number is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "smsgw")
	}

	return &Client{
		endpoint:   opts.Endpoint,
		accountSID: opts.AccountSID,
		authToken:  opts.AuthToken,
		from:       opts.From,
		http:       httpClient,
		logger:     logger,
	}
}

// Send delivers one SMS.
func (c *Client) Send(ctx context.Context, to, message string) error {
	if strings.TrimSpace(to) == "" {
		return apperrors.Validation("sms recipient is required")
	}
	if strings.TrimSpace(message) == "" {
		return apperrors.Validation("sms message is required")
	}

	form := url.Values{}
	form.Set("From", c.from)
	form.Set("To", to)
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.accountSID != "" {
		req.SetBasicAuth(c.accountSID, c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDelivery, "sms gateway unreachable")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.Wrapf(
			fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
			apperrors.ErrCodeDelivery, "send sms to %s", to)
	}

	c.logger.DebugContext(ctx, "sms delivered", "recipient", to)
	return nil
}
