// Package onesignal delivers push notifications through the OneSignal REST
// API. Recipients are addressed by email tag filters so device registration
// stays entirely on the app side.
package onesignal

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

const (
	defaultEndpoint = "https://onesignal.com/api/v1/notifications"
	defaultTimeout  = 10 * time.Second
	maxAttempts     = 3
	retryBackoff    = 500 * time.Millisecond
)

// Notification sounds, selected by booking urgency.
const (
	soundEmergencyAndroid = "emergency_booking"
	soundNormalAndroid    = "normal_booking"
	soundEmergencyIOS     = "emergency_booking.mp3"
	soundNormalIOS        = "normal_booking.mp3"
	soundDefault          = "default"

	// Booking sounds only apply to new-booking pushes; everything else
	// keeps the device default.
	typeSuitableJob = "suitable_job"
)

// Options configures the OneSignal client.
type Options struct {
	AppID   string
	RESTKey string
	// Endpoint overrides the API URL (tests).
	Endpoint   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements core.PushGateway against the OneSignal API.
type Client struct {
	appID    string
	restKey  string
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

var _ core.PushGateway = (*Client)(nil)

// NewClient constructs a OneSignal client.
func NewClient(opts Options) *Client {
	if opts.AppID == "" {
		panic("OneSignal AppID is required")
	}
	if opts.RESTKey == "" {
		panic("OneSignal RESTKey is required")
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "onesignal")
	}

	return &Client{
		appID:    opts.AppID,
		restKey:  opts.RESTKey,
		endpoint: endpoint,
		http:     httpClient,
		logger:   logger,
	}
}

type tagFilter struct {
	Key      string `json:"key,omitempty"`
	Relation string `json:"relation,omitempty"`
	Value    string `json:"value,omitempty"`
	Operator string `json:"operator,omitempty"`
}

type payload struct {
	AppID         string            `json:"app_id"`
	Filters       []tagFilter       `json:"filters"`
	Data          map[string]string `json:"data,omitempty"`
	Headings      map[string]string `json:"headings"`
	Contents      map[string]string `json:"contents"`
	AndroidSound  string            `json:"android_sound"`
	IOSSound      string            `json:"ios_sound"`
	IOSBadgeType  string            `json:"ios_badgeType"`
	IOSBadgeCount int               `json:"ios_badgeCount"`
	SendAfter     string            `json:"send_after,omitempty"`
}

// SendBatch delivers one notification to all recipients in a single API
// call, OR-chaining an email tag filter per recipient.
func (c *Client) SendBatch(ctx context.Context, n core.PushNotification) error {
	if len(n.Recipients) == 0 {
		return nil
	}

	body, err := json.Marshal(c.buildPayload(n))
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = c.post(ctx, body)
		if lastErr == nil {
			c.logger.DebugContext(ctx, "push batch delivered",
				"recipients", len(n.Recipients),
				"emergency", n.Emergency,
			)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * retryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return apperrors.Wrapf(lastErr, apperrors.ErrCodeDelivery,
		"push delivery failed after %d attempts", maxAttempts)
}

func (c *Client) buildPayload(n core.PushNotification) payload {
	filters := make([]tagFilter, 0, len(n.Recipients)*2)
	for i, r := range n.Recipients {
		if i > 0 {
			filters = append(filters, tagFilter{Operator: "OR"})
		}
		filters = append(filters, tagFilter{
			Key:      "email",
			Relation: "=",
			Value:    strings.ToLower(r.PushTag),
		})
	}

	androidSound, iosSound := soundDefault, soundDefault
	if n.Data["notification_type"] == typeSuitableJob {
		if n.Emergency {
			androidSound, iosSound = soundEmergencyAndroid, soundEmergencyIOS
		} else {
			androidSound, iosSound = soundNormalAndroid, soundNormalIOS
		}
	}

	p := payload{
		AppID:         c.appID,
		Filters:       filters,
		Data:          n.Data,
		Headings:      map[string]string{"en": n.Title},
		Contents:      map[string]string{"en": n.Message},
		AndroidSound:  androidSound,
		IOSSound:      iosSound,
		IOSBadgeType:  "Increase",
		IOSBadgeCount: 1,
	}
	if n.SendAfter != nil {
		p.SendAfter = n.SendAfter.UTC().Format(time.RFC3339)
	}
	return p
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Basic "+c.restKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post push notification: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
