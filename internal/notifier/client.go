// Package notifier posts venue deliveries to the external notification
// webhook that sends the actual e-mails.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/martinmuron/prostormat-sub002/internal/models"
)

// ErrRejected means the webhook refused the delivery; retrying will not help.
var ErrRejected = errors.New("notification rejected")

// Config configures the webhook client.
type Config struct {
	URL        string
	Token      string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
}

// Notification is one venue's copy of a broadcast.
type Notification struct {
	BroadcastID uuid.UUID      `json:"broadcastId"`
	VenueID     uuid.UUID      `json:"venueId"`
	VenueName   string         `json:"venueName"`
	Recipients  []string       `json:"recipients"`
	Request     models.Request `json:"request"`
}

type webhookResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// Client calls the notification webhook.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates a webhook client. 5xx responses and transport errors are
// retried RetryCount times.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}
	c := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(5*cfg.RetryWait).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	return &Client{http: c, logger: logger}
}

// Notify posts one notification.
func (c *Client) Notify(ctx context.Context, n Notification) error {
	var out webhookResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(n).
		SetResult(&out).
		Post("")
	if err != nil {
		return fmt.Errorf("call notifier: %w", err)
	}
	switch {
	case resp.StatusCode() >= http.StatusInternalServerError:
		return fmt.Errorf("notifier status %d", resp.StatusCode())
	case resp.StatusCode() >= http.StatusBadRequest:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode(), resp.String())
	case resp.StatusCode() == http.StatusOK && out.Message != "" && !out.Accepted:
		return fmt.Errorf("%w: %s", ErrRejected, out.Message)
	}
	c.logger.Debug("notification delivered",
		zap.String("broadcast_id", n.BroadcastID.String()),
		zap.String("venue_id", n.VenueID.String()),
		zap.Int("status", resp.StatusCode()),
	)
	return nil
}
