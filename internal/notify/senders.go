package notify

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

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// LogSender records messages in the log instead of delivering them.
// It is the transport used when no webhook is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a LogSender writing to logger.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message and reports it as delivered.
func (s *LogSender) Send(ctx context.Context, message Message) (Result, error) {
	id := "log-" + uuid.NewString()
	s.logger.InfoContext(ctx, "notification dispatched",
		"channel", string(message.Channel),
		"to", message.To,
		"subject", message.Subject,
		"thread_id", message.ThreadID,
		"message_id", id,
	)
	return Result{Success: true, MessageID: id}, nil
}

// WebhookSender POSTs each message as JSON to a provider bridge. A 2xx reply
// is success; its optional JSON body may carry {"messageId": "..."}.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender builds a sender for url. A nil client gets a 30s timeout.
func NewWebhookSender(url string, client *http.Client) *WebhookSender {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebhookSender{url: url, client: client}
}

// Send posts message to the webhook.
func (s *WebhookSender) Send(ctx context.Context, message Message) (Result, error) {
	if strings.TrimSpace(s.url) == "" {
		return Result{}, fmt.Errorf("notify: webhook url required")
	}
	body, err := json.Marshal(message)
	if err != nil {
		return Result{}, fmt.Errorf("notify: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", message.ThreadID)

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("notify: webhook request: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := fmt.Sprintf("webhook status %d", resp.StatusCode)
		if text := strings.TrimSpace(string(payload)); text != "" {
			reason += ": " + text
		}
		return Result{Success: false, Error: reason}, nil
	}

	var reply struct {
		MessageID string `json:"messageId"`
	}
	if len(payload) > 0 {
		_ = json.Unmarshal(payload, &reply)
	}
	return Result{Success: true, MessageID: reply.MessageID}, nil
}

// RateLimited throttles an underlying sender with a token bucket.
type RateLimited struct {
	next    Sender
	limiter *rate.Limiter
}

// NewRateLimited wraps next so it sends at most perSecond messages per
// second. A non-positive rate returns next unchanged.
func NewRateLimited(next Sender, perSecond float64) Sender {
	if perSecond <= 0 {
		return next
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Send waits for a token, then forwards to the wrapped sender. It returns
// the context error when ctx ends before a token is available.
func (r *RateLimited) Send(ctx context.Context, message Message) (Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("notify: rate limit wait: %w", err)
	}
	return r.next.Send(ctx, message)
}
