package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"storefront/internal/model"
	"storefront/internal/monitor"
	"storefront/pkg/limiter"
	"storefront/pkg/log"
)

// WebhookConfig webhook gateway configuration
type WebhookConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
	DMRate  float64
	DMBurst int

	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerFailureRatio float64
	BreakerMinRequests  uint32
}

// StatusError non-2xx answer from the bot bridge
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Body)
}

// WebhookGateway talks JSON over HTTP to the bot bridge process that owns
// the chat connection. Calls go through a circuit breaker; direct messages
// are additionally rate limited per recipient.
type WebhookGateway struct {
	baseURL string
	token   string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	dm      *limiter.KeyedLimiter
	metrics *monitor.Metrics
}

type directMessageRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

type announcementRequest struct {
	Content string         `json:"content"`
	Buttons []model.Button `json:"buttons"`
}

type announcementResponse struct {
	ID string `json:"id"`
}

// NewWebhookGateway creates the gateway
func NewWebhookGateway(cfg WebhookConfig, metrics *monitor.Metrics) *WebhookGateway {
	minRequests := cfg.BreakerMinRequests
	ratio := cfg.BreakerFailureRatio

	settings := gobreaker.Settings{
		Name:        "chat-gateway",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		// a 4xx is the caller's fault, not the bridge's
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			}).Warn("Circuit breaker state changed")
			metrics.SetBreakerState(int(to))
		},
	}

	return &WebhookGateway{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
		cb:      gobreaker.NewCircuitBreaker(settings),
		dm:      limiter.NewKeyedLimiter(cfg.DMRate, cfg.DMBurst, 10*time.Minute),
		metrics: metrics,
	}
}

// SendDirectMessage waits for the recipient's rate budget, then delivers
func (g *WebhookGateway) SendDirectMessage(ctx context.Context, userID, text string) error {
	if err := g.dm.Wait(ctx, userID); err != nil {
		return fmt.Errorf("dm rate wait: %w", err)
	}
	return g.call(ctx, "dm", http.MethodPost, "/messages/direct",
		directMessageRequest{UserID: userID, Content: text}, nil)
}

func (g *WebhookGateway) PostAnnouncement(ctx context.Context, channelID, content string, buttons []model.Button) (model.MessageRef, error) {
	var resp announcementResponse
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	if err := g.call(ctx, "post", http.MethodPost, path, announcementRequest{Content: content, Buttons: buttons}, &resp); err != nil {
		return model.MessageRef{}, err
	}
	if resp.ID == "" {
		return model.MessageRef{}, errors.New("gateway returned an empty message id")
	}
	return model.MessageRef{ChannelID: channelID, MessageID: resp.ID}, nil
}

func (g *WebhookGateway) EditAnnouncement(ctx context.Context, ref model.MessageRef, content string, buttons []model.Button) error {
	if buttons == nil {
		buttons = []model.Button{}
	}
	path := "/channels/" + url.PathEscape(ref.ChannelID) + "/messages/" + url.PathEscape(ref.MessageID)
	return g.call(ctx, "edit", http.MethodPatch, path, announcementRequest{Content: content, Buttons: buttons}, nil)
}

// Sweep drops idle per-user rate buckets
func (g *WebhookGateway) Sweep() int {
	return g.dm.Sweep()
}

func (g *WebhookGateway) call(ctx context.Context, op, method, path string, body, out interface{}) error {
	start := time.Now()
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.send(ctx, method, path, body, out)
	})

	result := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
	case err != nil:
		result = "error"
	}
	g.metrics.RecordGatewayRequest(op, result, time.Since(start))
	return err
}

func (g *WebhookGateway) send(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
