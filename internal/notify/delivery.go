package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/guidemeet/backend/internal/events"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DeliveryClient posts notifications to the delivery service, throttled
// to a fixed rate.
type DeliveryClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

func NewDeliveryClient(baseURL string, perSecond float64, log *zap.Logger) *DeliveryClient {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &DeliveryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		log:     log,
	}
}

func (c *DeliveryClient) Deliver(ctx context.Context, n Notification) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/notify", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivery service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("delivery service returned %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

// Bridge forwards notification events to the delivery service.
type Bridge struct {
	client *DeliveryClient
	log    *zap.Logger
}

func NewBridge(client *DeliveryClient, log *zap.Logger) *Bridge {
	return &Bridge{client: client, log: log}
}

// Handle is an events.Subscriber handler.
func (b *Bridge) Handle(ctx context.Context, e events.Event) {
	n, ok := FromEvent(e)
	if !ok {
		return
	}
	if err := b.client.Deliver(ctx, n); err != nil {
		b.log.Warn("failed to forward notification",
			zap.String("user_id", n.UserID.String()),
			zap.String("kind", n.Kind),
			zap.Error(err))
		return
	}
	b.log.Debug("notification forwarded", zap.String("kind", n.Kind))
}
