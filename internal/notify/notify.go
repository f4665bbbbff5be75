// Package notify delivers signed webhook notifications about merchant,
// transaction and support-ticket changes to an operator-configured URL.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	MerchantStatusChanged = "merchant.status_changed"
	TransactionCreated    = "transaction.created"
	TicketResolved        = "support_ticket.resolved"
)

const (
	maxQueued     = 1000
	maxDeliveries = 500
)

// Event is one notification.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// Delivery records one delivery attempt.
type Delivery struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Error      string    `json:"error,omitempty"`
	Attempt    int       `json:"attempt"`
	Timestamp  time.Time `json:"timestamp"`
}

// Config configures a Dispatcher.
type Config struct {
	URL        string
	Secret     string
	Logger     *slog.Logger
	MaxRetries int
	RetryDelay time.Duration
	Client     *http.Client
	Now        func() time.Time
}

// Dispatcher sends events. With a URL configured, Publish delivers in the
// background; without one, events are held until Flush.
type Dispatcher struct {
	mu         sync.RWMutex
	url        string
	secret     string
	queue      []Event
	deliveries []Delivery

	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
	now        func() time.Time
	inflight   sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		url:        cfg.URL,
		secret:     cfg.Secret,
		logger:     cfg.Logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     cfg.Client,
		now:        cfg.Now,
	}
}

// URL returns the delivery URL, empty when delivery is disabled.
func (d *Dispatcher) URL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.url
}

// SetURL changes the delivery URL. An empty URL disables delivery.
func (d *Dispatcher) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

// Publish records an event and, when a URL is configured, starts
// delivering it in the background. It never blocks on the network.
func (d *Dispatcher) Publish(eventType string, data any) Event {
	evt := Event{
		ID:        "evt_" + uuid.NewString(),
		Type:      eventType,
		Data:      data,
		CreatedAt: d.now().UTC(),
	}

	d.mu.Lock()
	url := d.url
	if url == "" {
		if len(d.queue) >= maxQueued {
			d.queue = d.queue[1:]
		}
		d.queue = append(d.queue, evt)
	}
	d.mu.Unlock()

	if url != "" {
		d.inflight.Add(1)
		go func() {
			defer d.inflight.Done()
			if err := d.deliver(context.Background(), evt); err != nil {
				d.logger.Warn("webhook delivery failed", "event_id", evt.ID, "type", evt.Type, "err", err)
			}
		}()
	}
	return evt
}

// Wait blocks until background deliveries finish.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// Flush delivers held events synchronously and returns the last error.
// Events are dropped from the queue whether or not delivery succeeded.
func (d *Dispatcher) Flush(ctx context.Context) error {
	d.mu.Lock()
	events := d.queue
	d.queue = nil
	d.mu.Unlock()

	var lastErr error
	for _, evt := range events {
		if err := d.deliver(ctx, evt); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (d *Dispatcher) deliver(ctx context.Context, evt Event) error {
	d.mu.RLock()
	url, secret := d.url, d.secret
	d.mu.RUnlock()

	if url == "" {
		d.logger.Debug("no webhook URL configured, skipping delivery", "event_id", evt.ID)
		return nil
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set(SignatureHeader, Sign(payload, secret, d.now()))
		}

		delivery := Delivery{
			EventID:   evt.ID,
			EventType: evt.Type,
			URL:       url,
			Attempt:   attempt,
			Timestamp: d.now().UTC(),
		}
		resp, err := d.client.Do(req)
		if err != nil {
			delivery.Error = err.Error()
			lastErr = err
		} else {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			delivery.StatusCode = resp.StatusCode
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				d.record(delivery)
				return nil
			}
			lastErr = fmt.Errorf("webhook delivery failed: status %d", resp.StatusCode)
		}
		d.record(delivery)

		if attempt < d.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.retryDelay):
			}
		}
	}
	return lastErr
}

func (d *Dispatcher) record(del Delivery) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.deliveries) >= maxDeliveries {
		d.deliveries = d.deliveries[1:]
	}
	d.deliveries = append(d.deliveries, del)
}

// Deliveries returns the recorded delivery attempts, oldest first.
func (d *Dispatcher) Deliveries() []Delivery {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Delivery, len(d.deliveries))
	copy(out, d.deliveries)
	return out
}

// Queued returns events held for a later Flush.
func (d *Dispatcher) Queued() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Event, len(d.queue))
	copy(out, d.queue)
	return out
}
