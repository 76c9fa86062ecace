// Package notify dispatches best-effort notifications to named channels.
// Dispatch is timeout-bounded and failures are logged, never escalated: a
// slow channel must not stall a scan job or a threat response.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const dispatchTimeout = 5 * time.Second

type Message struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Severity string            `json:"severity,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	SentAt   time.Time         `json:"sent_at"`
}

// Channel is one notification destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Webhook posts the message as JSON to a fixed URL.
type Webhook struct {
	ChannelName string
	URL         string
	HTTPClient  *http.Client
}

func NewWebhook(name string, url string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: dispatchTimeout}
	}
	return &Webhook{ChannelName: name, URL: url, HTTPClient: client}
}

func (w *Webhook) Name() string { return w.ChannelName }

func (w *Webhook) Send(ctx context.Context, msg Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook %s responded %d: %s", w.ChannelName, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return nil
}

// Dispatcher fans a message out to registered channels.
type Dispatcher struct {
	mu       sync.RWMutex
	channels map[string]Channel
	logger   *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{channels: map[string]Channel{}, logger: logger}
}

func (d *Dispatcher) Register(c Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[c.Name()] = c
}

func (d *Dispatcher) Channel(name string) (Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.channels[name]
	return c, ok
}

// Dispatch sends to each named channel with a bounded deadline. Unknown
// channels and send failures are logged only.
func (d *Dispatcher) Dispatch(ctx context.Context, names []string, msg Message) {
	for _, name := range names {
		c, ok := d.Channel(name)
		if !ok {
			d.logger.Warn("unknown notification channel", zap.String("channel", name))
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
		err := c.Send(sendCtx, msg)
		cancel()
		if err != nil {
			d.logger.Warn("notification dispatch failed",
				zap.String("channel", name),
				zap.Error(err))
		}
	}
}

// DispatchAsync is the fire-and-forget form used on the scan job path.
func (d *Dispatcher) DispatchAsync(names []string, msg Message) {
	go d.Dispatch(context.Background(), names, msg)
}
