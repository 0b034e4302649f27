package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"officesim/internal/app"
	"officesim/internal/config"
	"officesim/internal/domain"
	"officesim/internal/repo"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// WebhookDispatcher forwards journal events of the current run to the
// configured URLs. Each hook keeps its own cursor so a failing endpoint
// retries from where it stopped without holding back the others.
type WebhookDispatcher struct {
	repo     repo.Repo
	runID    string
	webhooks []config.Webhook
	client   *http.Client
	log      *slog.Logger
	wake     chan struct{}

	mu      sync.Mutex
	cursors map[int]int64
}

// NewWebhookDispatcher returns nil when no hook is enabled.
func NewWebhookDispatcher(r repo.Repo, runID string, hooks []config.Webhook, log *slog.Logger) *WebhookDispatcher {
	active := make([]config.Webhook, 0, len(hooks))
	for _, hook := range hooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		active = append(active, hook)
	}
	if len(active) == 0 {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	return &WebhookDispatcher{
		repo:     r,
		runID:    runID,
		webhooks: active,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		log:      log.With("component", "webhooks"),
		wake:     make(chan struct{}, 1),
		cursors:  make(map[int]int64),
	}
}

// Attach wakes the dispatcher whenever the runner stores new events.
func (d *WebhookDispatcher) Attach(r *app.Runner) {
	r.OnEvents(func([]domain.Event) { d.Notify() })
}

// Notify requests a delivery pass without blocking.
func (d *WebhookDispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run delivers until ctx is done.
func (d *WebhookDispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.DispatchAll(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// DispatchAll runs one delivery pass over every hook.
func (d *WebhookDispatcher) DispatchAll(ctx context.Context) {
	for i, hook := range d.webhooks {
		d.dispatchWebhook(ctx, i, hook)
	}
}

func (d *WebhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.Webhook) {
	cursor := d.cursorFor(idx)
	events, err := d.repo.EventsAfter(ctx, defaultWebhookBatch, cursor, repo.EventFilter{RunID: d.runID})
	if err != nil {
		d.log.Error("fetch events failed", "error", err)
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range events {
		if !filter.match(evt.Type) {
			d.setCursor(idx, evt.ID)
			continue
		}
		if err := d.postEvent(ctx, hook, evt); err != nil {
			d.log.Warn("delivery failed", "url", hook.URL, "event", evt.ID, "error", err)
			return
		}
		d.setCursor(idx, evt.ID)
	}
}

// cursorFor starts a hook at zero so events journaled before the server
// came up are still delivered.
func (d *WebhookDispatcher) cursorFor(idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursors[idx]
}

func (d *WebhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	RunID      string          `json:"run_id"`
	Day        int             `json:"day"`
	Minute     int             `json:"minute"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

func signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (d *WebhookDispatcher) postEvent(ctx context.Context, hook config.Webhook, evt domain.Event) error {
	resp := eventResponse(evt)
	data, err := json.Marshal(webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		RunID:      evt.RunID,
		Day:        evt.Day,
		Minute:     evt.Minute,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		TS:         evt.TS,
		Payload:    resp.Payload,
	})
	if err != nil {
		return err
	}
	client := d.client
	if hook.TimeoutSeconds > 0 {
		client = &http.Client{Timeout: time.Duration(hook.TimeoutSeconds) * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Officesim-Event", evt.Type)
	req.Header.Set("X-Officesim-Delivery", fmt.Sprintf("%d", evt.ID))
	req.Header.Set("X-Officesim-Run", evt.RunID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Officesim-Signature", signature(hook.Secret, data))
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
