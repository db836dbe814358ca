package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/imovelbot/wa-messaging-service/internal/cache"
	"github.com/imovelbot/wa-messaging-service/internal/domain"
	messageRepo "github.com/imovelbot/wa-messaging-service/internal/repository/messaging"
)

// maxComposeLen caps the composed inbound text; fragments beyond it are
// silently truncated.
const maxComposeLen = 1200

// DefaultAggregationWindow is the debounce delay between the last
// fragment and the flush.
const DefaultAggregationWindow = 2 * time.Second

type aggregationPayload struct {
	Text string          `json:"text"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

// Aggregator collapses rapid-fire inbound fragments from one contact
// into a single composed message. Every fragment extends the flush delay
// (debounce); the buffer lives in the shared cache and is consumed with
// an atomic read-and-delete so exactly one flush hands it downstream.
type Aggregator struct {
	cache      cache.Cache
	repo       messageRepo.Repository
	funnel     *Funnel
	dispatcher Dispatcher
	logger     *slog.Logger
	window     time.Duration

	mtx    sync.Mutex
	timers map[string]*time.Timer
}

func NewAggregator(c cache.Cache, repo messageRepo.Repository, funnel *Funnel, dispatcher Dispatcher, logger *slog.Logger, window time.Duration) *Aggregator {
	if window <= 0 {
		window = DefaultAggregationWindow
	}
	return &Aggregator{
		cache:      c,
		repo:       repo,
		funnel:     funnel,
		dispatcher: dispatcher,
		logger:     logger,
		window:     window,
		timers:     make(map[string]*time.Timer),
	}
}

// Buffer appends the fragment to the contact's pending buffer and
// (re)starts the flush delay. The read-compose-write runs under the
// aggregator mutex so concurrent deliveries for the same contact cannot
// lose a fragment to each other or to an in-flight flush.
func (a *Aggregator) Buffer(ctx context.Context, tenantName, waID, text string, rawEvent json.RawMessage) error {
	key := fmt.Sprintf("agg:%s:%s", tenantName, waID)

	a.mtx.Lock()
	defer a.mtx.Unlock()

	var pending aggregationPayload
	existing, err := a.cache.Get(ctx, key)
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		return fmt.Errorf("read aggregation buffer: %w", err)
	}
	if existing != "" {
		_ = json.Unmarshal([]byte(existing), &pending)
	}

	pending.Text = compose(pending.Text, text)
	if len(rawEvent) > 0 {
		pending.Raw = rawEvent
	}

	encoded, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	// TTL is a safety net well past the window; the flush consumes the
	// key explicitly instead of relying on expiry.
	if err := a.cache.Set(ctx, key, string(encoded), a.window+time.Minute); err != nil {
		return fmt.Errorf("write aggregation buffer: %w", err)
	}

	a.logger.Info("inbound_buffered", "key", key, "len", len(pending.Text))

	if timer, ok := a.timers[key]; ok {
		timer.Reset(a.window)
		return nil
	}
	a.timers[key] = time.AfterFunc(a.window, func() {
		a.flush(tenantName, waID, key)
	})
	return nil
}

// Stop cancels every pending flush timer; buffered fragments stay in the
// cache until their TTL.
func (a *Aggregator) Stop() {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	for key, timer := range a.timers {
		timer.Stop()
		delete(a.timers, key)
	}
}

func (a *Aggregator) flush(tenantName, waID, key string) {
	ctx := context.Background()

	// Consuming the buffer under the same mutex as Buffer keeps a flush
	// from racing a late fragment's read-compose-write.
	a.mtx.Lock()
	delete(a.timers, key)
	raw, err := a.cache.GetDel(ctx, key)
	a.mtx.Unlock()
	if errors.Is(err, cache.ErrNotFound) {
		// Already consumed by another flush; nothing to do.
		return
	}
	if err != nil {
		a.logger.Error("inbound_flush_error", "key", key, "error", err.Error())
		return
	}

	var pending aggregationPayload
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		a.logger.Error("inbound_flush_decode_error", "key", key, "error", err.Error())
		return
	}
	if pending.Text == "" {
		return
	}

	a.logger.Info("inbound_flushed", "key", key, "textLen", len(pending.Text))

	if err := a.handleComposed(ctx, tenantName, waID, pending); err != nil {
		a.logger.Error("inbound_process_error", "key", key, "error", err.Error())
	}
}

// handleComposed records the composed inbound message and, unless the
// conversation is handed off to a human, advances the funnel and
// dispatches the reply.
func (a *Aggregator) handleComposed(ctx context.Context, tenantName, waID string, pending aggregationPayload) error {
	tenant, err := a.repo.EnsureTenant(tenantName)
	if err != nil {
		return fmt.Errorf("resolve tenant: %w", err)
	}
	contact, err := a.repo.EnsureContact(tenant.ID, waID)
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}
	conv, err := a.repo.EnsureConversation(tenant.ID, contact.ID)
	if err != nil {
		return fmt.Errorf("resolve conversation: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"text":      pending.Text,
		"raw_event": pending.Raw,
	})
	if err != nil {
		return err
	}
	if err := a.repo.CreateMessage(&domain.Message{
		TenantID:       tenant.ID,
		ConversationID: conv.ID,
		Direction:      domain.DirectionInbound,
		Type:           domain.KindText,
		PayloadJSON:    string(payload),
		Status:         domain.MessageReceived,
	}); err != nil {
		return fmt.Errorf("record inbound message: %w", err)
	}

	if conv.Status == domain.ConversationHumanHandoff {
		a.logger.Info("inbound_handoff_skip_bot", "conversationId", conv.ID)
		return nil
	}

	reply, err := a.funnel.Advance(conv, pending.Text)
	if err != nil {
		return fmt.Errorf("advance funnel: %w", err)
	}
	if reply == "" {
		return nil
	}

	if _, err := a.dispatcher.SendText(ctx, tenantName, waID, reply, ""); err != nil {
		return fmt.Errorf("dispatch reply: %w", err)
	}
	return nil
}

// compose space-joins fragments up to the compose cap.
func compose(prev, next string) string {
	if prev == "" {
		return truncate(strings.TrimSpace(next), maxComposeLen)
	}
	sep := " "
	if strings.HasSuffix(prev, " ") || strings.HasSuffix(prev, "\n") {
		sep = ""
	}
	return truncate(strings.TrimSpace(prev+sep+next), maxComposeLen)
}
