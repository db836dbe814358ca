package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/aniladanir/retry"

	"github.com/imovelbot/wa-messaging-service/internal/domain"
	"github.com/imovelbot/wa-messaging-service/internal/limiter"
	"github.com/imovelbot/wa-messaging-service/internal/provider"
	messageRepo "github.com/imovelbot/wa-messaging-service/internal/repository/messaging"
)

// maxTextLen is the platform limit for a text body; longer bodies are
// silently truncated before dispatch.
const maxTextLen = 4096

const maxSendAttempts = 5

type SendStatus string

const (
	SendStatusSent SendStatus = "sent"
	// SendStatusDuplicate means the idempotency key was already used;
	// treated as success-equivalent, nothing was re-sent.
	SendStatusDuplicate SendStatus = "duplicate"
)

type SendOutcome struct {
	Status            SendStatus `json:"status"`
	MessageID         int        `json:"message_id,omitempty"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
}

// Dispatcher runs the outbound guard chain and performs the network
// send with bounded retries, keeping the message and audit rows in sync.
type Dispatcher interface {
	SendText(ctx context.Context, tenantName, to, text, idempotencyKey string) (*SendOutcome, error)
	SendTemplate(ctx context.Context, tenantName, to, templateName, language string, components []map[string]any, idempotencyKey string) (*SendOutcome, error)
}

type dispatcher struct {
	repo     messageRepo.Repository
	limiter  *limiter.Limiter
	provider provider.Provider
	window   *WindowTracker
	retrier  *retry.Retrier
	logger   *slog.Logger

	// sleep is swapped out by tests so backoff does not block them.
	sleep func(ctx context.Context, d time.Duration)
	randF func() float64
}

func NewDispatcher(
	repo messageRepo.Repository,
	lim *limiter.Limiter,
	prov provider.Provider,
	window *WindowTracker,
	logger *slog.Logger,
) (Dispatcher, error) {
	retrier, err := retry.New(retry.WithMaxAttemps(maxSendAttempts))
	if err != nil {
		return nil, fmt.Errorf("encountered error when initializing retrier: %w", err)
	}

	return &dispatcher{
		repo:     repo,
		limiter:  lim,
		provider: prov,
		window:   window,
		retrier:  retrier,
		logger:   logger,
		sleep:    sleepContext,
		randF:    rand.Float64,
	}, nil
}

func (d *dispatcher) SendText(ctx context.Context, tenantName, to, text, idempotencyKey string) (*SendOutcome, error) {
	tenant, err := d.repo.EnsureTenant(tenantName)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant: %w", err)
	}

	if outcome, err := d.idempotencyGuard(tenant, idempotencyKey); outcome != nil || err != nil {
		return outcome, err
	}

	contact, err := d.repo.EnsureContact(tenant.ID, to)
	if err != nil {
		return nil, fmt.Errorf("resolve contact: %w", err)
	}

	// Free-form text is only allowed in reply to a recent inbound
	// message; templates are exempt by network policy.
	inside, err := d.window.Within(tenant, contact.ID)
	if err != nil {
		return nil, err
	}
	if !inside {
		d.logger.Info("outbound_rejected_window", "tenant", tenantName, "to", to)
		return nil, ErrOutsideSessionWindow
	}

	if err := d.guards(ctx, tenant, to); err != nil {
		return nil, err
	}

	body := truncate(text, maxTextLen)
	msg, logRow, err := d.recordQueued(tenant, contact, domain.KindText, idempotencyKey, to,
		map[string]any{"text": body},
		map[string]any{"body": body},
		"")
	if err != nil {
		return nil, err
	}

	return d.deliver(ctx, tenantName, msg, logRow, func(ctx context.Context) (*provider.SendResult, error) {
		return d.provider.SendText(ctx, to, body)
	})
}

func (d *dispatcher) SendTemplate(ctx context.Context, tenantName, to, templateName, language string, components []map[string]any, idempotencyKey string) (*SendOutcome, error) {
	tenant, err := d.repo.EnsureTenant(tenantName)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant: %w", err)
	}

	if outcome, err := d.idempotencyGuard(tenant, idempotencyKey); outcome != nil || err != nil {
		return outcome, err
	}

	contact, err := d.repo.EnsureContact(tenant.ID, to)
	if err != nil {
		return nil, fmt.Errorf("resolve contact: %w", err)
	}

	if err := d.guards(ctx, tenant, to); err != nil {
		return nil, err
	}

	if components == nil {
		components = []map[string]any{}
	}
	msg, logRow, err := d.recordQueued(tenant, contact, domain.KindTemplate, idempotencyKey, to,
		map[string]any{"template": templateName, "language_code": language, "components": components},
		map[string]any{"components": components},
		templateName)
	if err != nil {
		return nil, err
	}

	return d.deliver(ctx, tenantName, msg, logRow, func(ctx context.Context) (*provider.SendResult, error) {
		return d.provider.SendTemplate(ctx, to, templateName, language, components)
	})
}

// idempotencyGuard returns a duplicate outcome when the key was already
// recorded for this tenant; the duplicate causes no side effect at all.
func (d *dispatcher) idempotencyGuard(tenant *domain.Tenant, key string) (*SendOutcome, error) {
	if key == "" {
		return nil, nil
	}
	existing, err := d.repo.FindByIdempotencyKey(tenant.ID, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	d.logger.Info("outbound_idempotent_skip", "tenant", tenant.Name, "key", key)
	outcome := &SendOutcome{Status: SendStatusDuplicate, MessageID: existing.ID}
	if existing.WaMessageID != nil {
		outcome.ProviderMessageID = *existing.WaMessageID
	}
	return outcome, nil
}

// guards runs suppression then rate limiting; suppression always wins.
func (d *dispatcher) guards(ctx context.Context, tenant *domain.Tenant, to string) error {
	suppressed, err := d.repo.IsSuppressed(tenant.ID, to)
	if err != nil {
		return fmt.Errorf("suppression lookup: %w", err)
	}
	if suppressed {
		d.logger.Info("outbound_rejected_suppressed", "tenant", tenant.Name, "to", to)
		return ErrSuppressedContact
	}

	settings := tenant.Settings()
	allowed, err := d.limiter.Allow(ctx, tenant.ID, to, settings.RateLimitPerContactSecond, settings.RateLimitGlobalPerMinute)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if !allowed {
		d.logger.Info("outbound_rejected_rate_limit", "tenant", tenant.Name, "to", to)
		return ErrRateLimited
	}
	return nil
}

// recordQueued appends the queued Message and its audit row, returning
// both so later status updates address the exact rows created here.
func (d *dispatcher) recordQueued(tenant *domain.Tenant, contact *domain.Contact, kind domain.MessageKind, idempotencyKey, to string, payload, logBody map[string]any, templateName string) (*domain.Message, *domain.MessageLog, error) {
	conv, err := d.repo.EnsureConversation(tenant.ID, contact.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve conversation: %w", err)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	msg := &domain.Message{
		TenantID:       tenant.ID,
		ConversationID: conv.ID,
		Direction:      domain.DirectionOutbound,
		Type:           kind,
		PayloadJSON:    string(payloadJSON),
		Status:         domain.MessageQueued,
	}
	if idempotencyKey != "" {
		msg.IdempotencyKey = &idempotencyKey
	}
	if err := d.repo.CreateMessage(msg); err != nil {
		return nil, nil, fmt.Errorf("record queued message: %w", err)
	}

	bodyJSON, err := json.Marshal(logBody)
	if err != nil {
		return nil, nil, err
	}
	logRow := &domain.MessageLog{
		TenantID:     tenant.ID,
		To:           to,
		Kind:         kind,
		BodyJSON:     string(bodyJSON),
		TemplateName: templateName,
		Status:       domain.MessageQueued,
	}
	if err := d.repo.CreateMessageLog(logRow); err != nil {
		return nil, nil, fmt.Errorf("record audit log: %w", err)
	}
	return msg, logRow, nil
}

// deliver performs the network call with bounded retries and exponential
// backoff with jitter, then settles the message and audit rows.
func (d *dispatcher) deliver(ctx context.Context, tenantName string, msg *domain.Message, logRow *domain.MessageLog, send func(ctx context.Context) (*provider.SendResult, error)) (*SendOutcome, error) {
	msgLogger := d.logger.With(slog.Int("dbMessageId", msg.ID))

	var (
		result   *provider.SendResult
		lastErr  error
		failures int
	)
	retryFunc := func(attempt int) (terminate bool) {
		retryLogger := msgLogger.With(slog.Int("attempt", attempt))

		res, err := send(ctx)
		if err == nil {
			result = res
			lastErr = nil
			retryLogger.Info("message is successfuly sent", "providerMessageId", res.ProviderMessageID)
			return true
		}

		var transient *provider.TransientError
		if errors.As(err, &transient) {
			lastErr = err
			failures++
			delay := d.backoff(failures - 1)
			retryLogger.Warn("outbound_retry", "error", err.Error(), "delay", delay.String())
			d.sleep(ctx, delay)
			return ctx.Err() != nil
		}

		// Client-side rejection; retrying cannot help.
		lastErr = err
		retryLogger.Error("outbound_rejected_by_provider", "error", err.Error())
		return true
	}

	completed := <-d.retrier.Retry(ctx, retryFunc, true)

	if !completed || lastErr != nil {
		if err := d.repo.MarkMessageError(msg.ID); err != nil {
			msgLogger.Error("failed to update message status to error", "error", err.Error())
		}
		if err := d.repo.MarkLogError(logRow.ID, errorCode(lastErr)); err != nil {
			msgLogger.Error("failed to update audit log to error", "error", err.Error())
		}
		return nil, fmt.Errorf("delivery failed for tenant %s: %w", tenantName, lastErr)
	}

	if err := d.repo.MarkMessageSent(msg.ID, result.ProviderMessageID); err != nil {
		msgLogger.Error("failed to update message status to sent", "error", err.Error())
	}
	if err := d.repo.MarkLogSent(logRow.ID, result.ProviderMessageID); err != nil {
		msgLogger.Error("failed to update audit log to sent", "error", err.Error())
	}

	return &SendOutcome{
		Status:            SendStatusSent,
		MessageID:         msg.ID,
		ProviderMessageID: result.ProviderMessageID,
	}, nil
}

// backoff returns 2^failures seconds plus up to 20% jitter, capped at 30s.
func (d *dispatcher) backoff(failures int) time.Duration {
	base := math.Pow(2, float64(failures))
	delay := base + d.randF()*0.2*base
	if delay > 30 {
		delay = 30
	}
	return time.Duration(delay * float64(time.Second))
}

func errorCode(err error) string {
	if err == nil {
		return "retries_exhausted"
	}
	return err.Error()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
