package provider

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopProvider sends nothing and only logs; used in development and tests.
type NoopProvider struct {
	logger *slog.Logger
}

func NewNoopProvider(logger *slog.Logger) *NoopProvider {
	return &NoopProvider{logger: logger}
}

func (p *NoopProvider) SendText(_ context.Context, to, body string) (*SendResult, error) {
	preview := body
	if len(preview) > 200 {
		preview = preview[:200]
	}
	p.logger.Info("noop_send_text", "to", to, "text", preview)
	return &SendResult{ProviderMessageID: "noop-" + uuid.NewString()}, nil
}

func (p *NoopProvider) SendTemplate(_ context.Context, to, templateName, language string, _ []map[string]any) (*SendResult, error) {
	p.logger.Info("noop_send_template", "to", to, "template", templateName, "language", language)
	return &SendResult{ProviderMessageID: "noop-" + uuid.NewString()}, nil
}

func (p *NoopProvider) MarkRead(_ context.Context, providerMessageID string) error {
	p.logger.Info("noop_mark_read", "messageId", providerMessageID)
	return nil
}
