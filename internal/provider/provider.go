// Package provider abstracts the messaging network client. The concrete
// provider is chosen once at startup from configuration and injected
// into the dispatcher.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// SendResult carries the network identifiers of an accepted send.
type SendResult struct {
	ProviderMessageID string
	Raw               json.RawMessage
}

type Provider interface {
	SendText(ctx context.Context, to, body string) (*SendResult, error)
	SendTemplate(ctx context.Context, to, templateName, language string, components []map[string]any) (*SendResult, error)
	MarkRead(ctx context.Context, providerMessageID string) error
}

// TransientError marks a failure the dispatcher may retry: transport
// errors, timeouts and 5xx responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

type Config struct {
	Name          string
	APIBase       string
	Token         string
	PhoneNumberID string
}

// NewFromConfig selects the provider implementation by name. An empty
// name means the Meta Cloud provider; unknown names are rejected.
func NewFromConfig(cfg Config, logger *slog.Logger) (Provider, error) {
	switch cfg.Name {
	case "", "meta":
		return NewMetaCloudProvider(cfg.APIBase, cfg.Token, cfg.PhoneNumberID), nil
	case "noop":
		return NewNoopProvider(logger), nil
	default:
		return nil, fmt.Errorf("unknown messaging provider %q", cfg.Name)
	}
}
