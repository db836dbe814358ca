package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MetaCloudProvider speaks the WhatsApp Business Cloud API over HTTP.
// It performs a single attempt per call; retry policy belongs to the
// dispatcher.
type MetaCloudProvider struct {
	apiBase       string
	phoneNumberID string
	token         string
	httpClient    *http.Client
}

func NewMetaCloudProvider(apiBase, token, phoneNumberID string) *MetaCloudProvider {
	return &MetaCloudProvider{
		apiBase:       strings.TrimRight(apiBase, "/"),
		phoneNumberID: phoneNumberID,
		token:         token,
		httpClient: &http.Client{
			Timeout: time.Second * 15,
		},
	}
}

func (p *MetaCloudProvider) SendText(ctx context.Context, to, body string) (*SendResult, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text": map[string]any{
			"preview_url": false,
			"body":        body,
		},
	}
	return p.post(ctx, payload)
}

func (p *MetaCloudProvider) SendTemplate(ctx context.Context, to, templateName, language string, components []map[string]any) (*SendResult, error) {
	template := map[string]any{
		"name":     templateName,
		"language": map[string]any{"code": language},
	}
	if len(components) > 0 {
		template["components"] = components
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template":          template,
	}
	return p.post(ctx, payload)
}

func (p *MetaCloudProvider) MarkRead(ctx context.Context, providerMessageID string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        providerMessageID,
	}
	_, err := p.post(ctx, payload)
	return err
}

func (p *MetaCloudProvider) post(ctx context.Context, payload map[string]any) (*SendResult, error) {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/messages", p.apiBase, p.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return nil, err
	}
	req.Header.Add("Authorization", "Bearer "+p.token)
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("X-Request-ID", uuid.NewString())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &TransientError{Err: fmt.Errorf("provider returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("provider rejected request with status %d: %s", resp.StatusCode, raw)
	}

	return &SendResult{
		ProviderMessageID: extractMessageID(raw),
		Raw:               raw,
	}, nil
}

// extractMessageID pulls messages[0].id out of the Cloud API response;
// an unexpected shape yields an empty id, not an error.
func extractMessageID(raw []byte) string {
	var parsed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Messages) == 0 {
		return ""
	}
	return parsed.Messages[0].ID
}
