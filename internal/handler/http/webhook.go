package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// dedupTTL is how long a provider message id is remembered; redelivered
// webhook events inside this span are dropped.
const dedupTTL = 2 * time.Minute

type webhookMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []json.RawMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// VerifyWebhook godoc
// @Summary Webhook verification handshake
// @Description Echoes hub.challenge when hub.verify_token matches
// @Tags Webhook
// @Param hub.mode query string false "mode"
// @Param hub.challenge query string false "challenge"
// @Param hub.verify_token query string false "verify token"
// @Success 200 {string} string
// @Failure 403
// @Router /webhook [get]
func (h *Handler) verifyWebhook(c *gin.Context) {
	if c.Query("hub.verify_token") != h.verifyToken {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid verify token"})
		return
	}
	c.String(http.StatusOK, c.Query("hub.challenge"))
}

// ReceiveWebhook godoc
// @Summary Receive inbound messaging-network events
// @Description Validates the signature, deduplicates messages and buffers text fragments for aggregation. Always acks 200.
// @Tags Webhook
// @Accept json
// @Success 200 {object} map[string]any
// @Router /webhook [post]
func (h *Handler) receiveWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusOK, gin.H{"received": true, "error": "invalid_json"})
		return
	}

	if h.webhookSecret != "" {
		if !h.validSignature(body, c.GetHeader("X-Hub-Signature-256")) {
			h.logger.Error("webhook_hmac_mismatch")
			c.JSON(http.StatusOK, gin.H{"received": true, "error": "invalid_signature"})
			return
		}
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Error("webhook_json_error", "error", err.Error())
		c.JSON(http.StatusOK, gin.H{"received": true, "error": "invalid_json"})
		return
	}

	ctx := c.Request.Context()
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			waID := ""
			if len(change.Value.Contacts) > 0 {
				waID = change.Value.Contacts[0].WaID
			}
			for _, raw := range change.Value.Messages {
				var msg webhookMessage
				if err := json.Unmarshal(raw, &msg); err != nil {
					continue
				}
				if msg.Type != "text" {
					continue
				}
				if waID == "" {
					waID = msg.From
				}
				if waID == "" {
					continue
				}
				text := strings.TrimSpace(msg.Text.Body)
				if text == "" {
					continue
				}

				if msg.ID != "" {
					won, err := h.cache.SetNX(ctx, "wh:dedup:"+msg.ID, "1", dedupTTL)
					if err == nil && !won {
						h.logger.Info("webhook_duplicated_msg", "msgId", msg.ID)
						continue
					}
				}

				if err := h.aggregator.Buffer(ctx, h.defaultTenant, waID, text, raw); err != nil {
					h.logger.Error("buffer_enqueue_error", "error", err.Error())
				}
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) validSignature(body []byte, header string) bool {
	if !strings.HasPrefix(header, "sha256=") {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(header, "sha256=")))
}
