package domain

import (
	"encoding/json"
	"time"
)

type ConversationStatus string

const (
	ConversationActiveBot    ConversationStatus = "active_bot"
	ConversationHumanHandoff ConversationStatus = "human_handoff"
	ConversationClosed       ConversationStatus = "closed"
)

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type MessageStatus string

const (
	MessageReceived MessageStatus = "received"
	MessageQueued   MessageStatus = "queued"
	MessageSent     MessageStatus = "sent"
	MessageError    MessageStatus = "error"
)

type MessageKind string

const (
	KindText     MessageKind = "text"
	KindTemplate MessageKind = "template"
)

type Tenant struct {
	ID           int    `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"type:varchar(120);uniqueIndex;not null" json:"name"`
	Timezone     string `gorm:"type:varchar(64);default:'America/Sao_Paulo'" json:"timezone"`
	SettingsJSON string `gorm:"type:jsonb;default:'{}'" json:"settings"`
}

// Settings decodes the tenant settings column, filling unset fields
// with the platform defaults.
func (t *Tenant) Settings() TenantSettings {
	s := DefaultTenantSettings()
	if t.SettingsJSON != "" {
		_ = json.Unmarshal([]byte(t.SettingsJSON), &s)
	}
	return s
}

type TenantSettings struct {
	WindowEnabled             bool `json:"window_enabled"`
	WindowHours               int  `json:"window_hours"`
	RateLimitPerContactSecond int  `json:"rate_limit_per_contact_seconds"`
	RateLimitGlobalPerMinute  int  `json:"rate_limit_global_per_minute"`
}

func DefaultTenantSettings() TenantSettings {
	return TenantSettings{
		WindowEnabled:             true,
		WindowHours:               24,
		RateLimitPerContactSecond: 2,
		RateLimitGlobalPerMinute:  60,
	}
}

type Contact struct {
	ID       int    `gorm:"primaryKey" json:"id"`
	TenantID int    `gorm:"index:uix_contact_tenant_wa,unique;not null" json:"tenant_id"`
	WaID     string `gorm:"type:varchar(32);index:uix_contact_tenant_wa,unique;not null" json:"wa_id"`
	Name     string `gorm:"type:varchar(120)" json:"name"`
}

type Conversation struct {
	ID        int                `gorm:"primaryKey" json:"id"`
	TenantID  int                `gorm:"index;not null" json:"tenant_id"`
	ContactID int                `gorm:"index;not null" json:"contact_id"`
	Status    ConversationStatus `gorm:"type:varchar(32);default:'active_bot'" json:"status"`
	LastState string             `gorm:"type:varchar(120)" json:"last_state"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type Message struct {
	ID             int              `gorm:"primaryKey" json:"id"`
	TenantID       int              `gorm:"index;index:uix_msg_tenant_wamid,unique;index:uix_msg_tenant_idem,unique;not null" json:"tenant_id"`
	ConversationID int              `gorm:"index;not null" json:"conversation_id"`
	Direction      MessageDirection `gorm:"type:varchar(16);not null" json:"direction"`
	Type           MessageKind      `gorm:"type:varchar(32);not null" json:"type"`
	PayloadJSON    string           `gorm:"type:jsonb;not null" json:"payload"`
	Status         MessageStatus    `gorm:"type:varchar(32);default:'received'" json:"status"`
	WaMessageID    *string          `gorm:"type:varchar(64);index:uix_msg_tenant_wamid,unique" json:"wa_message_id"`
	IdempotencyKey *string          `gorm:"type:varchar(64);index:uix_msg_tenant_idem,unique" json:"idempotency_key"`
	CreatedAt      time.Time        `json:"created_at"`
}

// ConversationEvent is an append-only log entry; the newest event of a
// given type carries the authoritative payload for that type.
type ConversationEvent struct {
	ID             int       `gorm:"primaryKey" json:"id"`
	ConversationID int       `gorm:"index;not null" json:"conversation_id"`
	Type           string    `gorm:"type:varchar(64);not null" json:"type"`
	PayloadJSON    string    `gorm:"type:jsonb;not null" json:"payload"`
	CreatedAt      time.Time `json:"created_at"`
}

// EventFunnel tags the funnel-progress snapshots on a conversation.
const EventFunnel = "re_funnel"

type SuppressedContact struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	TenantID  int       `gorm:"index:uix_suppressed_tenant_wa,unique;not null" json:"tenant_id"`
	WaID      string    `gorm:"type:varchar(32);index:uix_suppressed_tenant_wa,unique;not null" json:"wa_id"`
	Reason    string    `gorm:"type:varchar(160)" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageLog is the per-attempt audit row for outbound sends.
type MessageLog struct {
	ID                int           `gorm:"primaryKey" json:"id"`
	TenantID          int           `gorm:"index:idx_msglog_tenant_to;not null" json:"tenant_id"`
	To                string        `gorm:"type:varchar(32);index:idx_msglog_tenant_to;not null" json:"to"`
	Kind              MessageKind   `gorm:"type:varchar(16);not null" json:"kind"`
	BodyJSON          string        `gorm:"type:jsonb" json:"body"`
	TemplateName      string        `gorm:"type:varchar(120)" json:"template_name"`
	Status            MessageStatus `gorm:"type:varchar(32);default:'queued'" json:"status"`
	ProviderMessageID string        `gorm:"type:varchar(64)" json:"provider_message_id"`
	ErrorCode         string        `gorm:"type:varchar(160)" json:"error_code"`
	CreatedAt         time.Time     `gorm:"index" json:"created_at"`
}
