package repository

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/imovelbot/wa-messaging-service/internal/domain"
)

// Repository is the persistence port for tenants, contacts, conversations,
// messages, conversation events, suppression and the outbound audit log.
type Repository interface {
	EnsureTenant(name string) (*domain.Tenant, error)
	UpdateTenantSettings(name string, settings domain.TenantSettings) (*domain.Tenant, error)

	EnsureContact(tenantID int, waID string) (*domain.Contact, error)
	EnsureConversation(tenantID, contactID int) (*domain.Conversation, error)
	SetConversationState(conversationID int, state string) error

	CreateMessage(msg *domain.Message) error
	FindByIdempotencyKey(tenantID int, key string) (*domain.Message, error)
	MarkMessageSent(messageID int, providerMessageID string) error
	MarkMessageError(messageID int) error
	LastInboundAt(tenantID, contactID int) (time.Time, bool, error)

	AppendEvent(conversationID int, eventType, payload string) error
	LatestEventPayload(conversationID int, eventType string) (string, bool, error)

	IsSuppressed(tenantID int, waID string) (bool, error)
	Suppress(tenantID int, waID, reason string) error
	Unsuppress(tenantID int, waID string) (int64, error)
	ListSuppressed(tenantID int) ([]domain.SuppressedContact, error)

	CreateMessageLog(log *domain.MessageLog) error
	MarkLogSent(logID int, providerMessageID string) error
	MarkLogError(logID int, errorCode string) error
	ListMessageLogs(tenantID, limit int) ([]domain.MessageLog, error)
}

type repo struct {
	db *gorm.DB
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func NewRepository(db *gorm.DB) Repository {
	return &repo{db: db}
}

// EnsureTenant resolves a tenant by name, creating it on first reference.
func (r *repo) EnsureTenant(name string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := r.db.Where("name = ?", name).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tenant = domain.Tenant{Name: name}
		err = r.db.Create(&tenant).Error
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *repo) UpdateTenantSettings(name string, settings domain.TenantSettings) (*domain.Tenant, error) {
	tenant, err := r.EnsureTenant(name)
	if err != nil {
		return nil, err
	}
	raw, err := encodeJSON(settings)
	if err != nil {
		return nil, err
	}
	tenant.SettingsJSON = raw
	if err := r.db.Model(tenant).Update("settings_json", raw).Error; err != nil {
		return nil, err
	}
	return tenant, nil
}

func (r *repo) EnsureContact(tenantID int, waID string) (*domain.Contact, error) {
	var contact domain.Contact
	err := r.db.Where("tenant_id = ? AND wa_id = ?", tenantID, waID).First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		contact = domain.Contact{TenantID: tenantID, WaID: waID}
		err = r.db.Create(&contact).Error
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// EnsureConversation returns the contact's newest non-closed conversation,
// creating a bot-active one when none exists.
func (r *repo) EnsureConversation(tenantID, contactID int) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.
		Where("tenant_id = ? AND contact_id = ? AND status <> ?", tenantID, contactID, domain.ConversationClosed).
		Order("id DESC").
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		conv = domain.Conversation{
			TenantID:  tenantID,
			ContactID: contactID,
			Status:    domain.ConversationActiveBot,
		}
		err = r.db.Create(&conv).Error
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *repo) SetConversationState(conversationID int, state string) error {
	return r.db.Model(&domain.Conversation{}).
		Where("id = ?", conversationID).
		Update("last_state", state).Error
}

func (r *repo) CreateMessage(msg *domain.Message) error {
	return r.db.Create(msg).Error
}

// FindByIdempotencyKey returns the message previously recorded for the
// tenant-scoped key, or nil when the key was never used.
func (r *repo) FindByIdempotencyKey(tenantID int, key string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *repo) MarkMessageSent(messageID int, providerMessageID string) error {
	updates := map[string]any{"status": domain.MessageSent}
	if providerMessageID != "" {
		updates["wa_message_id"] = providerMessageID
	}
	return r.db.Model(&domain.Message{}).Where("id = ?", messageID).Updates(updates).Error
}

func (r *repo) MarkMessageError(messageID int) error {
	return r.db.Model(&domain.Message{}).
		Where("id = ?", messageID).
		Update("status", domain.MessageError).Error
}

// LastInboundAt reports the timestamp of the contact's newest inbound
// message across all of its conversations.
func (r *repo) LastInboundAt(tenantID, contactID int) (time.Time, bool, error) {
	var msg domain.Message
	err := r.db.
		Where("tenant_id = ? AND direction = ?", tenantID, domain.DirectionInbound).
		Where("conversation_id IN (?)",
			r.db.Model(&domain.Conversation{}).Select("id").Where("contact_id = ?", contactID)).
		Order("created_at DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return msg.CreatedAt, true, nil
}

func (r *repo) AppendEvent(conversationID int, eventType, payload string) error {
	return r.db.Create(&domain.ConversationEvent{
		ConversationID: conversationID,
		Type:           eventType,
		PayloadJSON:    payload,
	}).Error
}

func (r *repo) LatestEventPayload(conversationID int, eventType string) (string, bool, error) {
	var ev domain.ConversationEvent
	err := r.db.
		Where("conversation_id = ? AND type = ?", conversationID, eventType).
		Order("id DESC").
		First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ev.PayloadJSON, true, nil
}

func (r *repo) IsSuppressed(tenantID int, waID string) (bool, error) {
	var count int64
	err := r.db.Model(&domain.SuppressedContact{}).
		Where("tenant_id = ? AND wa_id = ?", tenantID, waID).
		Count(&count).Error
	return count > 0, err
}

// Suppress upserts the opt-out row; re-adding refreshes the reason.
func (r *repo) Suppress(tenantID int, waID, reason string) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "wa_id"}},
		DoUpdates: clause.Assignments(map[string]any{"reason": reason}),
	}).Create(&domain.SuppressedContact{
		TenantID: tenantID,
		WaID:     waID,
		Reason:   reason,
	}).Error
}

func (r *repo) Unsuppress(tenantID int, waID string) (int64, error) {
	res := r.db.Where("tenant_id = ? AND wa_id = ?", tenantID, waID).
		Delete(&domain.SuppressedContact{})
	return res.RowsAffected, res.Error
}

func (r *repo) ListSuppressed(tenantID int) ([]domain.SuppressedContact, error) {
	var rows []domain.SuppressedContact
	err := r.db.Where("tenant_id = ?", tenantID).Order("id DESC").Find(&rows).Error
	return rows, err
}

func (r *repo) CreateMessageLog(log *domain.MessageLog) error {
	return r.db.Create(log).Error
}

func (r *repo) MarkLogSent(logID int, providerMessageID string) error {
	return r.db.Model(&domain.MessageLog{}).Where("id = ?", logID).Updates(map[string]any{
		"status":              domain.MessageSent,
		"provider_message_id": providerMessageID,
	}).Error
}

func (r *repo) MarkLogError(logID int, errorCode string) error {
	return r.db.Model(&domain.MessageLog{}).Where("id = ?", logID).Updates(map[string]any{
		"status":     domain.MessageError,
		"error_code": errorCode,
	}).Error
}

func (r *repo) ListMessageLogs(tenantID, limit int) ([]domain.MessageLog, error) {
	var rows []domain.MessageLog
	err := r.db.Where("tenant_id = ?", tenantID).Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
