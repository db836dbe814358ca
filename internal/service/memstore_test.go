package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/imovelbot/wa-messaging-service/internal/domain"
	"github.com/imovelbot/wa-messaging-service/internal/provider"
)

// memStore is an in-memory messaging repository used across the service
// tests.
type memStore struct {
	mu          sync.Mutex
	tenants     map[string]*domain.Tenant
	contacts    map[string]*domain.Contact
	convs       []*domain.Conversation
	messages    []*domain.Message
	events      []*domain.ConversationEvent
	suppressed  map[string]string
	logs        []*domain.MessageLog
	nextID      int
	settingsFor map[string]domain.TenantSettings
}

func newMemStore() *memStore {
	return &memStore{
		tenants:     make(map[string]*domain.Tenant),
		contacts:    make(map[string]*domain.Contact),
		suppressed:  make(map[string]string),
		settingsFor: make(map[string]domain.TenantSettings),
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *memStore) EnsureTenant(name string) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[name]; ok {
		return t, nil
	}
	t := &domain.Tenant{ID: s.id(), Name: name}
	if settings, ok := s.settingsFor[name]; ok {
		raw, _ := marshalSettings(settings)
		t.SettingsJSON = raw
	}
	s.tenants[name] = t
	return t, nil
}

func marshalSettings(s domain.TenantSettings) (string, error) {
	return fmt.Sprintf(`{"window_enabled":%t,"window_hours":%d,"rate_limit_per_contact_seconds":%d,"rate_limit_global_per_minute":%d}`,
		s.WindowEnabled, s.WindowHours, s.RateLimitPerContactSecond, s.RateLimitGlobalPerMinute), nil
}

func (s *memStore) UpdateTenantSettings(name string, settings domain.TenantSettings) (*domain.Tenant, error) {
	t, err := s.EnsureTenant(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, _ := marshalSettings(settings)
	t.SettingsJSON = raw
	return t, nil
}

func (s *memStore) EnsureContact(tenantID int, waID string) (*domain.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d:%s", tenantID, waID)
	if c, ok := s.contacts[key]; ok {
		return c, nil
	}
	c := &domain.Contact{ID: s.id(), TenantID: tenantID, WaID: waID}
	s.contacts[key] = c
	return c, nil
}

func (s *memStore) EnsureConversation(tenantID, contactID int) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.convs) - 1; i >= 0; i-- {
		c := s.convs[i]
		if c.TenantID == tenantID && c.ContactID == contactID && c.Status != domain.ConversationClosed {
			return c, nil
		}
	}
	c := &domain.Conversation{ID: s.id(), TenantID: tenantID, ContactID: contactID, Status: domain.ConversationActiveBot}
	s.convs = append(s.convs, c)
	return c, nil
}

func (s *memStore) SetConversationState(conversationID int, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs {
		if c.ID == conversationID {
			c.LastState = state
			return nil
		}
	}
	return fmt.Errorf("conversation %d not found", conversationID)
}

func (s *memStore) CreateMessage(msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = s.id()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *memStore) FindByIdempotencyKey(tenantID int, key string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.TenantID == tenantID && m.IdempotencyKey != nil && *m.IdempotencyKey == key {
			return m, nil
		}
	}
	return nil, nil
}

func (s *memStore) MarkMessageSent(messageID int, providerMessageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == messageID {
			m.Status = domain.MessageSent
			if providerMessageID != "" {
				m.WaMessageID = &providerMessageID
			}
			return nil
		}
	}
	return fmt.Errorf("message %d not found", messageID)
}

func (s *memStore) MarkMessageError(messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == messageID {
			m.Status = domain.MessageError
			return nil
		}
	}
	return fmt.Errorf("message %d not found", messageID)
}

func (s *memStore) LastInboundAt(tenantID, contactID int) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	convIDs := make(map[int]bool)
	for _, c := range s.convs {
		if c.ContactID == contactID {
			convIDs[c.ID] = true
		}
	}
	var newest time.Time
	found := false
	for _, m := range s.messages {
		if m.TenantID == tenantID && m.Direction == domain.DirectionInbound && convIDs[m.ConversationID] {
			if m.CreatedAt.After(newest) {
				newest = m.CreatedAt
				found = true
			}
		}
	}
	return newest, found, nil
}

func (s *memStore) AppendEvent(conversationID int, eventType, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, &domain.ConversationEvent{
		ID:             s.id(),
		ConversationID: conversationID,
		Type:           eventType,
		PayloadJSON:    payload,
	})
	return nil
}

func (s *memStore) LatestEventPayload(conversationID int, eventType string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if ev.ConversationID == conversationID && ev.Type == eventType {
			return ev.PayloadJSON, true, nil
		}
	}
	return "", false, nil
}

func (s *memStore) IsSuppressed(tenantID int, waID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.suppressed[fmt.Sprintf("%d:%s", tenantID, waID)]
	return ok, nil
}

func (s *memStore) Suppress(tenantID int, waID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressed[fmt.Sprintf("%d:%s", tenantID, waID)] = reason
	return nil
}

func (s *memStore) Unsuppress(tenantID int, waID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d:%s", tenantID, waID)
	if _, ok := s.suppressed[key]; !ok {
		return 0, nil
	}
	delete(s.suppressed, key)
	return 1, nil
}

func (s *memStore) ListSuppressed(tenantID int) ([]domain.SuppressedContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []domain.SuppressedContact
	for key, reason := range s.suppressed {
		var tid int
		var waID string
		fmt.Sscanf(key, "%d:%s", &tid, &waID)
		if tid == tenantID {
			rows = append(rows, domain.SuppressedContact{TenantID: tid, WaID: waID, Reason: reason})
		}
	}
	return rows, nil
}

func (s *memStore) CreateMessageLog(log *domain.MessageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.ID = s.id()
	s.logs = append(s.logs, log)
	return nil
}

func (s *memStore) MarkLogSent(logID int, providerMessageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.logs {
		if l.ID == logID {
			l.Status = domain.MessageSent
			l.ProviderMessageID = providerMessageID
			return nil
		}
	}
	return fmt.Errorf("log %d not found", logID)
}

func (s *memStore) MarkLogError(logID int, errorCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.logs {
		if l.ID == logID {
			l.Status = domain.MessageError
			l.ErrorCode = errorCode
			return nil
		}
	}
	return fmt.Errorf("log %d not found", logID)
}

func (s *memStore) ListMessageLogs(tenantID, limit int) ([]domain.MessageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []domain.MessageLog
	for i := len(s.logs) - 1; i >= 0 && len(rows) < limit; i-- {
		if s.logs[i].TenantID == tenantID {
			rows = append(rows, *s.logs[i])
		}
	}
	return rows, nil
}

// outboundMessages returns the store's outbound messages in insertion order.
func (s *memStore) outboundMessages() []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for _, m := range s.messages {
		if m.Direction == domain.DirectionOutbound {
			out = append(out, m)
		}
	}
	return out
}

func (s *memStore) inboundMessages() []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for _, m := range s.messages {
		if m.Direction == domain.DirectionInbound {
			out = append(out, m)
		}
	}
	return out
}

// recordInbound plants an inbound message so the contact is inside the
// session window.
func (s *memStore) recordInbound(tenantName, waID, text string, at time.Time) {
	tenant, _ := s.EnsureTenant(tenantName)
	contact, _ := s.EnsureContact(tenant.ID, waID)
	conv, _ := s.EnsureConversation(tenant.ID, contact.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, &domain.Message{
		ID:             s.id(),
		TenantID:       tenant.ID,
		ConversationID: conv.ID,
		Direction:      domain.DirectionInbound,
		Type:           domain.KindText,
		PayloadJSON:    fmt.Sprintf(`{"text":%q}`, text),
		Status:         domain.MessageReceived,
		CreatedAt:      at,
	})
}

// memListings is an in-memory listing repository.
type memListings struct {
	mu         sync.Mutex
	properties []domain.Property
	leads      []*domain.Lead
	inquiries  []*domain.Inquiry
}

func (s *memListings) SearchProperties(tenantID int, criteria domain.SearchCriteria, limit int) ([]domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Property
	for _, p := range s.properties {
		if len(out) >= limit {
			break
		}
		if p.TenantID != tenantID || !p.IsActive {
			continue
		}
		if criteria.Purpose != "" && p.Purpose != criteria.Purpose {
			continue
		}
		if criteria.Type != "" && p.Type != criteria.Type {
			continue
		}
		if criteria.City != "" && !strings.EqualFold(p.AddressCity, criteria.City) {
			continue
		}
		if criteria.State != "" && p.AddressState != criteria.State {
			continue
		}
		if criteria.Bedrooms != nil && p.Bedrooms < *criteria.Bedrooms {
			continue
		}
		if criteria.MinPrice != nil && p.Price < *criteria.MinPrice {
			continue
		}
		if criteria.MaxPrice != nil && p.Price > *criteria.MaxPrice {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *memListings) CreateLead(lead *domain.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead.ID = len(s.leads) + 1
	s.leads = append(s.leads, lead)
	return nil
}

func (s *memListings) CreateInquiry(inquiry *domain.Inquiry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inquiry.ID = len(s.inquiries) + 1
	s.inquiries = append(s.inquiries, inquiry)
	return nil
}

// fakeProvider scripts transient failures before succeeding, or fails
// permanently.
type fakeProvider struct {
	mu                sync.Mutex
	transientFailures int
	permanentErr      error
	calls             int
	sentBodies        []string
}

func (p *fakeProvider) SendText(_ context.Context, _, body string) (*provider.SendResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.permanentErr != nil {
		return nil, p.permanentErr
	}
	if p.transientFailures > 0 {
		p.transientFailures--
		return nil, &provider.TransientError{Err: fmt.Errorf("provider returned status 503")}
	}
	p.sentBodies = append(p.sentBodies, body)
	return &provider.SendResult{ProviderMessageID: fmt.Sprintf("wamid.%d", p.calls)}, nil
}

func (p *fakeProvider) SendTemplate(_ context.Context, _, templateName, _ string, _ []map[string]any) (*provider.SendResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.permanentErr != nil {
		return nil, p.permanentErr
	}
	if p.transientFailures > 0 {
		p.transientFailures--
		return nil, &provider.TransientError{Err: fmt.Errorf("provider returned status 503")}
	}
	p.sentBodies = append(p.sentBodies, templateName)
	return &provider.SendResult{ProviderMessageID: fmt.Sprintf("wamid.%d", p.calls)}, nil
}

func (p *fakeProvider) MarkRead(_ context.Context, _ string) error { return nil }
