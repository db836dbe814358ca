package service

import (
	"fmt"
	"time"

	"github.com/imovelbot/wa-messaging-service/internal/domain"
	messageRepo "github.com/imovelbot/wa-messaging-service/internal/repository/messaging"
)

// WindowTracker decides whether a contact is inside the free-form
// messaging window, i.e. whether the contact's newest inbound message is
// recent enough. A contact with no inbound message ever is outside.
type WindowTracker struct {
	repo messageRepo.Repository
	now  func() time.Time
}

func NewWindowTracker(repo messageRepo.Repository) *WindowTracker {
	return &WindowTracker{repo: repo, now: time.Now}
}

// Within reports whether the contact is inside the tenant's session
// window. When the tenant disabled window enforcement it always passes.
func (w *WindowTracker) Within(tenant *domain.Tenant, contactID int) (bool, error) {
	settings := tenant.Settings()
	if !settings.WindowEnabled {
		return true, nil
	}

	lastInbound, found, err := w.repo.LastInboundAt(tenant.ID, contactID)
	if err != nil {
		return false, fmt.Errorf("resolve last inbound message: %w", err)
	}
	if !found {
		return false, nil
	}

	window := time.Duration(settings.WindowHours) * time.Hour
	return w.now().UTC().Sub(lastInbound.UTC()) <= window, nil
}
