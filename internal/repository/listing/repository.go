package repository

import (
	"gorm.io/gorm"

	"github.com/imovelbot/wa-messaging-service/internal/domain"
)

// Repository is the persistence port for the real-estate records the
// funnel produces and searches.
type Repository interface {
	SearchProperties(tenantID int, criteria domain.SearchCriteria, limit int) ([]domain.Property, error)
	CreateLead(lead *domain.Lead) error
	CreateInquiry(inquiry *domain.Inquiry) error
}

type repo struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repo{db: db}
}

// SearchProperties applies the collected criteria as filters over active
// listings: case-insensitive city, exact state, minimum bedrooms and
// inclusive price bounds.
func (r *repo) SearchProperties(tenantID int, criteria domain.SearchCriteria, limit int) ([]domain.Property, error) {
	q := r.db.Where("tenant_id = ? AND is_active = ?", tenantID, true)

	if criteria.Purpose != "" {
		q = q.Where("purpose = ?", criteria.Purpose)
	}
	if criteria.Type != "" {
		q = q.Where("type = ?", criteria.Type)
	}
	if criteria.City != "" {
		q = q.Where("address_city ILIKE ?", criteria.City)
	}
	if criteria.State != "" {
		q = q.Where("address_state = ?", criteria.State)
	}
	if criteria.Bedrooms != nil {
		q = q.Where("bedrooms >= ?", *criteria.Bedrooms)
	}
	if criteria.MinPrice != nil {
		q = q.Where("price >= ?", *criteria.MinPrice)
	}
	if criteria.MaxPrice != nil {
		q = q.Where("price <= ?", *criteria.MaxPrice)
	}

	var properties []domain.Property
	err := q.Limit(limit).Find(&properties).Error
	return properties, err
}

func (r *repo) CreateLead(lead *domain.Lead) error {
	return r.db.Create(lead).Error
}

func (r *repo) CreateInquiry(inquiry *domain.Inquiry) error {
	return r.db.Create(inquiry).Error
}
