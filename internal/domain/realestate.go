package domain

import "time"

type PropertyType string

const (
	PropertyApartment PropertyType = "apartment"
	PropertyHouse     PropertyType = "house"
)

type PropertyPurpose string

const (
	PurposeSale PropertyPurpose = "sale"
	PurposeRent PropertyPurpose = "rent"
)

type InquiryType string

const (
	InquiryBuy      InquiryType = "buy"
	InquiryRent     InquiryType = "rent"
	InquiryQuestion InquiryType = "question"
)

type InquiryStatus string

const (
	InquiryNew       InquiryStatus = "new"
	InquiryQualified InquiryStatus = "qualified"
	InquiryClosed    InquiryStatus = "closed"
)

type Property struct {
	ID           int             `gorm:"primaryKey" json:"id"`
	TenantID     int             `gorm:"index;not null" json:"tenant_id"`
	Title        string          `gorm:"type:varchar(180);not null" json:"title"`
	Type         PropertyType    `gorm:"type:varchar(32);index;not null" json:"type"`
	Purpose      PropertyPurpose `gorm:"type:varchar(32);index;not null" json:"purpose"`
	Price        float64         `gorm:"index;not null" json:"price"`
	AddressCity  string          `gorm:"type:varchar(120);index" json:"address_city"`
	AddressState string          `gorm:"type:varchar(2);index" json:"address_state"`
	Bedrooms     int             `gorm:"index" json:"bedrooms"`
	IsActive     bool            `gorm:"index;default:true" json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Lead struct {
	ID              int       `gorm:"primaryKey" json:"id"`
	TenantID        int       `gorm:"index;not null" json:"tenant_id"`
	Name            string    `gorm:"type:varchar(120)" json:"name"`
	Phone           string    `gorm:"type:varchar(32)" json:"phone"`
	Email           string    `gorm:"type:varchar(180)" json:"email"`
	Source          string    `gorm:"type:varchar(32);not null" json:"source"`
	PreferencesJSON string    `gorm:"type:jsonb" json:"preferences"`
	ConsentLGPD     bool      `gorm:"default:false" json:"consent_lgpd"`
	CreatedAt       time.Time `json:"created_at"`
}

type Inquiry struct {
	ID          int           `gorm:"primaryKey" json:"id"`
	TenantID    int           `gorm:"index;not null" json:"tenant_id"`
	LeadID      int           `gorm:"index;not null" json:"lead_id"`
	PropertyID  *int          `gorm:"index" json:"property_id"`
	Type        InquiryType   `gorm:"type:varchar(16);index;not null" json:"type"`
	Status      InquiryStatus `gorm:"type:varchar(16);index;default:'new'" json:"status"`
	PayloadJSON string        `gorm:"type:jsonb" json:"payload"`
	CreatedAt   time.Time     `json:"created_at"`
}
