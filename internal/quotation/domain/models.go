// Package domain contains the quotation model and lifecycle rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status represents quotation lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusViewed     Status = "viewed"
	StatusProcessing Status = "processing"
	StatusConverted  Status = "converted"
	StatusExpired    Status = "expired"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus accepts only known states.
func ParseStatus(value string) (Status, error) {
	switch s := Status(value); s {
	case StatusPending, StatusViewed, StatusProcessing, StatusConverted, StatusExpired, StatusCancelled:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Terminal states accept no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusConverted, StatusExpired, StatusCancelled:
		return true
	default:
		return false
	}
}

// manualTransitions lists the moves UpdateStatus accepts. Converted is
// reached only through ConvertToInvoice so the invoice link is always set,
// and expired only through the validity sweep.
var manualTransitions = map[Status][]Status{
	StatusPending:    {StatusViewed, StatusProcessing, StatusCancelled},
	StatusViewed:     {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCancelled},
}

// CanTransitionTo reports whether an admin may move a quotation from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range manualTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Quotation is a customer price request. Customer fields are a snapshot
// taken at submission.
type Quotation struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	Reference          string          `gorm:"column:quotation_id;type:varchar(32);not null;uniqueIndex" json:"quotation_id"`
	Status             Status          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CustomerName       string          `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerEmail      string          `gorm:"type:varchar(255);not null;index" json:"customer_email"`
	CustomerPhone      string          `gorm:"type:varchar(50)" json:"customer_phone,omitempty"`
	CompanyName        string          `gorm:"type:varchar(255)" json:"company_name,omitempty"`
	ProjectName        string          `gorm:"type:varchar(255)" json:"project_name,omitempty"`
	DeliveryAddress    string          `gorm:"type:text" json:"delivery_address,omitempty"`
	CustomerNotes      string          `gorm:"type:text" json:"customer_notes,omitempty"`
	Subtotal           decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"subtotal"`
	VATAmount          decimal.Decimal `gorm:"column:vat_amount;type:numeric(14,2);not null;default:0" json:"vat_amount"`
	Total              decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total"`
	ValidUntil         time.Time       `gorm:"not null;index" json:"valid_until"`
	AdminNotes         string          `gorm:"type:text" json:"admin_notes,omitempty"`
	ConvertedInvoiceID *snowflake.ID   `json:"converted_invoice_id,omitempty"`
	ViewedAt           *time.Time      `json:"viewed_at,omitempty"`
	ConvertedAt        *time.Time      `json:"converted_at,omitempty"`
	CreatedAt          time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`

	Items []Item `gorm:"foreignKey:QuotationID" json:"items,omitempty"`
}

// TableName sets the database table name.
func (Quotation) TableName() string { return "quotations" }

// EffectiveStatus reports expired for an open quotation past its validity
// even before the expiry sweep has persisted it.
func (q Quotation) EffectiveStatus(now time.Time) Status {
	if !q.Status.Terminal() && now.After(q.ValidUntil) {
		return StatusExpired
	}
	return q.Status
}

// Convertible reports whether an invoice may still be issued from q.
func (q Quotation) Convertible(now time.Time) bool {
	return !q.EffectiveStatus(now).Terminal()
}

// Item is a line on a quotation.
type Item struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	QuotationID snowflake.ID    `gorm:"not null;index" json:"-"`
	Position    int             `gorm:"not null;default:0" json:"position"`
	ProductID   *snowflake.ID   `json:"product_id,omitempty"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,3);not null" json:"quantity"`
	Unit        string          `gorm:"type:varchar(32)" json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	Total       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total"`
	IsService   bool            `gorm:"not null;default:false" json:"is_service"`
	Category    string          `gorm:"type:varchar(100)" json:"category,omitempty"`
}

// TableName sets the database table name.
func (Item) TableName() string { return "quotation_items" }
