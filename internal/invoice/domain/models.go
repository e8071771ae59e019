// Package domain contains persistence models and lifecycle rules for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kay/internal/clock"
	"github.com/smallbiznis/kay/internal/money"
)

// Status represents invoice lifecycle states. Overdue is derived, never stored.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(value string) (Status, error) {
	switch s := Status(value); s {
	case StatusDraft, StatusPending, StatusPaid, StatusCancelled:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// manualTransitions lists the moves an admin may request directly. Paid is
// reached only by settlement (payments or MarkAsPaid).
var manualTransitions = map[Status][]Status{
	StatusDraft:   {StatusPending, StatusCancelled},
	StatusPending: {StatusCancelled},
}

// CanTransitionTo reports whether an admin may move an invoice from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range manualTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	switch s := PaymentStatus(value); s {
	case PaymentUnpaid, PaymentPartial, PaymentPaid:
		return s, nil
	default:
		return "", ErrInvalidPaymentStatus
	}
}

// DerivePaymentStatus classifies how much of total has been paid.
func DerivePaymentStatus(total, paid decimal.Decimal) PaymentStatus {
	switch {
	case !paid.IsPositive():
		return PaymentUnpaid
	case paid.GreaterThanOrEqual(total):
		return PaymentPaid
	default:
		return PaymentPartial
	}
}

// Invoice is a bill issued to a customer, optionally converted from a
// quotation. Customer fields are a snapshot.
type Invoice struct {
	ID               snowflake.ID       `gorm:"primaryKey" json:"id"`
	InvoiceNumber    string             `gorm:"type:varchar(32);not null;uniqueIndex" json:"invoice_number"`
	Status           Status             `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	PaymentStatus    PaymentStatus      `gorm:"type:varchar(20);not null;default:'unpaid';index" json:"payment_status"`
	CustomerName     string             `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerEmail    string             `gorm:"type:varchar(255);not null;index" json:"customer_email"`
	CustomerPhone    string             `gorm:"type:varchar(50)" json:"customer_phone,omitempty"`
	CustomerAddress  string             `gorm:"type:text" json:"customer_address,omitempty"`
	CompanyName      string             `gorm:"type:varchar(255)" json:"company_name,omitempty"`
	ProjectName      string             `gorm:"type:varchar(255)" json:"project_name,omitempty"`
	DeliveryAddress  string             `gorm:"type:text" json:"delivery_address,omitempty"`
	IssueDate        time.Time          `gorm:"not null;index" json:"issue_date"`
	DueDate          time.Time          `gorm:"not null;index" json:"due_date"`
	PaymentTerms     int                `gorm:"not null;default:30" json:"payment_terms"`
	Subtotal         decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"subtotal"`
	TaxRate          decimal.Decimal    `gorm:"type:numeric(5,2);not null;default:0" json:"tax_rate"`
	TaxAmount        decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"tax_amount"`
	DiscountType     money.DiscountType `gorm:"type:varchar(20);not null;default:'none'" json:"discount_type"`
	DiscountValue    decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"discount_value"`
	DiscountAmount   decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"discount_amount"`
	ShippingAmount   decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"shipping_amount"`
	Total            decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"total"`
	AmountPaid       decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"amount_paid"`
	BalanceDue       decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"balance_due"`
	TotalsOverridden bool               `gorm:"not null;default:false" json:"totals_overridden"`
	QuotationID      *snowflake.ID      `gorm:"index" json:"quotation_id,omitempty"`
	Notes            string             `gorm:"type:text" json:"notes,omitempty"`
	Terms            string             `gorm:"type:text" json:"terms,omitempty"`
	SentAt           *time.Time         `json:"sent_at,omitempty"`
	PaidDate         *time.Time         `json:"paid_date,omitempty"`
	CreatedAt        time.Time          `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"not null" json:"updated_at"`

	Items    []Item    `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
	Payments []Payment `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`

	IsOverdue bool `gorm:"-" json:"is_overdue"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Overdue reports whether the due date has passed with money still owed.
func (i Invoice) Overdue(now time.Time) bool {
	if i.Status == StatusPaid || i.Status == StatusCancelled {
		return false
	}
	if !i.BalanceDue.IsPositive() {
		return false
	}
	return i.DueDate.Before(clock.StartOfDay(now))
}

// Editable reports whether Update may change the invoice. Paid and
// cancelled are terminal.
func (i Invoice) Editable() bool {
	return !i.Status.Terminal()
}

// Item is a line on an invoice. Total is the net line amount; the tax
// fields are informational, the invoice-level tax is authoritative.
type Item struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"-"`
	Position    int             `gorm:"not null;default:0" json:"position"`
	ProductID   *snowflake.ID   `json:"product_id,omitempty"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,3);not null" json:"quantity"`
	Unit        string          `gorm:"type:varchar(32)" json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	Discount    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"discount"`
	TaxRate     decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"tax_rate"`
	TaxAmount   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"tax_amount"`
	Total       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total"`
	IsService   bool            `gorm:"not null;default:false" json:"is_service"`
	Category    string          `gorm:"type:varchar(100)" json:"category,omitempty"`
}

// TableName sets the database table name.
func (Item) TableName() string { return "invoice_items" }

// Payment records money received against an invoice.
type Payment struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	PaymentDate time.Time       `gorm:"not null" json:"payment_date"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Method      string          `gorm:"type:varchar(50)" json:"method,omitempty"`
	Reference   string          `gorm:"type:varchar(100)" json:"reference,omitempty"`
	Notes       string          `gorm:"type:text" json:"notes,omitempty"`
	RecordedBy  string          `gorm:"type:varchar(100)" json:"recorded_by,omitempty"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "invoice_payments" }
