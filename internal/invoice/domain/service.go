package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kay/pkg/db/pagination"
	"gorm.io/gorm"
)

type ItemInput struct {
	ProductID   *snowflake.ID    `json:"product_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	Unit        string           `json:"unit"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Discount    decimal.Decimal  `json:"discount"`
	TaxRate     *decimal.Decimal `json:"tax_rate"`
	IsService   bool             `json:"is_service"`
	Category    string           `json:"category"`
}

// CreateRequest creates an invoice. TaxAmount and Total are overrides:
// when set they replace the computed figures. With QuotationID set the
// quotation supplies every customer, item and amount field left empty.
type CreateRequest struct {
	CustomerName    string           `json:"customer_name"`
	CustomerEmail   string           `json:"customer_email"`
	CustomerPhone   string           `json:"customer_phone"`
	CustomerAddress string           `json:"customer_address"`
	CompanyName     string           `json:"company_name"`
	ProjectName     string           `json:"project_name"`
	DeliveryAddress string           `json:"delivery_address"`
	IssueDate       *time.Time       `json:"issue_date"`
	PaymentTerms    *int             `json:"payment_terms"`
	DueDate         *time.Time       `json:"due_date"`
	Items           []ItemInput      `json:"items"`
	Subtotal        *decimal.Decimal `json:"subtotal"`
	TaxRate         *decimal.Decimal `json:"tax_rate"`
	TaxAmount       *decimal.Decimal `json:"tax_amount"`
	DiscountType    string           `json:"discount_type"`
	DiscountValue   decimal.Decimal  `json:"discount_value"`
	ShippingAmount  decimal.Decimal  `json:"shipping_amount"`
	Total           *decimal.Decimal `json:"total"`
	Notes           string           `json:"notes"`
	Terms           string           `json:"terms"`
	SendNow         bool             `json:"send_now"`
	QuotationID     *snowflake.ID    `json:"quotation_id"`
}

// UpdateRequest changes only the fields that are set. Items replaces the
// whole collection.
type UpdateRequest struct {
	CustomerName    *string          `json:"customer_name"`
	CustomerEmail   *string          `json:"customer_email"`
	CustomerPhone   *string          `json:"customer_phone"`
	CustomerAddress *string          `json:"customer_address"`
	CompanyName     *string          `json:"company_name"`
	ProjectName     *string          `json:"project_name"`
	DeliveryAddress *string          `json:"delivery_address"`
	IssueDate       *time.Time       `json:"issue_date"`
	PaymentTerms    *int             `json:"payment_terms"`
	DueDate         *time.Time       `json:"due_date"`
	Items           *[]ItemInput     `json:"items"`
	Subtotal        *decimal.Decimal `json:"subtotal"`
	TaxRate         *decimal.Decimal `json:"tax_rate"`
	TaxAmount       *decimal.Decimal `json:"tax_amount"`
	DiscountType    *string          `json:"discount_type"`
	DiscountValue   *decimal.Decimal `json:"discount_value"`
	ShippingAmount  *decimal.Decimal `json:"shipping_amount"`
	Total           *decimal.Decimal `json:"total"`
	AmountPaid      *decimal.Decimal `json:"amount_paid"`
	Status          *string          `json:"status"`
	Notes           *string          `json:"notes"`
	Terms           *string          `json:"terms"`
}

type PaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate *time.Time      `json:"payment_date"`
	Method      string          `json:"method"`
	Reference   string          `json:"reference"`
	Notes       string          `json:"notes"`
}

type MarkPaidRequest struct {
	PaymentDate *time.Time `json:"payment_date"`
	Method      string     `json:"method"`
	Reference   string     `json:"reference"`
	Notes       string     `json:"notes"`
}

type ListRequest struct {
	pagination.Pagination
	Status        string
	PaymentStatus string
	Overdue       bool
	Email         string
	Search        string
	IssueFrom     *time.Time
	IssueTo       *time.Time
}

type ListResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type ListFilter struct {
	Status        string
	PaymentStatus string
	OverdueAsOf   *time.Time
	Email         string
	Search        string
	IssueFrom     *time.Time
	IssueTo       *time.Time
}

type Stats struct {
	Total         int64            `json:"total"`
	ByStatus      map[Status]int64 `json:"by_status"`
	TotalInvoiced decimal.Decimal  `json:"total_invoiced"`
	TotalPaid     decimal.Decimal  `json:"total_paid"`
	Outstanding   decimal.Decimal  `json:"outstanding"`
	OverdueCount  int64            `json:"overdue_count"`
	OverdueAmount decimal.Decimal  `json:"overdue_amount"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, inv *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByNumber(ctx context.Context, db *gorm.DB, number string) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Invoice, error)
	UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	ReplaceItems(ctx context.Context, db *gorm.DB, id snowflake.ID, items []Item) error
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	ListPayments(ctx context.Context, db *gorm.DB, id snowflake.ID) ([]Payment, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	ListForStats(ctx context.Context, db *gorm.DB) ([]*Invoice, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Invoice, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Invoice, error)
	RecordPayment(ctx context.Context, id string, req PaymentRequest) (*Invoice, error)
	// MarkAsPaid settles the remaining balance. Paying a paid invoice is a no-op.
	MarkAsPaid(ctx context.Context, id string, req MarkPaidRequest) (*Invoice, error)
	MarkAsSent(ctx context.Context, id string) (*Invoice, error)
	Duplicate(ctx context.Context, id string) (*Invoice, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	GetByID(ctx context.Context, id string) (*Invoice, error)
	GetByNumber(ctx context.Context, number string) (*Invoice, error)
	ListPayments(ctx context.Context, id string) ([]Payment, error)
	Stats(ctx context.Context) (Stats, error)
	RenderPDF(ctx context.Context, id string) ([]byte, string, error)
}

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidNumber        = errors.New("invalid_invoice_number")
	ErrInvalidCustomerName  = errors.New("invalid_customer_name")
	ErrInvalidCustomerEmail = errors.New("invalid_customer_email")
	ErrInvalidItems         = errors.New("invalid_items")
	ErrInvalidItemName      = errors.New("invalid_item_name")
	ErrInvalidPaymentTerms  = errors.New("invalid_payment_terms")
	ErrInvalidDueDate       = errors.New("invalid_due_date")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidPaymentStatus = errors.New("invalid_payment_status")
	ErrInvalidAmountPaid    = errors.New("invalid_amount_paid")
	ErrInvalidPaymentAmount = errors.New("invalid_payment_amount")
	ErrOverpayment          = errors.New("invalid_overpayment")
	ErrInvalidTimeRange     = errors.New("invalid_time_range")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
	ErrInvalidState         = errors.New("invalid_state")
	ErrNotFound             = errors.New("not_found")
	ErrQuotationNotFound    = errors.New("quotation_not_found")
)
