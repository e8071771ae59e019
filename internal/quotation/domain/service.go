package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/kay/internal/invoice/domain"
	"github.com/smallbiznis/kay/pkg/db/pagination"
	"gorm.io/gorm"
)

type SubmitItem struct {
	ProductID   *snowflake.ID   `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	IsService   bool            `json:"is_service"`
	Category    string          `json:"category"`
}

type SubmitRequest struct {
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone"`
	CompanyName     string          `json:"company_name"`
	ProjectName     string          `json:"project_name"`
	DeliveryAddress string          `json:"delivery_address"`
	CustomerNotes   string          `json:"customer_notes"`
	Items           []SubmitItem    `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	VATAmount       decimal.Decimal `json:"vat_amount"`
	Total           decimal.Decimal `json:"total"`
}

type SubmitResult struct {
	ID         snowflake.ID `json:"id"`
	Reference  string       `json:"quotation_id"`
	ValidUntil time.Time    `json:"valid_until"`
}

// TrackResult is the customer-facing view of a quotation.
type TrackResult struct {
	Reference    string          `json:"quotation_id"`
	Status       Status          `json:"status"`
	CustomerName string          `json:"customer_name"`
	ProjectName  string          `json:"project_name,omitempty"`
	Total        decimal.Decimal `json:"total"`
	ValidUntil   time.Time       `json:"valid_until"`
	CreatedAt    time.Time       `json:"created_at"`
	Items        []Item          `json:"items"`
}

type ListRequest struct {
	pagination.Pagination
	Status      string
	Email       string
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListResponse struct {
	pagination.PageInfo
	Quotations []Quotation `json:"quotations"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type UpdateNotesRequest struct {
	AdminNotes string `json:"admin_notes"`
}

// ConvertRequest carries the invoice-only fields. Customer, items and
// amounts are copied from the quotation.
type ConvertRequest struct {
	IssueDate    *time.Time `json:"issue_date"`
	PaymentTerms *int       `json:"payment_terms"`
	DueDate      *time.Time `json:"due_date"`
	Notes        string     `json:"notes"`
	Terms        string     `json:"terms"`
	SendNow      bool       `json:"send_now"`
}

type Stats struct {
	Total        int64            `json:"total"`
	ByStatus     map[Status]int64 `json:"by_status"`
	OpenValue    decimal.Decimal  `json:"open_value"`
	ConvertedPct decimal.Decimal  `json:"conversion_rate"`
}

type ListFilter struct {
	Status      string
	Email       string
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, q *Quotation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Quotation, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Quotation, error)
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*Quotation, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Quotation, error)
	UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	ListOpenExpired(ctx context.Context, db *gorm.DB, now time.Time) ([]*Quotation, error)
	StatusTotals(ctx context.Context, db *gorm.DB) ([]StatusTotal, error)
}

type StatusTotal struct {
	Status Status
	Total  decimal.Decimal
}

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	Track(ctx context.Context, reference string) (*TrackResult, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	// GetByID is a pure read.
	GetByID(ctx context.Context, id string) (*Quotation, error)
	// Open reads the quotation for an admin and moves pending to viewed.
	Open(ctx context.Context, id string) (*Quotation, error)
	UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) (*Quotation, error)
	UpdateNotes(ctx context.Context, id string, req UpdateNotesRequest) (*Quotation, error)
	ConvertToInvoice(ctx context.Context, id string, req ConvertRequest) (*invoicedomain.Invoice, error)
	ExpireStale(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (Stats, error)
	RenderPDF(ctx context.Context, id string) ([]byte, string, error)
}

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidCustomerName  = errors.New("invalid_customer_name")
	ErrInvalidCustomerEmail = errors.New("invalid_customer_email")
	ErrInvalidItems         = errors.New("invalid_items")
	ErrInvalidItemName      = errors.New("invalid_item_name")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInvalidUnitPrice     = errors.New("invalid_unit_price")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrTotalMismatch        = errors.New("invalid_total")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidReference     = errors.New("invalid_reference")
	ErrInvalidTimeRange     = errors.New("invalid_time_range")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
	ErrInvalidState         = errors.New("invalid_state")
	ErrNotFound             = errors.New("not_found")
)
