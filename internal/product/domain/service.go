package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kay/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Product, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Product, error)
	Archive(ctx context.Context, id string) (*Product, error)
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

type ListRequest struct {
	pagination.Pagination
	Category        string `form:"category"`
	Search          string `form:"search"`
	IncludeInactive bool   `form:"-"`
}

type ListResponse struct {
	pagination.PageInfo
	Products []Product `json:"products"`
}

type CreateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	IsService   bool            `json:"is_service"`
}

// UpdateRequest changes only the fields that are set.
type UpdateRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Unit        *string          `json:"unit"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	IsService   *bool            `json:"is_service"`
	Active      *bool            `json:"active"`
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidUnitPrice = errors.New("invalid_unit_price")
	ErrSlugTaken        = errors.New("slug_taken")
	ErrNotFound         = errors.New("not_found")
)
