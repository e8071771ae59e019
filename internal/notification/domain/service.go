package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kay/pkg/db/pagination"
	"gorm.io/gorm"
)

// Event describes something an admin should see. Record stamps the
// request correlation into Metadata.
type Event struct {
	Type       Type
	Title      string
	Message    string
	TargetType string
	TargetID   snowflake.ID
	Reference  string
	Metadata   map[string]any
}

type ListRequest struct {
	pagination.Pagination
	Type       string `form:"type"`
	UnreadOnly bool   `form:"unread"`
}

type ListResponse struct {
	pagination.PageInfo
	Notifications []Notification `json:"notifications"`
	UnreadCount   int64          `json:"unread_count"`
}

type ListFilter struct {
	Type       string
	UnreadOnly bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Notification) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Notification, error)
	MarkRead(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	MarkAllRead(ctx context.Context, db *gorm.DB) (int64, error)
	CountUnread(ctx context.Context, db *gorm.DB) (int64, error)
	Exists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}

type Service interface {
	// Record writes the notification using tx so it commits or rolls back
	// with the change that produced it. A nil tx uses the service's pool.
	Record(ctx context.Context, tx *gorm.DB, event Event) error
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int64, error)
	UnreadCount(ctx context.Context) (int64, error)
}

var (
	ErrInvalidType   = errors.New("invalid_type")
	ErrInvalidTitle  = errors.New("invalid_title")
	ErrInvalidTarget = errors.New("invalid_target")
	ErrInvalidID     = errors.New("invalid_id")
	ErrNotFound      = errors.New("not_found")
)
