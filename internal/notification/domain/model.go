package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeNewQuotation   Type = "new"
	TypeStatusChange   Type = "status_change"
	TypeConverted      Type = "converted"
	TypeInvoiceCreated Type = "invoice_created"
	TypePayment        Type = "payment"
	TypePaid           Type = "paid"
	TypeOverride       Type = "override"
)

const (
	TargetQuotation = "quotation"
	TargetInvoice   = "invoice"
)

// Notification is an entry in the admin activity feed.
type Notification struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	Type       Type              `gorm:"type:varchar(32);not null;index" json:"type"`
	Title      string            `gorm:"type:varchar(255);not null" json:"title"`
	Message    string            `gorm:"type:text" json:"message"`
	TargetType string            `gorm:"type:varchar(32);not null" json:"target_type"`
	TargetID   snowflake.ID      `gorm:"not null;index" json:"target_id"`
	Reference  string            `gorm:"type:varchar(64)" json:"reference,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	ReadAt     *time.Time        `json:"read_at,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

func (n Notification) IsRead() bool { return n.ReadAt != nil }
