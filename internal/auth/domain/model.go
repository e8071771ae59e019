// Package domain contains core types for admin authentication.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// AdminUser is a back-office account allowed to manage documents.
type AdminUser struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Email        string       `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Name         string       `gorm:"type:varchar(255);not null" json:"name"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	LastLoginAt  *time.Time   `json:"last_login_at,omitempty"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (AdminUser) TableName() string { return "admin_users" }
