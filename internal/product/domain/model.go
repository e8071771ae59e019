package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"type:varchar(255);not null"`
	Slug        string          `json:"slug" gorm:"type:varchar(255);not null;uniqueIndex"`
	Description string          `json:"description,omitempty" gorm:"type:text"`
	Category    string          `json:"category,omitempty" gorm:"type:varchar(100);index"`
	Unit        string          `json:"unit,omitempty" gorm:"type:varchar(32)"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(14,2);not null;default:0"`
	IsService   bool            `json:"is_service" gorm:"not null;default:false"`
	Active      bool            `json:"active" gorm:"not null;default:true"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }
