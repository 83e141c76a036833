package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is a catalog listing served to the storefront.
type Product struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string         `gorm:"column:name;not null"`
	Description *string        `gorm:"column:description"`
	PriceCents  int64          `gorm:"column:price_cents;not null"`
	Image       *string        `gorm:"column:image"`
	Category    string         `gorm:"column:category;not null"`
	IsFeatured  bool           `gorm:"column:is_featured;not null;default:false"`
	IsNew       bool           `gorm:"column:is_new;not null;default:false"`
	InStock     bool           `gorm:"column:in_stock;not null;default:true"`
	Variants    pq.StringArray `gorm:"column:variants;type:text[]"`
	Colors      pq.StringArray `gorm:"column:colors;type:text[]"`
	Details     pq.StringArray `gorm:"column:details;type:text[]"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name used by GORM.
func (Product) TableName() string { return "products" }
