package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Branch is a physical office. Admins and riders belong to exactly one;
// the branch phone receives proof-review SMS alerts.
type Branch struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;uniqueIndex"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Products  []Product `json:"products,omitempty" gorm:"foreignKey:BranchID"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Product struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	BranchID  uint            `json:"branch_id" gorm:"not null"`
	Name      string          `json:"name" gorm:"not null"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	IsActive  bool            `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
