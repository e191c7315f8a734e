package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus tracks fulfilment progress of an order
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
)

// PaymentStatus tracks settlement progress of an order or a payment record
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCompleted PaymentStatus = "completed"
	PaymentApproved  PaymentStatus = "approved"
	PaymentRejected  PaymentStatus = "rejected"
)

// SettledStatuses are the PaymentHistory statuses that count toward an
// order's settlement sum.
var SettledStatuses = []PaymentStatus{PaymentPaid, PaymentApproved, PaymentCompleted}

// PaymentType distinguishes full up-front orders from part-payment ones
type PaymentType string

const (
	PayFull PaymentType = "full"
	PayPart PaymentType = "part"
)

// PaymentMethod is how money moves
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodWallet       PaymentMethod = "wallet"
)

type Order struct {
	ID       uint    `json:"id" gorm:"primaryKey"`
	PayerID  uint    `json:"payer_id" gorm:"not null;index"`
	Payer    *User   `json:"payer,omitempty" gorm:"foreignKey:PayerID"`
	BranchID uint    `json:"branch_id" gorm:"not null;index"`
	Branch   *Branch `json:"branch,omitempty" gorm:"foreignKey:BranchID"`

	ProductID   uint            `json:"product_id" gorm:"not null"`
	ProductName string          `json:"product_name"` // snapshot at order time
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2)"`
	Quantity    int             `json:"quantity" gorm:"not null"`

	// AmountDue is fixed at creation (unit price × quantity) and never
	// recomputed; AmountPaid is the settled sum maintained as payments
	// resolve.
	AmountDue  decimal.Decimal `json:"amount_due" gorm:"type:decimal(12,2);not null"`
	AmountPaid decimal.Decimal `json:"amount_paid" gorm:"type:decimal(12,2);not null;default:0"`

	PaymentType   PaymentType   `json:"payment_type" gorm:"not null;default:'full'"`
	PaymentMethod PaymentMethod `json:"payment_method" gorm:"not null;default:'cash'"`
	Status        OrderStatus   `json:"status" gorm:"not null;default:'pending'"`
	PaymentStatus PaymentStatus `json:"payment_status" gorm:"not null;default:'pending'"`

	CreatedBy uint             `json:"created_by"`
	Payments  []PaymentHistory `json:"payments,omitempty" gorm:"foreignKey:OrderID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Outstanding returns what is still owed on the order.
func (o *Order) Outstanding() decimal.Decimal {
	out := o.AmountDue.Sub(o.AmountPaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
