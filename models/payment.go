package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentHistory is one payment attempt against an order. IDs are opaque
// UUIDs assigned at creation, never auto-increment.
type PaymentHistory struct {
	ID      string `json:"id" gorm:"primaryKey;size:36"`
	OrderID uint   `json:"order_id" gorm:"not null;index"`
	Order   *Order `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	UserID  uint   `json:"user_id" gorm:"not null;index"`
	User    *User  `json:"user,omitempty" gorm:"foreignKey:UserID"`

	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	PaymentMethod PaymentMethod   `json:"payment_method" gorm:"not null"`
	Status        PaymentStatus   `json:"status" gorm:"not null;default:'pending'"`
	Reference     string          `json:"reference"` // free text, e.g. bank reference

	ApprovedBy *uint         `json:"approved_by"`
	ApprovedAt *time.Time    `json:"approved_at"`
	Proof      *PaymentProof `json:"proof,omitempty" gorm:"foreignKey:PaymentHistoryID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (p *PaymentHistory) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ProofStatus is the PaymentProof lifecycle: pending, then exactly one of
// approved or rejected.
type ProofStatus string

const (
	ProofPending  ProofStatus = "pending"
	ProofApproved ProofStatus = "approved"
	ProofRejected ProofStatus = "rejected"
)

// PaymentProof is rider-uploaded evidence for a bank-transfer payment.
type PaymentProof struct {
	ID               string          `json:"id" gorm:"primaryKey;size:36"`
	PaymentHistoryID string          `json:"payment_history_id" gorm:"not null;uniqueIndex;size:36"`
	Payment          *PaymentHistory `json:"payment,omitempty" gorm:"foreignKey:PaymentHistoryID"`
	ProofURL         string          `json:"proof_url" gorm:"not null"`
	Status           ProofStatus     `json:"status" gorm:"not null;default:'pending'"`
	RejectionReason  string          `json:"rejection_reason,omitempty" gorm:"size:255"`
	ApprovedBy       *uint           `json:"approved_by"`
	ApprovedAt       *time.Time      `json:"approved_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (p *PaymentProof) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// NotificationStatus is the outbox row lifecycle.
type NotificationStatus string

const (
	NotifyPending NotificationStatus = "pending"
	NotifySent    NotificationStatus = "sent"
	NotifyFailed  NotificationStatus = "failed"
)

// Notification kinds, one per lifecycle transition that alerts someone.
const (
	NotifyOrderCreated    = "order_created"
	NotifyPaymentReceived = "payment_received"
	NotifyProofSubmitted  = "proof_submitted"
	NotifyProofApproved   = "proof_approved"
	NotifyProofRejected   = "proof_rejected"
)

// Notification is an outbox row: written in the same transaction as the
// mutation that caused it, delivered later by the dispatcher. SMS delivery
// can never fail or delay the primary operation.
type Notification struct {
	ID        uint               `json:"id" gorm:"primaryKey"`
	Recipient string             `json:"recipient" gorm:"not null"`
	Message   string             `json:"message" gorm:"not null"`
	Kind      string             `json:"kind" gorm:"not null"`
	Status    NotificationStatus `json:"status" gorm:"not null;default:'pending';index"`
	Attempts  int                `json:"attempts"`
	LastError string             `json:"last_error,omitempty"`
	SentAt    *time.Time         `json:"sent_at"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}
