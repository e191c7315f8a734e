package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserRole defines allowed roles in the system
type UserRole string

const (
	RoleSuperAdmin UserRole = "super_admin"
	RoleAdmin      UserRole = "admin" // branch-scoped
	RoleRider      UserRole = "rider"
	RoleRegular    UserRole = "regular"
)

// ValidRoles is the closed set accepted at registration
var ValidRoles = map[UserRole]bool{
	RoleSuperAdmin: true,
	RoleAdmin:      true,
	RoleRider:      true,
	RoleRegular:    true,
}

// Capability predicates — the single authorization layer consulted by every
// entry point. Branch scoping for admins is checked where the target entity
// is known, not here.

// CanApprovePayments reports whether the role may resolve payment proofs
// and mark cash payments.
func (r UserRole) CanApprovePayments() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// CanMarkCashPayments mirrors CanApprovePayments; cash marking is the
// proof-less resolution path.
func (r UserRole) CanMarkCashPayments() bool {
	return r.CanApprovePayments()
}

// CanCreateOrders reports whether the role may create orders. Riders order
// for themselves, admins on behalf of riders in their branch.
func (r UserRole) CanCreateOrders() bool {
	return r == RoleSuperAdmin || r == RoleAdmin || r == RoleRider
}

// CanRecordPayments gates the admin-initiated payment-history endpoint.
func (r UserRole) CanRecordPayments() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// CanManageCatalog gates branch and product management.
func (r UserRole) CanManageCatalog() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// IsBranchScoped reports whether the role is confined to its own branch.
func (r UserRole) IsBranchScoped() bool {
	return r == RoleAdmin
}

type User struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	Name         string          `json:"name" gorm:"not null"`
	Email        string          `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string          `json:"-" gorm:"not null"`
	Role         UserRole        `json:"role" gorm:"not null;default:'regular'"`
	Phone        string          `json:"phone"`
	BranchID     *uint           `json:"branch_id"`
	Branch       *Branch         `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
	Balance      decimal.Decimal `json:"balance" gorm:"type:decimal(12,2);not null;default:0"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// HasUnpaidBalance reports whether the rider still owes money. A positive
// balance blocks new debt-guarded orders until settled.
func (u *User) HasUnpaidBalance() bool {
	return u.Balance.GreaterThan(decimal.Zero)
}
