// Package ledger implements the order/payment lifecycle: order creation with
// the unsettled-debt guard, cash marking, proof submission and resolution,
// settlement recomputation and rider balance adjustment. Every operation runs
// in a single transaction; SMS intent is persisted as an outbox row inside
// that transaction and delivered later by the notify dispatcher.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"rider-payments-api/models"
	"rider-payments-api/statemachine"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("referenced entity not found")
	ErrUnsettledDebt   = errors.New("rider has an unsettled balance; clear existing debt before creating new orders")
	ErrAlreadyResolved = errors.New("payment has already been resolved")
	ErrOverpayment     = errors.New("payment would exceed the order's amount due")
	ErrForbidden       = errors.New("operation not allowed for this caller")
	ErrInvalidInput    = errors.New("invalid input")
)

// Actor is the authenticated caller of a ledger operation. BranchID is nil
// for unscoped roles (super_admin).
type Actor struct {
	ID       uint
	Role     models.UserRole
	BranchID *uint
}

// withinBranch reports whether the actor may touch entities of the given
// branch. Branch-scoped admins are confined to their own branch.
func (a Actor) withinBranch(branchID uint) bool {
	if !a.Role.IsBranchScoped() {
		return true
	}
	return a.BranchID != nil && *a.BranchID == branchID
}

type CreateOrderInput struct {
	PayerID       uint
	ProductID     uint
	BranchID      uint
	Quantity      int
	PaymentType   models.PaymentType
	PaymentMethod models.PaymentMethod
	AmountPaid    decimal.Decimal // up-front payment for part orders, zero otherwise
	Reference     string

	// SkipDebtCheck is honored only for super_admin actors; everyone else
	// always gets the guard.
	SkipDebtCheck bool
}

// CreateOrder is the single order-creation path. amount_due is fixed here as
// unit price × quantity and never recomputed.
func CreateOrder(db *gorm.DB, actor Actor, in CreateOrderInput) (*models.Order, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if in.PaymentType == "" {
		in.PaymentType = models.PayFull
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = models.MethodCash
	}

	var order models.Order
	err := db.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Where("is_active = ?", true).First(&product, in.ProductID).Error; err != nil {
			return fmt.Errorf("%w: product %d", ErrNotFound, in.ProductID)
		}
		if product.BranchID != in.BranchID {
			return fmt.Errorf("%w: product does not belong to branch %d", ErrInvalidInput, in.BranchID)
		}
		if !actor.withinBranch(in.BranchID) {
			return fmt.Errorf("%w: order branch outside your scope", ErrForbidden)
		}

		var payer models.User
		if err := tx.First(&payer, in.PayerID).Error; err != nil {
			return fmt.Errorf("%w: payer %d", ErrNotFound, in.PayerID)
		}
		if payer.Role != models.RoleRider {
			return fmt.Errorf("%w: payer must be a rider", ErrInvalidInput)
		}

		skipGuard := in.SkipDebtCheck && actor.Role == models.RoleSuperAdmin
		if !skipGuard && payer.HasUnpaidBalance() {
			return ErrUnsettledDebt
		}

		amountDue := product.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
		amountPaid := in.AmountPaid
		if amountPaid.IsNegative() {
			return fmt.Errorf("%w: amount paid cannot be negative", ErrInvalidInput)
		}
		if amountPaid.GreaterThan(amountDue) {
			return ErrOverpayment
		}

		order = models.Order{
			PayerID:       payer.ID,
			BranchID:      in.BranchID,
			ProductID:     product.ID,
			ProductName:   product.Name,
			UnitPrice:     product.UnitPrice,
			Quantity:      in.Quantity,
			AmountDue:     amountDue,
			AmountPaid:    decimal.Zero,
			PaymentType:   in.PaymentType,
			PaymentMethod: in.PaymentMethod,
			Status:        models.OrderPending,
			PaymentStatus: models.PaymentPending,
			CreatedBy:     actor.ID,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		// An up-front part payment is settled immediately as cash
		if amountPaid.IsPositive() {
			now := time.Now()
			payment := models.PaymentHistory{
				OrderID:       order.ID,
				UserID:        payer.ID,
				Amount:        amountPaid,
				PaymentMethod: in.PaymentMethod,
				Status:        models.PaymentPaid,
				Reference:     in.Reference,
				ApprovedBy:    &actor.ID,
				ApprovedAt:    &now,
			}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}
			if err := recomputeSettlement(tx, &order); err != nil {
				return err
			}
		}

		// The rider now owes the unpaid remainder
		if err := creditBalance(tx, payer.ID, amountDue.Sub(amountPaid)); err != nil {
			return err
		}

		msg := fmt.Sprintf("Your order #%d for %d x %s has been created. Amount due: %s.",
			order.ID, order.Quantity, order.ProductName, order.Outstanding().StringFixed(2))
		return enqueue(tx, payer.Phone, models.NotifyOrderCreated, msg)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

type RecordPaymentInput struct {
	PayerID   uint
	ProductID uint
	BranchID  uint
	Quantity  int
	Method    models.PaymentMethod
	Reference string
}

// RecordPayment is the admin-initiated path: it creates the companion order
// and a pending PaymentHistory against it in one action.
func RecordPayment(db *gorm.DB, actor Actor, in RecordPaymentInput) (*models.PaymentHistory, error) {
	if !actor.Role.CanRecordPayments() {
		return nil, ErrForbidden
	}
	var payment models.PaymentHistory
	err := db.Transaction(func(tx *gorm.DB) error {
		order, err := CreateOrder(tx, actor, CreateOrderInput{
			PayerID:       in.PayerID,
			ProductID:     in.ProductID,
			BranchID:      in.BranchID,
			Quantity:      in.Quantity,
			PaymentMethod: in.Method,
		})
		if err != nil {
			return err
		}
		payment = models.PaymentHistory{
			OrderID:       order.ID,
			UserID:        order.PayerID,
			Amount:        order.AmountDue,
			PaymentMethod: in.Method,
			Status:        models.PaymentPending,
			Reference:     in.Reference,
		}
		return tx.Create(&payment).Error
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkCashPaid resolves a pending payment as paid cash, no proof required.
// The status update is a compare-and-swap on pending so a concurrent second
// marking fails instead of double-crediting the rider.
func MarkCashPaid(db *gorm.DB, actor Actor, paymentID string, amount decimal.Decimal) (*models.PaymentHistory, error) {
	if !actor.Role.CanMarkCashPayments() {
		return nil, ErrForbidden
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	var payment models.PaymentHistory
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payment, "id = ?", paymentID).Error; err != nil {
			return fmt.Errorf("%w: payment %s", ErrNotFound, paymentID)
		}
		var order models.Order
		if err := tx.First(&order, payment.OrderID).Error; err != nil {
			return fmt.Errorf("%w: order %d", ErrNotFound, payment.OrderID)
		}
		if !actor.withinBranch(order.BranchID) {
			return fmt.Errorf("%w: order belongs to another branch", ErrForbidden)
		}
		if payment.Status != models.PaymentPending {
			return ErrAlreadyResolved
		}
		if err := statemachine.CanTransitionPayment(payment.Status, models.PaymentPaid, statemachine.ActorAdmin); err != nil {
			return fmt.Errorf("%w: %v", ErrAlreadyResolved, err)
		}
		if order.AmountPaid.Add(amount).GreaterThan(order.AmountDue) {
			return ErrOverpayment
		}

		now := time.Now()
		result := tx.Model(&models.PaymentHistory{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
			Updates(map[string]interface{}{
				"status":         models.PaymentPaid,
				"amount":         amount,
				"payment_method": models.MethodCash,
				"approved_by":    actor.ID,
				"approved_at":    now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyResolved
		}
		payment.Status = models.PaymentPaid
		payment.Amount = amount
		payment.PaymentMethod = models.MethodCash
		payment.ApprovedBy = &actor.ID
		payment.ApprovedAt = &now

		if err := recomputeSettlement(tx, &order); err != nil {
			return err
		}
		if err := debitBalance(tx, order.PayerID, amount); err != nil {
			return err
		}

		var payer models.User
		if err := tx.First(&payer, order.PayerID).Error; err != nil {
			return fmt.Errorf("%w: payer %d", ErrNotFound, order.PayerID)
		}
		msg := fmt.Sprintf("Payment of %s received for order #%d. Outstanding balance: %s.",
			amount.StringFixed(2), order.ID, order.Outstanding().StringFixed(2))
		return enqueue(tx, payer.Phone, models.NotifyPaymentReceived, msg)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

type SubmitProofInput struct {
	OrderID   uint
	Amount    decimal.Decimal
	ProofURL  string
	Method    models.PaymentMethod
	Reference string
}

// SubmitProof records a bank-transfer payment attempt with evidence. Only
// the order's payer may submit; admins may submit on a rider's behalf.
func SubmitProof(db *gorm.DB, actor Actor, in SubmitProofInput) (*models.PaymentProof, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrInvalidInput)
	}
	if in.ProofURL == "" {
		return nil, fmt.Errorf("%w: proof_url is required", ErrInvalidInput)
	}
	if in.Method == "" {
		in.Method = models.MethodBankTransfer
	}

	var proof models.PaymentProof
	err := db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, in.OrderID).Error; err != nil {
			return fmt.Errorf("%w: order %d", ErrNotFound, in.OrderID)
		}
		isPayer := actor.ID == order.PayerID && actor.Role == models.RoleRider
		isAdmin := actor.Role.CanApprovePayments() && actor.withinBranch(order.BranchID)
		if !isPayer && !isAdmin {
			return fmt.Errorf("%w: only the order's payer may submit proof", ErrForbidden)
		}

		// Overpayment guard counts pending credit too, so two submissions
		// cannot jointly over-commit the order
		pending, err := sumPayments(tx, order.ID, []models.PaymentStatus{models.PaymentPending})
		if err != nil {
			return err
		}
		if order.AmountPaid.Add(pending).Add(in.Amount).GreaterThan(order.AmountDue) {
			return ErrOverpayment
		}

		payment := models.PaymentHistory{
			OrderID:       order.ID,
			UserID:        order.PayerID,
			Amount:        in.Amount,
			PaymentMethod: in.Method,
			Status:        models.PaymentPending,
			Reference:     in.Reference,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		proof = models.PaymentProof{
			PaymentHistoryID: payment.ID,
			ProofURL:         in.ProofURL,
			Status:           models.ProofPending,
		}
		if err := tx.Create(&proof).Error; err != nil {
			return err
		}
		proof.Payment = &payment

		var branch models.Branch
		if err := tx.First(&branch, order.BranchID).Error; err != nil {
			return fmt.Errorf("%w: branch %d", ErrNotFound, order.BranchID)
		}
		msg := fmt.Sprintf("New payment proof of %s awaits review for order #%d.",
			in.Amount.StringFixed(2), order.ID)
		return enqueue(tx, branch.Phone, models.NotifyProofSubmitted, msg)
	})
	if err != nil {
		return nil, err
	}
	return &proof, nil
}

// ApproveProof resolves a pending proof as approved: proof → approved,
// payment → paid, settlement recomputed, rider balance debited (clamped at
// zero). Compare-and-swap on both rows closes the double-approval race.
func ApproveProof(db *gorm.DB, actor Actor, proofID string) (*models.PaymentProof, error) {
	if !actor.Role.CanApprovePayments() {
		return nil, ErrForbidden
	}

	var proof models.PaymentProof
	err := db.Transaction(func(tx *gorm.DB) error {
		payment, order, err := loadProofChain(tx, &proof, proofID)
		if err != nil {
			return err
		}
		if !actor.withinBranch(order.BranchID) {
			return fmt.Errorf("%w: order belongs to another branch", ErrForbidden)
		}
		if proof.Status != models.ProofPending {
			return ErrAlreadyResolved
		}
		if err := statemachine.CanTransitionProof(proof.Status, models.ProofApproved, statemachine.ActorAdmin); err != nil {
			return fmt.Errorf("%w: %v", ErrAlreadyResolved, err)
		}

		now := time.Now()
		if err := casProof(tx, proof.ID, models.ProofApproved, "", actor.ID, now); err != nil {
			return err
		}
		if err := casPayment(tx, payment.ID, models.PaymentPaid, actor.ID, now); err != nil {
			return err
		}
		proof.Status = models.ProofApproved
		proof.ApprovedBy = &actor.ID
		proof.ApprovedAt = &now
		payment.Status = models.PaymentPaid
		payment.ApprovedBy = &actor.ID
		payment.ApprovedAt = &now
		proof.Payment = payment

		if err := recomputeSettlement(tx, order); err != nil {
			return err
		}
		if err := debitBalance(tx, order.PayerID, payment.Amount); err != nil {
			return err
		}

		var payer models.User
		if err := tx.First(&payer, order.PayerID).Error; err != nil {
			return fmt.Errorf("%w: payer %d", ErrNotFound, order.PayerID)
		}
		msg := fmt.Sprintf("Your payment of %s for order #%d has been approved. Outstanding balance: %s.",
			payment.Amount.StringFixed(2), order.ID, order.Outstanding().StringFixed(2))
		return enqueue(tx, payer.Phone, models.NotifyProofApproved, msg)
	})
	if err != nil {
		return nil, err
	}
	return &proof, nil
}

// RejectProof resolves a pending proof as rejected: proof and payment →
// rejected, no amount or balance change.
func RejectProof(db *gorm.DB, actor Actor, proofID, reason string) (*models.PaymentProof, error) {
	if !actor.Role.CanApprovePayments() {
		return nil, ErrForbidden
	}
	if reason == "" || len(reason) > 255 {
		return nil, fmt.Errorf("%w: rejection reason is required (max 255 chars)", ErrInvalidInput)
	}

	var proof models.PaymentProof
	err := db.Transaction(func(tx *gorm.DB) error {
		payment, order, err := loadProofChain(tx, &proof, proofID)
		if err != nil {
			return err
		}
		if !actor.withinBranch(order.BranchID) {
			return fmt.Errorf("%w: order belongs to another branch", ErrForbidden)
		}
		if proof.Status != models.ProofPending {
			return ErrAlreadyResolved
		}
		if err := statemachine.CanTransitionProof(proof.Status, models.ProofRejected, statemachine.ActorAdmin); err != nil {
			return fmt.Errorf("%w: %v", ErrAlreadyResolved, err)
		}

		now := time.Now()
		if err := casProof(tx, proof.ID, models.ProofRejected, reason, actor.ID, now); err != nil {
			return err
		}
		if err := casPayment(tx, payment.ID, models.PaymentRejected, actor.ID, now); err != nil {
			return err
		}
		proof.Status = models.ProofRejected
		proof.RejectionReason = reason
		proof.ApprovedBy = &actor.ID
		proof.ApprovedAt = &now
		payment.Status = models.PaymentRejected
		proof.Payment = payment

		var payer models.User
		if err := tx.First(&payer, order.PayerID).Error; err != nil {
			return fmt.Errorf("%w: payer %d", ErrNotFound, order.PayerID)
		}
		msg := fmt.Sprintf("Your payment proof for order #%d was rejected: %s", order.ID, reason)
		return enqueue(tx, payer.Phone, models.NotifyProofRejected, msg)
	})
	if err != nil {
		return nil, err
	}
	return &proof, nil
}

// loadProofChain fetches proof, its payment and its order.
func loadProofChain(tx *gorm.DB, proof *models.PaymentProof, proofID string) (*models.PaymentHistory, *models.Order, error) {
	if err := tx.First(proof, "id = ?", proofID).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: proof %s", ErrNotFound, proofID)
	}
	var payment models.PaymentHistory
	if err := tx.First(&payment, "id = ?", proof.PaymentHistoryID).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: payment %s", ErrNotFound, proof.PaymentHistoryID)
	}
	var order models.Order
	if err := tx.First(&order, payment.OrderID).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: order %d", ErrNotFound, payment.OrderID)
	}
	return &payment, &order, nil
}

func casProof(tx *gorm.DB, id string, to models.ProofStatus, reason string, approver uint, at time.Time) error {
	updates := map[string]interface{}{
		"status":      to,
		"approved_by": approver,
		"approved_at": at,
	}
	if reason != "" {
		updates["rejection_reason"] = reason
	}
	result := tx.Model(&models.PaymentProof{}).
		Where("id = ? AND status = ?", id, models.ProofPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

func casPayment(tx *gorm.DB, id string, to models.PaymentStatus, approver uint, at time.Time) error {
	result := tx.Model(&models.PaymentHistory{}).
		Where("id = ? AND status = ?", id, models.PaymentPending).
		Updates(map[string]interface{}{
			"status":      to,
			"approved_by": approver,
			"approved_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

// sumPayments totals payment amounts for an order across the given statuses.
// Summed in Go with decimals rather than SQL so no precision is lost to
// float coercion.
func sumPayments(tx *gorm.DB, orderID uint, statuses []models.PaymentStatus) (decimal.Decimal, error) {
	var payments []models.PaymentHistory
	if err := tx.Where("order_id = ? AND status IN ?", orderID, statuses).Find(&payments).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, p := range payments {
		sum = sum.Add(p.Amount)
	}
	return sum, nil
}

// recomputeSettlement refreshes the order's settled total. When the settled
// sum reaches amount_due the order's payment_status becomes paid, the order
// completes, and its paid records close out as completed.
func recomputeSettlement(tx *gorm.DB, order *models.Order) error {
	sum, err := sumPayments(tx, order.ID, models.SettledStatuses)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{"amount_paid": sum}
	settled := sum.GreaterThanOrEqual(order.AmountDue)
	if settled {
		updates["payment_status"] = models.PaymentPaid
		updates["status"] = models.OrderCompleted
	}
	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
		return err
	}
	order.AmountPaid = sum
	if settled {
		order.PaymentStatus = models.PaymentPaid
		order.Status = models.OrderCompleted
		if err := statemachine.CanTransitionPayment(models.PaymentPaid, models.PaymentCompleted, statemachine.ActorSystem); err != nil {
			return err
		}
		if err := tx.Model(&models.PaymentHistory{}).
			Where("order_id = ? AND status = ?", order.ID, models.PaymentPaid).
			Update("status", models.PaymentCompleted).Error; err != nil {
			return err
		}
	}
	return nil
}

// creditBalance adds to the rider's running balance (new debt).
func creditBalance(tx *gorm.DB, userID uint, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		return fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	return tx.Model(&user).Update("balance", user.Balance.Add(amount)).Error
}

// debitBalance subtracts a favorable payment from the rider's balance,
// clamped at zero — the balance is never negative.
func debitBalance(tx *gorm.DB, userID uint, amount decimal.Decimal) error {
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		return fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	next := user.Balance.Sub(amount)
	if next.IsNegative() {
		next = decimal.Zero
	}
	return tx.Model(&user).Update("balance", next).Error
}

// enqueue writes an outbox row inside the caller's transaction. Rows with no
// recipient are dropped: nothing to deliver to.
func enqueue(tx *gorm.DB, recipient, kind, message string) error {
	if recipient == "" {
		return nil
	}
	return tx.Create(&models.Notification{
		Recipient: recipient,
		Message:   message,
		Kind:      kind,
		Status:    models.NotifyPending,
	}).Error
}
