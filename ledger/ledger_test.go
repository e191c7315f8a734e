package ledger

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"rider-payments-api/config"
	"rider-payments-api/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// seed a branch, a product priced 500.00, a rider with zero balance, and a
// branch admin
func seedFixtures(t *testing.T, db *gorm.DB) (branch models.Branch, product models.Product, rider models.User, admin models.User) {
	t.Helper()
	branch = models.Branch{Name: "Lagos Main", Phone: "+2348000000001"}
	if err := db.Create(&branch).Error; err != nil {
		t.Fatalf("branch: %v", err)
	}
	product = models.Product{
		BranchID:  branch.ID,
		Name:      "Delivery Bike Lease",
		UnitPrice: decimal.RequireFromString("500.00"),
		IsActive:  true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("product: %v", err)
	}
	rider = models.User{
		Name: "Rider One", Email: "rider@test", PasswordHash: "x",
		Role: models.RoleRider, Phone: "+2348000000002", BranchID: &branch.ID,
	}
	if err := db.Create(&rider).Error; err != nil {
		t.Fatalf("rider: %v", err)
	}
	admin = models.User{
		Name: "Branch Admin", Email: "admin@test", PasswordHash: "x",
		Role: models.RoleAdmin, BranchID: &branch.ID,
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("admin: %v", err)
	}
	return
}

func adminActor(admin models.User) Actor {
	return Actor{ID: admin.ID, Role: admin.Role, BranchID: admin.BranchID}
}

func riderActor(rider models.User) Actor {
	return Actor{ID: rider.ID, Role: rider.Role, BranchID: rider.BranchID}
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) models.User {
	t.Helper()
	var u models.User
	if err := db.First(&u, id).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return u
}

func reloadOrder(t *testing.T, db *gorm.DB, id uint) models.Order {
	t.Helper()
	var o models.Order
	if err := db.First(&o, id).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return o
}

func TestCreateOrderComputesAmountDue(t *testing.T) {
	db := setupTestDB(t)
	branch, product, rider, _ := seedFixtures(t, db)

	order, err := CreateOrder(db, riderActor(rider), CreateOrderInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 3,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if want := decimal.RequireFromString("1500.00"); !order.AmountDue.Equal(want) {
		t.Fatalf("amount_due = %s, want %s", order.AmountDue, want)
	}
	if order.Status != models.OrderPending || order.PaymentStatus != models.PaymentPending {
		t.Fatalf("new order not pending: %s/%s", order.Status, order.PaymentStatus)
	}

	// rider now owes the full amount
	if got := reloadUser(t, db, rider.ID).Balance; !got.Equal(order.AmountDue) {
		t.Fatalf("rider balance = %s, want %s", got, order.AmountDue)
	}

	// order confirmation queued for the rider's phone
	var n models.Notification
	if err := db.Where("kind = ?", models.NotifyOrderCreated).First(&n).Error; err != nil {
		t.Fatalf("expected order_created notification: %v", err)
	}
	if n.Recipient != rider.Phone || n.Status != models.NotifyPending {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestDebtGuardBlocksSecondOrder(t *testing.T) {
	db := setupTestDB(t)
	branch, product, rider, _ := seedFixtures(t, db)

	if _, err := CreateOrder(db, riderActor(rider), CreateOrderInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 1,
	}); err != nil {
		t.Fatalf("first order: %v", err)
	}

	_, err := CreateOrder(db, riderActor(rider), CreateOrderInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 1,
	})
	if !errors.Is(err, ErrUnsettledDebt) {
		t.Fatalf("expected ErrUnsettledDebt, got %v", err)
	}

	// nothing persisted for the refused order
	var count int64
	db.Model(&models.Order{}).Count(&count)
	if count != 1 {
		t.Fatalf("order count = %d, want 1", count)
	}
}

func TestDebtGuardSkipOnlyForSuperAdmin(t *testing.T) {
	db := setupTestDB(t)
	branch, product, rider, admin := seedFixtures(t, db)

	if _, err := CreateOrder(db, riderActor(rider), CreateOrderInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 1,
	}); err != nil {
		t.Fatalf("first order: %v", err)
	}

	// admin cannot bypass the guard even with the flag set
	_, err := CreateOrder(db, adminActor(admin), CreateOrderInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 1,
		SkipDebtCheck: true,
	})
	if !errors.Is(err, ErrUnsettledDebt) {
		t.Fatalf("expected ErrUnsettledDebt for admin, got %v", err)
	}

	super := Actor{ID: 99, Role: models.RoleSuperAdmin}
	if _, err := CreateOrder(db, super, CreateOrderInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 1,
		SkipDebtCheck: true,
	}); err != nil {
		t.Fatalf("super admin override: %v", err)
	}
}

func TestCashMarkSettlesOrderAndBalance(t *testing.T) {
	db := setupTestDB(t)
	branch, product, rider, admin := seedFixtures(t, db)

	payment, err := RecordPayment(db, adminActor(admin), RecordPaymentInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 3,
		Method: models.MethodCash,
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if payment.Status != models.PaymentPending {
		t.Fatalf("fresh payment status = %s, want pending", payment.Status)
	}
	amount := decimal.RequireFromString("1500.00")
	if !payment.Amount.Equal(amount) {
		t.Fatalf("payment amount = %s, want %s", payment.Amount, amount)
	}

	if _, err := MarkCashPaid(db, adminActor(admin), payment.ID, amount); err != nil {
		t.Fatalf("mark cash: %v", err)
	}

	order := reloadOrder(t, db, payment.OrderID)
	if order.PaymentStatus != models.PaymentPaid {
		t.Fatalf("order payment_status = %s, want paid", order.PaymentStatus)
	}
	if order.Status != models.OrderCompleted {
		t.Fatalf("order status = %s, want completed", order.Status)
	}
	if !order.AmountPaid.Equal(amount) {
		t.Fatalf("order amount_paid = %s, want %s", order.AmountPaid, amount)
	}

	// full settlement closes the paid record out as completed
	var stored models.PaymentHistory
	if err := db.First(&stored, "id = ?", payment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if stored.Status != models.PaymentCompleted {
		t.Fatalf("payment status = %s, want completed", stored.Status)
	}
	if stored.ApprovedBy == nil || *stored.ApprovedBy != admin.ID || stored.ApprovedAt == nil {
		t.Fatalf("approver not recorded: %+v", stored)
	}

	if got := reloadUser(t, db, rider.ID).Balance; !got.IsZero() {
		t.Fatalf("rider balance = %s, want 0", got)
	}
}

func TestMarkCashTwiceConflicts(t *testing.T) {
	db := setupTestDB(t)
	branch, product, rider, admin := seedFixtures(t, db)

	payment, err := RecordPayment(db, adminActor(admin), RecordPaymentInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 2,
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	amount := decimal.RequireFromString("1000.00")
	if _, err := MarkCashPaid(db, adminActor(admin), payment.ID, amount); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	balanceAfter := reloadUser(t, db, rider.ID).Balance

	if _, err := MarkCashPaid(db, adminActor(admin), payment.ID, amount); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	if got := reloadUser(t, db, rider.ID).Balance; !got.Equal(balanceAfter) {
		t.Fatalf("balance changed on conflicting mark: %s -> %s", balanceAfter, got)
	}
}

func TestBalanceClampedAtZero(t *testing.T) {
	db := setupTestDB(t)
	branch, product, rider, admin := seedFixtures(t, db)

	// part-payment order: rider owes only the remainder
	order, err := CreateOrder(db, riderActor(rider), CreateOrderInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 2,
		PaymentType: models.PayPart, AmountPaid: decimal.RequireFromString("800.00"),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if got, want := reloadUser(t, db, rider.ID).Balance, decimal.RequireFromString("200.00"); !got.Equal(want) {
		t.Fatalf("rider balance = %s, want %s", got, want)
	}

	// settling the remaining 200 decrements by 200 to exactly zero; any
	// larger decrement would clamp, never go negative
	proof, err := SubmitProof(db, riderActor(rider), SubmitProofInput{
		OrderID: order.ID, Amount: decimal.RequireFromString("200.00"),
		ProofURL: "https://proofs.test/1.jpg",
	})
	if err != nil {
		t.Fatalf("submit proof: %v", err)
	}
	if _, err := ApproveProof(db, adminActor(admin), proof.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := reloadUser(t, db, rider.ID).Balance; !got.IsZero() {
		t.Fatalf("rider balance = %s, want 0", got)
	}
	if got := reloadUser(t, db, rider.ID).Balance; got.IsNegative() {
		t.Fatalf("balance went negative: %s", got)
	}
}

func TestApproveProofSettlement(t *testing.T) {
	db := setupTestDB(t)
	branch, product, rider, admin := seedFixtures(t, db)

	order, err := CreateOrder(db, riderActor(rider), CreateOrderInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 2,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// first proof covers half: order stays unsettled
	half := decimal.RequireFromString("500.00")
	proof1, err := SubmitProof(db, riderActor(rider), SubmitProofInput{
		OrderID: order.ID, Amount: half, ProofURL: "https://proofs.test/1.jpg",
	})
	if err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	if _, err := ApproveProof(db, adminActor(admin), proof1.ID); err != nil {
		t.Fatalf("approve 1: %v", err)
	}
	mid := reloadOrder(t, db, order.ID)
	if mid.PaymentStatus != models.PaymentPending {
		t.Fatalf("half-settled order payment_status = %s, want pending", mid.PaymentStatus)
	}
	if !mid.AmountPaid.Equal(half) {
		t.Fatalf("amount_paid = %s, want %s", mid.AmountPaid, half)
	}

	// second half settles it
	proof2, err := SubmitProof(db, riderActor(rider), SubmitProofInput{
		OrderID: order.ID, Amount: half, ProofURL: "https://proofs.test/2.jpg",
	})
	if err != nil {
		t.Fatalf("submit 2: %v", err)
	}
	if _, err := ApproveProof(db, adminActor(admin), proof2.ID); err != nil {
		t.Fatalf("approve 2: %v", err)
	}
	final := reloadOrder(t, db, order.ID)
	if final.PaymentStatus != models.PaymentPaid {
		t.Fatalf("settled order payment_status = %s, want paid", final.PaymentStatus)
	}
	if got := reloadUser(t, db, rider.ID).Balance; !got.IsZero() {
		t.Fatalf("rider balance = %s, want 0", got)
	}
}

func TestDoubleApprovalConflicts(t *testing.T) {
	db := setupTestDB(t)
	branch, product, rider, admin := seedFixtures(t, db)

	order, err := CreateOrder(db, riderActor(rider), CreateOrderInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 2,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	proof, err := SubmitProof(db, riderActor(rider), SubmitProofInput{
		OrderID: order.ID, Amount: decimal.RequireFromString("400.00"),
		ProofURL: "https://proofs.test/1.jpg",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := ApproveProof(db, adminActor(admin), proof.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	balanceAfter := reloadUser(t, db, rider.ID).Balance

	// a second approval or rejection must conflict and not touch the balance
	if _, err := ApproveProof(db, adminActor(admin), proof.ID); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved on re-approve, got %v", err)
	}
	if _, err := RejectProof(db, adminActor(admin), proof.ID, "too late"); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved on reject-after-approve, got %v", err)
	}
	if got := reloadUser(t, db, rider.ID).Balance; !got.Equal(balanceAfter) {
		t.Fatalf("balance double-credited: %s -> %s", balanceAfter, got)
	}
}

func TestRejectProofLeavesBalanceUntouched(t *testing.T) {
	db := setupTestDB(t)
	branch, product, rider, admin := seedFixtures(t, db)

	order, err := CreateOrder(db, riderActor(rider), CreateOrderInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 1,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	balanceBefore := reloadUser(t, db, rider.ID).Balance

	proof, err := SubmitProof(db, riderActor(rider), SubmitProofInput{
		OrderID: order.ID, Amount: decimal.RequireFromString("500.00"),
		ProofURL: "https://proofs.test/1.jpg",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	reason := "Invalid proof of payment"
	rejected, err := RejectProof(db, adminActor(admin), proof.ID, reason)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.ProofRejected || rejected.RejectionReason != reason {
		t.Fatalf("unexpected proof after reject: %+v", rejected)
	}

	var payment models.PaymentHistory
	if err := db.First(&payment, "id = ?", proof.PaymentHistoryID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if payment.Status != models.PaymentRejected {
		t.Fatalf("payment status = %s, want rejected", payment.Status)
	}
	if got := reloadUser(t, db, rider.ID).Balance; !got.Equal(balanceBefore) {
		t.Fatalf("balance changed on rejection: %s -> %s", balanceBefore, got)
	}

	// rejection SMS carries the reason
	var n models.Notification
	if err := db.Where("kind = ?", models.NotifyProofRejected).First(&n).Error; err != nil {
		t.Fatalf("expected rejection notification: %v", err)
	}
	if n.Recipient != rider.Phone {
		t.Fatalf("rejection SMS recipient = %s, want %s", n.Recipient, rider.Phone)
	}
	if !strings.Contains(n.Message, reason) {
		t.Fatalf("rejection SMS %q missing reason %q", n.Message, reason)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	db := setupTestDB(t)
	_, _, _, admin := seedFixtures(t, db)

	if _, err := RejectProof(db, adminActor(admin), "nonexistent", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty reason, got %v", err)
	}
}

func TestOverpaymentRejected(t *testing.T) {
	db := setupTestDB(t)
	branch, product, rider, _ := seedFixtures(t, db)

	order, err := CreateOrder(db, riderActor(rider), CreateOrderInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 2,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// single proof beyond amount_due
	if _, err := SubmitProof(db, riderActor(rider), SubmitProofInput{
		OrderID: order.ID, Amount: decimal.RequireFromString("1200.00"),
		ProofURL: "https://proofs.test/big.jpg",
	}); !errors.Is(err, ErrOverpayment) {
		t.Fatalf("expected ErrOverpayment, got %v", err)
	}

	// pending credit counts: two proofs may not jointly over-commit
	if _, err := SubmitProof(db, riderActor(rider), SubmitProofInput{
		OrderID: order.ID, Amount: decimal.RequireFromString("600.00"),
		ProofURL: "https://proofs.test/1.jpg",
	}); err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	if _, err := SubmitProof(db, riderActor(rider), SubmitProofInput{
		OrderID: order.ID, Amount: decimal.RequireFromString("600.00"),
		ProofURL: "https://proofs.test/2.jpg",
	}); !errors.Is(err, ErrOverpayment) {
		t.Fatalf("expected ErrOverpayment on second proof, got %v", err)
	}
}

func TestCashMarkOverpaymentRejected(t *testing.T) {
	db := setupTestDB(t)
	branch, product, rider, admin := seedFixtures(t, db)

	payment, err := RecordPayment(db, adminActor(admin), RecordPaymentInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 1,
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if _, err := MarkCashPaid(db, adminActor(admin), payment.ID, decimal.RequireFromString("9999.00")); !errors.Is(err, ErrOverpayment) {
		t.Fatalf("expected ErrOverpayment on cash mark, got %v", err)
	}
}

func TestProofSubmissionOwnership(t *testing.T) {
	db := setupTestDB(t)
	branch, product, rider, _ := seedFixtures(t, db)

	other := models.User{
		Name: "Rider Two", Email: "rider2@test", PasswordHash: "x",
		Role: models.RoleRider, Phone: "+2348000000009", BranchID: &branch.ID,
	}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("other rider: %v", err)
	}

	order, err := CreateOrder(db, riderActor(rider), CreateOrderInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 1,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	_, err = SubmitProof(db, riderActor(other), SubmitProofInput{
		OrderID: order.ID, Amount: decimal.RequireFromString("500.00"),
		ProofURL: "https://proofs.test/x.jpg",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-payer, got %v", err)
	}
}

func TestBranchScopeOnResolution(t *testing.T) {
	db := setupTestDB(t)
	branch, product, rider, _ := seedFixtures(t, db)

	otherBranch := models.Branch{Name: "Abuja", Phone: "+2348000000008"}
	if err := db.Create(&otherBranch).Error; err != nil {
		t.Fatalf("branch: %v", err)
	}
	foreignAdmin := models.User{
		Name: "Foreign Admin", Email: "admin2@test", PasswordHash: "x",
		Role: models.RoleAdmin, BranchID: &otherBranch.ID,
	}
	if err := db.Create(&foreignAdmin).Error; err != nil {
		t.Fatalf("admin: %v", err)
	}

	order, err := CreateOrder(db, riderActor(rider), CreateOrderInput{
		PayerID: rider.ID, ProductID: product.ID, BranchID: branch.ID, Quantity: 1,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	proof, err := SubmitProof(db, riderActor(rider), SubmitProofInput{
		OrderID: order.ID, Amount: decimal.RequireFromString("500.00"),
		ProofURL: "https://proofs.test/1.jpg",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := ApproveProof(db, adminActor(foreignAdmin), proof.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign admin, got %v", err)
	}
}
