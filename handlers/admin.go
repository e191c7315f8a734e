package handlers

import (
	"net/http"

	"rider-payments-api/config"
	"rider-payments-api/models"
	"rider-payments-api/statemachine"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AdminListUsers returns users within the caller's branch scope
func AdminListUsers(c *gin.Context) {
	actor := actorFromContext(c)

	query := config.DB.Preload("Branch")
	if actor.Role.IsBranchScoped() && actor.BranchID != nil {
		query = query.Where("branch_id = ?", *actor.BranchID)
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var users []models.User
	query.Find(&users)
	respond(c, http.StatusOK, "Users", gin.H{"count": len(users), "users": users})
}

// AdminOrderSummary aggregates orders by payment status with totals —
// branch-scoped dashboard view
func AdminOrderSummary(c *gin.Context) {
	actor := actorFromContext(c)

	query := config.DB.Model(&models.Order{})
	if actor.Role.IsBranchScoped() && actor.BranchID != nil {
		query = query.Where("branch_id = ?", *actor.BranchID)
	}
	if branchID := c.Query("branch_id"); branchID != "" && !actor.Role.IsBranchScoped() {
		query = query.Where("branch_id = ?", branchID)
	}

	var orders []models.Order
	query.Find(&orders)

	summary := map[string]int{}
	totalDue := decimal.Zero
	totalPaid := decimal.Zero
	for _, o := range orders {
		summary[string(o.PaymentStatus)]++
		totalDue = totalDue.Add(o.AmountDue)
		totalPaid = totalPaid.Add(o.AmountPaid)
	}

	respond(c, http.StatusOK, "Order summary", gin.H{
		"count":             len(orders),
		"by_payment_status": summary,
		"total_due":         totalDue,
		"total_paid":        totalPaid,
		"total_outstanding": totalDue.Sub(totalPaid),
	})
}

// GetLifecycleInfo returns the payment state machine for documentation
func GetLifecycleInfo(c *gin.Context) {
	var payments []gin.H
	for _, t := range statemachine.GetAllPaymentTransitions() {
		payments = append(payments, gin.H{"from": t.From, "to": t.To, "actor": t.Actor})
	}
	var proofs []gin.H
	for _, t := range statemachine.GetAllProofTransitions() {
		proofs = append(proofs, gin.H{"from": t.From, "to": t.To, "actor": t.Actor})
	}
	c.JSON(http.StatusOK, gin.H{
		"payment_transitions": payments,
		"proof_transitions":   proofs,
		"terminal_statuses":   []string{"completed", "rejected", "failed"},
		"description":         "Payment and proof lifecycle state machine",
	})
}
