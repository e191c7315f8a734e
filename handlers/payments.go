package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"rider-payments-api/cache"
	"rider-payments-api/config"
	"rider-payments-api/ledger"
	"rider-payments-api/middleware"
	"rider-payments-api/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CreatePaymentHistoryRequest struct {
	ProductID     uint                 `json:"product_id" binding:"required"`
	UserID        uint                 `json:"user_id" binding:"required"`
	BranchID      uint                 `json:"branch_id" binding:"required"`
	Quantity      int                  `json:"quantity" binding:"required,gt=0"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Reference     string               `json:"reference"`
}

// CreatePaymentHistory is the admin path coupling order and payment
// creation: one action yields a pending payment with its companion order.
func CreatePaymentHistory(c *gin.Context) {
	actor := actorFromContext(c)

	var req CreatePaymentHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.MethodCash
	}

	payment, err := ledger.RecordPayment(config.DB, actor, ledger.RecordPaymentInput{
		PayerID:   req.UserID,
		ProductID: req.ProductID,
		BranchID:  req.BranchID,
		Quantity:  req.Quantity,
		Method:    req.PaymentMethod,
		Reference: req.Reference,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	config.Cache.Invalidate(c.Request.Context(), cache.NSOrders)
	config.Cache.Invalidate(c.Request.Context(), cache.NSPayments)
	respond(c, http.StatusCreated, "Payment recorded successfully", gin.H{"payment": payment})
}

// ListPaymentHistories returns payments visible to the caller's branch
// scope, optionally filtered by status. Cached per scope.
func ListPaymentHistories(c *gin.Context) {
	actor := actorFromContext(c)
	status := c.Query("status")

	cacheKey := fmt.Sprintf("role=%s:user=%d:status=%s", actor.Role, actor.ID, status)
	if body, ok := config.Cache.Get(c.Request.Context(), cache.NSPayments, cacheKey); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}

	query := config.DB.Preload("Proof").Order("created_at desc")
	if actor.Role.IsBranchScoped() && actor.BranchID != nil {
		query = query.Where("order_id IN (?)",
			config.DB.Model(&models.Order{}).Select("id").Where("branch_id = ?", *actor.BranchID))
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var payments []models.PaymentHistory
	query.Find(&payments)

	body, err := json.Marshal(gin.H{
		"status":  "success",
		"message": "Payment histories",
		"data":    gin.H{"count": len(payments), "payments": payments},
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to encode payments")
		return
	}
	config.Cache.Set(c.Request.Context(), cache.NSPayments, cacheKey, body)
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

type MarkCashPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// MarkCashPayment transitions a pending payment to paid as cash, no proof
// required. Admin only, scoped to the admin's branch.
func MarkCashPayment(c *gin.Context) {
	actor := actorFromContext(c)

	var req MarkCashPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	payment, err := ledger.MarkCashPaid(config.DB, actor, c.Param("id"), req.Amount)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	config.Cache.Invalidate(c.Request.Context(), cache.NSOrders)
	config.Cache.Invalidate(c.Request.Context(), cache.NSPayments)
	respond(c, http.StatusOK, "Cash payment marked as paid", gin.H{"payment": payment})
}

// DeletePaymentHistory soft-deletes a payment record. Super admin only;
// resolved records keep their balance effects.
func DeletePaymentHistory(c *gin.Context) {
	if middleware.GetRole(c) != models.RoleSuperAdmin {
		respondError(c, http.StatusForbidden, "Only super admins can delete payment records")
		return
	}

	var payment models.PaymentHistory
	if err := config.DB.First(&payment, "id = ?", c.Param("id")).Error; err != nil {
		respondError(c, http.StatusNotFound, "Payment not found")
		return
	}
	if err := config.DB.Delete(&payment).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete payment")
		return
	}

	config.Cache.Invalidate(c.Request.Context(), cache.NSPayments)
	respond(c, http.StatusOK, "Payment deleted", gin.H{"payment_id": payment.ID})
}
