package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"rider-payments-api/cache"
	"rider-payments-api/config"
	"rider-payments-api/ledger"
	"rider-payments-api/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type SubmitProofRequest struct {
	OrderID       uint                 `json:"order_id" binding:"required"`
	PaymentAmount decimal.Decimal      `json:"payment_amount" binding:"required"`
	ProofURL      string               `json:"proof_url" binding:"required"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Reference     string               `json:"reference"`
}

// SubmitProof uploads bank-transfer evidence for an order. The payer
// submits for their own orders; admins may submit on a rider's behalf.
func SubmitProof(c *gin.Context) {
	actor := actorFromContext(c)

	var req SubmitProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	proof, err := ledger.SubmitProof(config.DB, actor, ledger.SubmitProofInput{
		OrderID:   req.OrderID,
		Amount:    req.PaymentAmount,
		ProofURL:  req.ProofURL,
		Method:    req.PaymentMethod,
		Reference: req.Reference,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	config.Cache.Invalidate(c.Request.Context(), cache.NSPayments)
	config.Cache.Invalidate(c.Request.Context(), cache.NSProofs)
	respond(c, http.StatusCreated, "Payment proof submitted for review", gin.H{"proof": proof})
}

// ListProofs returns proofs awaiting review (or filtered by status) within
// the admin's branch scope. Cached per scope.
func ListProofs(c *gin.Context) {
	actor := actorFromContext(c)
	status := c.Query("status")

	cacheKey := fmt.Sprintf("role=%s:user=%d:status=%s", actor.Role, actor.ID, status)
	if body, ok := config.Cache.Get(c.Request.Context(), cache.NSProofs, cacheKey); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}

	query := config.DB.Preload("Payment").Order("created_at asc")
	if actor.Role.IsBranchScoped() && actor.BranchID != nil {
		query = query.Where("payment_history_id IN (?)",
			config.DB.Model(&models.PaymentHistory{}).Select("payment_histories.id").
				Joins("JOIN orders ON orders.id = payment_histories.order_id").
				Where("orders.branch_id = ?", *actor.BranchID))
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var proofs []models.PaymentProof
	query.Find(&proofs)

	body, err := json.Marshal(gin.H{
		"status":  "success",
		"message": "Payment proofs",
		"data":    gin.H{"count": len(proofs), "proofs": proofs},
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to encode proofs")
		return
	}
	config.Cache.Set(c.Request.Context(), cache.NSProofs, cacheKey, body)
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// ApproveProof resolves a pending proof as approved, settling the linked
// payment and adjusting the rider's balance.
func ApproveProof(c *gin.Context) {
	actor := actorFromContext(c)

	proof, err := ledger.ApproveProof(config.DB, actor, c.Param("id"))
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	config.Cache.Invalidate(c.Request.Context(), cache.NSOrders)
	config.Cache.Invalidate(c.Request.Context(), cache.NSPayments)
	config.Cache.Invalidate(c.Request.Context(), cache.NSProofs)
	respond(c, http.StatusOK, "Payment proof approved", gin.H{"proof": proof})
}

type RejectProofRequest struct {
	RejectionReason string `json:"rejection_reason" binding:"required,max=255"`
}

// RejectProof resolves a pending proof as rejected with a required reason.
// No balance change.
func RejectProof(c *gin.Context) {
	actor := actorFromContext(c)

	var req RejectProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	proof, err := ledger.RejectProof(config.DB, actor, c.Param("id"), req.RejectionReason)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	config.Cache.Invalidate(c.Request.Context(), cache.NSPayments)
	config.Cache.Invalidate(c.Request.Context(), cache.NSProofs)
	respond(c, http.StatusOK, "Payment proof rejected", gin.H{"proof": proof})
}
