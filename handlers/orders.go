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

type CreateOrderRequest struct {
	ProductID     uint                 `json:"product_id" binding:"required"`
	BranchID      uint                 `json:"branch_id" binding:"required"`
	Quantity      int                  `json:"quantity" binding:"required,gt=0"`
	PayerID       uint                 `json:"payer_id"` // defaults to caller for riders
	PaymentType   models.PaymentType   `json:"payment_type"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	AmountPaid    decimal.Decimal      `json:"amount_paid"`
	Reference     string               `json:"reference"`
	SkipDebtCheck bool                 `json:"skip_debt_check"` // super_admin only
}

func actorFromContext(c *gin.Context) ledger.Actor {
	return ledger.Actor{
		ID:       middleware.GetUserID(c),
		Role:     middleware.GetRole(c),
		BranchID: middleware.GetBranchID(c),
	}
}

// CreateOrder creates an order for a rider. Riders order for themselves;
// admins order on behalf of riders in their branch.
func CreateOrder(c *gin.Context) {
	actor := actorFromContext(c)

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	payerID := req.PayerID
	if actor.Role == models.RoleRider {
		if payerID != 0 && payerID != actor.ID {
			respondError(c, http.StatusForbidden, "Riders can only create orders for themselves")
			return
		}
		payerID = actor.ID
	} else if payerID == 0 {
		respondError(c, http.StatusUnprocessableEntity, "payer_id is required")
		return
	}

	order, err := ledger.CreateOrder(config.DB, actor, ledger.CreateOrderInput{
		PayerID:       payerID,
		ProductID:     req.ProductID,
		BranchID:      req.BranchID,
		Quantity:      req.Quantity,
		PaymentType:   req.PaymentType,
		PaymentMethod: req.PaymentMethod,
		AmountPaid:    req.AmountPaid,
		Reference:     req.Reference,
		SkipDebtCheck: req.SkipDebtCheck,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	config.Cache.Invalidate(c.Request.Context(), cache.NSOrders)
	respond(c, http.StatusCreated, "Order created successfully", gin.H{"order": order})
}

// ListOrders returns orders visible to the caller: riders see their own,
// admins their branch, super admins everything. Listings are cached per
// caller scope.
func ListOrders(c *gin.Context) {
	actor := actorFromContext(c)
	status := c.Query("status")
	paymentStatus := c.Query("payment_status")

	cacheKey := fmt.Sprintf("role=%s:user=%d:status=%s:pay=%s", actor.Role, actor.ID, status, paymentStatus)
	if body, ok := config.Cache.Get(c.Request.Context(), cache.NSOrders, cacheKey); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}

	query := config.DB.Preload("Payments").Order("created_at desc")
	switch {
	case actor.Role == models.RoleRider:
		query = query.Where("payer_id = ?", actor.ID)
	case actor.Role.IsBranchScoped() && actor.BranchID != nil:
		query = query.Where("branch_id = ?", *actor.BranchID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if paymentStatus != "" {
		query = query.Where("payment_status = ?", paymentStatus)
	}

	var orders []models.Order
	query.Find(&orders)

	body, err := json.Marshal(gin.H{
		"status":  "success",
		"message": "Orders",
		"data":    gin.H{"count": len(orders), "orders": orders},
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to encode orders")
		return
	}
	config.Cache.Set(c.Request.Context(), cache.NSOrders, cacheKey, body)
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// GetOrder returns one order with its payments and proofs
func GetOrder(c *gin.Context) {
	actor := actorFromContext(c)

	var order models.Order
	if err := config.DB.
		Preload("Payments.Proof").
		Preload("Payer").
		Preload("Branch").
		First(&order, c.Param("id")).Error; err != nil {
		respondError(c, http.StatusNotFound, "Order not found")
		return
	}

	if actor.Role == models.RoleRider && order.PayerID != actor.ID {
		respondError(c, http.StatusForbidden, "This order does not belong to you")
		return
	}
	if actor.Role.IsBranchScoped() && (actor.BranchID == nil || *actor.BranchID != order.BranchID) {
		respondError(c, http.StatusForbidden, "This order belongs to another branch")
		return
	}

	respond(c, http.StatusOK, "Order", gin.H{
		"order":       order,
		"outstanding": order.Outstanding(),
	})
}
