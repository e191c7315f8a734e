package handlers

import (
	"net/http"

	"rider-payments-api/config"
	"rider-payments-api/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ── Branch management (super admin) ─────────────────────────────────────────

type CreateBranchRequest struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func CreateBranch(c *gin.Context) {
	var req CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	branch := models.Branch{Name: req.Name, Phone: req.Phone, Address: req.Address}
	if err := config.DB.Create(&branch).Error; err != nil {
		respondError(c, http.StatusConflict, "Branch name already taken")
		return
	}
	respond(c, http.StatusCreated, "Branch created", gin.H{"branch": branch})
}

func ListBranches(c *gin.Context) {
	var branches []models.Branch
	config.DB.Preload("Products").Find(&branches)
	respond(c, http.StatusOK, "Branches", gin.H{"count": len(branches), "branches": branches})
}

func UpdateBranch(c *gin.Context) {
	var branch models.Branch
	if err := config.DB.First(&branch, c.Param("id")).Error; err != nil {
		respondError(c, http.StatusNotFound, "Branch not found")
		return
	}

	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	// Only allow safe fields
	allowed := map[string]bool{"name": true, "phone": true, "address": true}
	update := map[string]interface{}{}
	for k, v := range req {
		if allowed[k] {
			update[k] = v
		}
	}
	config.DB.Model(&branch).Updates(update)
	respond(c, http.StatusOK, "Branch updated", gin.H{"branch": branch})
}

// ── Product management (admin, own branch) ──────────────────────────────────

type CreateProductRequest struct {
	BranchID  uint            `json:"branch_id" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"required"`
}

func CreateProduct(c *gin.Context) {
	actor := actorFromContext(c)

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if !req.UnitPrice.IsPositive() {
		respondError(c, http.StatusUnprocessableEntity, "unit_price must be positive")
		return
	}
	if actor.Role.IsBranchScoped() && (actor.BranchID == nil || *actor.BranchID != req.BranchID) {
		respondError(c, http.StatusForbidden, "You can only add products to your own branch")
		return
	}
	var branch models.Branch
	if err := config.DB.First(&branch, req.BranchID).Error; err != nil {
		respondError(c, http.StatusNotFound, "Branch not found")
		return
	}

	product := models.Product{
		BranchID:  req.BranchID,
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		IsActive:  true,
	}
	if err := config.DB.Create(&product).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create product")
		return
	}
	respond(c, http.StatusCreated, "Product created", gin.H{"product": product})
}

func ListProducts(c *gin.Context) {
	query := config.DB.Where("is_active = ?", true)
	if branchID := c.Query("branch_id"); branchID != "" {
		query = query.Where("branch_id = ?", branchID)
	}
	var products []models.Product
	query.Find(&products)
	respond(c, http.StatusOK, "Products", gin.H{"count": len(products), "products": products})
}

func UpdateProduct(c *gin.Context) {
	actor := actorFromContext(c)

	var product models.Product
	if err := config.DB.First(&product, c.Param("id")).Error; err != nil {
		respondError(c, http.StatusNotFound, "Product not found")
		return
	}
	if actor.Role.IsBranchScoped() && (actor.BranchID == nil || *actor.BranchID != product.BranchID) {
		respondError(c, http.StatusForbidden, "This product belongs to another branch")
		return
	}

	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	allowed := map[string]bool{"name": true, "unit_price": true, "is_active": true}
	update := map[string]interface{}{}
	for k, v := range req {
		if allowed[k] {
			update[k] = v
		}
	}
	config.DB.Model(&product).Updates(update)
	respond(c, http.StatusOK, "Product updated", gin.H{"product": product})
}

func DeactivateProduct(c *gin.Context) {
	actor := actorFromContext(c)

	var product models.Product
	if err := config.DB.First(&product, c.Param("id")).Error; err != nil {
		respondError(c, http.StatusNotFound, "Product not found")
		return
	}
	if actor.Role.IsBranchScoped() && (actor.BranchID == nil || *actor.BranchID != product.BranchID) {
		respondError(c, http.StatusForbidden, "This product belongs to another branch")
		return
	}
	config.DB.Model(&product).Update("is_active", false)
	respond(c, http.StatusOK, "Product deactivated", gin.H{"product_id": product.ID})
}
