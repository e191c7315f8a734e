package routes

import (
	"rider-payments-api/handlers"
	"rider-payments-api/middleware"
	"rider-payments-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine) {
	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		public.POST("/auth/register", handlers.Register)
		public.POST("/auth/login", handlers.Login)

		// State machine info (great for docs/Postman)
		public.GET("/lifecycle", handlers.GetLifecycleInfo)
	}

	// ── Authenticated routes ───────────────────────────────────────
	auth := r.Group("/api")
	auth.Use(middleware.AuthRequired())
	{
		auth.GET("/profile", handlers.GetProfile)
		auth.GET("/products", handlers.ListProducts)
	}

	// ── Order routes (riders and admins) ───────────────────────────
	orders := r.Group("/api")
	orders.Use(middleware.AuthRequired(), middleware.RoleRequired(
		models.RoleSuperAdmin, models.RoleAdmin, models.RoleRider))
	{
		orders.POST("/orders", handlers.CreateOrder)
		orders.GET("/orders", handlers.ListOrders)
		orders.GET("/orders/:id", handlers.GetOrder)

		// Proof submission: payer, or admin on a rider's behalf
		orders.POST("/payment-proofs", handlers.SubmitProof)
	}

	// ── Admin routes (branch-scoped) ───────────────────────────────
	admin := r.Group("/api")
	admin.Use(middleware.AuthRequired(), middleware.RoleRequired(
		models.RoleSuperAdmin, models.RoleAdmin))
	{
		admin.POST("/payment-histories", handlers.CreatePaymentHistory)
		admin.GET("/payment-histories", handlers.ListPaymentHistories)
		admin.POST("/payment-histories/:id/mark-cash", handlers.MarkCashPayment)

		admin.GET("/payment-proofs", handlers.ListProofs)
		admin.POST("/payment-proofs/:id/approve", handlers.ApproveProof)
		admin.POST("/payment-proofs/:id/reject", handlers.RejectProof)

		admin.POST("/admin/products", handlers.CreateProduct)
		admin.PUT("/admin/products/:id", handlers.UpdateProduct)
		admin.DELETE("/admin/products/:id", handlers.DeactivateProduct)

		admin.GET("/admin/users", handlers.AdminListUsers)
		admin.GET("/admin/orders/summary", handlers.AdminOrderSummary)
		admin.GET("/admin/branches", handlers.ListBranches)
	}

	// ── Super admin routes ─────────────────────────────────────────
	super := r.Group("/api")
	super.Use(middleware.AuthRequired(), middleware.RoleRequired(models.RoleSuperAdmin))
	{
		super.DELETE("/payment-histories/:id", handlers.DeletePaymentHistory)
		super.POST("/admin/branches", handlers.CreateBranch)
		super.PUT("/admin/branches/:id", handlers.UpdateBranch)
	}
}
