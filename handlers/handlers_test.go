package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rider-payments-api/cache"
	"rider-payments-api/config"
	"rider-payments-api/middleware"
	"rider-payments-api/models"
	"rider-payments-api/routes"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixtures struct {
	branch  models.Branch
	product models.Product
	rider   models.User
	admin   models.User
	super   models.User
	regular models.User
}

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB, fixtures) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	config.DB = db
	config.Logger = zap.NewNop()
	config.Cache = cache.NewMemoryStore(time.Minute)
	config.JWTSecret = []byte("test_secret")

	r := gin.New()
	routes.SetupRoutes(r)

	f := seed(t, db)
	return r, db, f
}

func seed(t *testing.T, db *gorm.DB) fixtures {
	t.Helper()
	branch := models.Branch{Name: "Lagos Main", Phone: "+2348000000001"}
	if err := db.Create(&branch).Error; err != nil {
		t.Fatalf("branch: %v", err)
	}
	product := models.Product{
		BranchID:  branch.ID,
		Name:      "Delivery Bike Lease",
		UnitPrice: decimal.RequireFromString("500.00"),
		IsActive:  true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("product: %v", err)
	}

	mk := func(name, email string, role models.UserRole, branchID *uint, phone string) models.User {
		u := models.User{
			Name: name, Email: email, PasswordHash: "x",
			Role: role, BranchID: branchID, Phone: phone,
		}
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("user %s: %v", email, err)
		}
		return u
	}

	return fixtures{
		branch:  branch,
		product: product,
		rider:   mk("Rider One", "rider@test", models.RoleRider, &branch.ID, "+2348000000002"),
		admin:   mk("Branch Admin", "admin@test", models.RoleAdmin, &branch.ID, ""),
		super:   mk("Root", "root@test", models.RoleSuperAdmin, nil, ""),
		regular: mk("Visitor", "visitor@test", models.RoleRegular, nil, ""),
	}
}

func token(t *testing.T, u models.User) string {
	t.Helper()
	tok, err := middleware.GenerateToken(&u)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Status  string         `json:"status"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v body=%s", err, w.Body.String())
	}
	return envelope.Data
}
