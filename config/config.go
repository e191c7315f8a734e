package config

import (
	"log"
	"os"
	"time"

	"rider-payments-api/cache"
	"rider-payments-api/models"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	DB     *gorm.DB
	Logger *zap.Logger
	Cache  cache.Store

	// JWTSecret used to sign tokens — set by Init from env or fallback
	JWTSecret []byte
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Init loads .env if present and wires the logger, JWT secret and cache.
// Call before InitDB.
func Init() {
	_ = godotenv.Load()

	JWTSecret = []byte(getEnv("JWT_SECRET", "rider_payments_super_secret_2024"))

	var err error
	if getEnv("APP_ENV", "development") == "production" {
		Logger, err = zap.NewProduction()
	} else {
		Logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}

	ttl := 2 * time.Minute
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		Cache = cache.NewRedisStore(client, ttl)
		Logger.Info("listing cache backed by redis", zap.String("addr", addr))
	} else {
		Cache = cache.NewMemoryStore(ttl)
		Logger.Info("listing cache in memory (REDIS_ADDR not set)")
	}
}

func InitDB() {
	var err error
	DB, err = gorm.Open(sqlite.Open(getEnv("DB_PATH", "rider_payments.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	Logger.Info("database connected and migrated")
}

// Migrate runs the schema migration for every model. Exported so tests can
// migrate their own in-memory databases.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Branch{},
		&models.Product{},
		&models.Order{},
		&models.PaymentHistory{},
		&models.PaymentProof{},
		&models.Notification{},
	)
}
