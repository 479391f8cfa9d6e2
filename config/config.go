package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vnkhanh/e-course-backend/models"
)

const (
	BackendPostgres = "postgres"
	BackendREST     = "rest"
)

type Config struct {
	Port   string
	AppEnv string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBTimezone string

	// postgres: kết nối trực tiếp qua gorm; rest: đi qua PostgREST của Supabase
	Backend       string
	SupabaseURL   string
	SupabaseKey   string
	StorageBucket string

	JWTSecret         string
	AdminEmail        string
	AdminPasswordHash string
	CORSOrigins       []string

	ItemsPerPage int
	DraftTTL     time.Duration
	MaxUploadMB  int
}

// Load đọc .env (nếu có) rồi dựng Config từ biến môi trường.
func Load() (*Config, error) {
	envErr := godotenv.Load()

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "ecourse"),
		DBTimezone: getEnv("DB_TIMEZONE", "UTC"),

		Backend:       strings.ToLower(getEnv("BACKEND", BackendPostgres)),
		SupabaseURL:   getEnv("SUPABASE_URL", ""),
		SupabaseKey:   getEnv("SUPABASE_KEY", ""),
		StorageBucket: getEnv("STORAGE_BUCKET", "course-content"),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		AdminEmail:        getEnv("ADMIN_EMAIL", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),

		ItemsPerPage: getEnvInt("ITEMS_PER_PAGE", 10),
		DraftTTL:     getEnvDuration("DRAFT_TTL", 24*time.Hour),
		MaxUploadMB:  getEnvInt("MAX_UPLOAD_MB", 512),
	}
	if envErr != nil && !os.IsNotExist(envErr) {
		return nil, fmt.Errorf("đọc .env lỗi: %w", envErr)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("thiếu JWT_SECRET")
	}
	switch cfg.Backend {
	case BackendPostgres:
	case BackendREST:
		if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
			return nil, fmt.Errorf("BACKEND=rest cần SUPABASE_URL và SUPABASE_KEY")
		}
	default:
		return nil, fmt.Errorf("BACKEND không hợp lệ: %q", cfg.Backend)
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool { return c.AppEnv == "development" }

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBTimezone,
	)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil && v > 0 {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// NewLogger: development logger khi chạy local, production logger khi deploy.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// InitDB kết nối PostgreSQL qua gorm và migrate các bảng khoá học.
func InitDB(cfg *Config) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.IsDevelopment() {
		level = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("không thể kết nối database: %w", err)
	}

	// Lấy *sql.DB để config connection pooling
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("không thể lấy sql.DB từ gorm: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	err = db.AutoMigrate(
		&models.Category{},
		&models.Course{},
		&models.Instructor{},
		&models.Module{},
		&models.Lesson{},
		&models.Quiz{},
		&models.Question{},
		&models.Assignment{},
	)
	if err != nil {
		return nil, fmt.Errorf("autoMigrate lỗi: %w", err)
	}
	return db, nil
}
