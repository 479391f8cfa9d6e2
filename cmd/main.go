package main

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vnkhanh/e-course-backend/config"
	"github.com/vnkhanh/e-course-backend/routes"
	"github.com/vnkhanh/e-course-backend/services"
	"github.com/vnkhanh/e-course-backend/store"
	"github.com/vnkhanh/e-course-backend/utils"
	"github.com/vnkhanh/e-course-backend/wizard"
	"github.com/vnkhanh/e-course-backend/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Cấu hình không hợp lệ: ", err)
	}

	logger, err := config.NewLogger(cfg.AppEnv)
	if err != nil {
		log.Fatal("Không thể khởi tạo logger: ", err)
	}
	defer logger.Sync()

	utils.SetJWTSecret(cfg.JWTSecret)

	var db services.Database
	switch cfg.Backend {
	case config.BackendREST:
		db = services.NewRestDatabase(cfg.SupabaseURL, cfg.SupabaseKey, logger)
	default:
		gdb, err := config.InitDB(cfg)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		db = services.NewGormDatabase(gdb)
		logger.Info("postgreSQL connected & migrated successfully!")
	}

	storage := utils.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey)
	hub := ws.NewHub(logger)

	cache := store.NewCache(db, storage, logger)
	cache.OnChange = hub.BroadcastCourseListChanged

	drafts := wizard.NewRegistry()
	cleanup, err := utils.StartCleanupJob(drafts, cfg.DraftTTL, logger)
	if err != nil {
		logger.Fatal("cleanup job", zap.Error(err))
	}
	defer cleanup.Stop()

	publisher := services.NewPublisher(db, storage, cfg.StorageBucket, logger)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	//Bật CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Auth-Token"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}))
	// Gọi SetupRouter để đăng ký route
	r = routes.SetupRouter(r, routes.Deps{
		DB:           db,
		Cache:        cache,
		Drafts:       drafts,
		Publisher:    publisher,
		Hub:          hub,
		Log:          logger,
		ItemsPerPage: cfg.ItemsPerPage,
		MaxUploadMB:  cfg.MaxUploadMB,
		AdminEmail:   cfg.AdminEmail,
		AdminHash:    cfg.AdminPasswordHash,
	})

	// Route test server
	r.GET("/", func(c *gin.Context) {
		c.String(200, "E-course admin server is running")
	})

	logger.Info("Server running", zap.String("port", cfg.Port), zap.String("backend", cfg.Backend))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
