package main

import (
	"log"

	_ "procure/api/swagger" // swagger docs
	"procure/internal/config"
	"procure/internal/database"
	"procure/internal/document"
	"procure/internal/handler"
	"procure/internal/middleware"
	"procure/internal/repository"
	"procure/internal/service"
	"procure/internal/storage"
	"procure/internal/websocket"
	"procure/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Purchase Request API
// @version         1.0
// @description     Purchase request workflow with two-level approvals, document handling and finance reporting.
// @host            localhost:8080
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.NewConnection(cfg.Database.DSN())
	if err != nil {
		zapLogger.Fatal("Database connection failed", zap.Error(err))
	}
	zapLogger.Info("Connected to PostgreSQL successfully")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Shared infrastructure
	fileStorage := storage.NewLocalFileStorage(cfg.Storage.BaseDir, zapLogger)
	documentService := document.NewService(document.Config{
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
	}, fileStorage, zapLogger)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewPurchaseRequestRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	reportRepo := repository.NewReportRepository(db)

	userService := service.NewUserService(userRepo, cfg.Auth)
	approvalService := service.NewApprovalService(txManager, requestRepo, approvalRepo, auditRepo, documentService, fileStorage, wsHub, zapLogger)
	requestService := service.NewPurchaseRequestService(txManager, requestRepo, auditRepo, documentService, fileStorage, wsHub, zapLogger)
	auditService := service.NewAuditService(auditRepo)
	reportService := service.NewReportService(reportRepo)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService)
	requestHandler := handler.NewPurchaseRequestHandler(approvalService, requestService)
	auditHandler := handler.NewAuditHandler(auditService)
	reportHandler := handler.NewReportHandler(reportService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	api := router.Group("/api")
	userHandler.RegisterRoutes(api)
	requestHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)
	reportHandler.RegisterRoutes(api)

	zapLogger.Info("Server listening", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		zapLogger.Fatal("Server failed", zap.Error(err))
	}
}
