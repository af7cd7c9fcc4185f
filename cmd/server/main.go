package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"whatsapp-inbox/internal/api"
	"whatsapp-inbox/internal/catalog"
	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/inbox"
	"whatsapp-inbox/internal/metrics"
	"whatsapp-inbox/internal/outbound"
	"whatsapp-inbox/internal/quickreply"
	"whatsapp-inbox/internal/webhook"
	"whatsapp-inbox/internal/whatsapp"
	"whatsapp-inbox/internal/ws"
	"whatsapp-inbox/pkg/logger"
	"whatsapp-inbox/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogPath); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	if cfg.AppSecret == "" {
		logger.Warn("APP_SECRET is not set, webhook signatures are not verified")
	}

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub()
	go hub.Run(ctx)

	whatsappClient := whatsapp.NewClient(cfg)
	inboxService := inbox.NewService(db)
	dispatcher := outbound.NewDispatcher(db, inboxService, whatsappClient)
	quickReplies := quickreply.NewEngine(db, dispatcher)
	webhookHandler := webhook.NewHandler(cfg, inboxService, quickReplies, hub)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestIDMiddleware(), middleware.RequestLogger(), middleware.CORSMiddleware())

	// Webhook Routes
	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook", webhookHandler.HandleMessage)

	// Dashboard API Routes
	api.RegisterRoutes(r.Group("/api"), api.Deps{
		DB:         db,
		Inbox:      inboxService,
		Dispatcher: dispatcher,
		Syncer:     catalog.NewSyncer(db, whatsappClient),
	})

	r.GET("/ws", func(c *gin.Context) {
		var businessID uint64
		if q := c.Query("business"); q != "" {
			id, err := strconv.ParseUint(q, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid business"})
				return
			}
			businessID = id
		}
		hub.ServeWs(c.Writer, c.Request, uint(businessID))
	})
	r.GET("/metrics", metrics.Handler())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}
