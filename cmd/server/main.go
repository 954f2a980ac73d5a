package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abdoElHodaky/smartfixapi/internal/config"
	"github.com/abdoElHodaky/smartfixapi/internal/db"
	httpHandlers "github.com/abdoElHodaky/smartfixapi/internal/http/handlers"
	httpRouter "github.com/abdoElHodaky/smartfixapi/internal/http/router"
	"github.com/abdoElHodaky/smartfixapi/internal/logger"
	"github.com/abdoElHodaky/smartfixapi/internal/matching"
	"github.com/abdoElHodaky/smartfixapi/internal/repository"
	"github.com/abdoElHodaky/smartfixapi/internal/scheduler"
	"github.com/abdoElHodaky/smartfixapi/internal/service"
	"github.com/abdoElHodaky/smartfixapi/internal/storage"
	"github.com/abdoElHodaky/smartfixapi/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Инициализируем вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	photoStorage, err := storage.NewPhotoStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	requestRepo := repository.NewRequestRepository(dbConn)
	providerRepo := repository.NewProviderRepository(dbConn)
	conversationRepo := repository.NewConversationRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run()

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	chatService := service.NewChatService(conversationRepo)
	notificationService := service.NewNotificationService(notificationRepo, hub, providerRepo, service.SMSConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioFromNumber,
	})
	requestService := service.NewRequestService(requestRepo, providerRepo, chatService)

	engine := matching.NewEngine(providerRepo, requestRepo)
	matchService := service.NewMatchService(engine, requestRepo, providerRepo, notificationService)

	// Планировщик автоподбора для залежавшихся заявок.
	autoMatch := scheduler.New(requestRepo, matchService, cfg.AutoMatchMinAge)
	if err := autoMatch.Start(cfg.AutoMatchSpec); err != nil {
		log.Fatalf("main: не удалось запустить планировщик: %v", err)
	}
	defer autoMatch.Stop()

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	requestHandler := httpHandlers.NewRequestHandler(requestService, matchService, photoStorage, providerRepo, notificationService)
	proposalHandler := httpHandlers.NewProposalHandler(requestService, providerRepo, notificationService)
	providerHandler := httpHandlers.NewProviderHandler(providerRepo, requestService, matchService)
	conversationHandler := httpHandlers.NewConversationHandler(chatService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	router := httpRouter.SetupRouter(
		cfg,
		authHandler,
		requestHandler,
		proposalHandler,
		providerHandler,
		conversationHandler,
		notificationHandler,
		wsHandler,
		healthHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
