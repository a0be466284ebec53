package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sweet_shop/internal/api"
	"sweet_shop/internal/api/handler"
	"sweet_shop/internal/app/service"
	"sweet_shop/internal/app/worker"
	"sweet_shop/internal/common/security"
	"sweet_shop/internal/domain/repository"
	"sweet_shop/internal/platform/config"
	"sweet_shop/internal/platform/database"
	"sweet_shop/internal/platform/logger"
	"sweet_shop/internal/platform/queue"
	"sweet_shop/internal/platform/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// imageStore is what both the product service and the health check need from the uploader.
type imageStore interface {
	service.ImageUploader
	handler.ImageStore
}

type repositories struct {
	users     repository.UserRepository
	products  repository.ProductRepository
	purchases repository.PurchaseRepository
}

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Env: cfg.AppEnv, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	// 2. Initialize JWT
	tokens := security.NewTokenManager(cfg.JWTKey, cfg.JWTExp)

	// 3. Initialize store
	var db *sql.DB
	var repos repositories
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		log.Warn("using in-memory store; data is lost on restart")
		repos = repositories{
			users:     repository.NewMemoryUserRepository(),
			products:  repository.NewMemoryProductRepository(),
			purchases: repository.NewMemoryPurchaseRepository(),
		}
	default:
		var err error
		db, err = database.Connect(ctx, cfg.DBConnStr, log)
		if err != nil {
			return err
		}
		defer database.Close(db, log)
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		repos = repositories{
			users:     repository.NewPgUserRepository(db),
			products:  repository.NewPgProductRepository(db),
			purchases: repository.NewPgPurchaseRepository(db),
		}
	}

	// 4. Initialize Redis (optional)
	var rdb *redis.Client
	var receiptQueue *queue.RedisQueue
	if cfg.RedisConfigured() {
		var err error
		rdb, err = queue.ConnectRedis(ctx, queue.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
		if err != nil {
			return err
		}
		defer queue.CloseRedis(rdb, log)
		receiptQueue = queue.NewRedisQueue(rdb, cfg.ReceiptQueueName)
	} else {
		log.Info("REDIS_ADDR not set; purchase receipts are stored synchronously")
	}

	// 5. Initialize image storage (optional)
	var images imageStore = storage.DisabledUploader{}
	if cfg.StorageConfigured() {
		uploader, err := storage.NewS3Uploader(ctx, storage.S3Options{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			Bucket:        cfg.S3Bucket,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
			KeyPrefix:     cfg.S3KeyPrefix,
		})
		if err != nil {
			return err
		}
		images = uploader
		log.Info("image storage configured", zap.String("bucket", cfg.S3Bucket))
	} else {
		log.Info("S3 not configured; image uploads are disabled")
	}

	// 6. Initialize Services
	var receipts *service.ReceiptService
	var redisPinger handler.Pinger
	if receiptQueue != nil {
		receipts = service.NewReceiptService(receiptQueue, repos.purchases, log)
		redisPinger = receiptQueue
	} else {
		receipts = service.NewReceiptService(nil, repos.purchases, log)
	}
	authService := service.NewAuthService(repos.users, tokens, log)
	productService := service.NewProductService(repos.products, images, receipts, log)

	// 7. Initialize Receipt Worker (as a goroutine)
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	workerDone := make(chan struct{})
	if receiptQueue != nil {
		receiptWorker := worker.NewReceiptWorker(receiptQueue, receipts, log.With(zap.String("queue", receiptQueue.Name())))
		go func() {
			defer close(workerDone)
			receiptWorker.Start(workerCtx)
		}()
	} else {
		close(workerDone)
	}

	// 8. Initialize Router & HTTP Server
	router := api.NewRouter(api.Dependencies{
		AuthService:    authService,
		ProductService: productService,
		ReceiptService: receipts,
		Tokens:         tokens,
		Database:       repos.products,
		Redis:          redisPinger,
		Storage:        images,
		Log:            log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.APIPort), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("could not listen on %s: %w", cfg.APIPort, err)
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return err
	}

	log.Info("shutting down server")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	<-workerDone

	log.Info("server and worker stopped gracefully")
	return nil
}
