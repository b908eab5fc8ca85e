package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BuzzLyutic/smart-todo/internal/ai"
	"github.com/BuzzLyutic/smart-todo/internal/config"
	"github.com/BuzzLyutic/smart-todo/internal/handler"
	"github.com/BuzzLyutic/smart-todo/internal/repo"
	"github.com/BuzzLyutic/smart-todo/internal/service"
	"github.com/BuzzLyutic/smart-todo/internal/worker"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load(os.Getenv("TODO_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err) // Без конфигурации запускаться нет смысла
	}

	// Подключаем логгер
	logger := newLogger(cfg.Log.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Подключаем хранилище
	store, closeStore, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer closeStore()

	var gen ai.Generator
	gen, err = ai.NewOpenAIGenerator(ai.Options{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	}, logger)
	if errors.Is(err, ai.ErrNotConfigured) {
		logger.Warn("ai.api_key is not set, assist endpoints will answer 503")
		gen = ai.Unconfigured{}
	} else if err != nil {
		logger.Fatal("Failed to create ai client", zap.Error(err))
	}

	todos := service.NewTodoService(store, cfg.Limits.AnonymousTodos)
	assist := service.NewAssistService(gen, store, logger)

	pool := worker.NewPool(store, assist, logger, cfg.Worker.Count, cfg.Worker.Interval)
	pool.Start(ctx)

	srv := &http.Server{ // Создаем сервер
		Addr: ":" + cfg.Server.Port,
		Handler: handler.NewRouter(
			handler.NewTodoHandler(todos, assist, logger),
			handler.NewAssistHandler(assist, logger),
			logger,
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { // Запуск сервера
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { // Graceful shutdown
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		pool.Stop()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped successfully!")
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func openStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (repo.TodoRepository, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		r, err := repo.NewSQLiteRepo(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using sqlite storage", zap.String("path", cfg.SQLitePath))
		return r, func() { _ = r.Close() }, nil
	default:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL) // Создаем новое соединение к БД
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil { // Пытаемся пингануть БД
			pool.Close()
			return nil, nil, err
		}
		logger.Info("Successfully connected to the Database!")
		return repo.NewPostgresRepo(pool), pool.Close, nil
	}
}
