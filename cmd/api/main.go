// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/blog-backend/internal/account"
	"github.com/yourusername/blog-backend/internal/auth"
	"github.com/yourusername/blog-backend/internal/blog"
	"github.com/yourusername/blog-backend/internal/config"
	"github.com/yourusername/blog-backend/internal/jobs"
	"github.com/yourusername/blog-backend/internal/logging"
	"github.com/yourusername/blog-backend/internal/mail"
	"github.com/yourusername/blog-backend/internal/metrics"
	"github.com/yourusername/blog-backend/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// app はルーティングに必要な依存関係をまとめたものです。
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	accounts account.Repository
	posts    blog.PostRepository
	comments blog.CommentRepository
	sessions *auth.SessionManager
	service  *auth.Service
	jobs     *jobs.Manager
}

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.Setup("blog-api", cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logging.LogError(logger, "failed to initialise application", err)
		os.Exit(1)
	}
	defer cleanup()

	router := gin.New()
	setupRoutes(router, a)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", slog.String("addr", srv.Addr), slog.String("mode", cfg.GinMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logging.LogError(logger, "server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down API server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(logger, "failed to shut down server", err)
	}
}

// buildApp はストア、メール送信、認証サービスを組み立てます。
// 戻り値の cleanup は接続のクローズとワーカーの停止を行います。
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, func(), error) {
	var closers []func(context.Context) error
	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](closeCtx); err != nil {
				logging.LogError(logger, "cleanup failed", err)
			}
		}
	}

	fail := func(err error) (*app, func(), error) {
		cleanup()
		return nil, nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	if cfg.MongoURI == "" {
		logger.Warn("MONGO_URI is not set; using in-memory stores")
		seq := storage.NewLocalSequencer()
		a.accounts = account.NewMemoryRepository(seq)
		a.posts = blog.NewMemoryPostRepository(seq)
		a.comments = blog.NewMemoryCommentRepository(seq)
	} else {
		db, err := storage.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, db.Close)

		seq := storage.NewMongoSequencer(db.DB)
		accounts := account.NewMongoRepository(db.DB, seq)
		posts := blog.NewMongoPostRepository(db.DB, seq)
		comments := blog.NewMongoCommentRepository(db.DB, seq)
		for _, ensure := range []func(context.Context) error{accounts.EnsureIndexes, posts.EnsureIndexes, comments.EnsureIndexes} {
			if err := ensure(ctx); err != nil {
				return fail(err)
			}
		}
		a.accounts, a.posts, a.comments = accounts, posts, comments
	}

	sender, err := mail.NewSender(cfg.MailProvider, cfg.MailAPIKey, cfg.MailFrom, logger)
	if err != nil {
		return fail(err)
	}
	var mailer mail.Sender = mail.Observed(sender, a.metrics)

	if cfg.QueueRedisURL != "" {
		manager, closeJobs, err := setupJobs(cfg, mailer, logger)
		if err != nil {
			return fail(err)
		}
		manager.StartWorkers()
		closers = append(closers, func(ctx context.Context) error {
			err := manager.Shutdown(ctx)
			return errors.Join(err, closeJobs())
		})
		a.jobs = manager
		mailer = manager
	} else {
		logger.Warn("QUEUE_REDIS_URL is not set; mail is delivered synchronously")
	}

	secret, err := sessionSecret(cfg, logger)
	if err != nil {
		return fail(err)
	}
	a.sessions = auth.NewSessionManager(secret, cfg.SessionTTL, cfg.IsRelease())
	a.service = auth.NewService(
		a.accounts,
		auth.NewBcryptHasher(cfg.BcryptCost),
		a.sessions,
		mailer,
		auth.WithMetrics(a.metrics),
		auth.WithLogger(logger),
		auth.WithClientURL(cfg.ClientURL),
	)

	return a, cleanup, nil
}

// sessionSecret は JWT 署名鍵を返します。未設定の場合は起動ごとの乱数鍵を使います。
func sessionSecret(cfg *config.Config, logger *slog.Logger) ([]byte, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	logger.Warn("JWT_SECRET is not set; sessions will not survive a restart")
	return secret, nil
}
