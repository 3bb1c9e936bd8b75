package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/influenza/backend/internal/client"
	"github.com/influenza/backend/internal/config"
	"github.com/influenza/backend/internal/db"
	"github.com/influenza/backend/internal/handler"
	"github.com/influenza/backend/internal/migrate"
	"github.com/influenza/backend/internal/service"
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn, err := db.BuildPostgresURL(cfg.Postgres)
	if err != nil {
		logger.Fatal("postgres config", zap.Error(err))
	}
	if err := migrate.Up(ctx, dsn); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	store, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal("postgres connect", zap.Error(err))
	}
	defer store.Close()

	tokens, err := service.NewTokenService(cfg.Auth)
	if err != nil {
		logger.Fatal("token service", zap.Error(err))
	}

	mailer, err := client.NewEmailClient(ctx, cfg.Email, logger)
	if err != nil {
		logger.Fatal("email client", zap.Error(err))
	}

	authSvc := service.NewAuthService(store, tokens, mailer, logger)
	matchAI := client.NewMatchAIClient(cfg.MatchAI)

	authHandler := handler.NewAuthHandler(authSvc, tokens.RefreshTokenTTL(), cfg.Server.IsProduction())
	userHandler := handler.NewUserHandler(authSvc)
	matchHandler := handler.NewMatchHandler(matchAI, logger)

	router := gin.Default()
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, true))

	router.GET("/", handler.Root)
	router.GET("/ping", handler.Ping)

	auth := router.Group("/api/auth")
	{
		auth.POST("/signup", authHandler.SignUp)
		auth.POST("/signin", authHandler.SignIn)
		auth.POST("/logout", authHandler.SignOut)
		auth.POST("/refresh-token", authHandler.Refresh)
	}

	user := router.Group("/api/user")
	{
		user.POST("/forgot-password", userHandler.ForgotPassword)
		user.POST("/reset-password", userHandler.ResetPassword)

		protected := user.Group("")
		protected.Use(handler.AuthMiddleware(tokens))
		protected.PUT("/change-password", userHandler.ChangePassword)
		protected.GET("/me", userHandler.Me)
	}

	ai := router.Group("/api/ai")
	ai.Use(handler.AuthMiddleware(tokens))
	ai.POST("/recommend", matchHandler.Recommend)

	addr := ":" + cfg.Server.Port
	logger.Info("starting server", zap.String("addr", addr), zap.String("env", cfg.Server.Env))

	srv := &http.Server{Addr: addr, Handler: router}
	if err := run(ctx, logger, srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// run serves until the context is cancelled (SIGINT/SIGTERM), then drains
// in-flight requests before returning.
func run(ctx context.Context, logger *zap.Logger, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
