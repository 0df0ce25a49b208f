// Package main initializes and starts the forum/shop API server, setting up
// configuration, logging, the database connection, repositories, services,
// and handlers.
package main

import (
	"cmp"
	"fmt"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/rmadden/backroom/internal/config"
	"github.com/rmadden/backroom/internal/db"
	"github.com/rmadden/backroom/internal/logger"
	"github.com/rmadden/backroom/internal/repository"
	"github.com/rmadden/backroom/internal/server/handler/http"
	"github.com/rmadden/backroom/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	if err := log.Init("Info"); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	defer func() { _ = log.Log.Sync() }()
	zapLogger := log.Log

	// Initialize PostgreSQL connection and schema.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Repositories for the two storage units.
	userRepo := repository.NewPostgresUserStateRepository(postgresDB)
	forumRepo := repository.NewPostgresForumStateRepository(postgresDB)

	// Business-logic services. The forum service doubles as the session
	// directory that login replicates into.
	forumService := service.NewForumService(forumRepo, zapLogger)
	authService := service.NewAuthService(userRepo, forumService, options.InviteCode, zapLogger)
	purchaseService := service.NewPurchaseService(userRepo, zapLogger)

	// HTTP handlers.
	authHandler := &http.AuthHandler{
		AuthService: authService,
		Directory:   forumService,
		Log:         zapLogger,
	}
	forumHandler := &http.ForumHandler{
		ForumService: forumService,
		Log:          zapLogger,
	}
	purchaseHandler := &http.PurchaseHandler{
		PurchaseService: purchaseService,
		Directory:       forumService,
		Log:             zapLogger,
	}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, forumHandler, purchaseHandler, zapLogger)

	server := &nethttp.Server{
		Addr:    options.Port,
		Handler: router,
	}

	zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
