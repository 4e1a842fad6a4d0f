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

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/yoshapihoff/bricks/identity/internal/auth"
	"github.com/yoshapihoff/bricks/identity/internal/auth/oauth"
	"github.com/yoshapihoff/bricks/identity/internal/auth/oauth/oauthtypes"
	"github.com/yoshapihoff/bricks/identity/internal/config"
	"github.com/yoshapihoff/bricks/identity/internal/db"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
	httpHandler "github.com/yoshapihoff/bricks/identity/internal/handler/http"
	"github.com/yoshapihoff/bricks/identity/internal/kafka/producers"
	"github.com/yoshapihoff/bricks/identity/internal/logger"
	"github.com/yoshapihoff/bricks/identity/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()

	// Initialize storage
	store, err := db.Open(ctx, cfg.DB)
	if err != nil {
		logg.WithError(err).WithField("driver", cfg.DB.Driver).Fatal("failed to initialize storage")
	}
	defer store.Close()

	// Identity events go to Kafka when a broker is configured
	var publisher domain.EventPublisher = domain.NopPublisher{}
	if cfg.Kafka.KafkaUrl != "" {
		eventProducer, err := producers.NewIdentityEventProducer(cfg.Kafka)
		if err != nil {
			logg.WithError(err).Fatal("failed to initialize identity event producer")
		}
		defer eventProducer.Close()
		publisher = eventProducer
	} else {
		logg.Warn("KAFKA_URL not set, identity events are discarded")
	}

	// Initialize services
	resolver := service.NewIdentityResolver(store.UnitOfWork, publisher, logg, service.IdentityResolverOptions{
		TrustGitHubEmailMerge: cfg.OAuth.TrustGitHubEmailMerge,
	})
	userSvc := service.NewUserService(store.UnitOfWork, publisher, logg)

	// Initialize OAuth service
	oauthSvc := oauth.NewService(ctx, oauth.Config{
		Google: oauthtypes.ProviderConfig{
			ClientID:     cfg.OAuth.Google.ClientID,
			ClientSecret: cfg.OAuth.Google.ClientSecret,
			SubjectClaim: cfg.OAuth.Google.SubjectClaim,
		},
		GitHub: oauthtypes.ProviderConfig{
			ClientID:     cfg.OAuth.GitHub.ClientID,
			ClientSecret: cfg.OAuth.GitHub.ClientSecret,
			SubjectClaim: cfg.OAuth.GitHub.SubjectClaim,
		},
		RedirectURL: cfg.OAuth.RedirectURL,
	})
	if len(oauthSvc.GetSupportedProviders()) == 0 {
		logg.Warn("no OAuth provider configured")
	}

	// Initialize JWT service
	jwtSvc := auth.NewJWTService(auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		CookieName: cfg.JWT.CookieName,
	})

	// Create HTTP server
	r := mux.NewRouter()

	handler := httpHandler.NewAuthHandler(
		oauthSvc,
		resolver,
		userSvc,
		jwtSvc,
		httpHandler.Config{
			LoginSuccessURL: cfg.OAuth.LoginSuccessURL,
			LoginFailureURL: cfg.OAuth.LoginFailureURL,
			CookieSecure:    cfg.JWT.CookieSecure,
		},
		logg,
	)
	handler.RegisterRoutes(r)

	var root http.Handler = r
	if len(cfg.Server.AllowedOrigins) > 0 {
		root = cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		})(root)
	}
	root = httpHandler.AccessLog(logg)(root)

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Run server in a goroutine
	go func() {
		logg.WithFields(logrus.Fields{
			"addr":      srv.Addr,
			"driver":    cfg.DB.Driver,
			"providers": oauthSvc.GetSupportedProviders(),
		}).Info("server is running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.WithError(err).Fatal("could not start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv.SetKeepAlivesEnabled(false)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.WithError(err).Error("could not gracefully shutdown the server")
		return
	}

	logg.Info("server stopped")
}
