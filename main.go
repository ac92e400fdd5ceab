package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"motors-client/internal/api"
	"motors-client/internal/config"
	"motors-client/internal/db"
	"motors-client/internal/handlers"
	"motors-client/internal/observability"
	"motors-client/internal/rabbitmq"
	"motors-client/internal/repositories"
	"motors-client/internal/session"
	"motors-client/internal/slices"
	"motors-client/internal/telemetry"
	"motors-client/internal/ui"
	"motors-client/internal/ws"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "motors-client",
		Short:         "Marketplace client gateway and realtime tools",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newFollowCmd())
	return root
}

// app is everything both commands share.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	authState *repositories.AuthStateRepo
	publisher rabbitmq.Publisher
	audit     *telemetry.AuditEmitter
	shutdown  func(context.Context) error
	closeDB   func() error
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	shutdown, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	database, err := db.Connect(cfg.DBDriver, cfg.DBDSN, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("connect db: %w", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	logger.Info("audit publisher ready", "mode", rabbitmq.PublisherMode(publisher), "noop_reason", rabbitmq.PublisherNoopReason(publisher))
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRouting, cfg.ServiceName, cfg.Env, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		authState: repositories.NewAuthStateRepo(database),
		publisher: publisher,
		audit:     audit,
		shutdown:  shutdown,
		closeDB:   database.Close,
	}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("close publisher", "error", err)
	}
	if err := a.closeDB(); err != nil {
		a.logger.Warn("close db", "error", err)
	}
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("shutdown tracing", "error", err)
	}
}

func (a *app) socketConfig() ws.Config {
	return ws.Config{
		URL:          a.cfg.SocketURL,
		DialTimeout:  a.cfg.DialTimeout,
		AckTimeout:   a.cfg.AckTimeout,
		RetryBackoff: a.cfg.RetryBackoff,
	}
}

// corsConfig lets the browser UI on origins call every gateway route.
func corsConfig(origins []string) cors.Config {
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.Background())
			if addr != "" {
				a.cfg.HTTPAddr = addr
			}
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	nav := ui.NewNavigator("/")
	notices := ui.NewNoticeBoard(0)

	manager := ws.NewManager(ws.ManagerOptions{
		Config:    a.socketConfig(),
		AuthState: a.authState,
		Notifier:  notices,
		Navigator: nav,
		Audit:     a.audit,
		LoginPath: a.cfg.LoginPath,
		Logger:    a.logger,
	})
	sess := session.New(session.Options{
		Manager:      manager,
		AuthState:    a.authState,
		Navigator:    nav,
		Notices:      notices,
		Audit:        a.audit,
		Location:     a.cfg.TimeZone,
		LoginPath:    a.cfg.LoginPath,
		FetchTimeout: a.cfg.AckTimeout,
		Logger:       a.logger,
	})
	if err := sess.Restore(ctx); err != nil {
		a.logger.Warn("could not restore session", "error", err)
	}
	defer manager.Teardown()

	client := api.NewClient(a.cfg.APIBaseURL, a.authState, a.cfg.APITimeout, a.logger)
	gateway := handlers.Gateway{
		Session: handlers.NewSessionHandler(sess),
		Inbox:   handlers.NewInboxHandler(),
		Market: handlers.NewMarketHandler(
			slices.NewListingSlice(api.NewListingClient(client), notices, a.logger),
			slices.NewCartSlice(api.NewCartClient(client)),
			slices.NewWishlistSlice(api.NewWishlistClient(client)),
		),
		UI: handlers.NewUIHandler(notices, nav),
	}

	if a.cfg.Env != "dev" && a.cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(a.cfg.CORSOrigins)))
	router.Use(otelgin.Middleware(a.cfg.ServiceName))
	router.Use(observability.RequestIDMiddleware())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connection": manager.State().String()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterRoutes(router, sess, gateway)
	handlers.RegisterDebugRoutes(router, a.audit, a.cfg.EnableDebugAPI)

	srv := &http.Server{Addr: a.cfg.HTTPAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("gateway listening", "addr", a.cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
