// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "servo-bridge/docs"
	"servo-bridge/internal/config"
	"servo-bridge/internal/discovery"
	serialscan "servo-bridge/internal/discovery/serial"
	"servo-bridge/internal/events"
	"servo-bridge/internal/handler"
	"servo-bridge/internal/metrics"
	"servo-bridge/internal/protocol"
	"servo-bridge/internal/routes"
	"servo-bridge/internal/service"
	"servo-bridge/internal/utils"
)

const shutdownTimeout = 10 * time.Second

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	registry  *prometheus.Registry
	eventBus  *events.EventBus
	scanner   discovery.PortScanner
	link      *service.LinkService
	bridge    *service.BridgeService
	wsHandler *handler.WebSocketHandler
}

// @title Servo Bridge API
// @version 1.0.0
// @description Bridges WebSocket position updates from control panels to a servo arm controller over one serial channel.
// @description Control clients connect to /ws (or /) and negotiate servo.text.v1 or servo.binary.v1.

// @contact.name Servo Bridge Maintainers

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
func main() {
	app, err := NewApplication(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Error("Application stopped with error", zap.Error(err))
		_ = utils.CloseLogger(app.logger)
		os.Exit(1)
	}
}

// NewApplication creates a new application instance. The serial link is opened
// here so the HTTP server never starts without it.
func NewApplication(args []string) (*Application, error) {
	cfg, err := config.Load(args)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "servo-bridge")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	app.initializeMetrics()
	app.initializeEventBus()

	if err := app.initializeSerialLink(); err != nil {
		app.eventBus.Stop()
		return nil, fmt.Errorf("failed to initialize serial link: %w", err)
	}

	if err := app.initializeServices(); err != nil {
		app.closeBackends()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initializeServer()

	return app, nil
}

func (app *Application) initializeMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(app.registry)
}

func (app *Application) initializeEventBus() {
	app.eventBus = events.NewEventBus(app.logger)
	go app.eventBus.Start()
}

// initializeSerialLink resolves the device, opens the channel and starts the writer
func (app *Application) initializeSerialLink() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Serial.WriteTimeout+5*time.Second)
	defer cancel()

	app.scanner = serialscan.NewScanner(app.logger)

	channel, err := protocol.CreateChannel(ctx, &app.config.Serial, app.scanner, app.logger)
	if err != nil {
		return err
	}

	app.link = service.NewLinkService(channel, &app.config.Serial, app.eventBus, app.logger)
	if err := app.link.Open(ctx); err != nil {
		_ = app.link.Close()
		return err
	}

	app.logger.Info("Serial link initialized successfully",
		zap.String("port", channel.Name()),
		zap.Int("baud_rate", app.config.Serial.BaudRate),
	)
	return nil
}

func (app *Application) initializeServices() error {
	bridge, err := service.NewBridgeService(app.link, &app.config.Bridge, app.logger)
	if err != nil {
		return err
	}
	app.bridge = bridge

	app.logger.Info("Services initialized successfully",
		zap.String("default_variant", string(bridge.DefaultVariant())),
	)
	return nil
}

func (app *Application) initializeServer() {
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.link,
		app.bridge,
		app.scanner,
		app.eventBus,
		app.registry,
	)

	router := routerManager.SetupRouter()
	app.wsHandler = routerManager.WebSocketHandler()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)
}

// Start serves HTTP until a shutdown signal arrives or the server fails
func (app *Application) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		app.logger.Info("Shutdown requested", zap.NamedError("cause", context.Cause(ctx)))
		return app.shutdown()
	})

	return group.Wait()
}

// shutdown stops accepting clients, lets accepted updates reach the link,
// then closes the link and the event bus
func (app *Application) shutdown() error {
	serviceLogger := utils.NewServiceLogger(app.logger, "servo-bridge")
	serviceLogger.LogServiceStop("shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	if serverErr := app.server.Shutdown(ctx); serverErr != nil {
		err = multierr.Append(err, fmt.Errorf("http server shutdown: %w", serverErr))
	}
	if drainErr := app.wsHandler.Shutdown(ctx); drainErr != nil {
		err = multierr.Append(err, drainErr)
	}

	err = multierr.Append(err, app.closeBackends())

	if err != nil {
		app.logger.Error("Shutdown completed with errors", zap.Errors("errors", multierr.Errors(err)))
	} else {
		app.logger.Info("Application shutdown completed")
	}
	_ = utils.CloseLogger(app.logger)

	return err
}

func (app *Application) closeBackends() error {
	var err error
	if app.link != nil {
		if linkErr := app.link.Close(); linkErr != nil {
			err = multierr.Append(err, fmt.Errorf("serial link close: %w", linkErr))
		}
	}
	if app.eventBus != nil {
		app.eventBus.Stop()
	}
	return err
}
