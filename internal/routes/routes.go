// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"servo-bridge/internal/config"
	"servo-bridge/internal/discovery"
	"servo-bridge/internal/events"
	"servo-bridge/internal/handler"
	"servo-bridge/internal/middleware"
	"servo-bridge/internal/service"
	"servo-bridge/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config    *config.Config
	logger    *zap.Logger
	link      handler.SerialLink
	bridge    *service.BridgeService
	scanner   discovery.PortScanner
	eventBus  *events.EventBus
	gatherer  prometheus.Gatherer
	wsHandler *handler.WebSocketHandler
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	link handler.SerialLink,
	bridge *service.BridgeService,
	scanner discovery.PortScanner,
	eventBus *events.EventBus,
	gatherer prometheus.Gatherer,
) *Router {
	return &Router{
		config:   config,
		logger:   logger,
		link:     link,
		bridge:   bridge,
		scanner:  scanner,
		eventBus: eventBus,
		gatherer: gatherer,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// WebSocketHandler returns the gateway created by SetupRouter
func (r *Router) WebSocketHandler() *handler.WebSocketHandler {
	return r.wsHandler
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger, "/metrics", "/live"))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	r.wsHandler = handler.NewWebSocketHandler(r.bridge, r.eventBus, &r.config.Bridge, &r.config.Security, r.logger)
	healthHandler := handler.NewHealthHandler(r.link, r.config, r.logger)
	serialHandler := handler.NewSerialHandler(r.link, r.scanner, r.wsHandler, r.config.Serial.AllowManualReopen, r.logger)

	healthHandler.RegisterRoutes(router)

	apiV1 := router.Group("/api/v1")
	serialHandler.RegisterRoutes(apiV1)

	r.addMetricsRoutes(router)
	r.addDocumentationRoutes(router)

	r.wsHandler.RegisterRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDocumentationRoutes serves the registered swagger document and UI
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}

// addMetricsRoutes exposes Prometheus metrics
func (r *Router) addMetricsRoutes(router *gin.Engine) {
	if r.gatherer == nil {
		return
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
}
