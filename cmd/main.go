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

	_ "github.com/franciscosanchezn/gin-oauth2-server/docs" // Import generated docs
	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/cache"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/config"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/controllers"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/database"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/events"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/metrics"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/middleware"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/oauth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// redisCacheMaxTTL bounds how stale a cached access token can get when a
// revocation is made by a process that does not share the cache.
const redisCacheMaxTTL = 30 * time.Second

type application struct {
	config   *config.Config
	db       *gorm.DB
	settings *config.SettingsStore
	recorder *metrics.Recorder
	tokens   *auth.TokenManager
	oauth    *oauth.OAuthService

	clientService services.ClientService
	scopeService  services.ScopeService
	userService   services.UserService

	closers []func() error
}

// @title OAuth2 Token Service
// @version 1.0
// @description OAuth2 authorization server with token lifecycle management
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and an access token.
func main() {
	// Load environment variables
	loadDotenvFile()

	// Initialize logger
	setUpLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, loadConfig())
	checkPanicErr(err)
	defer app.close()

	if err := app.settings.Watch(ctx); err != nil {
		log.WithError(err).Warn("Token settings file will not be reloaded")
	}
	if app.config.PruneInterval > 0 {
		go app.pruneLoop(ctx, app.config.PruneInterval)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%v:%d", app.config.Host, app.config.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

// checkPanicErr checks if an error occurred and panics if it did
func checkPanicErr(err error) {
	if err != nil {
		panic(err)
	}
}

// loadDotenvFile loads environment variables from a .env file
// If the file is not found, it will log a warning and use system environment variables
func loadDotenvFile() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
}

// setUpLogger initializes the logger with a JSON formatter and sets the log level based on
// the environment. LOG_LEVEL overrides the environment default.
func setUpLogger() {
	log.SetFormatter(&log.JSONFormatter{})
	level := config.LevelForEnvironment(config.GetEnvWithDefault("APP_ENV", "development"))
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		parsed, err := log.ParseLevel(raw)
		if err != nil {
			log.WithError(err).Warn("Ignoring invalid LOG_LEVEL")
		} else {
			level = parsed
		}
	}
	log.SetLevel(level)
	database.SetLogLevel(level)
	if level < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

// loadConfig loads the application configuration from environment variables
// It returns a Config struct or panics if there is an error
func loadConfig() *config.Config {
	conf, err := config.LoadConfig()
	checkPanicErr(err)
	return conf
}

func newApplication(ctx context.Context, conf *config.Config) (*application, error) {
	app := &application{config: conf}

	secret, err := config.ResolveJWTSecret(ctx, conf)
	if err != nil {
		return nil, err
	}

	app.db, err = database.InitDatabase(ctx, conf.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, app.db); err != nil {
		return nil, err
	}

	app.settings, err = config.NewSettingsStore(conf.Settings(), conf.SettingsFile)
	if err != nil {
		return nil, err
	}

	var tokenStore auth.TokenRepository = services.NewTokenService(app.db)
	if conf.RedisURL != "" {
		client, err := cache.Connect(ctx, conf.RedisURL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, client.Close)
		tokenStore = cache.New(tokenStore, client, redisCacheMaxTTL)
		log.Info("Access token cache enabled")
	}

	opts := []auth.TokenManagerOption{}
	var recorder auth.Recorder
	if conf.MetricsEnabled {
		app.recorder = metrics.NewRecorder()
		recorder = app.recorder
		opts = append(opts, auth.WithRecorder(app.recorder))
	}
	if conf.AMQPURL != "" {
		publisher, err := events.Dial(conf.AMQPURL, conf.AMQPExchange)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, publisher.Close)
		opts = append(opts, auth.WithRevocationNotifier(publisher))
		log.WithField("exchange", conf.AMQPExchange).Info("Publishing revocation events")
	}
	app.tokens = auth.NewTokenManager(tokenStore, app.settings, opts...)

	app.clientService = services.NewClientService(app.db)
	app.scopeService = services.NewScopeService(app.db)
	app.userService = services.NewUserService(app.db)

	app.oauth = oauth.NewOAuthService(oauth.Config{
		AccessTokenTTL:  conf.AccessTokenTTL,
		RefreshTokenTTL: conf.RefreshTokenTTL,
		AuthCodeTTL:     conf.AuthCodeTTL,
		ScopeDelimiter:  conf.ScopeDelimiter,
		DefaultScope:    conf.DefaultScope,
		SigningKey:      []byte(secret),
	}, oauth.Dependencies{
		Tokens:   app.tokens,
		Clients:  app.clientService,
		Scopes:   app.scopeService,
		Users:    app.userService,
		Codes:    services.NewCodeService(app.db),
		Settings: app.settings,
		Recorder: recorder,
	})

	return app, nil
}

func (app *application) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			log.WithError(err).Warn("Error while closing resources")
		}
	}
	if sqlDB, err := app.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// pruneLoop removes expired and no longer graced tokens on every tick.
func (app *application) pruneLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.tokens.PruneExpired(ctx); err != nil {
				log.WithError(err).Warn("Pruning expired tokens failed")
			}
		}
	}
}

// setupRouter initializes the Gin router and sets up the routes
// It returns the configured router
func (app *application) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	app.setupRoutes(router)

	return router
}

// requestLogger logs one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	}
}

// setupRoutes defines the routes for the Gin router
func (app *application) setupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", app.healthCheckHandler)

	if app.recorder != nil {
		router.GET("/metrics", gin.WrapH(app.recorder.Handler()))
	}

	oauthGroup := router.Group("/oauth")
	{
		oauthGroup.POST("/token", app.oauth.HandleToken)
		oauthGroup.GET("/authorize", app.oauth.HandleAuthorize)
		oauthGroup.POST("/authorize", app.oauth.HandleAuthorize)
		oauthGroup.POST("/revoke", app.oauth.HandleRevoke)
	}

	clientController := controllers.NewClientController(app.clientService, app.scopeService)
	scopeController := controllers.NewScopeController(app.scopeService)
	userController := controllers.NewUserController(app.userService)

	v1 := router.Group("/api/v1")
	{
		// Protected routes require a live access token
		protectedApi := v1.Group("/protected")
		protectedApi.Use(middleware.OAuth2Auth(app.oauth))
		{
			protectedApi.GET("/tokeninfo", controllers.TokenInfo)

			adminApi := protectedApi.Group("/admin")
			adminApi.Use(middleware.RequireScope("admin"))
			{
				adminApi.GET("/clients", clientController.ListClients)
				adminApi.POST("/clients", clientController.CreateClient)
				adminApi.GET("/clients/:id", clientController.GetClient)
				adminApi.DELETE("/clients/:id", clientController.DeleteClient)
				adminApi.GET("/scopes", scopeController.ListScopes)
				adminApi.POST("/scopes", scopeController.CreateScope)
				adminApi.POST("/users", userController.CreateUser)
			}
		}
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// healthCheckHandler handles the health check endpoint
// @Summary Health check
// @Description Check if the service and its database are reachable
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (app *application) healthCheckHandler(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if sqlDB, err := app.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "gin-oauth2-server",
	})
}
