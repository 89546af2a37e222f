package server

import (
	"crypto/subtle"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/at-ishikawa/tango/internal/logger"
	"github.com/at-ishikawa/tango/internal/syncapi"
)

type RouterConfig struct {
	SyncHandler *SyncHandler
	// ConnectOptions are applied to the Connect handlers of the sync service.
	ConnectOptions []connect.HandlerOption
	// Token enables bearer authentication of the sync routes when set.
	Token string
	// AllowedOrigins enables CORS for browser clients.
	AllowedOrigins []string
	Logger         *logger.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{"Authorization", "Content-Type", "Connect-Protocol-Version", "Connect-Timeout-Ms"},
			MaxAge:       time.Hour,
		}))
	}

	router.GET(syncapi.HealthPath, Health)

	protected := router.Group("/v1/sync")
	if cfg.Token != "" {
		protected.Use(RequireToken(cfg.Token))
	}
	protected.POST("/:entity_type/:entity_id", cfg.SyncHandler.Push)
	protected.GET("/:entity_type/:entity_id", cfg.SyncHandler.Get)

	path, handler := NewSyncServiceHandler(NewSyncService(cfg.SyncHandler), cfg.Token, cfg.ConnectOptions...)
	router.Any(path+"*procedure", gin.WrapH(handler))

	return router
}

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Debug("HTTP request", fields...)
		}
	}
}

// RequireToken rejects requests whose bearer token is not token.
func RequireToken(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		got := extractBearerToken(c)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, syncapi.ErrorResponse{Error: "missing or invalid token"})
			return
		}
		c.Next()
	}
}

func extractBearerToken(c *gin.Context) string {
	return bearerToken(c.GetHeader("Authorization"))
}
