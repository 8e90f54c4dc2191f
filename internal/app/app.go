package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/expvar"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	feedRestApi "github.com/monngon/feed-service/internal/api/rest/v1/feed"
	"github.com/monngon/feed-service/internal/api/rest/v1/ping"
	"github.com/monngon/feed-service/internal/pkg/log"
	"github.com/monngon/feed-service/internal/pkg/utils"
	"github.com/monngon/feed-service/internal/services"
)

func Start() {
	file := log.SetUpLogPath(utils.EnvVarDefault("APP_LOGS_PATH", "stdout"))
	if file != nil {
		defer file.Close()
	}

	services.Instance()

	router := createRestApi(log.Instance())
	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{utils.EnvVarDefault("CORS_ALLOWED_ORIGIN", "*")},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(router)

	server := &http.Server{
		Addr:    utils.EnvVarDefault("APP_HTTP_HOST", ":3005"),
		Handler: handler,
	}

	go func() {
		log.Info("starting http server", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("unable to start http server: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("error during http server shutdown", err.Error())
	}
	if err := services.Instance().Shutdown(); err != nil {
		log.Error("error during app shutdown", err.Error())
	}
}

func createRestApi(logger *logrus.Logger) *gin.Engine {
	gin.SetMode(utils.EnvVarDefault("APP_MODE", gin.ReleaseMode))
	router := gin.New()
	router.Use(NewLoggerMiddleware(logger))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if err, ok := recovered.(string); ok {
			c.String(http.StatusInternalServerError, fmt.Sprintf("error: %s", err))
		}
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	router.Use(NewIdentityMiddleware())

	v1 := router.Group("/api/v1")

	v1.GET("/feed/ping", ping.Ping)
	v1.GET("/feed", feedRestApi.GetFeed)
	v1.GET("/feed/:id", feedRestApi.GetPost)
	v1.POST("/feed", feedRestApi.CreatePost)
	v1.PUT("/feed/:id", feedRestApi.UpdatePost)
	v1.DELETE("/feed/:id", feedRestApi.DeletePost)
	v1.POST("/feed/:id/like", feedRestApi.ToggleLike)
	v1.POST("/feed/:id/save", feedRestApi.ToggleSave)
	v1.POST("/feed/:id/comments", feedRestApi.CreateComment)
	v1.POST("/feed/:id/comments/:commentId/like", feedRestApi.ToggleCommentLike)
	v1.POST("/feed/sync", feedRestApi.Sync)

	v1.GET("/feed/debug/vars", expvar.Handler())

	return router
}

// NewLoggerMiddleware logs every request through the service logger.
func NewLoggerMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}

// NewIdentityMiddleware resolves the Authorization bearer token into the
// acting identity. Requests without a valid token proceed without a
// session; handlers that need one reject those themselves.
func NewIdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(header) > len(prefix) && header[:len(prefix)] == prefix {
			ident, err := services.Instance().Session().Parse(header[len(prefix):])
			if err == nil {
				c.Set(feedRestApi.IdentityKey, ident)
			}
		}
		c.Next()
	}
}
