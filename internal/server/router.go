package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/corvid-labs/corpora-backend/internal/handlers"
	"github.com/corvid-labs/corpora-backend/internal/platform/ctxutil"
)

type RouterConfig struct {
	WorkspaceHandler *handlers.WorkspaceHandler
	DocumentHandler  *handlers.DocumentHandler
	ChatHandler      *handlers.ChatHandler
	HealthHandler    *handlers.HealthHandler
	MaxUploadBytes   int64
}

// requestID tags every request with an id that travels in the context (for
// log correlation) and comes back in the X-Request-ID header.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{RequestID: id})
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))
	if cfg.MaxUploadBytes > 0 {
		// Multipart parts up to the upload limit are held in memory; larger
		// parts spill to temporary files.
		router.MaxMultipartMemory = cfg.MaxUploadBytes
	}

	v1 := router.Group("/v1")
	{
		workspaces := v1.Group("/workspaces")
		{
			workspaces.POST("", cfg.WorkspaceHandler.Create)
			workspaces.GET("", cfg.WorkspaceHandler.List)
			workspaces.DELETE("/:id", cfg.WorkspaceHandler.Delete)
		}

		documents := v1.Group("/documents")
		{
			documents.POST("/upload", cfg.DocumentHandler.Upload)
			documents.GET("", cfg.DocumentHandler.List)
			documents.GET("/:id/download", cfg.DocumentHandler.Download)
			documents.GET("/:id/status", cfg.DocumentHandler.Status)
			documents.GET("/:id/events", cfg.DocumentHandler.Events)
			documents.DELETE("/:id", cfg.DocumentHandler.Delete)
		}

		chat := v1.Group("/chat")
		{
			chat.POST("/ask", cfg.ChatHandler.Ask)
			chat.GET("", cfg.ChatHandler.Sessions)
			chat.GET("/:session_id/messages", cfg.ChatHandler.Messages)
		}

		v1.GET("/ops/status", cfg.HealthHandler.Status)
	}

	return router
}
