package routes

import (
	"github.com/gin-gonic/gin"

	"sessionscribe/internal/api/middleware"
	"sessionscribe/internal/api/v1/handlers"
)

// ServiceContainer holds all services needed by handlers.
type ServiceContainer struct {
	UploadService handlers.UploadService
	SweepService  handlers.SweepService
	// CronSecret guards the cleanup endpoint.
	CronSecret string
}

// RegisterRoutes registers all v1 API routes.
func RegisterRoutes(router *gin.RouterGroup, container *ServiceContainer) {
	uploadHandler := handlers.NewUploadHandler(container.UploadService)
	uploads := router.Group("/upload")
	uploads.Use(middleware.CallerIdentity())
	{
		uploads.POST("/init", uploadHandler.Init)
		uploads.POST("/chunk", uploadHandler.Chunk)
		uploads.POST("/finalize", uploadHandler.Finalize)
		uploads.POST("/retry/:sessionId", uploadHandler.Retry)
		uploads.POST("/cancel/:sessionId", uploadHandler.Cancel)
		uploads.GET("/status/:sessionId", uploadHandler.Status)
	}

	cleanupHandler := handlers.NewCleanupHandler(container.SweepService)
	router.POST("/cleanup", middleware.OperatorSecret(container.CronSecret), cleanupHandler.Cleanup)
}
