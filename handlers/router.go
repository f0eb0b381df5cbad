package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cms-tags/helper"
	"cms-tags/middleware"
	"cms-tags/models"
	"cms-tags/services"
)

type RouterOptions struct {
	JWTSecret  []byte
	CloudLimit int
}

// NewRouter mounts the admin tag routes under /api/v1/admin.
func NewRouter(tagService services.TagService, opts RouterOptions, logger *zap.Logger) *gin.Engine {
	h := helper.NewHTTPHelper()
	tagHandler := NewTagHandler(tagService, h, opts.CloudLimit, logger)
	taggingHandler := NewTaggingHandler(tagService, h, logger)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(logger))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Site-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.AuthMiddleware(opts.JWTSecret), middleware.SiteScope())
	{
		// anything that can create tags or change taggings needs an editor
		editors := middleware.RequireRole(string(models.RoleAdmin), string(models.RoleEditor))

		tags := admin.Group("/tags")
		{
			tags.GET("", tagHandler.GetTags)
			tags.POST("", editors, tagHandler.CreateTag)
			tags.GET("/cloud", tagHandler.Cloud)
			tags.GET("/popular", tagHandler.Popular)
			tags.GET("/coincident", tagHandler.CoincidentWithAll)
			tags.POST("/parse", editors, tagHandler.ParseList)
			tags.GET("/:id", tagHandler.GetTag)
			tags.PUT("/:id", editors, tagHandler.UpdateTag)
			tags.DELETE("/:id", middleware.RequireRole(string(models.RoleAdmin)), tagHandler.DeleteTag)
			tags.GET("/:id/coincident", tagHandler.Coincident)
			tags.GET("/:id/entities/:kind", tagHandler.RelatedEntities)
		}

		taggings := admin.Group("/taggings")
		{
			taggings.POST("", editors, taggingHandler.Apply)
			taggings.DELETE("", editors, taggingHandler.Remove)
		}

		entities := admin.Group("/entities")
		{
			entities.POST("/tag", editors, taggingHandler.TagEntity)
			entities.GET("/:kind/:id/tags", taggingHandler.EntityTags)
			entities.DELETE("/:kind/:id/taggings", editors, taggingHandler.RemoveEntity)
		}
	}

	return router
}
