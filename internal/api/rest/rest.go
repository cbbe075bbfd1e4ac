package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/wavecrest/music-shop-ledger/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler) {
	// Health check endpoint (no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public read surface
		v1.GET("/ledger", handler.GetLedger)
		v1.GET("/albums", handler.ListAlbums)
		v1.GET("/albums/:index", handler.GetAlbum)
		v1.GET("/orders", handler.ListOrders)
		v1.GET("/orders/:id", handler.GetOrder)

		// Write surface; every call is submitted as the caller identity from
		// the X-Shop-Caller header, and owner gating happens in the ledger
		v1.POST("/albums", middleware.Caller(), handler.AddAlbum)
		v1.POST("/albums/:index/buy", middleware.Caller(), handler.BuyAlbum)
		v1.POST("/orders/:id/delivered", middleware.Caller(), handler.DeliverOrder)

		// Bare value transfer path, always rejected
		v1.POST("/transfers", middleware.Caller(), handler.DirectTransfer)
	}
}
