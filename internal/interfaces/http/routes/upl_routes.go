package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"uplregistry/internal/interfaces/http/handlers"
	"uplregistry/internal/interfaces/http/middleware"
)

// SetupUplRoutes configures the full RPC surface over the upl registry.
func SetupUplRoutes(router *gin.RouterGroup, uplHandler *handlers.UplHandler, logger zerolog.Logger) {
	upls := router.Group("/upls")
	upls.Use(middleware.Logger(logger))
	{
		upls.POST("", uplHandler.CreateNew)
		upls.POST("/bulk", uplHandler.CreateNewBulk)
		upls.GET("/bulk", uplHandler.GetBulk)
		upls.GET("", uplHandler.Query)
		upls.GET("/:id", uplHandler.GetById)
		upls.GET("/:id/archive", uplHandler.GetByIdArchive)

		upls.PATCH("/:id/best-before", uplHandler.SetBestBefore)
		upls.POST("/:id/split", uplHandler.Split)
		upls.POST("/:id/split/bulk", uplHandler.SplitBulk)
		upls.POST("/:id/divide", uplHandler.Divide)
		upls.POST("/:child_id/merge", uplHandler.MergeBack)
		upls.POST("/:id/open", uplHandler.OpenUpl)
		upls.POST("/:id/close", uplHandler.CloseUpl)

		upls.POST("/:id/depreciation", uplHandler.SetDepreciation)
		upls.DELETE("/:id/depreciation", uplHandler.RemoveDepreciation)
		upls.POST("/:id/depreciation/price", uplHandler.SetDepreciationPrice)
		upls.DELETE("/:id/depreciation/price", uplHandler.RemoveDepreciationPrice)

		upls.POST("/:id/lock/cart", uplHandler.LockToCart)
		upls.POST("/:id/lock/inventory", uplHandler.LockToInventory)
		upls.POST("/:id/unlock/cart", uplHandler.ReleaseLockFromCart)
		upls.POST("/:id/unlock/inventory", uplHandler.ReleaseLockFromInventory)

		upls.POST("/:id/move", uplHandler.MoveUpl)
	}

	carts := router.Group("/carts")
	carts.Use(middleware.Logger(logger))
	{
		carts.POST("/:cart_id/close", uplHandler.CloseCart)
	}

	inventories := router.Group("/inventory")
	inventories.Use(middleware.Logger(logger))
	{
		inventories.POST("/:inventory_id/close", uplHandler.CloseInventory)
	}

	skus := router.Group("/skus")
	skus.Use(middleware.Logger(logger))
	{
		skus.POST("/:sku/price", uplHandler.SetSkuPrice)
		skus.POST("/:sku/divisible", uplHandler.SetSkuDivisible)
		skus.GET("/:sku/location-info", uplHandler.GetLocationInfo)
		skus.POST("/location-info/bulk", uplHandler.GetLocationInfoBulk)
	}
}
