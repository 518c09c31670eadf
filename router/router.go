// router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gatewarden/gatewarden/controller"
	"github.com/gatewarden/gatewarden/middleware"
)

func SetupRouter(
	verifyController *controller.VerifyController,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))

	api := router.Group("/")
	verifyController.RegisterRoutes(api)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
