package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletgate/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	handlers := NewAuthHandlers(authService, logger)

	router.GET("/siwe/nonce/:address", handlers.Nonce)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	user := router.Group("/user")
	{
		user.POST("/signup", handlers.Signup)
		user.POST("/login", handlers.Login)
	}

	// Protected routes
	authed := router.Group("/user")
	authed.Use(AuthMiddleware(authService))
	{
		authed.GET("", handlers.CurrentUser)
		authed.POST("/logout", handlers.Logout)
	}

	return router
}
