package routes

import (
	"github.com/gin-gonic/gin"

	"drive_mapping/internal/controllers"
	"drive_mapping/internal/middleware"
)

func AuthRoutes(r *gin.Engine, ac *controllers.AuthController) {
	auth := r.Group("/auth")
	{
		auth.POST("/signup", ac.Signup)
		auth.POST("/login", ac.Login)
		auth.POST("/logout", ac.Logout)
		auth.GET("/csrf", middleware.RequireAuth(), ac.CSRFToken)
	}
}
