package routes

import (
	"github.com/gin-gonic/gin"

	"drive_mapping/internal/controllers"
	"drive_mapping/internal/middleware"
)

func RouteRoutes(r *gin.Engine, rc *controllers.RouteController) {
	r.GET("/prefectures", rc.ListPrefectures)

	public := r.Group("/routes")
	public.Use(middleware.OptionalAuth())
	{
		public.GET("", rc.ListRoutes)
		public.GET("/:id", rc.GetRoute)
	}

	authed := r.Group("/")
	authed.Use(middleware.RequireAuth())
	{
		authed.GET("/favorites", rc.ListFavorites)
	}

	writes := r.Group("/routes")
	writes.Use(middleware.RequireAuth(), middleware.VerifyCSRF())
	{
		writes.POST("", rc.SubmitRoute)
		writes.POST("/:id", rc.UpdateRoute)
		writes.POST("/:id/delete", rc.DeleteRoute)
		writes.POST("/:id/like", rc.ToggleLike)
	}
}
