package routes

import (
	"io"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"drive_mapping/internal/controllers"
	"drive_mapping/internal/middleware"
	"drive_mapping/internal/services"
	"drive_mapping/internal/storage"
)

// Deps carries what the handlers need.
type Deps struct {
	DB             *gorm.DB
	Store          *storage.PhotoStore
	Routes         *services.RouteService
	Likes          *services.LikeService
	Browse         *services.BrowseService
	MaxUploadBytes int64
	// AccessLog receives one line per request; nil disables access logging.
	AccessLog io.Writer
}

// UploadsPath is where the photo store root is served.
const UploadsPath = "/uploads"

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	// ten photos plus form fields stay in memory, larger bodies spill to disk
	r.MaxMultipartMemory = 32 << 20

	r.Use(middleware.RequestID())
	if d.AccessLog != nil {
		r.Use(ginlog.SetLogger(ginlog.WithWriter(d.AccessLog), ginlog.WithUTC(true)))
	}
	r.Use(gin.Recovery())

	r.Static(UploadsPath, d.Store.Root())

	AuthRoutes(r, controllers.NewAuthController(d.DB))
	RouteRoutes(r, controllers.NewRouteController(d.Routes, d.Likes, d.Browse, d.MaxUploadBytes))

	return r
}
