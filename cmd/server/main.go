package main

import (
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"drive_mapping/internal/config"
	"drive_mapping/internal/logger"
	"drive_mapping/internal/media"
	"drive_mapping/internal/middleware"
	"drive_mapping/internal/routes"
	"drive_mapping/internal/services"
	"drive_mapping/internal/storage"
)

func main() {
	settings := config.LoadSettings()

	// Initialize structured logging to file
	logFile := logger.Setup(settings.LogFile)

	if settings.UsingDefaultSecret() {
		logrus.Warn("JWT_SECRET is not set; sessions and CSRF tokens use the development secret")
	}
	middleware.SetSecret(settings.JWTSecret)

	db := config.InitDB(settings)

	store := storage.NewPhotoStore(settings.UploadDir)
	thumbs := media.NewThumbnailer(settings.ThumbMaxWidth, settings.ThumbMaxHeight, settings.ThumbQuality)
	thumbs.MaxPixels = settings.ThumbMaxPixels

	gin.SetMode(gin.ReleaseMode)
	r := routes.SetupRouter(routes.Deps{
		DB:    db,
		Store: store,
		Routes: services.NewRouteService(db, store, thumbs, services.Options{
			MaxPhotos:      settings.MaxPhotos,
			MaxUploadBytes: settings.MaxUploadBytes,
		}),
		Likes:          services.NewLikeService(db),
		Browse:         services.NewBrowseService(db, routes.UploadsPath),
		MaxUploadBytes: settings.MaxUploadBytes,
		AccessLog:      io.MultiWriter(os.Stdout, logFile),
	})

	// Wrap with CORS
	handler := middleware.EnableCORS(r, settings.CORSAllowedOrigins...)

	addr := "0.0.0.0:" + settings.Port
	logrus.WithField("addr", addr).Info("server starting")
	if err := http.ListenAndServe(addr, handler); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}
