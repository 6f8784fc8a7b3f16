package services

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"drive_mapping/internal/models"
	"drive_mapping/internal/storage"
)

// ThumbnailGenerator renders a thumbnail from original image bytes.
type ThumbnailGenerator interface {
	Generate(src []byte) ([]byte, error)
}

// Reconciler keeps the canonical thumbnail on the first photo of a route:
// the photo with the smallest (sort_order, id) holds
// storage.CanonicalThumbnailName and no other photo does.
type Reconciler struct {
	store  *storage.PhotoStore
	thumbs ThumbnailGenerator
}

func NewReconciler(store *storage.PhotoStore, thumbs ThumbnailGenerator) *Reconciler {
	return &Reconciler{store: store, thumbs: thumbs}
}

// Reconcile re-reads the route's photos through tx and repairs the canonical
// thumbnail. Calling it again without other changes has no further effect.
func (r *Reconciler) Reconcile(tx *gorm.DB, routeID uint) error {
	var photos []models.RoutePhoto
	if err := tx.Where("route_id = ?", routeID).
		Order("sort_order ASC").Order("id ASC").
		Find(&photos).Error; err != nil {
		return fmt.Errorf("load photos: %w", err)
	}

	if len(photos) == 0 {
		r.store.DeleteThumbnail(routeID, storage.CanonicalThumbnailName)
		return nil
	}

	first := photos[0]

	for _, p := range photos[1:] {
		if !holdsCanonical(p) {
			continue
		}
		if err := r.demote(tx, routeID, p); err != nil {
			return err
		}
	}

	if !r.store.OriginalExists(routeID, first.FileName) {
		logrus.WithFields(logrus.Fields{
			"route_id": routeID,
			"photo_id": first.ID,
			"file":     first.FileName,
		}).Warn("Reconciler: original of first photo is missing, canonical thumbnail left as is")
		return nil
	}

	if first.ThumbName != nil && *first.ThumbName != "" && !holdsCanonical(first) {
		r.store.DeleteThumbnail(routeID, *first.ThumbName)
	}

	if err := r.render(routeID, first.FileName, storage.CanonicalThumbnailName); err != nil {
		return err
	}
	return setThumbName(tx, routeID, first.ID, ptr(storage.CanonicalThumbnailName))
}

// demote moves a misplaced canonical owner onto a fresh opaque thumbnail, or
// onto no thumbnail when its original is gone.
func (r *Reconciler) demote(tx *gorm.DB, routeID uint, p models.RoutePhoto) error {
	var name *string
	if r.store.OriginalExists(routeID, p.FileName) {
		fresh, err := r.store.NewThumbnailName()
		if err != nil {
			return err
		}
		if err := r.render(routeID, p.FileName, fresh); err != nil {
			return err
		}
		name = &fresh
	}

	logrus.WithFields(logrus.Fields{
		"route_id": routeID,
		"photo_id": p.ID,
	}).Info("Reconciler: moved canonical thumbnail off a non-first photo")

	return setThumbName(tx, routeID, p.ID, name)
}

func (r *Reconciler) render(routeID uint, fileName, thumbName string) error {
	src, err := r.store.ReadOriginal(routeID, fileName)
	if err != nil {
		return fmt.Errorf("read original %s: %w", fileName, err)
	}
	thumb, err := r.thumbs.Generate(src)
	if err != nil {
		return err
	}
	return r.store.SaveThumbnail(routeID, thumb, thumbName)
}

func setThumbName(tx *gorm.DB, routeID, photoID uint, name *string) error {
	err := tx.Model(&models.RoutePhoto{}).
		Where("id = ? AND route_id = ?", photoID, routeID).
		Update("thumb_name", name).Error
	if err != nil {
		return fmt.Errorf("update thumb_name of photo %d: %w", photoID, err)
	}
	return nil
}

func holdsCanonical(p models.RoutePhoto) bool {
	return p.ThumbName != nil && *p.ThumbName == storage.CanonicalThumbnailName
}

func ptr[T any](v T) *T {
	return &v
}
