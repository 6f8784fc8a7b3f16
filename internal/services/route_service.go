package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"drive_mapping/internal/media"
	"drive_mapping/internal/models"
	"drive_mapping/internal/prefecture"
	"drive_mapping/internal/storage"
)

type Options struct {
	MaxPhotos      int
	MaxUploadBytes int64
}

// RouteService creates, updates and deletes routes together with their
// prefectures, points and photos.
type RouteService struct {
	db         *gorm.DB
	store      *storage.PhotoStore
	thumbs     ThumbnailGenerator
	reconciler *Reconciler
	validate   *validator.Validate
	opts       Options
}

func NewRouteService(db *gorm.DB, store *storage.PhotoStore, thumbs ThumbnailGenerator, opts Options) *RouteService {
	if opts.MaxPhotos <= 0 {
		opts.MaxPhotos = 10
	}
	return &RouteService{
		db:         db,
		store:      store,
		thumbs:     thumbs,
		reconciler: NewReconciler(store, thumbs),
		validate:   newValidator(),
		opts:       opts,
	}
}

// SubmitRequest is one create (RouteID == 0) or update submission.
type SubmitRequest struct {
	RouteID uint
	UserID  uint
	Form    RouteForm
	Uploads []UploadSlot
}

// Submit validates the form and applies it in one transaction. Files written
// or removed before a failure are not restored; only rows roll back.
func (s *RouteService) Submit(ctx context.Context, req SubmitRequest) (uint, error) {
	var route models.Route
	if req.RouteID != 0 {
		owned, err := s.loadOwned(ctx, req.RouteID, req.UserID)
		if err != nil {
			return 0, err
		}
		route = owned
	} else {
		route.UserID = req.UserID
	}

	form := req.Form.normalized()
	if err := validateForm(s.validate, form); err != nil {
		return 0, err
	}
	if req.RouteID == 0 {
		form.DeletePhotoIDs = nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		form.applyTo(&route)
		if route.ID == 0 {
			if err := tx.Create(&route).Error; err != nil {
				return fmt.Errorf("create route: %w", err)
			}
		} else if err := tx.Save(&route).Error; err != nil {
			return fmt.Errorf("update route: %w", err)
		}

		if err := replacePrefectures(tx, route.ID, form); err != nil {
			return err
		}
		if err := replacePoints(tx, route.ID, form); err != nil {
			return err
		}
		if err := s.store.EnsureRouteDirectories(route.ID); err != nil {
			return err
		}
		if err := s.deletePhotos(tx, route.ID, form.DeletePhotoIDs); err != nil {
			return err
		}
		if err := s.addPhotos(tx, route.ID, req.Uploads); err != nil {
			return err
		}
		return s.reconciler.Reconcile(tx, route.ID)
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"route_id": req.RouteID,
			"user_id":  req.UserID,
		}).Warn("RouteService: submission rolled back")
		return 0, err
	}
	return route.ID, nil
}

// Delete removes the route, every dependent row, and then its stored files.
func (s *RouteService) Delete(ctx context.Context, routeID, userID uint) error {
	if _, err := s.loadOwned(ctx, routeID, userID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []any{
			&models.RouteLike{},
			&models.RoutePhoto{},
			&models.RoutePoint{},
			&models.RoutePrefecture{},
		} {
			if err := tx.Where("route_id = ?", routeID).Delete(child).Error; err != nil {
				return fmt.Errorf("delete %T: %w", child, err)
			}
		}
		return tx.Delete(&models.Route{}, routeID).Error
	})
	if err != nil {
		return err
	}

	s.store.RemoveRoute(routeID)
	return nil
}

func (s *RouteService) loadOwned(ctx context.Context, routeID, userID uint) (models.Route, error) {
	var route models.Route
	if err := s.db.WithContext(ctx).First(&route, routeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return route, ErrNotFound
		}
		return route, fmt.Errorf("load route: %w", err)
	}
	if route.UserID != userID {
		return route, ErrForbidden
	}
	return route, nil
}

// replacePrefectures deletes every assignment and inserts the primary plus
// the distinct, valid secondaries that differ from it.
func replacePrefectures(tx *gorm.DB, routeID uint, f RouteForm) error {
	if err := tx.Where("route_id = ?", routeID).Delete(&models.RoutePrefecture{}).Error; err != nil {
		return fmt.Errorf("clear prefectures: %w", err)
	}

	rows := []models.RoutePrefecture{{RouteID: routeID, PrefectureCode: f.PrefectureCode, IsMain: true}}
	seen := map[int]bool{f.PrefectureCode: true}
	for _, code := range f.SubPrefectures {
		if seen[code] || !prefecture.Valid(code) {
			continue
		}
		seen[code] = true
		rows = append(rows, models.RoutePrefecture{RouteID: routeID, PrefectureCode: code})
	}

	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("insert prefectures: %w", err)
	}
	return nil
}

func replacePoints(tx *gorm.DB, routeID uint, f RouteForm) error {
	if err := tx.Where("route_id = ?", routeID).Delete(&models.RoutePoint{}).Error; err != nil {
		return fmt.Errorf("clear points: %w", err)
	}

	points := BuildPoints(routeID, f)
	if len(points) == 0 {
		return nil
	}
	if err := tx.Create(&points).Error; err != nil {
		return fmt.Errorf("insert points: %w", err)
	}
	return nil
}

// deletePhotos removes the requested photos of this route: blobs first
// (best-effort), then rows. Ids of other routes are ignored.
func (s *RouteService) deletePhotos(tx *gorm.DB, routeID uint, ids []uint) error {
	valid := ids[:0:0]
	for _, id := range ids {
		if id > 0 {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	var photos []models.RoutePhoto
	if err := tx.Where("route_id = ? AND id IN ?", routeID, valid).Find(&photos).Error; err != nil {
		return fmt.Errorf("load photos to delete: %w", err)
	}
	for _, p := range photos {
		s.store.DeleteOriginal(routeID, p.FileName)
		if p.ThumbName != nil && *p.ThumbName != "" {
			s.store.DeleteThumbnail(routeID, *p.ThumbName)
		}
	}

	if err := tx.Where("route_id = ? AND id IN ?", routeID, valid).Delete(&models.RoutePhoto{}).Error; err != nil {
		return fmt.Errorf("delete photos: %w", err)
	}
	return nil
}

// addPhotos ingests every non-empty slot. The capacity check covers the whole
// batch and runs before any slot is read.
func (s *RouteService) addPhotos(tx *gorm.DB, routeID uint, slots []UploadSlot) error {
	pending := 0
	for _, slot := range slots {
		if slot.Status != UploadEmpty {
			pending++
		}
	}
	if pending == 0 {
		return nil
	}

	var current int64
	if err := tx.Model(&models.RoutePhoto{}).Where("route_id = ?", routeID).Count(&current).Error; err != nil {
		return fmt.Errorf("count photos: %w", err)
	}
	if int(current)+pending > s.opts.MaxPhotos {
		return fmt.Errorf("%w: at most %d in total", ErrTooManyPhotos, s.opts.MaxPhotos)
	}

	var next int
	if err := tx.Model(&models.RoutePhoto{}).
		Select("COALESCE(MAX(sort_order), -1) + 1").
		Where("route_id = ?", routeID).
		Scan(&next).Error; err != nil {
		return fmt.Errorf("next sort order: %w", err)
	}

	for _, slot := range slots {
		if slot.Status == UploadEmpty {
			continue
		}
		photo, err := s.ingest(routeID, slot)
		if err != nil {
			return err
		}
		photo.SortOrder = next
		if err := tx.Create(&photo).Error; err != nil {
			return fmt.Errorf("insert photo: %w", err)
		}
		next++
	}
	return nil
}

// ingest validates one slot, stores its original and a preliminary thumbnail
// under opaque names, and returns the unsaved row.
func (s *RouteService) ingest(routeID uint, slot UploadSlot) (models.RoutePhoto, error) {
	if slot.Status != UploadOK {
		return models.RoutePhoto{}, fmt.Errorf("%w: %s", ErrUploadTransport, slot.Status)
	}
	if err := checkIntegrity(slot); err != nil {
		return models.RoutePhoto{}, err
	}

	blob, err := readUpload(slot.File, s.opts.MaxUploadBytes)
	if err != nil {
		return models.RoutePhoto{}, err
	}

	ext, ok := media.SniffExtension(blob)
	if !ok {
		return models.RoutePhoto{}, ErrUnsupportedMediaType
	}

	fileName, err := s.store.SaveOriginal(routeID, blob, ext)
	if err != nil {
		return models.RoutePhoto{}, err
	}

	thumb, err := s.thumbs.Generate(blob)
	if err != nil {
		return models.RoutePhoto{}, err
	}
	thumbName, err := s.store.NewThumbnailName()
	if err != nil {
		return models.RoutePhoto{}, err
	}
	if err := s.store.SaveThumbnail(routeID, thumb, thumbName); err != nil {
		return models.RoutePhoto{}, err
	}

	return models.RoutePhoto{
		RouteID:   routeID,
		FileName:  fileName,
		ThumbName: &thumbName,
	}, nil
}
