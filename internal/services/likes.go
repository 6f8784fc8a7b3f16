package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"drive_mapping/internal/models"
)

type LikeService struct {
	db *gorm.DB
}

func NewLikeService(db *gorm.DB) *LikeService {
	return &LikeService{db: db}
}

// Toggle likes the route for userID, or removes the like if it exists, and
// reports the resulting state.
func (s *LikeService) Toggle(ctx context.Context, routeID, userID uint) (bool, error) {
	liked := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var route models.Route
		if err := tx.Select("id").First(&route, routeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load route: %w", err)
		}

		var existing models.RouteLike
		err := tx.Where("route_id = ? AND user_id = ?", routeID, userID).First(&existing).Error
		switch {
		case err == nil:
			return tx.Delete(&existing).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			liked = true
			// a concurrent like of the same pair is not an error
			return tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.RouteLike{RouteID: routeID, UserID: userID}).Error
		default:
			return err
		}
	})
	if err != nil {
		return false, err
	}
	return liked, nil
}
