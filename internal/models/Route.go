package models

import "time"

// Route is a published driving route.
// Child rows (prefectures, points, photos, likes) are hard-deleted, so the
// route does not embed gorm.Model and its soft-delete column.
type Route struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID         uint    `gorm:"index;not null" json:"user_id"`
	Title          string  `gorm:"size:100;not null" json:"title"`
	Summary        *string `gorm:"size:255" json:"summary"`
	Description    *string `gorm:"type:text" json:"description"`
	Address        *string `gorm:"size:255" json:"address"`
	MapURL         *string `gorm:"type:text" json:"map_url"` // destination site URL
	PrefectureCode int     `gorm:"index;not null" json:"prefecture_code"`

	// Associations
	Prefectures []RoutePrefecture `gorm:"foreignKey:RouteID" json:"prefectures,omitempty"`
	Points      []RoutePoint      `gorm:"foreignKey:RouteID" json:"points,omitempty"`
	Photos      []RoutePhoto      `gorm:"foreignKey:RouteID" json:"photos,omitempty"`
}
