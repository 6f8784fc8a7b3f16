package models

import "time"

// RoutePhoto references an original image and its thumbnail under the
// route's storage directory. Photos are ordered by (SortOrder, ID).
type RoutePhoto struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RouteID   uint      `gorm:"index;not null" json:"route_id"`
	FileName  string    `gorm:"size:64;not null" json:"file_name"`
	ThumbName *string   `gorm:"size:64" json:"thumb_name"`
	SortOrder int       `gorm:"not null" json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}
