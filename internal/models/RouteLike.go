package models

import "time"

type RouteLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RouteID   uint      `gorm:"uniqueIndex:idx_route_likes_route_user;not null" json:"route_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_route_likes_route_user;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
