package models

// RoutePrefecture assigns a prefecture to a route. Exactly one row per route
// has IsMain set; it mirrors Route.PrefectureCode.
type RoutePrefecture struct {
	ID             uint `gorm:"primaryKey" json:"id"`
	RouteID        uint `gorm:"index;not null" json:"route_id"`
	PrefectureCode int  `gorm:"not null" json:"prefecture_code"`
	IsMain         bool `gorm:"not null" json:"is_main"`
}
