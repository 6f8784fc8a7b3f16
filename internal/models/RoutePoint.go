package models

const (
	PointStart  = "start"
	PointMiddle = "middle"
	PointGoal   = "goal"

	// GoalSortOrder keeps the goal after every intermediate point.
	GoalSortOrder = 999
)

// RoutePoint is a named waypoint with a free-text address.
type RoutePoint struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	RouteID   uint    `gorm:"index;not null" json:"route_id"`
	PointType string  `gorm:"size:10;not null" json:"point_type"`
	Label     string  `gorm:"size:100;not null" json:"label"`
	Address   *string `gorm:"size:255" json:"address"`
	SortOrder int     `gorm:"not null" json:"sort_order"`
}
