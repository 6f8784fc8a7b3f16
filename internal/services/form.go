package services

import (
	"strings"

	"drive_mapping/internal/models"
)

const (
	DefaultStartLabel  = "Start"
	DefaultMiddleLabel = "Waypoint"
	DefaultGoalLabel   = "Goal"
)

// Waypoint is one submitted {label, address} pair.
type Waypoint struct {
	Label   string
	Address string
}

func (w Waypoint) blank() bool {
	return w.Label == "" && w.Address == ""
}

func (w Waypoint) trimmed() Waypoint {
	return Waypoint{Label: strings.TrimSpace(w.Label), Address: strings.TrimSpace(w.Address)}
}

// RouteForm is the scalar and child-record part of a route submission.
type RouteForm struct {
	Title       string `validate:"required,max=100"`
	Summary     string `validate:"max=255"`
	Description string
	Address     string `validate:"max=255"`
	SiteURL     string `validate:"omitempty,url"`

	PrefectureCode int `validate:"prefecture"`
	SubPrefectures []int

	Start  Waypoint
	Middle []Waypoint
	Goal   Waypoint

	// DeletePhotoIDs only applies to updates.
	DeletePhotoIDs []uint
}

func (f RouteForm) normalized() RouteForm {
	f.Title = strings.TrimSpace(f.Title)
	f.Summary = strings.TrimSpace(f.Summary)
	f.Description = strings.TrimSpace(f.Description)
	f.Address = strings.TrimSpace(f.Address)
	f.SiteURL = strings.TrimSpace(f.SiteURL)
	f.Start = f.Start.trimmed()
	f.Goal = f.Goal.trimmed()

	middle := make([]Waypoint, len(f.Middle))
	for i, w := range f.Middle {
		middle[i] = w.trimmed()
	}
	f.Middle = middle
	return f
}

// applyTo copies the scalar fields onto route (full-field replace).
func (f RouteForm) applyTo(route *models.Route) {
	route.Title = f.Title
	route.Summary = optional(f.Summary)
	route.Description = optional(f.Description)
	route.Address = optional(f.Address)
	route.MapURL = optional(f.SiteURL)
	route.PrefectureCode = f.PrefectureCode
}

// BuildPoints turns the waypoint fields into rows. Blank pairs are skipped,
// blank labels get a default, intermediates keep their 1-based position in the
// submitted list, and the goal sorts last.
func BuildPoints(routeID uint, f RouteForm) []models.RoutePoint {
	var points []models.RoutePoint

	add := func(kind string, w Waypoint, defaultLabel string, order int) {
		if w.blank() {
			return
		}
		label := w.Label
		if label == "" {
			label = defaultLabel
		}
		points = append(points, models.RoutePoint{
			RouteID:   routeID,
			PointType: kind,
			Label:     label,
			Address:   optional(w.Address),
			SortOrder: order,
		})
	}

	add(models.PointStart, f.Start, DefaultStartLabel, 0)
	for i, w := range f.Middle {
		add(models.PointMiddle, w, DefaultMiddleLabel, i+1)
	}
	add(models.PointGoal, f.Goal, DefaultGoalLabel, models.GoalSortOrder)

	return points
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
