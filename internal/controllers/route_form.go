package controllers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"drive_mapping/internal/services"
)

// parseRouteForm reads the submission fields. Array fields are accepted with
// or without the trailing "[]".
func parseRouteForm(c *gin.Context) services.RouteForm {
	f := services.RouteForm{
		Title:       c.PostForm("title"),
		Summary:     c.PostForm("summary"),
		Description: c.PostForm("description"),
		Address:     c.PostForm("address"),
		SiteURL:     c.PostForm("map_url"),
		Start: services.Waypoint{
			Label:   c.PostForm("start_label"),
			Address: c.PostForm("start_address"),
		},
		Goal: services.Waypoint{
			Label:   c.PostForm("goal_label"),
			Address: c.PostForm("goal_address"),
		},
	}

	f.PrefectureCode, _ = strconv.Atoi(strings.TrimSpace(c.PostForm("prefecture_code")))

	for _, raw := range formArray(c, "sub_prefectures") {
		if code, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			f.SubPrefectures = append(f.SubPrefectures, code)
		}
	}

	labels := formArray(c, "middle_label")
	addresses := formArray(c, "middle_address")
	n := max(len(labels), len(addresses))
	for i := 0; i < n; i++ {
		var w services.Waypoint
		if i < len(labels) {
			w.Label = labels[i]
		}
		if i < len(addresses) {
			w.Address = addresses[i]
		}
		f.Middle = append(f.Middle, w)
	}

	for _, raw := range formArray(c, "delete_photo_ids") {
		if id, ok := parseID(raw); ok {
			f.DeletePhotoIDs = append(f.DeletePhotoIDs, id)
		}
	}
	return f
}

func formArray(c *gin.Context, name string) []string {
	if values := c.PostFormArray(name + "[]"); len(values) > 0 {
		return values
	}
	return c.PostFormArray(name)
}
