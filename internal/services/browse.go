package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"drive_mapping/internal/models"
	"drive_mapping/internal/prefecture"
	"drive_mapping/internal/storage"
)

// ListFilter narrows a route listing. Zero values mean no filter.
type ListFilter struct {
	Query      string
	Prefecture int
	LikedBy    uint
}

type RouteSummary struct {
	ID             uint      `json:"id"`
	Title          string    `json:"title"`
	Summary        *string   `json:"summary"`
	PrefectureCode int       `json:"prefecture_code"`
	PrefectureName string    `json:"prefecture_name"`
	ThumbnailURL   string    `json:"thumbnail_url,omitempty"`
	LikeCount      int64     `json:"like_count"`
	CreatedAt      time.Time `json:"created_at"`
}

type PrefectureRef struct {
	Code   int    `json:"code"`
	Name   string `json:"name"`
	IsMain bool   `json:"is_main"`
}

type PhotoView struct {
	ID           uint   `json:"id"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	SortOrder    int    `json:"sort_order"`
}

type RouteDetail struct {
	models.Route
	Prefectures []PrefectureRef     `json:"prefectures"`
	Points      []models.RoutePoint `json:"points"`
	Photos      []PhotoView         `json:"photos"`
	LikeCount   int64               `json:"like_count"`
	Liked       bool                `json:"liked"`
	IsOwner     bool                `json:"is_owner"`
}

type PrefectureCount struct {
	Code       int    `json:"code"`
	Name       string `json:"name"`
	RouteCount int64  `json:"route_count"`
}

// likeEscaper makes LIKE wildcards in a keyword match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// BrowseService answers the read-only listing and detail queries.
type BrowseService struct {
	db        *gorm.DB
	urlPrefix string
}

// NewBrowseService builds file URLs under urlPrefix, the path the upload
// root is served from (for example "/uploads").
func NewBrowseService(db *gorm.DB, urlPrefix string) *BrowseService {
	return &BrowseService{db: db, urlPrefix: strings.TrimRight(urlPrefix, "/")}
}

// List returns matching routes, newest first.
func (s *BrowseService) List(ctx context.Context, f ListFilter) ([]RouteSummary, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&models.Route{})

	if kw := strings.TrimSpace(f.Query); kw != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(kw)) + "%"
		q = q.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(summary) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, like, like, like)
	}
	if f.Prefecture != 0 {
		q = q.Where("id IN (?)", db.Model(&models.RoutePrefecture{}).
			Select("route_id").
			Where("prefecture_code = ?", f.Prefecture))
	}
	if f.LikedBy != 0 {
		q = q.Where("id IN (?)", db.Model(&models.RouteLike{}).
			Select("route_id").
			Where("user_id = ?", f.LikedBy))
	}

	var routes []models.Route
	if err := q.Preload("Photos").Order("created_at DESC").Order("id DESC").Find(&routes).Error; err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	if len(routes) == 0 {
		return []RouteSummary{}, nil
	}

	ids := make([]uint, len(routes))
	for i, r := range routes {
		ids[i] = r.ID
	}
	counts, err := s.likeCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]RouteSummary, 0, len(routes))
	for _, r := range routes {
		name, _ := prefecture.Name(r.PrefectureCode)
		item := RouteSummary{
			ID:             r.ID,
			Title:          r.Title,
			Summary:        r.Summary,
			PrefectureCode: r.PrefectureCode,
			PrefectureName: name,
			LikeCount:      counts[r.ID],
			CreatedAt:      r.CreatedAt,
		}
		if thumb := listThumbnail(r.Photos); thumb != "" {
			item.ThumbnailURL = s.thumbnailURL(r.ID, thumb)
		}
		out = append(out, item)
	}
	return out, nil
}

// Get loads one route with its children. viewerID may be zero.
func (s *BrowseService) Get(ctx context.Context, routeID, viewerID uint) (*RouteDetail, error) {
	db := s.db.WithContext(ctx)

	var route models.Route
	err := db.
		Preload("Prefectures", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("is_main DESC").Order("prefecture_code ASC")
		}).
		Preload("Points", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("sort_order ASC").Order("id ASC")
		}).
		Preload("Photos", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("sort_order ASC").Order("id ASC")
		}).
		First(&route, routeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load route: %w", err)
	}

	detail := &RouteDetail{
		Route:   route,
		Points:  route.Points,
		IsOwner: viewerID != 0 && viewerID == route.UserID,
	}
	detail.Route.Prefectures = nil
	detail.Route.Points = nil
	detail.Route.Photos = nil

	for _, p := range route.Prefectures {
		name, ok := prefecture.Name(p.PrefectureCode)
		if !ok {
			name = fmt.Sprintf("code %d", p.PrefectureCode)
		}
		detail.Prefectures = append(detail.Prefectures, PrefectureRef{Code: p.PrefectureCode, Name: name, IsMain: p.IsMain})
	}
	// routes saved before prefecture rows existed
	if len(detail.Prefectures) == 0 {
		name, _ := prefecture.Name(route.PrefectureCode)
		detail.Prefectures = []PrefectureRef{{Code: route.PrefectureCode, Name: name, IsMain: true}}
	}

	for _, p := range route.Photos {
		view := PhotoView{
			ID:        p.ID,
			URL:       fmt.Sprintf("%s/routes/%d/%s", s.urlPrefix, route.ID, p.FileName),
			SortOrder: p.SortOrder,
		}
		if p.ThumbName != nil && *p.ThumbName != "" {
			view.ThumbnailURL = s.thumbnailURL(route.ID, *p.ThumbName)
		}
		detail.Photos = append(detail.Photos, view)
	}

	counts, err := s.likeCounts(ctx, []uint{route.ID})
	if err != nil {
		return nil, err
	}
	detail.LikeCount = counts[route.ID]

	if viewerID != 0 {
		var n int64
		if err := db.Model(&models.RouteLike{}).
			Where("route_id = ? AND user_id = ?", route.ID, viewerID).
			Count(&n).Error; err != nil {
			return nil, fmt.Errorf("load like state: %w", err)
		}
		detail.Liked = n > 0
	}
	return detail, nil
}

// PrefectureCounts returns every prefecture with the number of routes whose
// primary prefecture it is.
func (s *BrowseService) PrefectureCounts(ctx context.Context) ([]PrefectureCount, error) {
	var rows []struct {
		PrefectureCode int
		N              int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Route{}).
		Select("prefecture_code, COUNT(*) AS n").
		Group("prefecture_code").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count routes by prefecture: %w", err)
	}

	byCode := make(map[int]int64, len(rows))
	for _, r := range rows {
		byCode[r.PrefectureCode] = r.N
	}

	all := prefecture.All()
	out := make([]PrefectureCount, len(all))
	for i, p := range all {
		out[i] = PrefectureCount{Code: p.Code, Name: p.Name, RouteCount: byCode[p.Code]}
	}
	return out, nil
}

func (s *BrowseService) likeCounts(ctx context.Context, routeIDs []uint) (map[uint]int64, error) {
	var rows []struct {
		RouteID uint
		N       int64
	}
	if err := s.db.WithContext(ctx).Model(&models.RouteLike{}).
		Select("route_id, COUNT(*) AS n").
		Where("route_id IN ?", routeIDs).
		Group("route_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count likes: %w", err)
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.RouteID] = r.N
	}
	return counts, nil
}

func (s *BrowseService) thumbnailURL(routeID uint, name string) string {
	return fmt.Sprintf("%s/routes/%d/thumbs/%s", s.urlPrefix, routeID, name)
}

// listThumbnail picks the canonical thumbnail if any photo holds it, and the
// smallest opaque name otherwise.
func listThumbnail(photos []models.RoutePhoto) string {
	var names []string
	for _, p := range photos {
		if p.ThumbName == nil || *p.ThumbName == "" {
			continue
		}
		if *p.ThumbName == storage.CanonicalThumbnailName {
			return storage.CanonicalThumbnailName
		}
		names = append(names, *p.ThumbName)
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return names[0]
}
