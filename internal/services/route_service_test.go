package services

import (
	"context"
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"drive_mapping/internal/models"
	"drive_mapping/internal/storage"
)

func TestSubmitCreateAssignsCanonicalToFirstUpload(t *testing.T) {
	env := newTestEnv(t)
	id := env.routeWithPhotos(t,
		upload{"a.png", solidPNG(t, 40, 30, red)},
		upload{"b.png", solidPNG(t, 40, 30, green)},
		upload{"c.png", solidPNG(t, 40, 30, blue)},
	)

	photos := env.photos(t, id)
	if len(photos) != 3 {
		t.Fatalf("expected 3 photos, got %d", len(photos))
	}
	assertSingleCanonical(t, photos)

	b, c := thumbName(photos[1]), thumbName(photos[2])
	if b == c || !strings.HasPrefix(b, "t_") || !strings.HasPrefix(c, "t_") {
		t.Fatalf("expected distinct opaque thumbnails, got %q and %q", b, c)
	}
	for i, p := range photos {
		if p.SortOrder != i {
			t.Fatalf("photo %d sort order %d, want %d", p.ID, p.SortOrder, i)
		}
		if !env.store.OriginalExists(id, p.FileName) || !env.store.ThumbnailExists(id, thumbName(p)) {
			t.Fatalf("files of photo %d missing", p.ID)
		}
	}
	if got := dominant(env.canonicalColor(t, id)); got != "red" {
		t.Fatalf("canonical thumbnail rendered from %s photo, want red", got)
	}
}

func TestSubmitDeletingFirstPhotoPromotesNext(t *testing.T) {
	env := newTestEnv(t)
	id := env.routeWithPhotos(t,
		upload{"a.png", solidPNG(t, 40, 30, red)},
		upload{"b.png", solidPNG(t, 40, 30, green)},
		upload{"c.png", solidPNG(t, 40, 30, blue)},
	)
	before := env.photos(t, id)
	a, b := before[0], before[1]

	form := validForm()
	form.DeletePhotoIDs = []uint{a.ID}
	env.submit(t, SubmitRequest{RouteID: id, UserID: env.owner.ID, Form: form})

	after := env.photos(t, id)
	if len(after) != 2 || after[0].ID != b.ID {
		t.Fatalf("expected B first of 2 photos, got %+v", after)
	}
	assertSingleCanonical(t, after)
	if env.store.ThumbnailExists(id, thumbName(b)) {
		t.Fatalf("B's previous thumbnail %s should be removed", thumbName(b))
	}
	if env.store.OriginalExists(id, a.FileName) {
		t.Fatalf("A's original should be removed")
	}
	if got := dominant(env.canonicalColor(t, id)); got != "green" {
		t.Fatalf("canonical thumbnail rendered from %s photo, want green", got)
	}
}

func TestSubmitDeletingAllPhotosRemovesCanonical(t *testing.T) {
	env := newTestEnv(t)
	id := env.routeWithPhotos(t,
		upload{"a.png", solidPNG(t, 40, 30, red)},
		upload{"b.png", solidPNG(t, 40, 30, green)},
	)
	photos := env.photos(t, id)

	form := validForm()
	form.DeletePhotoIDs = []uint{photos[0].ID, photos[1].ID}
	env.submit(t, SubmitRequest{RouteID: id, UserID: env.owner.ID, Form: form})

	if left := env.photos(t, id); len(left) != 0 {
		t.Fatalf("expected no photos, got %d", len(left))
	}
	if env.store.ThumbnailExists(id, storage.CanonicalThumbnailName) {
		t.Fatalf("canonical thumbnail should be removed")
	}
}

func TestSubmitAppendsAfterExistingPhotos(t *testing.T) {
	env := newTestEnv(t)
	id := env.routeWithPhotos(t,
		upload{"a.png", solidPNG(t, 40, 30, red)},
		upload{"b.png", solidPNG(t, 40, 30, green)},
	)
	photos := env.photos(t, id)
	// leave a gap so max+1 is observable
	if err := env.db.Model(&models.RoutePhoto{}).Where("id = ?", photos[1].ID).Update("sort_order", 5).Error; err != nil {
		t.Fatalf("update: %v", err)
	}

	env.submit(t, SubmitRequest{
		RouteID: id,
		UserID:  env.owner.ID,
		Form:    validForm(),
		Uploads: multipartSlots(t, upload{"c.png", solidPNG(t, 40, 30, blue)}),
	})

	after := env.photos(t, id)
	if len(after) != 3 || after[2].SortOrder != 6 {
		t.Fatalf("expected new photo at sort order 6, got %+v", after)
	}
	assertSingleCanonical(t, after)
	if after[0].ID != photos[0].ID {
		t.Fatalf("first photo changed")
	}
}

func TestSubmitIgnoresPhotosOfOtherRoutes(t *testing.T) {
	env := newTestEnv(t)
	mine := env.routeWithPhotos(t, upload{"a.png", solidPNG(t, 40, 30, red)})
	theirs := env.routeWithPhotos(t, upload{"b.png", solidPNG(t, 40, 30, green)})
	foreign := env.photos(t, theirs)[0]

	form := validForm()
	form.DeletePhotoIDs = []uint{foreign.ID}
	env.submit(t, SubmitRequest{RouteID: mine, UserID: env.owner.ID, Form: form})

	if len(env.photos(t, theirs)) != 1 || !env.store.OriginalExists(theirs, foreign.FileName) {
		t.Fatalf("photo of another route was touched")
	}
}

func TestSubmitReplacesPrefectures(t *testing.T) {
	env := newTestEnv(t)
	form := validForm()
	form.PrefectureCode = 13
	form.SubPrefectures = []int{14, 14, 13, 99}
	id := env.submit(t, SubmitRequest{UserID: env.owner.ID, Form: form})

	var rows []models.RoutePrefecture
	env.db.Where("route_id = ?", id).Order("id").Find(&rows)
	if len(rows) != 2 || !rows[0].IsMain || rows[0].PrefectureCode != 13 || rows[1].IsMain || rows[1].PrefectureCode != 14 {
		t.Fatalf("unexpected prefectures after create: %+v", rows)
	}

	form.PrefectureCode = 27
	form.SubPrefectures = nil
	env.submit(t, SubmitRequest{RouteID: id, UserID: env.owner.ID, Form: form})

	rows = nil
	env.db.Where("route_id = ?", id).Find(&rows)
	if len(rows) != 1 || !rows[0].IsMain || rows[0].PrefectureCode != 27 {
		t.Fatalf("unexpected prefectures after update: %+v", rows)
	}

	var route models.Route
	env.db.First(&route, id)
	if route.PrefectureCode != 27 {
		t.Fatalf("route prefecture = %d, want 27", route.PrefectureCode)
	}
}

func TestSubmitReplacesPoints(t *testing.T) {
	env := newTestEnv(t)
	form := validForm()
	form.Middle = []Waypoint{{Label: "Rest stop"}, {}, {Address: "Hakone"}}
	id := env.submit(t, SubmitRequest{UserID: env.owner.ID, Form: form})

	form.Middle = nil
	form.Start = Waypoint{}
	env.submit(t, SubmitRequest{RouteID: id, UserID: env.owner.ID, Form: form})

	var points []models.RoutePoint
	env.db.Where("route_id = ?", id).Find(&points)
	if len(points) != 1 || points[0].PointType != models.PointGoal {
		t.Fatalf("expected only the goal to remain, got %+v", points)
	}
}

func TestSubmitRejectsOverCapacityBeforeReading(t *testing.T) {
	env := newTestEnv(t)
	files := make([]upload, 9)
	for i := range files {
		files[i] = upload{"p.png", solidPNG(t, 8, 8, red)}
	}
	id := env.routeWithPhotos(t, files...)

	// the second slot would fail its integrity check if it were read
	slots := append(multipartSlots(t, upload{"x.png", solidPNG(t, 8, 8, green)}), UploadSlot{Status: UploadOK})
	_, err := env.routes.Submit(context.Background(), SubmitRequest{
		RouteID: id, UserID: env.owner.ID, Form: validForm(), Uploads: slots,
	})
	if !errors.Is(err, ErrTooManyPhotos) {
		t.Fatalf("expected ErrTooManyPhotos, got %v", err)
	}
	if n := len(env.photos(t, id)); n != 9 {
		t.Fatalf("photo set changed to %d", n)
	}
}

func TestSubmitCapacityCountsAfterDeletions(t *testing.T) {
	env := newTestEnv(t)
	files := make([]upload, 10)
	for i := range files {
		files[i] = upload{"p.png", solidPNG(t, 8, 8, red)}
	}
	id := env.routeWithPhotos(t, files...)
	photos := env.photos(t, id)

	form := validForm()
	form.DeletePhotoIDs = []uint{photos[3].ID}
	env.submit(t, SubmitRequest{
		RouteID: id,
		UserID:  env.owner.ID,
		Form:    form,
		Uploads: multipartSlots(t, upload{"q.png", solidPNG(t, 8, 8, blue)}),
	})
	if n := len(env.photos(t, id)); n != 10 {
		t.Fatalf("expected 10 photos, got %d", n)
	}
}

func TestSubmitRejectsDisguisedUpload(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.routes.Submit(context.Background(), SubmitRequest{
		UserID:  env.owner.ID,
		Form:    validForm(),
		Uploads: multipartSlots(t, upload{"holiday.jpg", []byte("GIF89a not really a jpeg")}),
	})
	if !errors.Is(err, ErrUnsupportedMediaType) {
		t.Fatalf("expected ErrUnsupportedMediaType, got %v", err)
	}

	var n int64
	env.db.Model(&models.Route{}).Count(&n)
	if n != 0 {
		t.Fatalf("route row should have rolled back, found %d", n)
	}
	if entries, err := os.ReadDir(env.store.Root()); err == nil {
		for _, e := range entries {
			if e.Name() != "routes" {
				t.Fatalf("unexpected entry %s in upload root", e.Name())
			}
		}
	}
	assertNoOriginals(t, env.store.Root())
}

func assertNoOriginals(t *testing.T, root string) {
	t.Helper()
	routesDir := filepath.Join(root, "routes")
	dirs, err := os.ReadDir(routesDir)
	if err != nil {
		return
	}
	for _, d := range dirs {
		files, _ := os.ReadDir(filepath.Join(routesDir, d.Name()))
		for _, f := range files {
			if f.Name() != "thumbs" {
				t.Fatalf("unexpected blob %s written", f.Name())
			}
		}
	}
}

func TestSubmitUploadFailures(t *testing.T) {
	tests := []struct {
		name string
		slot UploadSlot
		want error
	}{
		{"too large", UploadSlot{Status: UploadTooLarge}, ErrUploadTransport},
		{"transport failure", UploadSlot{Status: UploadFailed}, ErrUploadTransport},
		{"missing header", UploadSlot{Status: UploadOK}, ErrUploadIntegrity},
		{"forged path", UploadSlot{Status: UploadOK, File: &multipart.FileHeader{Filename: "../../etc/passwd"}}, ErrUploadIntegrity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.routes.Submit(context.Background(), SubmitRequest{
				UserID:  env.owner.ID,
				Form:    validForm(),
				Uploads: []UploadSlot{tt.slot},
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSubmitValidationReportsEveryField(t *testing.T) {
	env := newTestEnv(t)
	form := validForm()
	form.Title = "   "
	form.PrefectureCode = 0
	form.SiteURL = "not a url"
	form.Summary = strings.Repeat("é", 256)

	_, err := env.routes.Submit(context.Background(), SubmitRequest{UserID: env.owner.ID, Form: form})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %q", verr.Messages)
	}

	var n int64
	env.db.Model(&models.Route{}).Count(&n)
	if n != 0 {
		t.Fatalf("no route should be created")
	}
}

func TestSubmitTitleLengthCountsCharacters(t *testing.T) {
	env := newTestEnv(t)
	form := validForm()
	form.Title = strings.Repeat("道", 100)
	env.submit(t, SubmitRequest{UserID: env.owner.ID, Form: form})
}

func TestSubmitOwnership(t *testing.T) {
	env := newTestEnv(t)
	id := env.submit(t, SubmitRequest{UserID: env.owner.ID, Form: validForm()})

	_, err := env.routes.Submit(context.Background(), SubmitRequest{RouteID: id, UserID: env.other.ID, Form: validForm()})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	_, err = env.routes.Submit(context.Background(), SubmitRequest{RouteID: id + 100, UserID: env.owner.ID, Form: validForm()})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitUpdateKeepsCreatedAt(t *testing.T) {
	env := newTestEnv(t)
	id := env.submit(t, SubmitRequest{UserID: env.owner.ID, Form: validForm()})
	var before models.Route
	env.db.First(&before, id)

	form := validForm()
	form.Title = "Renamed"
	form.Summary = ""
	env.submit(t, SubmitRequest{RouteID: id, UserID: env.owner.ID, Form: form})

	var after models.Route
	env.db.First(&after, id)
	if after.Title != "Renamed" || after.Summary != nil {
		t.Fatalf("fields not replaced: %+v", after)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("created_at changed from %v to %v", before.CreatedAt, after.CreatedAt)
	}
}

func TestDeleteRemovesRowsAndFiles(t *testing.T) {
	env := newTestEnv(t)
	id := env.routeWithPhotos(t, upload{"a.png", solidPNG(t, 40, 30, red)})
	if _, err := env.likes.Toggle(context.Background(), id, env.other.ID); err != nil {
		t.Fatalf("like: %v", err)
	}

	if err := env.routes.Delete(context.Background(), id, env.other.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := env.routes.Delete(context.Background(), id, env.owner.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	for _, m := range []any{&models.Route{}, &models.RoutePhoto{}, &models.RoutePoint{}, &models.RoutePrefecture{}, &models.RouteLike{}} {
		var n int64
		env.db.Model(m).Count(&n)
		if n != 0 {
			t.Fatalf("%T rows left: %d", m, n)
		}
	}
	if _, err := os.Stat(env.store.RouteDir(id)); !os.IsNotExist(err) {
		t.Fatalf("route directory still present: %v", err)
	}
	if err := env.routes.Delete(context.Background(), id, env.owner.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
