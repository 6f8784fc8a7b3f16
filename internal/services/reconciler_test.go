package services

import (
	"strings"
	"testing"

	"drive_mapping/internal/models"
	"drive_mapping/internal/storage"
)

func (e *testEnv) routeWithPhotos(t *testing.T, files ...upload) uint {
	t.Helper()
	return e.submit(t, SubmitRequest{
		UserID:  e.owner.ID,
		Form:    validForm(),
		Uploads: multipartSlots(t, files...),
	})
}

func TestReconcileIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	id := env.routeWithPhotos(t,
		upload{"a.png", solidPNG(t, 40, 30, red)},
		upload{"b.png", solidPNG(t, 40, 30, green)},
	)
	before := env.photos(t, id)

	r := NewReconciler(env.store, env.routes.thumbs)
	for i := 0; i < 2; i++ {
		if err := r.Reconcile(env.db, id); err != nil {
			t.Fatalf("Reconcile pass %d: %v", i, err)
		}
	}

	after := env.photos(t, id)
	assertSingleCanonical(t, after)
	for i := range before {
		if thumbName(before[i]) != thumbName(after[i]) {
			t.Fatalf("photo %d thumb changed from %q to %q", before[i].ID, thumbName(before[i]), thumbName(after[i]))
		}
	}
}

func TestReconcileMovesCanonicalWhenOrderChanges(t *testing.T) {
	env := newTestEnv(t)
	id := env.routeWithPhotos(t,
		upload{"a.png", solidPNG(t, 40, 30, red)},
		upload{"b.png", solidPNG(t, 40, 30, green)},
		upload{"c.png", solidPNG(t, 40, 30, blue)},
	)
	photos := env.photos(t, id)

	// move C to the front
	if err := env.db.Model(&models.RoutePhoto{}).Where("id = ?", photos[2].ID).Update("sort_order", -1).Error; err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if err := NewReconciler(env.store, env.routes.thumbs).Reconcile(env.db, id); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	after := env.photos(t, id)
	if after[0].ID != photos[2].ID {
		t.Fatalf("expected photo %d first, got %d", photos[2].ID, after[0].ID)
	}
	assertSingleCanonical(t, after)
	if got := dominant(env.canonicalColor(t, id)); got != "blue" {
		t.Fatalf("canonical thumbnail rendered from %s photo, want blue", got)
	}

	demoted := after[1]
	if demoted.ID != photos[0].ID {
		t.Fatalf("expected former first photo second, got %d", demoted.ID)
	}
	if !strings.HasPrefix(thumbName(demoted), "t_") || !env.store.ThumbnailExists(id, thumbName(demoted)) {
		t.Fatalf("demoted photo has thumb %q", thumbName(demoted))
	}
	// the old opaque thumbnail of the new first photo is gone
	if env.store.ThumbnailExists(id, thumbName(photos[2])) {
		t.Fatalf("stale thumbnail %s still on disk", thumbName(photos[2]))
	}
}

func TestReconcileRepairsMisplacedOwners(t *testing.T) {
	env := newTestEnv(t)
	id := env.routeWithPhotos(t,
		upload{"a.png", solidPNG(t, 40, 30, red)},
		upload{"b.png", solidPNG(t, 40, 30, green)},
		upload{"c.png", solidPNG(t, 40, 30, blue)},
	)
	photos := env.photos(t, id)

	// corrupt: every photo claims the canonical name, C's original is gone
	if err := env.db.Model(&models.RoutePhoto{}).Where("route_id = ?", id).
		Update("thumb_name", storage.CanonicalThumbnailName).Error; err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	env.store.DeleteOriginal(id, photos[2].FileName)

	if err := NewReconciler(env.store, env.routes.thumbs).Reconcile(env.db, id); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	after := env.photos(t, id)
	assertSingleCanonical(t, after)
	if name := thumbName(after[1]); !strings.HasPrefix(name, "t_") || !env.store.ThumbnailExists(id, name) {
		t.Fatalf("photo B thumb %q not regenerated", name)
	}
	if after[2].ThumbName != nil {
		t.Fatalf("photo C without original should have no thumbnail, got %q", *after[2].ThumbName)
	}
	if got := dominant(env.canonicalColor(t, id)); got != "red" {
		t.Fatalf("canonical thumbnail rendered from %s photo, want red", got)
	}
}

func TestReconcileLeavesFirstAloneWhenOriginalMissing(t *testing.T) {
	env := newTestEnv(t)
	id := env.routeWithPhotos(t, upload{"a.png", solidPNG(t, 40, 30, red)})
	first := env.photos(t, id)[0]

	env.store.DeleteOriginal(id, first.FileName)
	if err := env.db.Model(&models.RoutePhoto{}).Where("id = ?", first.ID).Update("thumb_name", "t_old.jpg").Error; err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := NewReconciler(env.store, env.routes.thumbs).Reconcile(env.db, id); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got := thumbName(env.photos(t, id)[0]); got != "t_old.jpg" {
		t.Fatalf("first photo thumb = %q, want it untouched", got)
	}
}

func TestReconcileWithoutPhotosRemovesCanonical(t *testing.T) {
	env := newTestEnv(t)
	id := env.routeWithPhotos(t)
	if err := env.store.SaveThumbnail(id, []byte("stale"), storage.CanonicalThumbnailName); err != nil {
		t.Fatalf("seed canonical: %v", err)
	}

	if err := NewReconciler(env.store, env.routes.thumbs).Reconcile(env.db, id); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if env.store.ThumbnailExists(id, storage.CanonicalThumbnailName) {
		t.Fatalf("canonical thumbnail should be removed")
	}
}
