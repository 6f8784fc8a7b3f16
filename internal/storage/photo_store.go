// Package storage owns the on-disk layout of route photos:
//
//	<root>/routes/<routeID>/<original>
//	<root>/routes/<routeID>/thumbs/<thumbnail>
//
// No other package builds these paths.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// CanonicalThumbnailName marks the representative thumbnail of a route. It is
// only ever held by the route's first photo.
const CanonicalThumbnailName = "thumb.jpg"

const (
	thumbDirName    = "thumbs"
	thumbNamePrefix = "t_"
	thumbExt        = ".jpg"
)

var (
	ErrStorageUnavailable = errors.New("photo storage unavailable")
	ErrInvalidName        = errors.New("invalid stored file name")
)

type PhotoStore struct {
	root string
}

func NewPhotoStore(root string) *PhotoStore {
	return &PhotoStore{root: root}
}

// Root is the directory served under /uploads.
func (s *PhotoStore) Root() string {
	return s.root
}

// RouteDir is the directory holding a route's original images.
func (s *PhotoStore) RouteDir(routeID uint) string {
	return filepath.Join(s.root, "routes", strconv.FormatUint(uint64(routeID), 10))
}

// ThumbnailDir is the thumbnail subdirectory of RouteDir.
func (s *PhotoStore) ThumbnailDir(routeID uint) string {
	return filepath.Join(s.RouteDir(routeID), thumbDirName)
}

func (s *PhotoStore) OriginalPath(routeID uint, name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.RouteDir(routeID), name), nil
}

func (s *PhotoStore) ThumbnailPath(routeID uint, name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.ThumbnailDir(routeID), name), nil
}

// checkName accepts a single path element only.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// EnsureRouteDirectories creates the route directory and its thumbnail
// subdirectory. A failed create is tolerated when the directory exists
// afterwards (another request created it).
func (s *PhotoStore) EnsureRouteDirectories(routeID uint) error {
	for _, dir := range []string{s.RouteDir(routeID), s.ThumbnailDir(routeID)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
				return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, dir, err)
			}
		}
	}
	return nil
}

// SaveOriginal stores blob under a fresh opaque name and returns that name.
// Names carry 128 random bits and are not checked for collisions.
func (s *PhotoStore) SaveOriginal(routeID uint, blob []byte, ext string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	name := token + "." + ext
	path, err := s.OriginalPath(routeID, name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return "", fmt.Errorf("save original: %w", err)
	}
	return name, nil
}

// NewThumbnailName returns a fresh opaque thumbnail name. The prefix keeps it
// from ever equalling CanonicalThumbnailName.
func (s *PhotoStore) NewThumbnailName() (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	return thumbNamePrefix + token + thumbExt, nil
}

// SaveThumbnail writes blob under name, replacing any existing file. The
// write goes to a temporary file that is renamed into place.
func (s *PhotoStore) SaveThumbnail(routeID uint, blob []byte, name string) error {
	path, err := s.ThumbnailPath(routeID, name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("save thumbnail: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("save thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("save thumbnail: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("save thumbnail: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("save thumbnail: %w", err)
	}
	return nil
}

func (s *PhotoStore) ReadOriginal(routeID uint, name string) ([]byte, error) {
	path, err := s.OriginalPath(routeID, name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (s *PhotoStore) OriginalExists(routeID uint, name string) bool {
	path, err := s.OriginalPath(routeID, name)
	if err != nil {
		return false
	}
	return isFile(path)
}

func (s *PhotoStore) ThumbnailExists(routeID uint, name string) bool {
	path, err := s.ThumbnailPath(routeID, name)
	if err != nil {
		return false
	}
	return isFile(path)
}

// DeleteOriginal removes an original image. Best-effort: failures are logged
// and never returned.
func (s *PhotoStore) DeleteOriginal(routeID uint, name string) {
	path, err := s.OriginalPath(routeID, name)
	if err != nil {
		logrus.WithError(err).WithField("route_id", routeID).Warn("PhotoStore: skip delete of original")
		return
	}
	removeBestEffort(path)
}

// DeleteThumbnail removes a thumbnail. Best-effort, like DeleteOriginal.
func (s *PhotoStore) DeleteThumbnail(routeID uint, name string) {
	path, err := s.ThumbnailPath(routeID, name)
	if err != nil {
		logrus.WithError(err).WithField("route_id", routeID).Warn("PhotoStore: skip delete of thumbnail")
		return
	}
	removeBestEffort(path)
}

// RemoveRoute deletes the route's whole directory tree. Best-effort.
func (s *PhotoStore) RemoveRoute(routeID uint) {
	dir := s.RouteDir(routeID)
	if err := os.RemoveAll(dir); err != nil {
		logrus.WithError(err).WithField("dir", dir).Warn("PhotoStore: failed to remove route directory")
	}
}

func removeBestEffort(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).WithField("path", path).Warn("PhotoStore: failed to remove file")
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
