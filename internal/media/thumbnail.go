package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var (
	ErrImageDecode     = errors.New("image could not be decoded")
	ErrThumbnailEncode = errors.New("thumbnail could not be encoded")
)

var decodable = map[string]bool{
	"jpeg": true,
	"png":  true,
	"webp": true,
}

// DefaultMaxPixels caps the decoded size of a source image at about 50 MP.
const DefaultMaxPixels = 50_000_000

// Thumbnailer renders bounded-size JPEG thumbnails.
type Thumbnailer struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
	// MaxPixels rejects sources whose header declares more pixels than
	// this before any pixel data is decoded. Zero means DefaultMaxPixels.
	MaxPixels int64
}

// NewThumbnailer returns a Thumbnailer for the given box and JPEG quality.
func NewThumbnailer(maxWidth, maxHeight, quality int) *Thumbnailer {
	return &Thumbnailer{MaxWidth: maxWidth, MaxHeight: maxHeight, Quality: quality, MaxPixels: DefaultMaxPixels}
}

// DefaultThumbnailer fits into 360x270 at quality 82.
func DefaultThumbnailer() *Thumbnailer {
	return NewThumbnailer(360, 270, 82)
}

// Generate decodes src, scales it down to fit the box (never up), flattens it
// onto white and encodes it as JPEG. The output format does not depend on the
// input format.
func (t *Thumbnailer) Generate(src []byte) ([]byte, error) {
	if err := t.checkDimensions(src); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if !decodable[format] {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrImageDecode, format)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrImageDecode)
	}

	w, h := FitDimensions(b.Dx(), b.Dy(), t.MaxWidth, t.MaxHeight)

	resized := imaging.Resize(img, w, h, imaging.Linear)
	canvas := imaging.New(w, h, color.White)
	canvas = imaging.Overlay(canvas, resized, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(t.Quality)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrThumbnailEncode, err)
	}
	return buf.Bytes(), nil
}

// checkDimensions reads only the image header, so a small file that declares
// a huge canvas is refused before the decoder allocates for it.
func (t *Thumbnailer) checkDimensions(src []byte) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if !decodable[format] {
		return fmt.Errorf("%w: unsupported format %q", ErrImageDecode, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: empty image", ErrImageDecode)
	}

	limit := t.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if int64(cfg.Width)*int64(cfg.Height) > limit {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageDecode, cfg.Width, cfg.Height, limit)
	}
	return nil
}

// FitDimensions returns max(1, floor(w*scale)) x max(1, floor(h*scale)) with
// scale = min(maxW/w, maxH/h, 1). It is computed in integers so that exact
// ratios such as 1000x750 -> 360x270 do not lose a pixel to float rounding.
func FitDimensions(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}

	w64, h64 := int64(w), int64(h)
	mw, mh := int64(maxW), int64(maxH)

	var nw, nh int64
	if w64*mh >= h64*mw {
		// width is the binding side
		nw = mw
		nh = h64 * mw / w64
	} else {
		nh = mh
		nw = w64 * mh / h64
	}
	return int(max(1, nw)), int(max(1, nh))
}
