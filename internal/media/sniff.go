package media

import "github.com/gabriel-vasile/mimetype"

// allowed maps the detected MIME type of an accepted photo to the extension
// it is stored under.
var allowed = []struct {
	mime string
	ext  string
}{
	{"image/jpeg", "jpg"},
	{"image/png", "png"},
	{"image/webp", "webp"},
}

// SniffExtension detects the image type from the bytes themselves and returns
// the storage extension for it. The client-supplied filename and Content-Type
// are never consulted. ok is false for anything outside jpeg/png/webp.
func SniffExtension(blob []byte) (ext string, ok bool) {
	mt := mimetype.Detect(blob)
	for _, a := range allowed {
		if mt.Is(a.mime) {
			return a.ext, true
		}
	}
	return "", false
}
