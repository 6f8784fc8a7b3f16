package services

import (
	"errors"
	"strings"
)

var (
	ErrNotFound             = errors.New("route not found")
	ErrForbidden            = errors.New("you do not have permission to change this route")
	ErrTooManyPhotos        = errors.New("too many photos for one route (delete some before adding more)")
	ErrUnsupportedMediaType = errors.New("unsupported image format (jpg/png/webp only)")
	ErrUploadTransport      = errors.New("a photo failed to upload")
	ErrUploadIntegrity      = errors.New("an invalid upload was detected")
)

// ValidationError lists every field violation of a submission.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "\n")
}
