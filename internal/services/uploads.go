package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// UploadStatus is the transport outcome of one file slot of a submission.
type UploadStatus int

const (
	UploadOK UploadStatus = iota
	UploadEmpty
	UploadTooLarge
	UploadFailed
)

func (s UploadStatus) String() string {
	switch s {
	case UploadOK:
		return "ok"
	case UploadEmpty:
		return "empty"
	case UploadTooLarge:
		return "too large"
	default:
		return "failed"
	}
}

// UploadSlot is one entry of the photos[] field.
type UploadSlot struct {
	Status UploadStatus
	File   *multipart.FileHeader
}

// SlotsFromMultipart classifies the file headers parsed from a request.
func SlotsFromMultipart(files []*multipart.FileHeader, maxBytes int64) []UploadSlot {
	slots := make([]UploadSlot, 0, len(files))
	for _, fh := range files {
		switch {
		case fh == nil || (fh.Filename == "" && fh.Size == 0):
			slots = append(slots, UploadSlot{Status: UploadEmpty})
		case maxBytes > 0 && fh.Size > maxBytes:
			slots = append(slots, UploadSlot{Status: UploadTooLarge, File: fh})
		default:
			slots = append(slots, UploadSlot{Status: UploadOK, File: fh})
		}
	}
	return slots
}

// checkIntegrity rejects slots that did not come from a parsed multipart
// body: a missing header or a filename carrying a path.
func checkIntegrity(slot UploadSlot) error {
	fh := slot.File
	if fh == nil {
		return fmt.Errorf("%w: missing file header", ErrUploadIntegrity)
	}
	name := fh.Filename
	if strings.ContainsAny(name, `/\`) || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("%w: forged file name %q", ErrUploadIntegrity, name)
	}
	return nil
}

// readUpload reads the whole part, refusing more than maxBytes.
func readUpload(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadIntegrity, err)
	}
	defer f.Close()

	var r io.Reader = f
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadTransport, err)
	}
	if maxBytes > 0 && int64(len(blob)) > maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrUploadTransport, maxBytes)
	}
	return blob, nil
}
