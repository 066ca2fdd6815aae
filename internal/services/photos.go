package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNotImage      = errors.New("please upload an image file")
	ErrPhotoTooLarge = errors.New("image file too large")
)

// PhotoStore persists uploaded bootcamp photos under a name.
type PhotoStore interface {
	Save(name string, src io.Reader) error
}

type DiskPhotoStore struct {
	dir string
}

func NewDiskPhotoStore(dir string) *DiskPhotoStore {
	return &DiskPhotoStore{dir: dir}
}

// Save writes src to dir/name via a temporary file and rename.
func (s *DiskPhotoStore) Save(name string, src io.Reader) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("move upload: %w", err)
	}
	return nil
}

// CheckPhoto sniffs the leading bytes of an upload and enforces the size cap.
func CheckPhoto(head []byte, size, max int64) error {
	if !strings.HasPrefix(mimetype.Detect(head).String(), "image/") {
		return ErrNotImage
	}
	if max > 0 && size > max {
		return ErrPhotoTooLarge
	}
	return nil
}

// PhotoName derives the stored file name from the bootcamp id and the
// original file's extension.
func PhotoName(bootcampID, original string) string {
	return "photo_" + bootcampID + strings.ToLower(filepath.Ext(original))
}
