package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/korawit-s/thriftmarket/internal/apperr"
)

const maxFileSize = 10 << 20 // 10 MiB

var allowedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

type Store struct {
	Dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: create dir %s: %w", dir, err)
	}
	return &Store{Dir: dir}, nil
}

// SaveImage writes an uploaded image under the store dir with a random
// filename and returns the public /uploads path for the stored file.
func (s *Store) SaveImage(file *multipart.FileHeader) (string, error) {
	if file.Size > maxFileSize {
		return "", apperr.E(apperr.ErrValidation, "file %s exceeds size limit", file.Filename)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExts[ext] {
		return "", apperr.E(apperr.ErrValidation, "unsupported file type %s", ext)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("upload: open %s: %w", file.Filename, err)
	}
	defer src.Close()

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return "", fmt.Errorf("upload: create %s: %w", name, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("upload: write %s: %w", name, err)
	}

	return "/uploads/" + name, nil
}
