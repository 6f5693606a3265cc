// Package upload stores uploaded files on disk and hands back the URL path
// they are served from.
package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hfurst/taskpay/internal/apperr"
)

// Kinds partition the upload directory. Task attachments and proof files
// live apart from profile images so they can be listed and pruned separately.
const (
	KindAttachment = "attachments"
	KindProof      = "userFiles"
	KindImage      = "images"
)

// MaxFileSize caps a single upload at 8 MiB.
const MaxFileSize = 8 << 20

var allowedExtensions = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".txt": true, ".csv": true, ".doc": true, ".docx": true,
	".xls": true, ".xlsx": true, ".zip": true,
}

// Store writes uploads beneath a single base directory.
type Store struct {
	baseDir string
}

// NewStore creates the base directory and one subdirectory per kind.
func NewStore(baseDir string) (*Store, error) {
	for _, kind := range []string{KindAttachment, KindProof, KindImage} {
		if err := os.MkdirAll(filepath.Join(baseDir, kind), 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &Store{baseDir: baseDir}, nil
}

// BaseDir returns the directory the store writes into.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Save writes the file under a random name, keeping only the original
// extension, and returns the URL path it will be served at.
func (s *Store) Save(kind, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", apperr.Validation(fmt.Sprintf("file type %q is not allowed", ext))
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.baseDir, kind, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	// Read one byte past the cap so an oversize upload is detected instead
	// of being truncated to MaxFileSize and stored corrupt.
	n, err := io.Copy(f, io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	if n > MaxFileSize {
		os.Remove(path)
		return "", apperr.Validation("file exceeds the 8 MiB size limit")
	}
	return "/uploads/" + kind + "/" + name, nil
}
