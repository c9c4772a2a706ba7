package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"odontolegal/internal/ports/files"
)

// Store guarda archivos en un directorio local con nombre generado
// (uuid + extensión original).
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("local store: directory required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Save(ctx context.Context, u files.Upload) (files.Stored, error) {
	if err := ctx.Err(); err != nil {
		return files.Stored{}, err
	}
	name := GeneratedName(u.OriginalName)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return files.Stored{}, fmt.Errorf("local store: create %s: %w", name, err)
	}
	if _, err := io.Copy(f, u.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return files.Stored{}, fmt.Errorf("local store: write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return files.Stored{}, fmt.Errorf("local store: close %s: %w", name, err)
	}
	return files.Stored{Filename: name, StoragePath: path}, nil
}

// Delete ignora archivos inexistentes. Rechaza rutas fuera del directorio.
func (s *Store) Delete(ctx context.Context, storagePath string) error {
	rel, err := filepath.Rel(s.dir, filepath.Clean(storagePath))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("local store: path %q outside of %s", storagePath, s.dir)
	}
	if err := os.Remove(filepath.Join(s.dir, rel)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("local store: delete: %w", err)
	}
	return nil
}

// GeneratedName devuelve uuid + extensión (en minúsculas) del nombre original.
func GeneratedName(original string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	return uuid.NewString() + ext
}
