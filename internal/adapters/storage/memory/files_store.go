package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/ports/files"
)

// FileStore guarda archivos en memoria bajo mem://<nombre>. Modo dev y tests.
type FileStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewFileStore() *FileStore {
	return &FileStore{blobs: make(map[string][]byte)}
}

func (s *FileStore) Save(ctx context.Context, u files.Upload) (files.Stored, error) {
	b, err := io.ReadAll(u.Body)
	if err != nil {
		return files.Stored{}, fmt.Errorf("memory file store: read: %w", err)
	}
	name := uuid.NewString() + strings.ToLower(path.Ext(u.OriginalName))
	p := "mem://" + name

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[p] = b
	return files.Stored{Filename: name, StoragePath: p}, nil
}

func (s *FileStore) Delete(ctx context.Context, storagePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, storagePath)
	return nil
}

// Open devuelve el contenido guardado.
func (s *FileStore) Open(storagePath string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[storagePath]
	if !ok {
		return nil, apperr.NotFound("file %s", storagePath)
	}
	return bytes.Clone(b), nil
}

func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
