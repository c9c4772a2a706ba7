package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odontolegal/internal/ports/files"
)

func TestStore_SaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	st, err := s.Save(ctx, files.Upload{
		OriginalName: "Panoramica.JPG",
		MimeType:     "image/jpeg",
		SizeBytes:    4,
		Body:         strings.NewReader("data"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(st.Filename, ".jpg"))
	assert.Equal(t, filepath.Join(dir, st.Filename), st.StoragePath)

	b, err := os.ReadFile(st.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, "data", string(b))

	require.NoError(t, s.Delete(ctx, st.StoragePath))
	_, err = os.Stat(st.StoragePath)
	assert.ErrorIs(t, err, os.ErrNotExist)

	// borrar dos veces no falla
	require.NoError(t, s.Delete(ctx, st.StoragePath))
}

func TestStore_DeleteOutsideDir(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.Delete(context.Background(), "/etc/passwd"))
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New(" ")
	assert.Error(t, err)
}
