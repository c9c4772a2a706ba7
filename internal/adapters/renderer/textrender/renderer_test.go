package textrender

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odontolegal/internal/ports/files"
	"odontolegal/internal/ports/render"
)

type captureStore struct {
	name, body string
}

func (s *captureStore) Save(ctx context.Context, u files.Upload) (files.Stored, error) {
	b, err := io.ReadAll(u.Body)
	if err != nil {
		return files.Stored{}, err
	}
	s.name, s.body = u.OriginalName, string(b)
	return files.Stored{Filename: "f1", StoragePath: "exports/f1"}, nil
}

func (s *captureStore) Delete(ctx context.Context, path string) error { return nil }

func TestRender_StoresPlainText(t *testing.T) {
	st := &captureStore{}
	art, err := New(st).Render(context.Background(), render.Document{
		ReportID: "r1",
		CaseID:   "c1",
		Title:    "Laudo odontolegal",
		Version:  3,
		Sections: []render.Section{
			{Heading: "Conclusión", Body: "Compatible."},
		},
		References: []string{"Ref A"},
		Author:     "u1",
	})
	require.NoError(t, err)

	assert.Equal(t, "exports/f1", art.URL)
	assert.Equal(t, "laudo-r1-v3.txt", st.name)
	assert.Contains(t, st.body, "LAUDO ODONTOLEGAL")
	assert.Contains(t, st.body, "Conclusión\n----------\nCompatible.")
	assert.Contains(t, st.body, "1. Ref A")
}
