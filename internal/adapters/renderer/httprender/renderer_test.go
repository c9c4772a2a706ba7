package httprender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odontolegal/internal/platform/httpclient"
	"odontolegal/internal/ports/render"
)

func TestRender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, renderPath, r.URL.Path)
		var doc render.Document
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		if doc.ReportID == "empty" {
			_ = json.NewEncoder(w).Encode(render.Artifact{})
			return
		}
		_ = json.NewEncoder(w).Encode(render.Artifact{URL: "https://docs.local/" + doc.ReportID + ".pdf"})
	}))
	defer srv.Close()

	c, err := httpclient.New(srv.URL)
	require.NoError(t, err)
	r := New(c)

	art, err := r.Render(context.Background(), render.Document{ReportID: "r1", Title: "Laudo"})
	require.NoError(t, err)
	assert.Equal(t, "https://docs.local/r1.pdf", art.URL)

	_, err = r.Render(context.Background(), render.Document{ReportID: "empty"})
	assert.ErrorIs(t, err, ErrEmptyArtifact)
}
