package httprender

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"odontolegal/internal/platform/httpclient"
	"odontolegal/internal/ports/render"
)

var ErrEmptyArtifact = errors.New("renderer returned no url")

const renderPath = "/v1/documents"

// Renderer delega la generación del documento a un servicio HTTP externo.
type Renderer struct {
	client *httpclient.Client
}

func New(client *httpclient.Client) *Renderer {
	return &Renderer{client: client}
}

func (r *Renderer) Render(ctx context.Context, doc render.Document) (render.Artifact, error) {
	var out render.Artifact
	if err := r.client.PostJSON(ctx, renderPath, doc, &out); err != nil {
		return render.Artifact{}, fmt.Errorf("render report %s: %w", doc.ReportID, err)
	}
	if strings.TrimSpace(out.URL) == "" {
		return render.Artifact{}, fmt.Errorf("render report %s: %w", doc.ReportID, ErrEmptyArtifact)
	}
	return out, nil
}
