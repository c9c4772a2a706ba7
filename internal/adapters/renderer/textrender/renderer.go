package textrender

import (
	"context"
	"fmt"
	"strings"

	"odontolegal/internal/ports/files"
	"odontolegal/internal/ports/render"
)

// Renderer arma una versión en texto plano del laudo y la guarda en el
// file store. Se usa cuando no hay renderer externo configurado.
type Renderer struct {
	store files.Store
}

func New(store files.Store) *Renderer {
	return &Renderer{store: store}
}

func (r *Renderer) Render(ctx context.Context, doc render.Document) (render.Artifact, error) {
	body := Format(doc)
	stored, err := r.store.Save(ctx, files.Upload{
		OriginalName: fmt.Sprintf("laudo-%s-v%d.txt", doc.ReportID, doc.Version),
		MimeType:     "text/plain",
		SizeBytes:    int64(len(body)),
		Body:         strings.NewReader(body),
	})
	if err != nil {
		return render.Artifact{}, fmt.Errorf("render report %s: %w", doc.ReportID, err)
	}
	return render.Artifact{URL: stored.StoragePath}, nil
}

func Format(doc render.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", strings.ToUpper(doc.Title))
	fmt.Fprintf(&b, "Caso: %s | Laudo: %s | Versión: %d | Modelo: %s\n", doc.CaseID, doc.ReportID, doc.Version, doc.Template)
	fmt.Fprintf(&b, "Autor: %s\n", doc.Author)
	if doc.Reviewer != "" {
		fmt.Fprintf(&b, "Revisor: %s\n", doc.Reviewer)
	}
	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "\n%s\n%s\n%s\n", s.Heading, strings.Repeat("-", len([]rune(s.Heading))), s.Body)
	}
	if len(doc.References) > 0 {
		b.WriteString("\nReferencias\n")
		for i, ref := range doc.References {
			fmt.Fprintf(&b, "%d. %s\n", i+1, ref)
		}
	}
	return b.String()
}
