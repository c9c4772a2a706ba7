package reports

import (
	"strings"
	"time"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/audit"
)

// Edit es una edición de contenido pendiente de aplicar.
type Edit struct {
	Title       *string
	Content     *Content
	Attachments []Attachment // nil = no tocar
	Comments    string
}

// BeginEdit captura el contenido previo y la versión vigente.
func BeginEdit(r Report) VersionSnapshot {
	return VersionSnapshot{
		Content: cloneContent(r.Content),
		Version: r.Version,
	}
}

// CommitEdit aplica una edición sobre r: guarda el snapshot previo, reemplaza
// el contenido e incrementa la versión. Un laudo finalizado no se edita.
// Tiene que correr dentro del update atómico del store.
func CommitEdit(r Report, edit Edit, editor audit.UserRef, now time.Time) (Report, error) {
	if r.Status == StatusFinalized {
		return Report{}, apperr.InvalidState("report %s is finalized", r.ID)
	}
	if edit.Title != nil && strings.TrimSpace(*edit.Title) == "" {
		return Report{}, apperr.Validation("title cannot be empty")
	}
	if edit.Content != nil {
		if err := edit.Content.validate(); err != nil {
			return Report{}, err
		}
	}

	snap := BeginEdit(r)
	snap.ModifiedBy = editor
	snap.ModifiedAt = now
	snap.Comments = strings.TrimSpace(edit.Comments)

	next := r
	next.PreviousVersions = append(append([]VersionSnapshot(nil), r.PreviousVersions...), snap)
	if edit.Title != nil {
		next.Title = strings.TrimSpace(*edit.Title)
	}
	if edit.Content != nil {
		next.Content = cloneContent(*edit.Content)
	}
	if edit.Attachments != nil {
		next.Attachments = append([]Attachment(nil), edit.Attachments...)
	}
	next.Version = r.Version + 1
	next.UpdatedAt = now
	return next, nil
}

func cloneContent(c Content) Content {
	c.References = append([]string(nil), c.References...)
	return c
}
