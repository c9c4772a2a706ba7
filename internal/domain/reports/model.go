package reports

import (
	"strings"
	"time"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/audit"
)

type Content struct {
	Introduction string
	Methodology  string
	Analysis     string
	Conclusion   string
	References   []string
}

func (c Content) validate() error {
	switch {
	case strings.TrimSpace(c.Introduction) == "":
		return apperr.Validation("content.introduction is required")
	case strings.TrimSpace(c.Methodology) == "":
		return apperr.Validation("content.methodology is required")
	case strings.TrimSpace(c.Analysis) == "":
		return apperr.Validation("content.analysis is required")
	case strings.TrimSpace(c.Conclusion) == "":
		return apperr.Validation("content.conclusion is required")
	}
	return nil
}

// Attachment referencia una evidencia citada en el laudo.
type Attachment struct {
	EvidenceID  string
	Description string
	Page        int
}

// VersionSnapshot guarda el contenido tal como estaba antes de una edición.
type VersionSnapshot struct {
	Content    Content
	ModifiedBy audit.UserRef
	ModifiedAt time.Time
	Version    int
	Comments   string
}

type Report struct {
	ID          string
	CaseID      string
	Title       string
	Template    Template
	Content     Content
	Attachments []Attachment
	Status      Status

	// Version arranca en 1; PreviousVersions tiene Version-1 snapshots.
	Version          int
	PreviousVersions []VersionSnapshot

	CreatedBy  string
	ReviewedBy string
	ReviewDate *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
