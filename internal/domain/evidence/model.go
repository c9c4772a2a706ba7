package evidence

import "time"

// FileRef referencia un archivo ya guardado. StoragePath es opaco para el dominio.
type FileRef struct {
	Filename     string
	OriginalName string
	StoragePath  string
	MimeType     string
	SizeBytes    int64
	UploadedAt   time.Time
}

type Evidence struct {
	ID          string
	CaseID      string
	Type        Type
	Title       string
	Description string
	Category    Category
	Files       []FileRef
	Metadata    map[string]string

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
