package files

import (
	"context"
	"io"
)

// Upload es un archivo recibido que todavía no fue persistido.
type Upload struct {
	OriginalName string
	MimeType     string
	SizeBytes    int64
	Body         io.Reader
}

// Stored es lo que devuelve el store tras guardar un Upload.
type Stored struct {
	Filename    string // nombre generado
	StoragePath string // opaco: ruta local o gs://bucket/objeto
}

// Store persiste archivos de evidencias. Las implementaciones viven en
// adapters/files (disco local, Google Cloud Storage).
type Store interface {
	Save(ctx context.Context, u Upload) (Stored, error)
	Delete(ctx context.Context, storagePath string) error
}
