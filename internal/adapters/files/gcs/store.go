package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"odontolegal/internal/adapters/files/local"
	"odontolegal/internal/ports/files"
)

// Store guarda archivos de evidencias en un bucket de Google Cloud Storage.
// StoragePath tiene la forma gs://bucket/prefix/nombre.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

type Config struct {
	Bucket string
	Prefix string // opcional, p.ej. "evidence"

	// CredentialsFile vacío = Application Default Credentials.
	CredentialsFile string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("gcs store: bucket required")
	}

	var opts []option.ClientOption
	if f := strings.TrimSpace(cfg.CredentialsFile); f != "" {
		opts = append(opts, option.WithCredentialsFile(f))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs store: new client: %w", err)
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *Store) Save(ctx context.Context, u files.Upload) (files.Stored, error) {
	name := local.GeneratedName(u.OriginalName)
	object := s.objectName(name)

	w := s.client.Bucket(s.bucket).Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = u.MimeType
	w.Metadata = map[string]string{"original_name": u.OriginalName}

	if _, err := io.Copy(w, u.Body); err != nil {
		_ = w.Close()
		return files.Stored{}, fmt.Errorf("gcs store: upload %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return files.Stored{}, fmt.Errorf("gcs store: finalize %s: %w", object, err)
	}
	return files.Stored{Filename: name, StoragePath: "gs://" + s.bucket + "/" + object}, nil
}

// Delete ignora objetos inexistentes.
func (s *Store) Delete(ctx context.Context, storagePath string) error {
	bucket, object, err := ParsePath(storagePath)
	if err != nil {
		return err
	}
	if bucket != s.bucket {
		return fmt.Errorf("gcs store: path %q belongs to bucket %s", storagePath, bucket)
	}
	err = s.client.Bucket(bucket).Object(object).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs store: delete %s: %w", object, err)
	}
	return nil
}

// ParsePath separa gs://bucket/objeto.
func ParsePath(p string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(p), "gs://")
	if !ok {
		return "", "", fmt.Errorf("gcs store: invalid path %q", p)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gcs store: invalid path %q", p)
	}
	return bucket, object, nil
}
