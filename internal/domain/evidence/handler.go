package evidence

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/audit"
	"odontolegal/internal/platform/httpx"
	"odontolegal/internal/ports/files"

	"github.com/go-chi/chi/v5"
)

// FileField es el campo multipart que trae los archivos.
const FileField = "evidence"

const maxMultipartMemory = 8 << 20

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/evidence", func(er chi.Router) {
		er.Post("/", createEvidenceHandler(svc))
		er.Get("/", listEvidenceHandler(svc))

		er.Get("/{evidenceID}", getEvidenceHandler(svc))
		er.Patch("/{evidenceID}", updateEvidenceHandler(svc))
		er.Delete("/{evidenceID}", deleteEvidenceHandler(svc))
		er.Get("/{evidenceID}/history", historyHandler(svc))
	})
}

type fileResponse struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	StoragePath  string    `json:"storage_path"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// evidenceResponse representa una evidencia devuelta por la API.
type evidenceResponse struct {
	ID          string            `json:"id"`
	CaseID      string            `json:"case_id"`
	Type        Type              `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    Category          `json:"category"`
	Files       []fileResponse    `json:"files"`
	Metadata    map[string]string `json:"metadata"`
	CreatedBy   string            `json:"created_by"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type evidenceDetailResponse struct {
	evidenceResponse
	History []audit.EntryResponse `json:"history"`
}

// createEvidenceHandler godoc
// @Summary Crear evidencia
// @Description Multipart. Hasta 10 archivos de 5 MiB en el campo `evidence` (jpeg, png, gif, pdf, doc, docx). Registra `creation` en la evidencia y `attachment_added` en el caso.
// @Tags evidence
// @Accept multipart/form-data
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario"
// @Param Authorization header string false "Bearer token en producción"
// @Param case_id formData string true "ID del caso"
// @Param type formData string true "image|document|statement|other"
// @Param title formData string true "Título"
// @Param description formData string false "Descripción"
// @Param category formData string false "radiograph|photograph|previous_report|testimony|other"
// @Param metadata formData string false "Objeto JSON string->string"
// @Param evidence formData file false "Archivos"
// @Success 201 {object} evidenceResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse "case not found"
// @Router /evidence [post]
func createEvidenceHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		form, err := parseForm(w, r)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		defer form.close()

		e, err := svc.Create(r.Context(), claims, CreateInput{
			CaseID:      form.value("case_id"),
			Type:        Type(form.value("type")),
			Title:       form.value("title"),
			Description: form.value("description"),
			Category:    Category(form.value("category")),
			Metadata:    form.metadata,
			Files:       form.uploads,
		})
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, toEvidenceResponse(e))
	}
}

// listEvidenceHandler godoc
// @Summary Listar evidencias
// @Description Más recientes primero. Con `case_id` filtra por caso.
// @Tags evidence
// @Produce json
// @Param case_id query string false "ID del caso"
// @Param page query int false "Página (1..)"
// @Param limit query int false "Tamaño de página (1-100, default 10)"
// @Success 200 {object} httpx.ListResponse[evidenceResponse]
// @Router /evidence [get]
func listEvidenceHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.RequireClaims(w, r); !ok {
			return
		}

		page := httpx.ParsePage(r)
		var (
			items []Evidence
			err   error
		)
		if caseID := strings.TrimSpace(r.URL.Query().Get("case_id")); caseID != "" {
			items, err = svc.ListByCase(r.Context(), caseID, page.Offset(), page.Limit)
		} else {
			items, err = svc.List(r.Context(), page.Offset(), page.Limit)
		}
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		out := make([]evidenceResponse, 0, len(items))
		for _, e := range items {
			out = append(out, toEvidenceResponse(e))
		}
		httpx.WriteJSON(w, http.StatusOK, httpx.NewListResponse(out, page))
	}
}

// getEvidenceHandler godoc
// @Summary Ver evidencia
// @Description Registra `view` antes de responder.
// @Tags evidence
// @Produce json
// @Param evidenceID path string true "ID de la evidencia"
// @Success 200 {object} evidenceDetailResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /evidence/{evidenceID} [get]
func getEvidenceHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		d, err := svc.Get(r.Context(), claims, chi.URLParam(r, "evidenceID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, evidenceDetailResponse{
			evidenceResponse: toEvidenceResponse(d.Evidence),
			History:          audit.ToEntryResponses(d.History),
		})
	}
}

// updateEvidenceHandler godoc
// @Summary Editar evidencia
// @Description Multipart. Sólo creador o admin. Los archivos nuevos se agregan a los existentes.
// @Tags evidence
// @Accept multipart/form-data
// @Produce json
// @Param evidenceID path string true "ID de la evidencia"
// @Param title formData string false "Título"
// @Param description formData string false "Descripción"
// @Param type formData string false "Tipo"
// @Param category formData string false "Categoría"
// @Param metadata formData string false "Objeto JSON string->string"
// @Param evidence formData file false "Archivos"
// @Success 200 {object} evidenceResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Router /evidence/{evidenceID} [patch]
func updateEvidenceHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		form, err := parseForm(w, r)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		defer form.close()

		in := UpdateInput{
			Title:       form.optional("title"),
			Description: form.optional("description"),
			Metadata:    form.metadata,
			Files:       form.uploads,
		}
		if v := form.optional("type"); v != nil {
			t := Type(*v)
			in.Type = &t
		}
		if v := form.optional("category"); v != nil {
			c := Category(*v)
			in.Category = &c
		}

		e, err := svc.Update(r.Context(), claims, chi.URLParam(r, "evidenceID"), in)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toEvidenceResponse(e))
	}
}

// deleteEvidenceHandler godoc
// @Summary Borrar evidencia
// @Description Sólo creador o admin. Borra también su historial y sus archivos.
// @Tags evidence
// @Param evidenceID path string true "ID de la evidencia"
// @Success 204
// @Router /evidence/{evidenceID} [delete]
func deleteEvidenceHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), claims, chi.URLParam(r, "evidenceID")); err != nil {
			httpx.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// historyHandler godoc
// @Summary Historial de la evidencia
// @Tags evidence
// @Produce json
// @Param evidenceID path string true "ID de la evidencia"
// @Success 200 {array} audit.EntryResponse
// @Router /evidence/{evidenceID}/history [get]
func historyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.RequireClaims(w, r); !ok {
			return
		}
		entries, err := svc.History(r.Context(), chi.URLParam(r, "evidenceID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, audit.ToEntryResponses(entries))
	}
}

// -------------------------
// multipart
// -------------------------

type uploadForm struct {
	values   map[string][]string
	metadata map[string]string
	uploads  []files.Upload
	open     []multipart.File
}

func parseForm(w http.ResponseWriter, r *http.Request) (*uploadForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFiles*MaxFileSize+(1<<20))
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, apperr.Validation("upload exceeds %d bytes", tooBig.Limit)
		}
		return nil, apperr.Validation("invalid multipart form: %v", err)
	}

	f := &uploadForm{values: r.MultipartForm.Value}

	if raw := strings.TrimSpace(f.value("metadata")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &f.metadata); err != nil {
			return nil, apperr.Validation("metadata must be a JSON object of strings")
		}
	}

	headers := r.MultipartForm.File[FileField]
	if len(headers) > MaxFiles {
		return nil, apperr.Validation("at most %d files per upload", MaxFiles)
	}
	for _, fh := range headers {
		file, err := fh.Open()
		if err != nil {
			f.close()
			return nil, apperr.Validation("cannot read file %q", fh.Filename)
		}
		f.open = append(f.open, file)
		f.uploads = append(f.uploads, files.Upload{
			OriginalName: fh.Filename,
			MimeType:     fh.Header.Get("Content-Type"),
			SizeBytes:    fh.Size,
			Body:         io.Reader(file),
		})
	}
	return f, nil
}

func (f *uploadForm) value(key string) string {
	if v := f.values[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (f *uploadForm) optional(key string) *string {
	v, ok := f.values[key]
	if !ok || len(v) == 0 {
		return nil
	}
	s := strings.TrimSpace(v[0])
	return &s
}

func (f *uploadForm) close() {
	for _, file := range f.open {
		_ = file.Close()
	}
}

func toEvidenceResponse(e Evidence) evidenceResponse {
	fs := make([]fileResponse, 0, len(e.Files))
	for _, f := range e.Files {
		fs = append(fs, fileResponse{
			Filename:     f.Filename,
			OriginalName: f.OriginalName,
			StoragePath:  f.StoragePath,
			MimeType:     f.MimeType,
			SizeBytes:    f.SizeBytes,
			UploadedAt:   f.UploadedAt,
		})
	}
	md := e.Metadata
	if md == nil {
		md = map[string]string{}
	}
	return evidenceResponse{
		ID:          e.ID,
		CaseID:      e.CaseID,
		Type:        e.Type,
		Title:       e.Title,
		Description: e.Description,
		Category:    e.Category,
		Files:       fs,
		Metadata:    md,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
