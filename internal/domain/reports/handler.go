package reports

import (
	"net/http"
	"strings"
	"time"

	"odontolegal/internal/domain/audit"
	"odontolegal/internal/platform/httpx"
	"odontolegal/internal/ports/render"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/reports", func(rr chi.Router) {
		rr.Post("/", createReportHandler(svc))
		rr.Get("/", listReportsHandler(svc))

		rr.Get("/{reportID}", getReportHandler(svc))
		rr.Patch("/{reportID}", updateReportHandler(svc))

		rr.Post("/{reportID}/review", submitForReviewHandler(svc))
		rr.Post("/{reportID}/finalize", finalizeReportHandler(svc))
		rr.Post("/{reportID}/export", exportReportHandler(svc))

		rr.Get("/{reportID}/versions", versionsHandler(svc))
		rr.Get("/{reportID}/history", historyHandler(svc))
	})
}

type contentPayload struct {
	Introduction string   `json:"introduction"`
	Methodology  string   `json:"methodology"`
	Analysis     string   `json:"analysis"`
	Conclusion   string   `json:"conclusion"`
	References   []string `json:"references"`
}

type attachmentPayload struct {
	EvidenceID  string `json:"evidence_id"`
	Description string `json:"description"`
	Page        int    `json:"page"`
}

// createReportRequest es el cuerpo para crear un laudo en borrador.
type createReportRequest struct {
	CaseID      string              `json:"case_id"`
	Title       string              `json:"title"`
	Template    Template            `json:"template" enums:"identification,age,trauma,general"`
	Content     contentPayload      `json:"content"`
	Attachments []attachmentPayload `json:"attachments"`
}

// updateReportRequest: cada llamada genera una versión nueva.
type updateReportRequest struct {
	Title           *string             `json:"title"`
	Content         *contentPayload     `json:"content"`
	Attachments     []attachmentPayload `json:"attachments"`
	VersionComments string              `json:"version_comments"`
}

type reportResponse struct {
	ID          string              `json:"id"`
	CaseID      string              `json:"case_id"`
	Title       string              `json:"title"`
	Template    Template            `json:"template"`
	Content     contentPayload      `json:"content"`
	Attachments []attachmentPayload `json:"attachments"`
	Status      Status              `json:"status"`
	Version     int                 `json:"version"`
	CreatedBy   string              `json:"created_by"`
	ReviewedBy  string              `json:"reviewed_by,omitempty"`
	ReviewDate  *time.Time          `json:"review_date,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type reportDetailResponse struct {
	reportResponse
	History []audit.EntryResponse `json:"history"`
}

type versionResponse struct {
	Version    int                   `json:"version"`
	Content    contentPayload        `json:"content"`
	ModifiedBy audit.UserRefResponse `json:"modified_by"`
	ModifiedAt time.Time             `json:"modified_at"`
	Comments   string                `json:"comments,omitempty"`
}

// createReportHandler godoc
// @Summary Crear laudo
// @Description Crea un laudo en `draft`, versión 1. Registra `creation` en el laudo y `attachment_added` en el caso.
// @Tags reports
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createReportRequest true "Datos del laudo"
// @Success 201 {object} reportResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse "case not found"
// @Router /reports [post]
func createReportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		var req createReportRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}

		rep, err := svc.Create(r.Context(), claims, CreateInput{
			CaseID:      req.CaseID,
			Title:       req.Title,
			Template:    req.Template,
			Content:     req.Content.toContent(),
			Attachments: toAttachments(req.Attachments),
		})
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, toReportResponse(rep))
	}
}

// listReportsHandler godoc
// @Summary Listar laudos
// @Tags reports
// @Produce json
// @Param case_id query string false "ID del caso"
// @Param page query int false "Página (1..)"
// @Param limit query int false "Tamaño de página (1-100, default 10)"
// @Success 200 {object} httpx.ListResponse[reportResponse]
// @Router /reports [get]
func listReportsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.RequireClaims(w, r); !ok {
			return
		}

		page := httpx.ParsePage(r)
		items, err := svc.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("case_id")), page.Offset(), page.Limit)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		out := make([]reportResponse, 0, len(items))
		for _, rep := range items {
			out = append(out, toReportResponse(rep))
		}
		httpx.WriteJSON(w, http.StatusOK, httpx.NewListResponse(out, page))
	}
}

// getReportHandler godoc
// @Summary Ver laudo
// @Description Registra `view` antes de responder.
// @Tags reports
// @Produce json
// @Param reportID path string true "ID del laudo"
// @Success 200 {object} reportDetailResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /reports/{reportID} [get]
func getReportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		d, err := svc.Get(r.Context(), claims, chi.URLParam(r, "reportID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, reportDetailResponse{
			reportResponse: toReportResponse(d.Report),
			History:        audit.ToEntryResponses(d.History),
		})
	}
}

// updateReportHandler godoc
// @Summary Editar laudo
// @Description Creador, admin o perito. Guarda el contenido previo como snapshot e incrementa la versión. Laudos finalizados => 409.
// @Tags reports
// @Accept json
// @Produce json
// @Param reportID path string true "ID del laudo"
// @Param payload body updateReportRequest true "Cambios"
// @Success 200 {object} reportResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse "report is finalized"
// @Router /reports/{reportID} [patch]
func updateReportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		var req updateReportRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}

		edit := Edit{
			Title:       req.Title,
			Attachments: toAttachments(req.Attachments),
			Comments:    req.VersionComments,
		}
		if req.Content != nil {
			c := req.Content.toContent()
			edit.Content = &c
		}

		rep, err := svc.Update(r.Context(), claims, chi.URLParam(r, "reportID"), edit)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toReportResponse(rep))
	}
}

// submitForReviewHandler godoc
// @Summary Enviar laudo a revisión
// @Tags reports
// @Produce json
// @Param reportID path string true "ID del laudo"
// @Success 200 {object} reportResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /reports/{reportID}/review [post]
func submitForReviewHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}
		rep, err := svc.SubmitForReview(r.Context(), claims, chi.URLParam(r, "reportID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toReportResponse(rep))
	}
}

// finalizeReportHandler godoc
// @Summary Finalizar laudo
// @Description Sólo admin o perito. Un laudo finalizado no admite más ediciones.
// @Tags reports
// @Produce json
// @Param reportID path string true "ID del laudo"
// @Success 200 {object} reportResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse "already finalized"
// @Router /reports/{reportID}/finalize [post]
func finalizeReportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}
		rep, err := svc.Finalize(r.Context(), claims, chi.URLParam(r, "reportID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toReportResponse(rep))
	}
}

// exportReportHandler godoc
// @Summary Exportar laudo
// @Description Genera el documento de un laudo finalizado y devuelve su URL.
// @Tags reports
// @Produce json
// @Param reportID path string true "ID del laudo"
// @Success 200 {object} render.Artifact
// @Failure 409 {object} httpx.ErrorResponse "not finalized"
// @Router /reports/{reportID}/export [post]
func exportReportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}
		art, err := svc.Export(r.Context(), claims, chi.URLParam(r, "reportID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, render.Artifact{URL: art.URL})
	}
}

// versionsHandler godoc
// @Summary Versiones anteriores del laudo
// @Description Snapshots en orden, el más viejo primero.
// @Tags reports
// @Produce json
// @Param reportID path string true "ID del laudo"
// @Success 200 {array} versionResponse
// @Router /reports/{reportID}/versions [get]
func versionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.RequireClaims(w, r); !ok {
			return
		}
		snaps, err := svc.Versions(r.Context(), chi.URLParam(r, "reportID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		out := make([]versionResponse, 0, len(snaps))
		for _, s := range snaps {
			out = append(out, versionResponse{
				Version:    s.Version,
				Content:    fromContent(s.Content),
				ModifiedBy: audit.UserRefResponse{ID: s.ModifiedBy.ID, Name: s.ModifiedBy.Name},
				ModifiedAt: s.ModifiedAt,
				Comments:   s.Comments,
			})
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

// historyHandler godoc
// @Summary Historial del laudo
// @Tags reports
// @Produce json
// @Param reportID path string true "ID del laudo"
// @Success 200 {array} audit.EntryResponse
// @Router /reports/{reportID}/history [get]
func historyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.RequireClaims(w, r); !ok {
			return
		}
		entries, err := svc.History(r.Context(), chi.URLParam(r, "reportID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, audit.ToEntryResponses(entries))
	}
}

func (p contentPayload) toContent() Content {
	return Content{
		Introduction: p.Introduction,
		Methodology:  p.Methodology,
		Analysis:     p.Analysis,
		Conclusion:   p.Conclusion,
		References:   p.References,
	}
}

func fromContent(c Content) contentPayload {
	refs := c.References
	if refs == nil {
		refs = []string{}
	}
	return contentPayload{
		Introduction: c.Introduction,
		Methodology:  c.Methodology,
		Analysis:     c.Analysis,
		Conclusion:   c.Conclusion,
		References:   refs,
	}
}

func toAttachments(in []attachmentPayload) []Attachment {
	if in == nil {
		return nil
	}
	out := make([]Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, Attachment{EvidenceID: a.EvidenceID, Description: a.Description, Page: a.Page})
	}
	return out
}

func toReportResponse(r Report) reportResponse {
	atts := make([]attachmentPayload, 0, len(r.Attachments))
	for _, a := range r.Attachments {
		atts = append(atts, attachmentPayload{EvidenceID: a.EvidenceID, Description: a.Description, Page: a.Page})
	}
	return reportResponse{
		ID:          r.ID,
		CaseID:      r.CaseID,
		Title:       r.Title,
		Template:    r.Template,
		Content:     fromContent(r.Content),
		Attachments: atts,
		Status:      r.Status,
		Version:     r.Version,
		CreatedBy:   r.CreatedBy,
		ReviewedBy:  r.ReviewedBy,
		ReviewDate:  r.ReviewDate,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
