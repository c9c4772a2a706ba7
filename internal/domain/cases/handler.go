package cases

import (
	"net/http"
	"strings"
	"time"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/audit"
	"odontolegal/internal/platform/httpx"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/cases", func(cr chi.Router) {
		cr.Post("/", createCaseHandler(svc))
		cr.Get("/", listCasesHandler(svc))

		cr.Get("/{caseID}", getCaseHandler(svc))
		cr.Patch("/{caseID}", updateCaseHandler(svc))
		cr.Delete("/{caseID}", deleteCaseHandler(svc))

		cr.Patch("/{caseID}/status", updateStatusHandler(svc))
		cr.Get("/{caseID}/history", historyHandler(svc))
	})
}

type patientPayload struct {
	Name           string `json:"name"`
	BirthDate      string `json:"birth_date,omitempty"` // YYYY-MM-DD
	Gender         Gender `json:"gender,omitempty" enums:"male,female,other,not_informed"`
	Identification string `json:"identification,omitempty"`
}

// createCaseRequest es el cuerpo para abrir un caso pericial.
type createCaseRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        Type            `json:"type" enums:"identification,age_estimation,trauma,other"`
	AssignedTo  string          `json:"assigned_to"` // opcional: default el creador
	Patient     *patientPayload `json:"patient"`
}

type updateCaseRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Type        *Type           `json:"type"`
	AssignedTo  *string         `json:"assigned_to"`
	Patient     *patientPayload `json:"patient"`
}

type updateStatusRequest struct {
	Status Status `json:"status" enums:"pending,in_progress,finished,archived"`
}

type patientResponse struct {
	Name           string     `json:"name"`
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	Gender         Gender     `json:"gender"`
	Identification string     `json:"identification,omitempty"`
}

// caseResponse representa un caso devuelto por la API.
type caseResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        Type            `json:"type"`
	Status      Status          `json:"status"`
	AssignedTo  string          `json:"assigned_to"`
	Patient     patientResponse `json:"patient"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type caseDetailResponse struct {
	caseResponse
	History []audit.EntryResponse `json:"history"`
}

// createCaseHandler godoc
// @Summary Crear caso
// @Description Abre un caso pericial. Queda en estado `pending` y registra `creation` en su historial.
// @Tags cases
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createCaseRequest true "Datos del caso"
// @Success 201 {object} caseResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Router /cases [post]
func createCaseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		var req createCaseRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}

		var patient Patient
		if req.Patient != nil {
			p, err := req.Patient.toPatient()
			if err != nil {
				httpx.WriteError(w, err)
				return
			}
			patient = p
		}

		c, err := svc.Create(r.Context(), claims, CreateInput{
			Title:       req.Title,
			Description: req.Description,
			Type:        req.Type,
			AssignedTo:  req.AssignedTo,
			Patient:     patient,
		})
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		httpx.WriteJSON(w, http.StatusCreated, toCaseResponse(c))
	}
}

// listCasesHandler godoc
// @Summary Listar / buscar casos
// @Description Lista casos (más recientes primero) con filtros opcionales.
// @Tags cases
// @Produce json
// @Param status query string false "pending|in_progress|finished|archived"
// @Param type query string false "identification|age_estimation|trauma|other"
// @Param assigned_to query string false "ID del perito"
// @Param from query string false "created_at mínimo (RFC3339)"
// @Param to query string false "created_at máximo (RFC3339)"
// @Param q query string false "Texto en título/descripción"
// @Param page query int false "Página (1..)"
// @Param limit query int false "Tamaño de página (1-100, default 10)"
// @Success 200 {object} httpx.ListResponse[caseResponse]
// @Router /cases [get]
func listCasesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.RequireClaims(w, r); !ok {
			return
		}

		page := httpx.ParsePage(r)
		q := r.URL.Query()
		filter := ListFilter{
			Status:     Status(strings.TrimSpace(q.Get("status"))),
			Type:       Type(strings.TrimSpace(q.Get("type"))),
			AssignedTo: strings.TrimSpace(q.Get("assigned_to")),
			Query:      strings.TrimSpace(q.Get("q")),
			Offset:     page.Offset(),
			Limit:      page.Limit,
		}

		var err error
		if filter.From, err = parseTimeParam(q.Get("from"), "from"); err != nil {
			httpx.WriteError(w, err)
			return
		}
		if filter.To, err = parseTimeParam(q.Get("to"), "to"); err != nil {
			httpx.WriteError(w, err)
			return
		}

		items, err := svc.List(r.Context(), filter)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		out := make([]caseResponse, 0, len(items))
		for _, c := range items {
			out = append(out, toCaseResponse(c))
		}
		httpx.WriteJSON(w, http.StatusOK, httpx.NewListResponse(out, page))
	}
}

// getCaseHandler godoc
// @Summary Ver caso
// @Description Devuelve el caso con su historial. La lectura queda registrada como `view` en el historial antes de responder.
// @Tags cases
// @Produce json
// @Param caseID path string true "ID del caso"
// @Success 200 {object} caseDetailResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /cases/{caseID} [get]
func getCaseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		d, err := svc.Get(r.Context(), claims, chi.URLParam(r, "caseID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, caseDetailResponse{
			caseResponse: toCaseResponse(d.Case),
			History:      audit.ToEntryResponses(d.History),
		})
	}
}

// updateCaseHandler godoc
// @Summary Editar caso
// @Description Creador, admin o perito. Registra `edit`.
// @Tags cases
// @Accept json
// @Produce json
// @Param caseID path string true "ID del caso"
// @Param payload body updateCaseRequest true "Campos a modificar"
// @Success 200 {object} caseResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /cases/{caseID} [patch]
func updateCaseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		var req updateCaseRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}

		in := UpdateInput{
			Title:       req.Title,
			Description: req.Description,
			Type:        req.Type,
			AssignedTo:  req.AssignedTo,
		}
		if req.Patient != nil {
			p, err := req.Patient.toPatient()
			if err != nil {
				httpx.WriteError(w, err)
				return
			}
			in.Patient = &p
		}

		c, err := svc.Update(r.Context(), claims, chi.URLParam(r, "caseID"), in)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toCaseResponse(c))
	}
}

// updateStatusHandler godoc
// @Summary Cambiar estado del caso
// @Description Registra `status_changed`. Valores fuera del enum => 400.
// @Tags cases
// @Accept json
// @Produce json
// @Param caseID path string true "ID del caso"
// @Param payload body updateStatusRequest true "Nuevo estado"
// @Success 200 {object} caseResponse
// @Router /cases/{caseID}/status [patch]
func updateStatusHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		var req updateStatusRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}

		c, err := svc.UpdateStatus(r.Context(), claims, chi.URLParam(r, "caseID"), req.Status)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toCaseResponse(c))
	}
}

// deleteCaseHandler godoc
// @Summary Borrar caso
// @Description Creador o admin. Borra en cascada evidencias, laudos e historiales.
// @Tags cases
// @Param caseID path string true "ID del caso"
// @Success 204
// @Router /cases/{caseID} [delete]
func deleteCaseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), claims, chi.URLParam(r, "caseID")); err != nil {
			httpx.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// historyHandler godoc
// @Summary Historial del caso
// @Description Entradas en orden de inserción (más vieja primero). No registra `view`.
// @Tags cases
// @Produce json
// @Param caseID path string true "ID del caso"
// @Success 200 {array} audit.EntryResponse
// @Router /cases/{caseID}/history [get]
func historyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.RequireClaims(w, r); !ok {
			return
		}

		entries, err := svc.History(r.Context(), chi.URLParam(r, "caseID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, audit.ToEntryResponses(entries))
	}
}

func (p patientPayload) toPatient() (Patient, error) {
	out := Patient{
		Name:           p.Name,
		Gender:         p.Gender,
		Identification: p.Identification,
	}
	if strings.TrimSpace(p.BirthDate) != "" {
		t, err := time.Parse("2006-01-02", strings.TrimSpace(p.BirthDate))
		if err != nil {
			return Patient{}, apperr.Validation("birth_date must be YYYY-MM-DD")
		}
		out.BirthDate = &t
	}
	return out, nil
}

func parseTimeParam(v, name string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, apperr.Validation("%s must be RFC3339", name)
	}
	return &t, nil
}

func toCaseResponse(c Case) caseResponse {
	return caseResponse{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Type:        c.Type,
		Status:      c.Status,
		AssignedTo:  c.AssignedTo,
		Patient: patientResponse{
			Name:           c.Patient.Name,
			BirthDate:      c.Patient.BirthDate,
			Gender:         c.Patient.Gender,
			Identification: c.Patient.Identification,
		},
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
