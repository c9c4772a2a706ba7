package dentalrecords

import (
	"net/http"
	"strings"
	"time"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/audit"
	"odontolegal/internal/domain/cases"
	"odontolegal/internal/domain/characteristics"
	"odontolegal/internal/domain/matching"
	"odontolegal/internal/platform/httpx"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/dental-records", func(dr chi.Router) {
		dr.Post("/", createRecordHandler(svc))
		dr.Get("/", listRecordsHandler(svc))

		dr.Get("/search", searchRecordsHandler(svc))
		dr.Post("/search/characteristics", searchByCharacteristicsHandler(svc))
		dr.Post("/compare/{recordAID}/{recordBID}", compareRecordsHandler(svc))

		dr.Get("/{recordID}", getRecordHandler(svc))
		dr.Patch("/{recordID}", updateRecordHandler(svc))
		dr.Post("/{recordID}/identify", identifyRecordHandler(svc))

		dr.Post("/{recordID}/matches", recordCaseMatchHandler(svc))
		dr.Get("/{recordID}/matches", listMatchesHandler(svc))
		dr.Get("/{recordID}/history", historyHandler(svc))
	})
}

type patientPayload struct {
	Name           string       `json:"name"`
	BirthDate      string       `json:"birth_date,omitempty"` // YYYY-MM-DD
	Gender         cases.Gender `json:"gender,omitempty" enums:"male,female,other,not_informed"`
	Identification string       `json:"identification,omitempty"`
}

// createRecordRequest es el cuerpo para registrar una ficha dental.
type createRecordRequest struct {
	Patient         patientPayload                    `json:"patient"`
	Status          Status                            `json:"status" enums:"identified,unidentified,under_analysis"`
	Characteristics characteristics.CharacteristicSet `json:"dental_characteristics"`
	Radiographs     []string                          `json:"radiographs"`
	Photographs     []string                          `json:"photographs"`
}

type updateRecordRequest struct {
	Patient         *patientPayload                    `json:"patient"`
	Status          *Status                            `json:"status"`
	Characteristics *characteristics.CharacteristicSet `json:"dental_characteristics"`
	Radiographs     []string                           `json:"radiographs"`
	Photographs     []string                           `json:"photographs"`
}

type characteristicSearchRequest struct {
	TeethStatus            []characteristics.ToothStatus `json:"teeth_status"`
	Treatments             []characteristics.Treatment   `json:"treatments"`
	GeneralCharacteristics struct {
		Occlusion string `json:"occlusion"`
		Palate    string `json:"palate"`
		Anomaly   string `json:"anomaly"`
		Other     string `json:"other"`
	} `json:"general_characteristics"`
}

type caseMatchRequest struct {
	CaseID  string   `json:"case_id"`
	Score   float64  `json:"score"`
	Details []string `json:"details"`
}

type patientResponse struct {
	Name           string       `json:"name"`
	BirthDate      *time.Time   `json:"birth_date,omitempty"`
	Gender         cases.Gender `json:"gender"`
	Identification string       `json:"identification,omitempty"`
}

// recordResponse representa una ficha dental devuelta por la API.
type recordResponse struct {
	ID              string                            `json:"id"`
	Patient         patientResponse                   `json:"patient"`
	Status          Status                            `json:"status"`
	Characteristics characteristics.CharacteristicSet `json:"dental_characteristics"`
	Radiographs     []string                          `json:"radiographs"`
	Photographs     []string                          `json:"photographs"`
	CreatedBy       string                            `json:"created_by"`
	CreatedAt       time.Time                         `json:"created_at"`
	UpdatedAt       time.Time                         `json:"updated_at"`
}

type recordDetailResponse struct {
	recordResponse
	History []audit.EntryResponse `json:"history"`
}

// compareResponse mantiene la forma que consumen los clientes existentes.
type compareResponse struct {
	MatchScore   string   `json:"matchScore"`
	MatchDetails []string `json:"matchDetails"`
	RecordAID    string   `json:"recordAId"`
	RecordBID    string   `json:"recordBId"`
}

type matchResponse struct {
	ID              string          `json:"id"`
	RecordID        string          `json:"record_id"`
	CounterpartKind CounterpartKind `json:"counterpart_kind"`
	CounterpartID   string          `json:"counterpart_id"`
	Score           string          `json:"score"`
	Details         []string        `json:"details"`
	MatchedAt       time.Time       `json:"matched_at"`
}

// createRecordHandler godoc
// @Summary Crear ficha dental
// @Description Valida piezas (11-48), estados y tratamientos. Estado por defecto `under_analysis`.
// @Tags dental-records
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createRecordRequest true "Ficha"
// @Success 201 {object} recordResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse "identification already registered"
// @Router /dental-records [post]
func createRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		var req createRecordRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}
		patient, err := req.Patient.toPatient()
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		rec, err := svc.Create(r.Context(), claims, CreateInput{
			Patient:         patient,
			Status:          req.Status,
			Characteristics: req.Characteristics,
			Radiographs:     req.Radiographs,
			Photographs:     req.Photographs,
		})
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, toRecordResponse(rec))
	}
}

// listRecordsHandler godoc
// @Summary Listar fichas dentales
// @Tags dental-records
// @Produce json
// @Param status query string false "identified|unidentified|under_analysis"
// @Param page query int false "Página (1..)"
// @Param limit query int false "Tamaño de página (1-100, default 10)"
// @Success 200 {object} httpx.ListResponse[recordResponse]
// @Router /dental-records [get]
func listRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.RequireClaims(w, r); !ok {
			return
		}
		page := httpx.ParsePage(r)
		items, err := svc.List(r.Context(), ListFilter{
			Status: Status(strings.TrimSpace(r.URL.Query().Get("status"))),
			Offset: page.Offset(),
			Limit:  page.Limit,
		})
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, httpx.NewListResponse(toRecordResponses(items), page))
	}
}

// searchRecordsHandler godoc
// @Summary Buscar fichas por paciente
// @Description Texto libre sobre nombre e identificación del paciente.
// @Tags dental-records
// @Produce json
// @Param q query string true "Texto"
// @Param page query int false "Página (1..)"
// @Param limit query int false "Tamaño de página"
// @Success 200 {object} httpx.ListResponse[recordResponse]
// @Router /dental-records/search [get]
func searchRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.RequireClaims(w, r); !ok {
			return
		}
		page := httpx.ParsePage(r)
		items, err := svc.Search(r.Context(), r.URL.Query().Get("q"), page.Offset(), page.Limit)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, httpx.NewListResponse(toRecordResponses(items), page))
	}
}

// searchByCharacteristicsHandler godoc
// @Summary Buscar fichas por características dentales
// @Description Todos los criterios se combinan (AND). Los textos se comparan por substring sin distinguir mayúsculas.
// @Tags dental-records
// @Accept json
// @Produce json
// @Param payload body characteristicSearchRequest true "Criterios"
// @Param page query int false "Página (1..)"
// @Param limit query int false "Tamaño de página"
// @Success 200 {object} httpx.ListResponse[recordResponse]
// @Router /dental-records/search/characteristics [post]
func searchByCharacteristicsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.RequireClaims(w, r); !ok {
			return
		}
		var req characteristicSearchRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}
		page := httpx.ParsePage(r)
		items, err := svc.SearchByCharacteristics(r.Context(), CharacteristicQuery{
			ToothStatuses: req.TeethStatus,
			Treatments:    req.Treatments,
			Occlusion:     req.GeneralCharacteristics.Occlusion,
			Palate:        req.GeneralCharacteristics.Palate,
			Anomaly:       req.GeneralCharacteristics.Anomaly,
			Other:         req.GeneralCharacteristics.Other,
			Offset:        page.Offset(),
			Limit:         page.Limit,
		})
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, httpx.NewListResponse(toRecordResponses(items), page))
	}
}

// compareRecordsHandler godoc
// @Summary Comparar dos fichas dentales
// @Description Puntúa B contra A (0-100, dos decimales). Registra `comparison` y un match en ambas fichas.
// @Tags dental-records
// @Produce json
// @Param recordAID path string true "Ficha A (referencia)"
// @Param recordBID path string true "Ficha B"
// @Success 200 {object} compareResponse
// @Failure 400 {object} httpx.ErrorResponse "unscoreable"
// @Failure 404 {object} httpx.ErrorResponse
// @Router /dental-records/compare/{recordAID}/{recordBID} [post]
func compareRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}
		res, err := svc.Compare(r.Context(), claims, chi.URLParam(r, "recordAID"), chi.URLParam(r, "recordBID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		details := res.Details
		if details == nil {
			details = []string{}
		}
		httpx.WriteJSON(w, http.StatusOK, compareResponse{
			MatchScore:   matching.FormatScore(res.Score),
			MatchDetails: details,
			RecordAID:    res.RecordAID,
			RecordBID:    res.RecordBID,
		})
	}
}

// getRecordHandler godoc
// @Summary Ver ficha dental
// @Description Registra `view` antes de responder.
// @Tags dental-records
// @Produce json
// @Param recordID path string true "ID de la ficha"
// @Success 200 {object} recordDetailResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /dental-records/{recordID} [get]
func getRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}
		d, err := svc.Get(r.Context(), claims, chi.URLParam(r, "recordID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, recordDetailResponse{
			recordResponse: toRecordResponse(d.Record),
			History:        audit.ToEntryResponses(d.History),
		})
	}
}

// updateRecordHandler godoc
// @Summary Editar ficha dental
// @Description Creador, admin o perito.
// @Tags dental-records
// @Accept json
// @Produce json
// @Param recordID path string true "ID de la ficha"
// @Param payload body updateRecordRequest true "Cambios"
// @Success 200 {object} recordResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Router /dental-records/{recordID} [patch]
func updateRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}
		var req updateRecordRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}

		in := UpdateInput{
			Status:          req.Status,
			Characteristics: req.Characteristics,
			Radiographs:     req.Radiographs,
			Photographs:     req.Photographs,
		}
		if req.Patient != nil {
			p, err := req.Patient.toPatient()
			if err != nil {
				httpx.WriteError(w, err)
				return
			}
			in.Patient = &p
		}

		rec, err := svc.Update(r.Context(), claims, chi.URLParam(r, "recordID"), in)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
	}
}

// identifyRecordHandler godoc
// @Summary Identificar ficha
// @Description Marca la ficha como `identified` con los datos del paciente. Registra `identification`.
// @Tags dental-records
// @Accept json
// @Produce json
// @Param recordID path string true "ID de la ficha"
// @Param payload body patientPayload true "Paciente"
// @Success 200 {object} recordResponse
// @Failure 409 {object} httpx.ErrorResponse "identification already registered"
// @Router /dental-records/{recordID}/identify [post]
func identifyRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}
		var req patientPayload
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}
		p, err := req.toPatient()
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		rec, err := svc.Identify(r.Context(), claims, chi.URLParam(r, "recordID"), p)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
	}
}

// recordCaseMatchHandler godoc
// @Summary Registrar match contra un caso
// @Description Sólo admin o perito. Score en [0,100].
// @Tags dental-records
// @Accept json
// @Produce json
// @Param recordID path string true "ID de la ficha"
// @Param payload body caseMatchRequest true "Match"
// @Success 201 {object} matchResponse
// @Router /dental-records/{recordID}/matches [post]
func recordCaseMatchHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}
		var req caseMatchRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}
		m, err := svc.RecordCaseMatch(r.Context(), claims, chi.URLParam(r, "recordID"), req.CaseID, req.Score, req.Details)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, toMatchResponse(m))
	}
}

// listMatchesHandler godoc
// @Summary Matches de la ficha
// @Description En orden de registro, el más viejo primero.
// @Tags dental-records
// @Produce json
// @Param recordID path string true "ID de la ficha"
// @Success 200 {array} matchResponse
// @Router /dental-records/{recordID}/matches [get]
func listMatchesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.RequireClaims(w, r); !ok {
			return
		}
		ms, err := svc.Matches(r.Context(), chi.URLParam(r, "recordID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		out := make([]matchResponse, 0, len(ms))
		for _, m := range ms {
			out = append(out, toMatchResponse(m))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

// historyHandler godoc
// @Summary Historial de la ficha
// @Tags dental-records
// @Produce json
// @Param recordID path string true "ID de la ficha"
// @Success 200 {array} audit.EntryResponse
// @Router /dental-records/{recordID}/history [get]
func historyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.RequireClaims(w, r); !ok {
			return
		}
		entries, err := svc.History(r.Context(), chi.URLParam(r, "recordID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, audit.ToEntryResponses(entries))
	}
}

func (p patientPayload) toPatient() (Patient, error) {
	out := Patient{Name: p.Name, Gender: p.Gender, Identification: p.Identification}
	if v := strings.TrimSpace(p.BirthDate); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return Patient{}, apperr.Validation("birth_date must be YYYY-MM-DD")
		}
		out.BirthDate = &t
	}
	return out, nil
}

func toRecordResponses(items []DentalRecord) []recordResponse {
	out := make([]recordResponse, 0, len(items))
	for _, rec := range items {
		out = append(out, toRecordResponse(rec))
	}
	return out
}

func toRecordResponse(r DentalRecord) recordResponse {
	return recordResponse{
		ID: r.ID,
		Patient: patientResponse{
			Name:           r.Patient.Name,
			BirthDate:      r.Patient.BirthDate,
			Gender:         r.Patient.Gender,
			Identification: r.Patient.Identification,
		},
		Status:          r.Status,
		Characteristics: r.Characteristics,
		Radiographs:     nonNil(r.Radiographs),
		Photographs:     nonNil(r.Photographs),
		CreatedBy:       r.CreatedBy,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func toMatchResponse(m MatchRecord) matchResponse {
	return matchResponse{
		ID:              m.ID,
		RecordID:        m.RecordID,
		CounterpartKind: m.Counterpart.Kind,
		CounterpartID:   m.Counterpart.ID,
		Score:           matching.FormatScore(m.Score),
		Details:         nonNil(m.Details),
		MatchedAt:       m.MatchedAt,
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
