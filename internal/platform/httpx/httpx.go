// Package httpx reúne helpers HTTP comunes a los handlers de dominio.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/middleware"
	"odontolegal/internal/ports/auth"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError traduce los errores de dominio a status HTTP. Errores que no
// son de dominio se devuelven como 500 sin exponer el detalle.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrInvalidState), errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RequireClaims escribe 401 si el request no trae identidad.
func RequireClaims(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return auth.Claims{}, false
	}
	return claims, true
}

// DecodeJSON decodifica el body rechazando campos desconocidos.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid json: %v", err)
	}
	return nil
}

// Page parámetros page/limit (1-based). Valores inválidos caen en defaults.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

func ParsePage(r *http.Request) Page {
	p := Page{Page: 1, Limit: DefaultLimit}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Page = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= MaxLimit {
			p.Limit = n
		}
	}
	return p
}

// ListResponse envoltorio común de listados.
type ListResponse[T any] struct {
	Results int `json:"results"`
	Page    int `json:"page"`
	Limit   int `json:"limit"`
	Items   []T `json:"items"`
}

func NewListResponse[T any](items []T, p Page) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Results: len(items), Page: p.Page, Limit: p.Limit, Items: items}
}
