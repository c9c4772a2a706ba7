package audit

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/platform/httpx"
	"odontolegal/internal/ports/auth"
)

// RegisterAdminRoutes expone la reconciliación manual del historial.
func RegisterAdminRoutes(r chi.Router, trail *Trail) {
	r.Post("/admin/audit/reconcile", reconcileHandler(trail))
}

// reconcileHandler godoc
// @Summary Reconciliar historial pendiente
// @Description Reintenta las entradas de historial que no se pudieron persistir. Sólo admin.
// @Tags admin
// @Produce json
// @Param max query int false "Máximo de entradas a procesar (default 100)"
// @Success 200 {object} ReconcileResult
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /admin/audit/reconcile [post]
func reconcileHandler(trail *Trail) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}
		if claims.Role != auth.RoleAdmin {
			httpx.WriteError(w, apperr.Forbidden("admin role required"))
			return
		}

		max := 0
		if v := r.URL.Query().Get("max"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httpx.WriteError(w, apperr.Validation("max must be a positive integer"))
				return
			}
			max = n
		}

		res, err := trail.Reconcile(r.Context(), max)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, res)
	}
}
