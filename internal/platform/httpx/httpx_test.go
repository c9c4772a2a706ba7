package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"odontolegal/internal/domain/apperr"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(apperr.NotFound("case %s", "x")))
	assert.Equal(t, http.StatusForbidden, StatusFor(apperr.ErrForbidden))
	assert.Equal(t, http.StatusConflict, StatusFor(apperr.InvalidState("finalized")))
	assert.Equal(t, http.StatusConflict, StatusFor(apperr.Conflict("dup")))
	assert.Equal(t, http.StatusBadRequest, StatusFor(apperr.Validation("bad")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestParsePage(t *testing.T) {
	r := httptest.NewRequest("GET", "/cases?page=3&limit=20", nil)
	p := ParsePage(r)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 40, p.Offset())

	r = httptest.NewRequest("GET", "/cases?page=-1&limit=1000", nil)
	p = ParsePage(r)
	assert.Equal(t, Page{Page: 1, Limit: DefaultLimit}, p)
}
