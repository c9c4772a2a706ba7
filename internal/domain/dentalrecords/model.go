package dentalrecords

import (
	"strings"
	"time"

	"odontolegal/internal/domain/cases"
	"odontolegal/internal/domain/characteristics"
)

// Patient en la ficha dental. Identification es única cuando está presente.
type Patient struct {
	Name           string
	BirthDate      *time.Time
	Gender         cases.Gender
	Identification string
}

type DentalRecord struct {
	ID              string
	Patient         Patient
	Status          Status
	Characteristics characteristics.CharacteristicSet
	Radiographs     []string // IDs de evidencias
	Photographs     []string

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListFilter filtra el listado; Query busca en nombre e identificación del paciente.
type ListFilter struct {
	Status Status
	Query  string

	Offset int
	Limit  int
}

// CharacteristicQuery busca fichas por rasgos. Los criterios se combinan con AND;
// dentro de ToothStatuses y Treatments alcanza con que alguna pieza coincida.
type CharacteristicQuery struct {
	ToothStatuses []characteristics.ToothStatus
	Treatments    []characteristics.Treatment
	Occlusion     string // substring, sin distinguir mayúsculas
	Palate        string
	Anomaly       string
	Other         string

	Offset int
	Limit  int
}

func (q CharacteristicQuery) Empty() bool {
	return len(q.ToothStatuses) == 0 && len(q.Treatments) == 0 &&
		q.Occlusion == "" && q.Palate == "" && q.Anomaly == "" && q.Other == ""
}

// Matches evalúa la query en memoria. El adapter Postgres la traduce a SQL
// con la misma semántica.
func (q CharacteristicQuery) Matches(cs characteristics.CharacteristicSet) bool {
	if len(q.ToothStatuses) > 0 && !anyTooth(cs, func(t characteristics.ToothRecord) bool {
		for _, s := range q.ToothStatuses {
			if t.Status == s {
				return true
			}
		}
		return false
	}) {
		return false
	}

	if len(q.Treatments) > 0 && !anyTooth(cs, func(t characteristics.ToothRecord) bool {
		for _, want := range q.Treatments {
			for _, have := range t.Treatments {
				if want == have {
					return true
				}
			}
		}
		return false
	}) {
		return false
	}

	g := cs.General
	if !containsFold(g.Occlusion, q.Occlusion) || !containsFold(g.Palate, q.Palate) || !containsFold(g.Other, q.Other) {
		return false
	}
	if q.Anomaly != "" {
		found := false
		for _, a := range g.Anomalies {
			if containsFold(a, q.Anomaly) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func anyTooth(cs characteristics.CharacteristicSet, pred func(characteristics.ToothRecord) bool) bool {
	for _, t := range cs.Teeth {
		if pred(t) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	if sub == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
