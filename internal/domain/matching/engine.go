// Package matching implementa el motor de comparación de fichas dentales.
//
// El puntaje es determinístico y se calcula sólo sobre campos estructurados:
// estado y tratamientos por pieza, oclusión, paladar y anomalías.
package matching

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/characteristics"
)

const (
	pointsStatus    = 1.0
	pointsTreatment = 0.5
	pointsGeneral   = 1.0
	pointsAnomaly   = 0.5

	// Cada pieza de a aporta hasta 2 puntos al máximo posible (estado + tratamientos).
	maxPerTooth = 2.0
	// Oclusión + paladar.
	maxGeneral = 2.0
)

// ErrUnscoreable: a no tiene piezas y ninguna ficha tiene anomalías.
var ErrUnscoreable = fmt.Errorf("%w: record cannot be scored", apperr.ErrValidation)

// Result del motor. Details respeta el orden de evaluación.
type Result struct {
	Score   float64
	Details []string
}

// Compare puntúa b contra a. El recorrido usa el orden de a.Teeth; las piezas
// sin par en b no suman. El score queda en [0,100] con 2 decimales.
func Compare(a, b characteristics.CharacteristicSet) (Result, error) {
	anomaliesA := a.General.AnomalySet()
	anomaliesB := b.General.AnomalySet()

	maxAnomalies := max(len(anomaliesA), len(anomaliesB))
	if len(a.Teeth) == 0 && maxAnomalies == 0 {
		return Result{}, ErrUnscoreable
	}

	maxPossible := float64(len(a.Teeth))*maxPerTooth + maxGeneral + float64(maxAnomalies)*pointsAnomaly
	if maxPossible <= 0 {
		return Result{}, ErrUnscoreable
	}

	raw := 0.0
	details := make([]string, 0)

	for _, toothA := range a.Teeth {
		toothB, ok := b.FindTooth(toothA.Number)
		if !ok {
			continue
		}

		if toothA.Status == toothB.Status {
			raw += pointsStatus
			details = append(details, fmt.Sprintf("Tooth %d: same status (%s)", toothA.Number, toothA.Status))
		}

		shared := intersectTreatments(toothA.TreatmentSet(), toothB.TreatmentSet())
		raw += float64(len(shared)) * pointsTreatment
		if len(shared) > 0 {
			details = append(details, fmt.Sprintf("Tooth %d: shared treatments (%s)", toothA.Number, joinTreatments(shared)))
		}
	}

	if a.General.Occlusion == b.General.Occlusion {
		raw += pointsGeneral
		details = append(details, "Same occlusion: "+a.General.Occlusion)
	}
	if a.General.Palate == b.General.Palate {
		raw += pointsGeneral
		details = append(details, "Same palate: "+a.General.Palate)
	}

	common := intersectStrings(anomaliesA, anomaliesB)
	raw += float64(len(common)) * pointsAnomaly
	if len(common) > 0 {
		details = append(details, "Shared anomalies: "+strings.Join(common, ", "))
	}

	return Result{
		Score:   normalize(raw, maxPossible),
		Details: details,
	}, nil
}

// FormatScore usa el formato persistido "NN.NN".
func FormatScore(score float64) string {
	return fmt.Sprintf("%.2f", score)
}

// IsUnscoreable permite a los callers distinguir este caso de otros errores de validación.
func IsUnscoreable(err error) bool {
	return errors.Is(err, ErrUnscoreable)
}

// Tratamientos compartidos suman más de 1 punto por pieza, así que el
// porcentaje puede pasar de 100 y se recorta.
func normalize(raw, maxPossible float64) float64 {
	pct := raw / maxPossible * 100
	pct = math.Round(pct*100) / 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

func intersectTreatments(a, b []characteristics.Treatment) []characteristics.Treatment {
	inB := make(map[characteristics.Treatment]struct{}, len(b))
	for _, t := range b {
		inB[t] = struct{}{}
	}
	out := make([]characteristics.Treatment, 0)
	for _, t := range a {
		if _, ok := inB[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func intersectStrings(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, s := range b {
		inB[s] = struct{}{}
	}
	out := make([]string, 0)
	for _, s := range a {
		if _, ok := inB[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func joinTreatments(in []characteristics.Treatment) string {
	parts := make([]string, 0, len(in))
	for _, t := range in {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ", ")
}
