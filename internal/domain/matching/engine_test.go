package matching

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odontolegal/internal/domain/apperr"
	c "odontolegal/internal/domain/characteristics"
)

func tooth(n int, st c.ToothStatus, tr ...c.Treatment) c.ToothRecord {
	return c.ToothRecord{Number: n, Status: st, Treatments: tr}
}

func TestCompare_SingleToothWithoutGeneralData(t *testing.T) {
	a := c.CharacteristicSet{Teeth: []c.ToothRecord{tooth(11, c.ToothPresent)}}
	b := c.CharacteristicSet{Teeth: []c.ToothRecord{tooth(11, c.ToothPresent)}}

	res, err := Compare(a, b)
	require.NoError(t, err)

	// raw = 1 (estado) + 1 (oclusión vacía) + 1 (paladar vacío); max = 2 + 2
	assert.Equal(t, 75.00, res.Score)
	assert.Equal(t, []string{
		"Tooth 11: same status (present)",
		"Same occlusion: ",
		"Same palate: ",
	}, res.Details)
}

func TestCompare_SelfWithAllTreatmentsScores100(t *testing.T) {
	a := c.CharacteristicSet{
		Teeth: []c.ToothRecord{
			tooth(16, c.ToothTreated, c.TreatmentCrown, c.TreatmentCanal),
			tooth(36, c.ToothTreated, c.TreatmentRestoration, c.TreatmentOther),
		},
		General: c.GeneralCharacteristics{Occlusion: "class II", Palate: "deep", Anomalies: []string{"diastema"}},
	}

	res, err := Compare(a, a)
	require.NoError(t, err)
	assert.Equal(t, 100.00, res.Score)
}

func TestCompare_DisjointRecordsScoreZero(t *testing.T) {
	a := c.CharacteristicSet{
		Teeth:   []c.ToothRecord{tooth(11, c.ToothPresent), tooth(12, c.ToothAbsent)},
		General: c.GeneralCharacteristics{Occlusion: "class I", Palate: "flat", Anomalies: []string{"rotation"}},
	}
	b := c.CharacteristicSet{
		Teeth:   []c.ToothRecord{tooth(31, c.ToothPresent), tooth(32, c.ToothAbsent)},
		General: c.GeneralCharacteristics{Occlusion: "class III", Palate: "deep", Anomalies: []string{"diastema"}},
	}

	res, err := Compare(a, b)
	require.NoError(t, err)
	assert.Equal(t, 0.00, res.Score)
	assert.Empty(t, res.Details)
}

func TestCompare_ToothOrderDoesNotMatter(t *testing.T) {
	base := []c.ToothRecord{
		tooth(11, c.ToothPresent),
		tooth(21, c.ToothTreated, c.TreatmentCrown),
		tooth(36, c.ToothImplant),
	}
	reordered := []c.ToothRecord{base[2], base[0], base[1]}
	other := c.CharacteristicSet{
		Teeth:   []c.ToothRecord{tooth(36, c.ToothImplant), tooth(21, c.ToothDecayed, c.TreatmentCrown)},
		General: c.GeneralCharacteristics{Occlusion: "class I"},
	}

	r1, err := Compare(c.CharacteristicSet{Teeth: base, General: c.GeneralCharacteristics{Occlusion: "class I"}}, other)
	require.NoError(t, err)
	r2, err := Compare(c.CharacteristicSet{Teeth: reordered, General: c.GeneralCharacteristics{Occlusion: "class I"}}, other)
	require.NoError(t, err)

	assert.Equal(t, r1.Score, r2.Score)
	assert.ElementsMatch(t, r1.Details, r2.Details)
}

func TestCompare_SwappedIdenticalInputsAreSymmetric(t *testing.T) {
	a := c.CharacteristicSet{
		Teeth:   []c.ToothRecord{tooth(11, c.ToothTreated, c.TreatmentCanal), tooth(45, c.ToothAbsent)},
		General: c.GeneralCharacteristics{Occlusion: "x", Palate: "y", Anomalies: []string{"m", "n"}},
	}
	b := a

	ab, err := Compare(a, b)
	require.NoError(t, err)
	ba, err := Compare(b, a)
	require.NoError(t, err)

	assert.Equal(t, ab.Score, ba.Score)
	assert.ElementsMatch(t, ab.Details, ba.Details)
}

func TestCompare_DuplicatesCollapseAsSets(t *testing.T) {
	a := c.CharacteristicSet{
		Teeth:   []c.ToothRecord{tooth(11, c.ToothTreated, c.TreatmentCrown, c.TreatmentCrown, c.TreatmentCanal)},
		General: c.GeneralCharacteristics{Occlusion: "o", Palate: "p", Anomalies: []string{"a", "a"}},
	}
	b := c.CharacteristicSet{
		Teeth:   []c.ToothRecord{tooth(11, c.ToothPresent, c.TreatmentCanal, c.TreatmentCrown)},
		General: c.GeneralCharacteristics{Occlusion: "O", Palate: "p", Anomalies: []string{"a"}},
	}

	res, err := Compare(a, b)
	require.NoError(t, err)

	// raw = 0.5*2 (tratamientos) + 1 (paladar) + 0.5 (anomalía) = 2.5
	// max = 1*2 + 2 + 1*0.5 = 4.5
	assert.Equal(t, 55.56, res.Score)
	assert.Equal(t, []string{
		"Tooth 11: shared treatments (crown, canal)",
		"Same palate: p",
		"Shared anomalies: a",
	}, res.Details)
}

func TestCompare_OcclusionIsCaseSensitive(t *testing.T) {
	a := c.CharacteristicSet{Teeth: []c.ToothRecord{tooth(11, c.ToothPresent)}, General: c.GeneralCharacteristics{Occlusion: "Class I", Palate: "p"}}
	b := c.CharacteristicSet{Teeth: []c.ToothRecord{tooth(11, c.ToothPresent)}, General: c.GeneralCharacteristics{Occlusion: "class i", Palate: "p"}}

	res, err := Compare(a, b)
	require.NoError(t, err)
	assert.NotContains(t, res.Details, "Same occlusion: Class I")
	assert.Equal(t, 50.00, res.Score)
}

func TestCompare_DuplicateToothInBUsesFirstMatch(t *testing.T) {
	a := c.CharacteristicSet{Teeth: []c.ToothRecord{tooth(11, c.ToothAbsent)}, General: c.GeneralCharacteristics{Occlusion: "x"}}
	b := c.CharacteristicSet{Teeth: []c.ToothRecord{tooth(11, c.ToothPresent), tooth(11, c.ToothAbsent)}, General: c.GeneralCharacteristics{Occlusion: "y"}}

	res, err := Compare(a, b)
	require.NoError(t, err)
	// sólo coincide el paladar vacío
	assert.Equal(t, 25.00, res.Score)
}

func TestCompare_RoundsToTwoDecimals(t *testing.T) {
	a := c.CharacteristicSet{
		Teeth:   []c.ToothRecord{tooth(11, c.ToothPresent), tooth(12, c.ToothPresent)},
		General: c.GeneralCharacteristics{Occlusion: "a", Palate: "a"},
	}
	b := c.CharacteristicSet{
		Teeth:   []c.ToothRecord{tooth(11, c.ToothPresent), tooth(12, c.ToothAbsent)},
		General: c.GeneralCharacteristics{Occlusion: "b", Palate: "b"},
	}

	res, err := Compare(a, b)
	require.NoError(t, err)
	assert.Equal(t, 16.67, res.Score)
	assert.Equal(t, "16.67", FormatScore(res.Score))
}

func TestCompare_ScoreIsClampedTo100(t *testing.T) {
	all := []c.Treatment{c.TreatmentRestoration, c.TreatmentCanal, c.TreatmentCrown, c.TreatmentBridge, c.TreatmentOther}
	a := c.CharacteristicSet{Teeth: []c.ToothRecord{tooth(26, c.ToothTreated, all...)}}

	res, err := Compare(a, a)
	require.NoError(t, err)
	assert.Equal(t, 100.00, res.Score)
}

func TestCompare_UnscoreableRecord(t *testing.T) {
	_, err := Compare(c.CharacteristicSet{}, c.CharacteristicSet{Teeth: []c.ToothRecord{tooth(11, c.ToothPresent)}})
	require.Error(t, err)
	assert.True(t, IsUnscoreable(err))
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCompare_NoTeethButAnomaliesIsScoreable(t *testing.T) {
	a := c.CharacteristicSet{General: c.GeneralCharacteristics{Occlusion: "o", Palate: "p", Anomalies: []string{"x"}}}

	res, err := Compare(a, a)
	require.NoError(t, err)
	assert.Equal(t, 100.00, res.Score)
	assert.Equal(t, "100.00", FormatScore(res.Score))
}
