package characteristics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odontolegal/internal/domain/apperr"
)

func TestValidate_AcceptsWellFormedSet(t *testing.T) {
	set := CharacteristicSet{
		Teeth: []ToothRecord{
			{Number: 11, Status: ToothPresent},
			{Number: 48, Status: ToothTreated, Treatments: []Treatment{TreatmentCrown, TreatmentCanal}},
			{Number: 11, Status: ToothAbsent}, // duplicados permitidos
		},
		General: GeneralCharacteristics{Occlusion: "class I", Anomalies: []string{"diastema"}},
	}
	require.NoError(t, set.Validate())
}

func TestValidate_RejectsBadInput(t *testing.T) {
	cases := map[string]CharacteristicSet{
		"number below range": {Teeth: []ToothRecord{{Number: 10, Status: ToothPresent}}},
		"number above range": {Teeth: []ToothRecord{{Number: 49, Status: ToothPresent}}},
		"missing status":     {Teeth: []ToothRecord{{Number: 21}}},
		"unknown status":     {Teeth: []ToothRecord{{Number: 21, Status: "broken"}}},
		"unknown treatment":  {Teeth: []ToothRecord{{Number: 21, Status: ToothTreated, Treatments: []Treatment{"veneer"}}}},
	}

	for name, set := range cases {
		t.Run(name, func(t *testing.T) {
			err := set.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
		})
	}
}

func TestSets_CollapseDuplicatesInOrder(t *testing.T) {
	tooth := ToothRecord{Treatments: []Treatment{TreatmentCrown, TreatmentCanal, TreatmentCrown}}
	assert.Equal(t, []Treatment{TreatmentCrown, TreatmentCanal}, tooth.TreatmentSet())

	g := GeneralCharacteristics{Anomalies: []string{"b", "a", "b"}}
	assert.Equal(t, []string{"b", "a"}, g.AnomalySet())
}

func TestFindTooth_FirstMatchWins(t *testing.T) {
	set := CharacteristicSet{Teeth: []ToothRecord{
		{Number: 21, Status: ToothPresent},
		{Number: 21, Status: ToothAbsent},
	}}
	got, ok := set.FindTooth(21)
	require.True(t, ok)
	assert.Equal(t, ToothPresent, got.Status)

	_, ok = set.FindTooth(31)
	assert.False(t, ok)
}

func TestNewValidator_RegistersEnumTags(t *testing.T) {
	v, err := newValidator()
	require.NoError(t, err)

	assert.NoError(t, v.Var(string(ToothPresent), "toothstatus"))
	assert.Error(t, v.Var("bogus", "toothstatus"))
	assert.NoError(t, v.Var(string(TreatmentCrown), "treatment"))
	assert.Error(t, v.Var("bogus", "treatment"))
}
