package cases

// Type de caso pericial.
// @Enum identification, age_estimation, trauma, other
type Type string

const (
	TypeIdentification Type = "identification"
	TypeAgeEstimation  Type = "age_estimation"
	TypeTrauma         Type = "trauma"
	TypeOther          Type = "other"
)

// Status del ciclo de vida del caso.
// @Enum pending, in_progress, finished, archived
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusArchived   Status = "archived"
)

// Gender del paciente/víctima.
type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderOther       Gender = "other"
	GenderNotInformed Gender = "not_informed"
)

func (t Type) Valid() bool {
	switch t {
	case TypeIdentification, TypeAgeEstimation, TypeTrauma, TypeOther:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusFinished, StatusArchived:
		return true
	}
	return false
}

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderNotInformed:
		return true
	}
	return false
}
