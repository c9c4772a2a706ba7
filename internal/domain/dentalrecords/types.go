package dentalrecords

// Status de identificación de la ficha.
// @Enum identified, unidentified, under_analysis
type Status string

const (
	StatusIdentified    Status = "identified"
	StatusUnidentified  Status = "unidentified"
	StatusUnderAnalysis Status = "under_analysis"
)

func (s Status) Valid() bool {
	switch s {
	case StatusIdentified, StatusUnidentified, StatusUnderAnalysis:
		return true
	default:
		return false
	}
}

// CounterpartKind indica contra qué se registró un match.
type CounterpartKind string

const (
	CounterpartCase         CounterpartKind = "case"
	CounterpartDentalRecord CounterpartKind = "dental_record"
)

func (k CounterpartKind) Valid() bool {
	return k == CounterpartCase || k == CounterpartDentalRecord
}
