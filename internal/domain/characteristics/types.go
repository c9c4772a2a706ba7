package characteristics

// ToothStatus estado observado de una pieza dental.
type ToothStatus string

const (
	ToothPresent    ToothStatus = "present"
	ToothAbsent     ToothStatus = "absent"
	ToothTreated    ToothStatus = "treated"
	ToothDecayed    ToothStatus = "decayed"
	ToothProsthetic ToothStatus = "prosthetic"
	ToothImplant    ToothStatus = "implant"
)

// Treatment tratamiento registrado sobre una pieza.
type Treatment string

const (
	TreatmentRestoration Treatment = "restoration"
	TreatmentCanal       Treatment = "canal"
	TreatmentCrown       Treatment = "crown"
	TreatmentBridge      Treatment = "bridge"
	TreatmentOther       Treatment = "other"
)

var toothStatuses = map[ToothStatus]struct{}{
	ToothPresent:    {},
	ToothAbsent:     {},
	ToothTreated:    {},
	ToothDecayed:    {},
	ToothProsthetic: {},
	ToothImplant:    {},
}

var treatments = map[Treatment]struct{}{
	TreatmentRestoration: {},
	TreatmentCanal:       {},
	TreatmentCrown:       {},
	TreatmentBridge:      {},
	TreatmentOther:       {},
}

func (s ToothStatus) Valid() bool {
	_, ok := toothStatuses[s]
	return ok
}

func (t Treatment) Valid() bool {
	_, ok := treatments[t]
	return ok
}

// Notación FDI: cuadrantes 1-4, piezas 1-8.
const (
	MinToothNumber = 11
	MaxToothNumber = 48
)
