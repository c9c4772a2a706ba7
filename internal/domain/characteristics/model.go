package characteristics

// ToothRecord describe una pieza. Status siempre presente; Treatments puede ser vacío.
type ToothRecord struct {
	Number       int         `json:"number" validate:"min=11,max=48"`
	Status       ToothStatus `json:"status" validate:"required,toothstatus"`
	Observations string      `json:"observations,omitempty"`
	Treatments   []Treatment `json:"treatments" validate:"dive,treatment"`
}

type GeneralCharacteristics struct {
	Occlusion string   `json:"occlusion"`
	Palate    string   `json:"palate"`
	Anomalies []string `json:"anomalies"`
	Other     string   `json:"other,omitempty"`
}

// CharacteristicSet es el objeto valor que compara el motor de matching.
// Los números de pieza pueden repetirse; el matching usa la primera coincidencia.
type CharacteristicSet struct {
	Teeth   []ToothRecord          `json:"teeth" validate:"dive"`
	General GeneralCharacteristics `json:"general_characteristics"`
}

// TreatmentSet colapsa duplicados preservando el orden de aparición.
func (t ToothRecord) TreatmentSet() []Treatment {
	seen := make(map[Treatment]struct{}, len(t.Treatments))
	out := make([]Treatment, 0, len(t.Treatments))
	for _, tr := range t.Treatments {
		if _, ok := seen[tr]; ok {
			continue
		}
		seen[tr] = struct{}{}
		out = append(out, tr)
	}
	return out
}

// AnomalySet colapsa duplicados preservando el orden de aparición.
func (g GeneralCharacteristics) AnomalySet() []string {
	seen := make(map[string]struct{}, len(g.Anomalies))
	out := make([]string, 0, len(g.Anomalies))
	for _, a := range g.Anomalies {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// FindTooth devuelve la primera pieza con ese número.
func (c CharacteristicSet) FindTooth(number int) (ToothRecord, bool) {
	for _, t := range c.Teeth {
		if t.Number == number {
			return t, true
		}
	}
	return ToothRecord{}, false
}
