package reports

// Template de laudo.
// @Enum identification, age, trauma, general
type Template string

const (
	TemplateIdentification Template = "identification"
	TemplateAge            Template = "age"
	TemplateTrauma         Template = "trauma"
	TemplateGeneral        Template = "general"
)

func (t Template) Valid() bool {
	switch t {
	case TemplateIdentification, TemplateAge, TemplateTrauma, TemplateGeneral:
		return true
	default:
		return false
	}
}

// Status del laudo: draft -> review -> finalized.
// @Enum draft, review, finalized
type Status string

const (
	StatusDraft     Status = "draft"
	StatusReview    Status = "review"
	StatusFinalized Status = "finalized"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusReview, StatusFinalized:
		return true
	default:
		return false
	}
}
