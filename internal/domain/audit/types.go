package audit

// EntityKind identifica el tipo de entidad auditable.
type EntityKind string

const (
	KindCase         EntityKind = "case"
	KindEvidence     EntityKind = "evidence"
	KindReport       EntityKind = "report"
	KindDentalRecord EntityKind = "dental_record"
)

// Action es la acción registrada en el historial. Cada EntityKind acepta un
// conjunto cerrado (ver allowedActions).
type Action string

const (
	ActionCreation        Action = "creation"
	ActionEdit            Action = "edit"
	ActionView            Action = "view"
	ActionStatusChanged   Action = "status_changed"
	ActionAttachmentAdded Action = "attachment_added"
	ActionDeletion        Action = "deletion"
	ActionReview          Action = "review"
	ActionFinalization    Action = "finalization"
	ActionIdentification  Action = "identification"
	ActionComparison      Action = "comparison"
)

var allowedActions = map[EntityKind]map[Action]struct{}{
	KindCase: {
		ActionCreation:        {},
		ActionEdit:            {},
		ActionView:            {},
		ActionStatusChanged:   {},
		ActionAttachmentAdded: {},
	},
	KindEvidence: {
		ActionCreation: {},
		ActionEdit:     {},
		ActionView:     {},
		ActionDeletion: {},
	},
	KindReport: {
		ActionCreation:     {},
		ActionEdit:         {},
		ActionView:         {},
		ActionReview:       {},
		ActionFinalization: {},
	},
	KindDentalRecord: {
		ActionCreation:       {},
		ActionEdit:           {},
		ActionView:           {},
		ActionIdentification: {},
		ActionComparison:     {},
	},
}

// Allowed indica si action pertenece al enum de kind.
func Allowed(kind EntityKind, action Action) bool {
	actions, ok := allowedActions[kind]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}
