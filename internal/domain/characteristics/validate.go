package characteristics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"odontolegal/internal/domain/apperr"
)

var validate = mustValidator()

func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("toothstatus", func(fl validator.FieldLevel) bool {
		return ToothStatus(fl.Field().String()).Valid()
	}); err != nil {
		return nil, fmt.Errorf("register toothstatus: %w", err)
	}
	if err := v.RegisterValidation("treatment", func(fl validator.FieldLevel) bool {
		return Treatment(fl.Field().String()).Valid()
	}); err != nil {
		return nil, fmt.Errorf("register treatment: %w", err)
	}
	return v, nil
}

func mustValidator() *validator.Validate {
	v, err := newValidator()
	if err != nil {
		panic("characteristics: " + err.Error())
	}
	return v
}

// Validate rechaza datos mal formados antes de cualquier escritura.
// El error envuelve apperr.ErrValidation e indica el primer campo inválido.
func (c CharacteristicSet) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("characteristics: %v", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return apperr.Validation("%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "CharacteristicSet.")
	switch fe.Tag() {
	case "min", "max":
		return fmt.Sprintf("%s must be between %d and %d, got %v", field, MinToothNumber, MaxToothNumber, fe.Value())
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "toothstatus":
		return fmt.Sprintf("%s: unknown tooth status %q", field, fe.Value())
	case "treatment":
		return fmt.Sprintf("%s: unknown treatment %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
