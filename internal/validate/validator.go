package validate

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the validator library behind the small surface the
// transports need.
type Validator struct {
	cli *validator.Validate
}

func New() *Validator {
	return &Validator{
		cli: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// FieldError describes one failed field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (v *Validator) formatError(err error) []FieldError {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fe.StructField(),
			Message: fmt.Sprintf("failed on the %q rule", fe.Tag()),
		})
	}
	return out
}

// Struct validates the struct's `validate` tags and returns one entry
// per failed field.
func (v *Validator) Struct(s any) []FieldError {
	if err := v.cli.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// Var checks a single value against the given tag.
func (v *Validator) Var(value any, tag string) []FieldError {
	if err := v.cli.Var(value, tag); err != nil {
		return v.formatError(err)
	}
	return nil
}
