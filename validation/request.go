package validation

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Quisharoo/manager-feedback-questions-sub000/session"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateRequest is the body of a session creation request.
type CreateRequest struct {
	Name string `json:"name" validate:"required,max=2048"`
}

// QuestionInput is the optional question carried by a patch request.
type QuestionInput struct {
	Text  string             `json:"text" validate:"max=8192"`
	Theme string             `json:"theme,omitempty" validate:"max=1024"`
	ID    session.QuestionID `json:"id,omitempty" validate:"max=256"`
}

// PatchRequest is the body of a session patch request.
type PatchRequest struct {
	Action   string         `json:"action" validate:"required,max=64"`
	Question *QuestionInput `json:"question,omitempty"`
	Value    *string        `json:"value,omitempty" validate:"omitempty,max=65536"`
}

// Struct checks a request body against its validate tags. The limits there
// are coarse byte bounds; the field sanitizers enforce the real limits.
func Struct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return invalid(field, "is required")
		case "max":
			return invalid(field, "is too long")
		default:
			return invalid(field, "is invalid")
		}
	}
	return invalid("body", err.Error())
}
