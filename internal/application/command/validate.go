package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/learnhub/completion-core/internal/domain/shared"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// validateCommand runs struct tags and maps failures to ErrInvalidInput.
func validateCommand(domain, op string, cmd interface{}) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError(domain, op, shared.ErrInvalidInput, "invalid command", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return shared.WrapError(domain, op, shared.ErrInvalidInput, "invalid fields: "+strings.Join(fields, ", "), err)
}
