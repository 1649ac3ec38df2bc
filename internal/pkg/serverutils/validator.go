package serverutils

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest runs struct-tag validation and converts the first failure
// into a client-facing 400.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			fe := errs[0]
			return NewValidationError(fmt.Sprintf("field '%s' failed on '%s' validation", fe.Field(), fe.Tag()))
		}
		return NewValidationError(err.Error())
	}
	return nil
}
