package twin

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidActivity is returned when an Activity fails validation.
var ErrInvalidActivity = errors.New("invalid activity")

var validate = newValidator()

// newValidator adds the "finite" tag, which rejects NaN and ±Inf. The store
// refuses non-finite numbers, so they must be caught before any write.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}); err != nil {
		panic(err)
	}
	return v
}

// ValidateActivity checks a's struct tags.
func ValidateActivity(a Activity) error {
	if err := validate.Struct(a); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		msgs := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			msgs = append(msgs, formatFieldError(e))
		}
		return fmt.Errorf("%w: %s", ErrInvalidActivity, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidActivity, err)
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "finite":
		return fmt.Sprintf("%s must be a finite number", field)
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
