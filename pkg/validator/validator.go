package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var pairingCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

type CustomValidator struct {
	validator *validator.Validate
	motives   map[string]bool
}

// NewValidator registers the domain tags; motives is the accepted list for the "motive" tag
func NewValidator(motives ...string) *CustomValidator {
	cv := &CustomValidator{
		validator: validator.New(),
		motives:   make(map[string]bool, len(motives)),
	}
	for _, m := range motives {
		cv.motives[strings.ToLower(m)] = true
	}

	_ = cv.validator.RegisterValidation("motive", cv.validateMotive)
	_ = cv.validator.RegisterValidation("pairingcode", validatePairingCode)
	_ = cv.validator.RegisterValidation("notblank", validateNotBlank)

	return cv
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// IsMotive reports whether m is an accepted registration motive
func (cv *CustomValidator) IsMotive(m string) bool {
	return cv.motives[strings.ToLower(strings.TrimSpace(m))]
}

func (cv *CustomValidator) validateMotive(fl validator.FieldLevel) bool {
	return cv.IsMotive(fl.Field().String())
}

func validatePairingCode(fl validator.FieldLevel) bool {
	return IsPairingCode(fl.Field().String())
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func IsPairingCode(code string) bool {
	return pairingCodePattern.MatchString(code)
}

func (cv *CustomValidator) FormatValidationErrors(err error) map[string]string {
	errors := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			field := e.Field()
			switch e.Tag() {
			case "required", "notblank":
				errors[field] = field + " is required"
			case "email":
				errors[field] = field + " must be a valid email address"
			case "min":
				errors[field] = field + " must be at least " + e.Param() + " characters"
			case "max":
				errors[field] = field + " must be at most " + e.Param() + " characters"
			case "oneof":
				errors[field] = field + " must be one of: " + e.Param()
			case "motive":
				errors[field] = field + " is not an accepted motive"
			case "pairingcode":
				errors[field] = field + " must be exactly 6 digits"
			case "uuid", "uuid4":
				errors[field] = field + " must be a valid id"
			default:
				errors[field] = field + " is invalid"
			}
		}
	}

	return errors
}
