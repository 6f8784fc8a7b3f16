package services

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"drive_mapping/internal/prefecture"
)

var fieldMessages = map[string]string{
	"Title":          "title is required (100 characters max)",
	"Summary":        "summary must be 255 characters or fewer",
	"Address":        "address must be 255 characters or fewer",
	"SiteURL":        "destination site must be a valid URL",
	"PrefectureCode": "primary prefecture is invalid",
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("prefecture", func(fl validator.FieldLevel) bool {
		return prefecture.Valid(int(fl.Field().Int()))
	})
	return v
}

// validateForm reports every violation at once as a *ValidationError.
func validateForm(v *validator.Validate, f RouteForm) error {
	err := v.Struct(f)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &ValidationError{}
	seen := make(map[string]bool)
	for _, fe := range fieldErrs {
		field := fe.StructField()
		if seen[field] {
			continue
		}
		seen[field] = true
		msg, ok := fieldMessages[field]
		if !ok {
			msg = field + " is invalid"
		}
		verr.Messages = append(verr.Messages, msg)
	}
	return verr
}
