package app

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"psych-assessment-service/internal/domain"
)

// fieldMessages holds the user-facing message for each field/rule pair.
var fieldMessages = map[string]map[string]string{
	"title": {
		"min": "Title must be at least 3 characters",
		"max": "Title must be at most 100 characters",
	},
	"description": {
		"min": "Description must be at least 10 characters",
	},
	"category": {
		"oneof": "Select a valid test type",
	},
	"domains": {
		"required": "At least one domain is required",
	},
	"scoringMethodology": {
		"oneof": "Select a valid scoring methodology",
	},
	"completionTime": {
		"min": "Completion time must be between 1 and 180 minutes",
		"max": "Completion time must be between 1 and 180 minutes",
	},
	"confidentialityLevel": {
		"oneof": "Select a valid confidentiality level",
	},
	"clinicalMinScore": {
		"min": "Minimum score cannot be negative",
	},
	"clinicalMaxScore": {
		"min":     "Maximum score must be at least 1",
		"gtfield": "Maximum score must exceed the minimum score",
	},
	"consentContent": {
		"min": "Consent content is required",
	},
	"ethicalApproval": {
		"affirmed": "Ethical approval must be confirmed",
	},
	"userId": {
		"required": "User is required",
	},
	"dateOfBirth": {
		"datetime": "Date of birth must be formatted YYYY-MM-DD",
	},
	"phone": {
		"max": "Phone number must be at most 32 characters",
	},
}

// Schema validates builder forms as a unit.
type Schema struct {
	validate *validator.Validate
}

func NewSchema() *Schema {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// affirmed accepts only an explicit true.
	_ = v.RegisterValidation("affirmed", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.Bool && fl.Field().Bool()
	})
	return &Schema{validate: v}
}

// Validate returns a *domain.ValidationError describing every invalid field, or nil.
func (s *Schema) Validate(form FormState) error {
	return s.check(form)
}

func (s *Schema) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if _, seen := fields[name]; seen {
			continue
		}
		fields[name] = messageFor(name, fe.Tag())
	}
	return &domain.ValidationError{Fields: fields}
}

// ValidatePayload checks a submission payload the same way the form is checked on submit.
func (s *Schema) ValidatePayload(p Payload) error {
	return s.Validate(p.Form)
}

func messageFor(field, tag string) string {
	if msg, ok := fieldMessages[field][tag]; ok {
		return msg
	}
	return "Invalid value"
}
