package app

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorSummaryItem links an error banner entry to the field it describes.
type ErrorSummaryItem struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// ValidationError is a rejected form submission: messages keyed by field
// plus the same messages as an ordered summary list.
type ValidationError struct {
	Errors  map[string]string  `json:"errors"`
	Summary []ErrorSummaryItem `json:"errorSummary"`
}

func (e *ValidationError) Error() string {
	texts := make([]string, 0, len(e.Summary))
	for _, s := range e.Summary {
		texts = append(texts, s.Text)
	}
	return "validation failed: " + strings.Join(texts, "; ")
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Errors: make(map[string]string)}
}

// Add records a message for field. Only the first message per field is kept.
func (e *ValidationError) Add(field, text string) {
	if _, exists := e.Errors[field]; exists {
		return
	}
	e.Errors[field] = text
	e.Summary = append(e.Summary, ErrorSummaryItem{Href: "#" + field, Text: text})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// fieldMessages gives the text shown for a failed rule, keyed by
// "field.tag". A field's "*" entry covers any other rule.
var fieldMessages = map[string]string{
	"journey.*":             "Select the type of returns notice",
	"issuer.*":              "Enter the email address of the person sending the notice",
	"periodStartDate.*":     "Enter the start of the returns period",
	"periodEndDate.gtfield": "The end of the returns period must be after its start",
	"periodEndDate.*":       "Enter the end of the returns period",
	"dueDate.*":             "Enter the returns due date",
}

// validateStruct runs the struct's validate tags and converts failures
// into a ValidationError.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	ve := NewValidationError()
	for _, fe := range fieldErrs {
		field := fe.Field()
		text, ok := fieldMessages[field+"."+fe.Tag()]
		if !ok {
			text, ok = fieldMessages[field+".*"]
		}
		if !ok {
			text = field + " is invalid"
		}
		ve.Add(field, text)
	}
	return ve
}
