// Package validation builds the shared validator used for domain entities and configuration.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// ErrInvalid is matched by every *Error.
var ErrInvalid = errors.New("validation failed")

// Error carries translated field messages.
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalid.Error(), strings.Join(e.Messages, ", "))
}

func (e *Error) Unwrap() error {
	return ErrInvalid
}

// NewError builds an *Error from plain messages, for checks the validator cannot express.
func NewError(messages ...string) *Error {
	return &Error{Messages: messages}
}

type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New creates a validator whose field names come from tagName (e.g. "json" or "mapstructure").
func New(tagName string) (*Validator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get(tagName), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validate:   validate,
		translator: trans,
	}, nil
}

// Must is New for package-level initialization.
func Must(tagName string) *Validator {
	v, err := New(tagName)
	if err != nil {
		panic(err)
	}
	return v
}

// Struct validates s and returns an *Error listing every failing field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validate.Struct > %w", err)
	}
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, e.Translate(v.translator))
	}
	return &Error{Messages: messages}
}

// Var validates a single value against tag, naming it field in the message.
func (v *Validator) Var(field string, value any, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validate.Var(%s) > %w", field, err)
	}
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, field+e.Translate(v.translator))
	}
	return &Error{Messages: messages}
}

// Validate exposes the underlying validator for custom registrations.
func (v *Validator) Validate() *validator.Validate {
	return v.validate
}
