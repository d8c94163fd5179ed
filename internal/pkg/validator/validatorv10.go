package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// NIST 800-63B length bounds; 72 is the bcrypt input limit.
	rePassword = regexp.MustCompile(`^.{8,72}$`)

	// POSIX portable login name as accepted by useradd.
	reUsername = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)
)

// ErrTranslatorNotFound indicates the requested translator is unavailable.
var ErrTranslatorNotFound = errors.New("translator not found")

// V10Validator implements Validator using go-playground/validator v10.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// V10ValidationError is a field-to-message map returned when validation fails.
//
// Keys are field names in snake_case to match the JSON bodies.
type V10ValidationError map[string]string

// Error implements the error interface.
func (vs V10ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}

	b, err := json.Marshal(vs)
	if err != nil {
		return fmt.Sprintf("validation error (failed to marshal: %v)", err)
	}
	return string(b)
}

// Values returns the field error map.
func (vs V10ValidationError) Values() map[string]string {
	return vs
}

// NewV10Validator constructs a V10Validator with English translations and custom rules.
func NewV10Validator() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	enTrans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, err
	}

	if err := registerRules(validate, enTrans); err != nil {
		return nil, err
	}

	return &V10Validator{
		validate:   validate,
		translator: enTrans,
	}, nil
}

// Validate validates a struct and returns a V10ValidationError on failure.
func (v *V10Validator) Validate(data any) error {
	if err := v.validate.Struct(data); err != nil {
		var validateErrs validator.ValidationErrors
		if !errors.As(err, &validateErrs) {
			return err
		}

		errV10 := make(V10ValidationError)
		for _, fe := range validateErrs {
			errV10[toSnake(fe.Field())] = fe.Translate(v.translator)
		}

		return errV10
	}

	return nil
}

type rule struct {
	tag string
	re  *regexp.Regexp
	msg string
}

func registerRules(validate *validator.Validate, enTrans ut.Translator) error {
	rules := []rule{
		{tag: "password", re: rePassword, msg: "{0} must be 8-72 characters"},
		{tag: "username", re: reUsername, msg: "{0} must be a valid login name"},
	}

	for _, r := range rules {
		if err := validate.RegisterValidation(r.tag, func(fl validator.FieldLevel) bool {
			s, ok := fl.Field().Interface().(string)
			return ok && r.re.MatchString(s)
		}); err != nil {
			return err
		}

		if err := validate.RegisterTranslation(r.tag, enTrans,
			func(ut ut.Translator) error {
				return ut.Add(r.tag, r.msg, false)
			},
			translate,
		); err != nil {
			return err
		}
	}

	return nil
}

func translate(trans ut.Translator, fe validator.FieldError) string {
	t, err := trans.T(fe.Tag(), fe.Field())
	if err != nil {
		slog.Warn("warning: error translating", "field", fe.Field(), "tag", fe.Tag(), "error", err)
		return fe.Error()
	}

	return t
}

// toSnake converts a Go field name to snake_case, keeping initialisms
// together (SessionRef -> session_ref, HTTPCode -> http_code).
func toSnake(s string) string {
	runes := []rune(s)

	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
