package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"payee-ledger/internal/core/domain"
)

// safeIDPattern accepts idempotency keys and client identifiers:
// alphanumerics plus the separators clients commonly embed.
var safeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9:_\-\.]+$`)

// RegisterValidators installs the custom binding validators. Call once at
// startup before the router handles traffic.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("safe_id", validateSafeID); err != nil {
		return err
	}
	return v.RegisterValidation("currency_code", validateCurrencyCode)
}

func validateSafeID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // let required handle empties
	}
	return safeIDPattern.MatchString(value)
}

func validateCurrencyCode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return domain.IsValidCurrency(strings.ToUpper(value))
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field of a struct pointer. Nested structs are walked recursively.
func SanitizeStruct(s interface{}) {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(html.EscapeString(strings.TrimSpace(field.String())))
		case reflect.Struct:
			SanitizeStruct(field.Addr().Interface())
		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				SanitizeStruct(field.Interface())
			}
		}
	}
}
