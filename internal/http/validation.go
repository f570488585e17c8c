package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/application"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body into dst and validates its struct tags.
// Malformed JSON yields errBadRequestBody, tag failures a ValidationError.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errBadRequestBody
	}
	return validateStruct(dst)
}

func validateStruct(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	vErr := &application.ValidationError{FieldErrors: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		field := fieldPath(fe.Namespace())
		if _, exists := vErr.FieldErrors[field]; !exists {
			vErr.FieldErrors[field] = fieldMessage(fe)
		}
	}
	return vErr
}

// fieldPath turns "createSessionRequest.recurring.days[0]" into
// "recurring.days".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		namespace = rest
	}
	if i := strings.IndexByte(namespace, '['); i >= 0 {
		namespace = namespace[:i]
	}
	return namespace
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.String {
			return name + " must have at least " + fe.Param() + " item(s)"
		}
		return name + " must be at least " + fe.Param()
	case "max":
		return name + " must be at most " + fe.Param()
	case "gt":
		return name + " must be greater than " + fe.Param()
	default:
		return name + " is invalid"
	}
}

// fieldErrors accumulates parse failures of individual request fields.
type fieldErrors map[string]string

func (f fieldErrors) timestamp(field, value string, required bool) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			f[field] = field + " is required"
		}
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		f[field] = field + " must be an RFC 3339 timestamp"
		return time.Time{}
	}
	return ts
}

// date accepts a calendar date or a full timestamp.
func (f fieldErrors) date(field, value string) time.Time {
	value = strings.TrimSpace(value)
	if ts, err := time.Parse(time.DateOnly, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	f[field] = field + " must be a date (YYYY-MM-DD)"
	return time.Time{}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &application.ValidationError{FieldErrors: f}
}
