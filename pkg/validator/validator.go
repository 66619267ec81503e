package validator

import (
	"context"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator"
)

var (
	global    *validator.Validate
	timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

const (
	ErrInvalidFormat      = "Invalid format"
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldBelowMinLen   = "Field is below minimum length"
	ErrFieldExceedsMaxVal = "Field exceeds maximum value"
	ErrFieldBelowMinVal   = "Field is below minimum value"
	ErrInvalidRole        = "Role must be attendee or organizer"
	ErrUnknownValidation  = "Unknown validation error"
)

// FieldError describes one rejected field, named as it appears in JSON.
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

// BadFormat reports whether the value was present but not parseable, as
// opposed to out of range or missing.
func (f FieldError) BadFormat() bool {
	switch f.Tag {
	case "date", "clock", "email":
		return true
	}
	return false
}

func (f FieldError) String() string {
	return f.Message + ": " + f.Field
}

// Errors lists every rejected field in declaration order.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, f := range e {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("date", validateDate)
	_ = v.RegisterValidation("clock", validateClock)
	_ = v.RegisterValidation("role", validateRole)
	return v
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// date accepts calendar dates in YYYY-MM-DD form.
func validateDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(time.DateOnly, fl.Field().String())
	return err == nil
}

// clock accepts HH:MM, empty allowed.
func validateClock(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || timeRegex.MatchString(s)
}

func validateRole(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "attendee", "organizer":
		return true
	}
	return false
}

// Validate returns nil or an Errors value.
func Validate(ctx context.Context, structure any) error {
	err := Validator().StructCtx(ctx, structure)
	if err == nil {
		return nil
	}
	vErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	if len(vErrors) == 0 {
		return nil
	}

	out := make(Errors, 0, len(vErrors))
	for _, fe := range vErrors {
		out = append(out, FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: message(fe.Tag())})
	}
	return out
}

func message(tag string) string {
	switch tag {
	case "date", "clock", "email":
		return ErrInvalidFormat
	case "required":
		return ErrFieldRequired
	case "max":
		return ErrFieldExceedsMaxLen
	case "min":
		return ErrFieldBelowMinLen
	case "lt", "lte":
		return ErrFieldExceedsMaxVal
	case "gt", "gte":
		return ErrFieldBelowMinVal
	case "role":
		return ErrInvalidRole
	}
	return ErrUnknownValidation
}
