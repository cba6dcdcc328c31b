package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
)

// Upload filename rules.
const (
	maxFilenameLength  = 255
	forbiddenFileChars = `<>:"|?*`
	meshExtension      = ".stl"
)

var (
	// ErrValidation wraps validator failures.
	ErrValidation = errors.New("validation failed")

	// ErrBinding wraps body or query decoding failures.
	ErrBinding = errors.New("binding failed")
)

// Validator returns the shared validator with the quote tags registered.
var Validator = sync.OnceValue(newValidator)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(wireName)

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("material", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseMaterial(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("stlfilename", func(fl validator.FieldLevel) bool {
		return isMeshFilename(fl.Field().String())
	})

	v.RegisterStructValidation(fileUpdateChanges, FileUpdate{})

	return v
}

// wireName reports fields by their JSON name, or the form name for
// query-only fields, so errors match what the client sent.
func wireName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}

	return fld.Name
}

// isMeshFilename reports whether name is acceptable as an uploaded STL name.
func isMeshFilename(name string) bool {
	return strings.TrimSpace(name) != "" &&
		len(name) <= maxFilenameLength &&
		!strings.ContainsAny(name, forbiddenFileChars) &&
		strings.HasSuffix(strings.ToLower(name), meshExtension)
}

// fileUpdateChanges rejects updates that change nothing.
func fileUpdateChanges(sl validator.StructLevel) {
	u, ok := sl.Current().Interface().(FileUpdate)
	if !ok || u.Quantity != nil || u.Material != nil {
		return
	}

	sl.ReportError(u.Quantity, "quantity", "Quantity", "changes", "material")
}

// Validate runs the struct tags of v.
func Validate(v any) error {
	if err := Validator().Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

// BindAndValidate decodes the JSON body into v and validates it.
func BindAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return Validate(v)
}

// BindQueryAndValidate decodes the query string into v and validates it.
func BindQueryAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindQuery(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return Validate(v)
}

// IsValidationError reports whether err carries validator field errors.
func IsValidationError(err error) bool {
	var fieldErrs validator.ValidationErrors
	return errors.As(err, &fieldErrs)
}

// ValidationErrors maps each failing field to a client-facing message.
// When a field fails several times (one per file update), the first wins.
func ValidationErrors(err error) map[string]string {
	out := make(map[string]string)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return out
	}

	for _, fe := range fieldErrs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = message(fe)
		}
	}

	return out
}

func message(fe validator.FieldError) string {
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "material":
		return "must be one of " + materialCodes()
	case "stlfilename":
		return "must be a " + meshExtension + " filename without any of " + forbiddenFileChars
	case "changes":
		return "either quantity or material must be set"
	case "unique":
		return "must not repeat a " + strings.ToLower(param)
	case "oneof":
		return "must be one of: " + param
	case "gt":
		return "must be greater than " + param
	case "gte":
		return "must be greater than or equal to " + param
	case "lt":
		return "must be less than " + param
	case "lte":
		return "must be less than or equal to " + param
	case "min", "max":
		return bound(fe.Tag(), param, fe.Kind())
	default:
		return "failed validation: " + fe.Tag()
	}
}

// bound words min/max for strings as lengths and for slices as counts.
func bound(tag, param string, kind reflect.Kind) string {
	unit := ""

	switch kind {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Array:
		unit = " entries"
	}

	if tag == "min" {
		return "must be at least " + param + unit
	}

	return "must be at most " + param + unit
}

func materialCodes() string {
	codes := make([]string, 0, len(domain.Materials()))
	for _, m := range domain.Materials() {
		codes = append(codes, m.String())
	}

	return strings.Join(codes, ", ")
}
