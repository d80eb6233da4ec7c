package validation

import (
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Validation rule patterns
var (
	// Person name pattern: letters (any script), spaces, hyphens, apostrophes
	NamePattern = `^[\p{L}][\p{L}\s'\-]*$`

	// Slot hour label, 24h "HH:MM"
	HourPattern = `^([01]\d|2[0-3]):[0-5]\d$`

	// Name validation min/max length
	NameMinLength = 1
	NameMaxLength = 100

	// Quota bounds for a single student
	MaxSlotsMin = 1
	MaxSlotsMax = 50
)

// CompiledPatterns caches compiled regex patterns for better performance
var CompiledPatterns = struct {
	Name *regexp.Regexp
	Hour *regexp.Regexp
}{
	Name: regexp.MustCompile(NamePattern),
	Hour: regexp.MustCompile(HourPattern),
}

// StringValidation validates a single string value
type StringValidation struct {
	Value   string
	MinLen  int
	MaxLen  int
	Pattern *regexp.Regexp
}

// NewStringValidation creates a new string validation
func NewStringValidation(value string) *StringValidation {
	return &StringValidation{Value: value}
}

// WithMinLength sets minimum length
func (v *StringValidation) WithMinLength(min int) *StringValidation {
	v.MinLen = min
	return v
}

// WithMaxLength sets maximum length
func (v *StringValidation) WithMaxLength(max int) *StringValidation {
	v.MaxLen = max
	return v
}

// WithPattern sets regex pattern
func (v *StringValidation) WithPattern(pattern *regexp.Regexp) *StringValidation {
	v.Pattern = pattern
	return v
}

// Validate performs validation. Empty values never pass; lengths count runes.
func (v *StringValidation) Validate() bool {
	if v.Value == "" {
		return false
	}

	n := utf8.RuneCountInString(v.Value)
	if v.MinLen > 0 && n < v.MinLen {
		return false
	}
	if v.MaxLen > 0 && n > v.MaxLen {
		return false
	}

	if v.Pattern != nil && !v.Pattern.MatchString(v.Value) {
		return false
	}

	return true
}

// NumericValidation validates a single integer value
type NumericValidation struct {
	Value int
	Min   int
	Max   int
}

// NewNumericValidation creates a new numeric validation
func NewNumericValidation(value int) *NumericValidation {
	return &NumericValidation{Value: value}
}

// WithMin sets minimum value
func (v *NumericValidation) WithMin(min int) *NumericValidation {
	v.Min = min
	return v
}

// WithMax sets maximum value
func (v *NumericValidation) WithMax(max int) *NumericValidation {
	v.Max = max
	return v
}

// Validate performs validation
func (v *NumericValidation) Validate() bool {
	if v.Min != 0 && v.Value < v.Min {
		return false
	}
	if v.Max != 0 && v.Value > v.Max {
		return false
	}
	return true
}

// IsValidName reports whether s is an acceptable first or last name
func IsValidName(s string) bool {
	return NewStringValidation(strings.TrimSpace(s)).
		WithMinLength(NameMinLength).
		WithMaxLength(NameMaxLength).
		WithPattern(CompiledPatterns.Name).
		Validate()
}

// IsValidMaxSlots reports whether n is an acceptable slot quota
func IsValidMaxSlots(n int) bool {
	return NewNumericValidation(n).WithMin(MaxSlotsMin).WithMax(MaxSlotsMax).Validate()
}

// IsValidHour reports whether s is a "HH:MM" label
func IsValidHour(s string) bool {
	return CompiledPatterns.Hour.MatchString(s)
}

// RegisterGinValidators installs the custom tags on gin's validator and makes
// field errors report json names.
func RegisterGinValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return Register(v)
}

// Register installs the custom tags on v
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return IsValidName(fl.Field().String())
	})
}
