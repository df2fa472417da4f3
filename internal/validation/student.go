// Package validation turns loosely typed request payloads into typed student
// field sets, collecting every violation per field instead of stopping at the
// first one.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/students-api/internal/models"
)

// Mode selects how absent fields are treated.
type Mode int

const (
	// ModeFull requires every mandatory field to be present.
	ModeFull Mode = iota
	// ModePartial only checks the fields that were sent.
	ModePartial
)

const (
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldEmail     = "email"
	FieldAge       = "age"

	// FieldSchema keys errors about the payload as a whole.
	FieldSchema = "_schema"
)

const (
	MsgRequired     = "Missing data for required field."
	MsgNull         = "Field may not be null."
	MsgString       = "Not a valid string."
	MsgInteger      = "Not a valid integer."
	MsgEmail        = "Not a valid email address."
	MsgInvalidInput = "Invalid input type."
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindInteger
)

type fieldRule struct {
	name     string
	kind     fieldKind
	required bool
	nullable bool
	tag      string
}

// Column widths mirror the students table.
var studentRules = []fieldRule{
	{name: FieldFirstName, kind: kindString, required: true, tag: "min=1,max=120"},
	{name: FieldLastName, kind: kindString, nullable: true, tag: "max=120"},
	{name: FieldEmail, kind: kindString, required: true, tag: "email,max=120"},
	{name: FieldAge, kind: kindInteger, nullable: true},
}

// FieldErrors maps a field name to its violation messages.
type FieldErrors map[string][]string

func (f FieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Error implements error so FieldErrors can travel through error returns.
func (f FieldErrors) Error() string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(f[name], " "))
	}
	return "invalid student payload: " + strings.Join(parts, "; ")
}

// InvalidInput is the error reported for bodies that are not JSON objects.
func InvalidInput() FieldErrors {
	return FieldErrors{FieldSchema: {MsgInvalidInput}}
}

// StudentInput is a validated student field set. Only fields present in the
// original payload are marked as provided.
type StudentInput struct {
	FirstName string
	LastName  *string
	Email     string
	Age       *int

	provided map[string]struct{}
}

// Has reports whether field was present in the payload.
func (in *StudentInput) Has(field string) bool {
	_, ok := in.provided[field]
	return ok
}

// NewStudent builds an unsaved record from the input.
func (in *StudentInput) NewStudent() models.Student {
	var s models.Student
	in.ApplyTo(&s)
	return s
}

// ApplyTo overwrites the provided fields of s and leaves the rest untouched.
func (in *StudentInput) ApplyTo(s *models.Student) {
	if in.Has(FieldFirstName) {
		s.FirstName = in.FirstName
	}
	if in.Has(FieldLastName) {
		s.LastName = in.LastName
	}
	if in.Has(FieldEmail) {
		s.Email = in.Email
	}
	if in.Has(FieldAge) {
		s.Age = in.Age
	}
}

// StudentValidator checks student payloads using go-playground/validator for
// the per-field constraints.
type StudentValidator struct {
	validate *validator.Validate
}

// NewStudentValidator constructs a StudentValidator.
func NewStudentValidator(validate *validator.Validate) *StudentValidator {
	if validate == nil {
		validate = validator.New()
	}
	return &StudentValidator{validate: validate}
}

// Validate converts input into a StudentInput. Unknown keys are ignored. The
// returned FieldErrors is nil when the payload is valid.
func (v *StudentValidator) Validate(input map[string]interface{}, mode Mode) (*StudentInput, FieldErrors) {
	out := &StudentInput{provided: make(map[string]struct{}, len(studentRules))}
	errs := FieldErrors{}

	for _, rule := range studentRules {
		raw, present := input[rule.name]
		if !present {
			if rule.required && mode == ModeFull {
				errs.add(rule.name, MsgRequired)
			}
			continue
		}
		if raw == nil {
			if !rule.nullable {
				errs.add(rule.name, MsgNull)
				continue
			}
			out.provided[rule.name] = struct{}{}
			continue
		}

		switch rule.kind {
		case kindString:
			str, ok := raw.(string)
			if !ok {
				errs.add(rule.name, MsgString)
				continue
			}
			if msgs := v.check(str, rule.tag); len(msgs) > 0 {
				errs[rule.name] = append(errs[rule.name], msgs...)
				continue
			}
			out.setString(rule.name, str)
		case kindInteger:
			n, ok := toInt(raw)
			if !ok {
				errs.add(rule.name, MsgInteger)
				continue
			}
			out.Age = &n
		}
		out.provided[rule.name] = struct{}{}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func (in *StudentInput) setString(field, value string) {
	switch field {
	case FieldFirstName:
		in.FirstName = value
	case FieldLastName:
		in.LastName = &value
	case FieldEmail:
		in.Email = value
	}
}

func (v *StudentValidator) check(value, tag string) []string {
	if tag == "" {
		return nil
	}
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, messageFor(fe))
	}
	return msgs
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return MsgRequired
	case "email":
		return MsgEmail
	case "min":
		return fmt.Sprintf("Shorter than minimum length %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Longer than maximum length %s.", fe.Param())
	default:
		return fmt.Sprintf("Failed %s validation.", fe.Tag())
	}
}

// toInt accepts JSON numbers without a fractional part and numeric strings
// within the 32-bit range of the age column. Booleans are rejected.
func toInt(raw interface{}) (int, bool) {
	var n int64
	switch value := raw.(type) {
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) || value != math.Trunc(value) {
			return 0, false
		}
		if value < math.MinInt32 || value > math.MaxInt32 {
			return 0, false
		}
		n = int64(value)
	case json.Number:
		i, err := value.Int64()
		if err != nil {
			return 0, false
		}
		n = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return 0, false
		}
		n = i
	case int:
		n = int64(value)
	case int64:
		n = value
	default:
		return 0, false
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}
