// internal/form/validate.go
//
// Forms subsystem: field validators and the validation result.
//
// Context
//   Every field has an independent, pure validator over its current text.
//   Validate runs all of them against a draft and reports every failure at
//   once so the page can highlight each problem in one pass.  The result is
//   a plain field → message map; an empty map means the draft is valid.
//
// Workflow
//   •  Values are trimmed before any rule runs.  Lengths count characters
//      (runes), not bytes.
//   •  Optional fields left empty pass without further checks.
//   •  A field's ErrorMsg, when set, is the message for every failure of that
//      field.  Otherwise a generic message describes the broken rule.
//   •  Form-level problems (bad token, expired page) use the empty key.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// FormLevel is the ValidationResult key for problems not tied to one field.
const FormLevel = ""

// -----------------------------------------------------------------------------
// Draft
// -----------------------------------------------------------------------------

// Draft holds the user-editable values of one form, keyed by field name.
type Draft map[string]string

// Clone returns an independent copy of d.
func (d Draft) Clone() Draft {
	out := make(Draft, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// -----------------------------------------------------------------------------
// Result and error types
// -----------------------------------------------------------------------------

// ValidationResult maps field name to a user-facing message.  A field absent
// from the map passed validation.
type ValidationResult map[string]string

// Valid reports whether no field failed.
func (r ValidationResult) Valid() bool { return len(r) == 0 }

// ErrorField describes a single validation failure so templates can render a
// field-level message.
type ErrorField struct {
	Name    string `json:"field"`
	Message string `json:"message"`
}

// Ordered lists the failures in definition order, form-level entries first.
// Keys unknown to fd follow in lexical order.
func (r ValidationResult) Ordered(fd *FormDef) []ErrorField {
	if len(r) == 0 {
		return nil
	}
	out := make([]ErrorField, 0, len(r))
	seen := make(map[string]bool, len(r))

	if msg, ok := r[FormLevel]; ok {
		out = append(out, ErrorField{FormLevel, msg})
		seen[FormLevel] = true
	}
	if fd != nil {
		for _, f := range fd.Fields {
			if msg, ok := r[f.Name]; ok {
				out = append(out, ErrorField{f.Name, msg})
				seen[f.Name] = true
			}
		}
	}

	var rest []string
	for k := range r {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		out = append(out, ErrorField{k, r[k]})
	}
	return out
}

// ValidationError wraps a non-empty ValidationResult.  Callers tell it apart
// from delivery failures with IsValidationError or errors.As.
type ValidationError struct {
	Result ValidationResult
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("form validation failed: %d field(s)", len(e.Result))
}

// IsValidationError reports whether err came from a failed validation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// -----------------------------------------------------------------------------
// Public API
// -----------------------------------------------------------------------------

// Validate checks every field of fd against d.  It returns the trimmed values
// of all fields (empty optional fields included) and the failures.  The same
// draft always yields the same result.
func Validate(fd *FormDef, d Draft) (Draft, ValidationResult) {
	clean := make(Draft, len(fd.Fields))
	res := make(ValidationResult)

	for i := range fd.Fields {
		f := &fd.Fields[i]
		val, msg := ValidateField(f, d[f.Name])
		if msg != "" {
			res[f.Name] = msg
			continue
		}
		clean[f.Name] = val
	}
	return clean, res
}

// ValidateField runs the rules of f against raw.  It returns the trimmed
// value and an empty message on success, or a user-facing message.
func ValidateField(f *FieldDef, raw string) (string, string) {
	val := strings.TrimSpace(raw)

	if val == "" {
		if f.Required {
			return "", requiredMsg(f)
		}
		return "", ""
	}

	if msg := lengthCheck(f, val); msg != "" {
		return "", msg
	}

	switch f.Type {
	case "email":
		if !validEmail(val) {
			return "", invalidMsg(f)
		}
	case "select", "radio":
		if !optionAllowed(f.Options, val) {
			return "", invalidMsg(f)
		}
	}

	if f.Pattern != "" && !regexMatch(f.Pattern, val) {
		return "", patternMsg(f)
	}
	return val, ""
}

// -----------------------------------------------------------------------------
// Rule helpers
// -----------------------------------------------------------------------------

var validate = validator.New()

func validEmail(s string) bool {
	return validate.Var(s, "email") == nil
}

// lengthCheck validates minlength and maxlength in characters.
func lengthCheck(f *FieldDef, s string) string {
	n := utf8.RuneCountInString(s)
	if f.MinLength > 0 && n < f.MinLength {
		if f.ErrorMsg != "" {
			return f.ErrorMsg
		}
		return fmt.Sprintf("Must be at least %d characters.", f.MinLength)
	}
	if f.MaxLength > 0 && n > f.MaxLength {
		if f.ErrorMsg != "" {
			return f.ErrorMsg
		}
		return fmt.Sprintf("Must be at most %d characters.", f.MaxLength)
	}
	return ""
}

var (
	patternMu    sync.Mutex
	patternCache = make(map[string]*regexp.Regexp)
)

// regexMatch caches compiled patterns.  Patterns were checked at load, so
// MustCompile cannot panic here.
func regexMatch(pattern, s string) bool {
	patternMu.Lock()
	re, ok := patternCache[pattern]
	if !ok {
		re = regexp.MustCompile(pattern)
		patternCache[pattern] = re
	}
	patternMu.Unlock()
	return re.MatchString(s)
}

func optionAllowed(opts []string, v string) bool {
	for _, o := range opts {
		if o == v {
			return true
		}
	}
	return false
}

// user-facing default messages
func requiredMsg(f *FieldDef) string {
	if f.ErrorMsg != "" {
		return f.ErrorMsg
	}
	return "This field is required."
}
func invalidMsg(f *FieldDef) string {
	if f.ErrorMsg != "" {
		return f.ErrorMsg
	}
	return "Invalid input."
}
func patternMsg(f *FieldDef) string {
	if f.ErrorMsg != "" {
		return f.ErrorMsg
	}
	return "Input does not match required format."
}
