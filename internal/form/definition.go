// internal/form/definition.go
//
// Forms subsystem: definition model, registry, and YAML loader.
//
// Context
//   Every form the service accepts is described by a FormDef: its identifier,
//   ordered fields, and the delivery actions that run after a draft passes
//   validation.  The contact form ships as a built-in definition (contact.go)
//   whose select options come from configuration.  Operators may replace or
//   add definitions by dropping “*.yaml” files under one of the configured
//   form directories.
//
// Workflow
//   •  LoadFormDef parses a single YAML file and validates structural rules.
//   •  Register validates and stores one definition, replacing any earlier
//      definition with the same ID.
//   •  RegisterForms walks the form directories in precedence order.  When
//      two directories define the same ID, the earlier directory wins.
//   •  GetFormDef offers read-only access to a registered form by ID.
//
// Style
//   Full sentences, two spaces after periods, Oxford commas.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// FormDef represents one form definition.
//
// Fields are validated and rendered in slice order.  Actions run after a
// draft passes validation; an empty list means submissions are accepted and
// dropped, which is only useful in tests.
type FormDef struct {
	ID      string      `yaml:"id"`
	Title   string      `yaml:"title"`
	Fields  []FieldDef  `yaml:"fields"`
	Actions []ActionDef `yaml:"actions"`
}

// FieldDef describes a single input control.  Validation metadata lives
// inline so the server enforces the same rules the rendered HTML hints at.
type FieldDef struct {
	Name        string   `yaml:"name"`        // Submission key.  Required.
	Label       string   `yaml:"label"`       // Human-readable label.  Required.
	Type        string   `yaml:"type"`        // text, tel, email, textarea, select, or radio.
	Placeholder string   `yaml:"placeholder"` // For select, the label of the empty option.
	Required    bool     `yaml:"required"`
	MinLength   int      `yaml:"minlength"` // Characters after trimming.  0 means unset.
	MaxLength   int      `yaml:"maxlength"` // Characters after trimming.  0 means unset.
	Pattern     string   `yaml:"pattern"`
	Options     []string `yaml:"options"` // Ordered allowed values for select and radio.
	ErrorMsg    string   `yaml:"error"`   // Message reported for any failure of this field.
}

// ActionDef configures one delivery step executed after validation.
// Params are provider specific and checked by the dispatcher at run time.
type ActionDef struct {
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:",inline"`
}

// Field returns the definition of the named field.
func (fd *FormDef) Field(name string) (FieldDef, bool) {
	for _, f := range fd.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*FormDef)
)

// GetFormDef returns a registered FormDef by ID.  The boolean is false when
// the ID is unknown.
func GetFormDef(id string) (*FormDef, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fd, ok := registry[id]
	return fd, ok
}

// Register validates fd and stores it, replacing any definition with the same
// ID.  Sessions created before the swap keep the definition they started with.
func Register(fd *FormDef) error {
	if err := validateFormDef(fd, "<memory>"); err != nil {
		return err
	}
	registryMu.Lock()
	registry[fd.ID] = fd
	registryMu.Unlock()
	return nil
}

// -----------------------------------------------------------------------------
// Loader API
// -----------------------------------------------------------------------------

// LoadFormDef parses one YAML file, validates its structure, and returns a
// populated FormDef.  It never touches the registry.
func LoadFormDef(path string) (*FormDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form file %s: %w", path, err)
	}

	var fd FormDef
	if err := yaml.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", path, err)
	}

	if err := validateFormDef(&fd, path); err != nil {
		return nil, err
	}
	return &fd, nil
}

// RegisterForms loads every “*.yaml” below each directory and registers the
// result.  dirs must be ordered by precedence, highest first.  Missing
// directories are skipped.  Nothing is registered when any file fails to
// load, so a bad edit never leaves the registry half-updated.
//
// It returns the IDs that were registered.
func RegisterForms(dirs []string) ([]string, error) {
	if len(dirs) == 0 {
		return nil, errors.New("RegisterForms: no form directories provided")
	}

	loaded := make(map[string]*FormDef)
	var order []string

	for _, base := range dirs {
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".yaml") {
				return nil
			}

			fd, err := LoadFormDef(path)
			if err != nil {
				return err
			}
			if _, seen := loaded[fd.ID]; seen {
				return nil // higher-precedence directory already supplied it.
			}
			loaded[fd.ID] = fd
			order = append(order, fd.ID)
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	registryMu.Lock()
	for _, id := range order {
		registry[id] = loaded[id]
	}
	registryMu.Unlock()
	return order, nil
}

// -----------------------------------------------------------------------------
// Structural validation
// -----------------------------------------------------------------------------

var fieldTypes = map[string]bool{
	"text":     true,
	"tel":      true,
	"email":    true,
	"textarea": true,
	"select":   true,
	"radio":    true,
}

var actionTypes = map[string]bool{
	"store":   true,
	"webhook": true,
	"email":   true,
}

// validateFormDef enforces rules YAML tags cannot express.  It returns a
// descriptive error naming the offending source.
func validateFormDef(fd *FormDef, path string) error {
	if fd.ID == "" {
		return fmt.Errorf("form definition %s: missing required 'id'", path)
	}
	if len(fd.Fields) == 0 {
		return fmt.Errorf("form definition %s: must have 'fields'", path)
	}

	names := make(map[string]struct{}, len(fd.Fields))
	for i := range fd.Fields {
		if err := validateField(&fd.Fields[i], path); err != nil {
			return err
		}
		if _, dup := names[fd.Fields[i].Name]; dup {
			return fmt.Errorf("form %s: duplicate field name '%s'", path, fd.Fields[i].Name)
		}
		names[fd.Fields[i].Name] = struct{}{}
	}

	for _, ac := range fd.Actions {
		if !actionTypes[ac.Type] {
			return fmt.Errorf("form %s: unrecognized action type '%s'", path, ac.Type)
		}
	}
	return nil
}

// validateField confirms that essential attributes are present and sane.
func validateField(f *FieldDef, path string) error {
	if f.Name == "" {
		return fmt.Errorf("form %s: field missing 'name'", path)
	}
	if f.Label == "" {
		return fmt.Errorf("form %s: field '%s' missing 'label'", path, f.Name)
	}
	if !fieldTypes[f.Type] {
		return fmt.Errorf("form %s: field '%s' has unsupported type %q", path, f.Name, f.Type)
	}

	if f.Pattern != "" {
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return fmt.Errorf("form %s: field '%s' invalid regex pattern: %v", path, f.Name, err)
		}
	}

	if f.MinLength < 0 || f.MaxLength < 0 {
		return fmt.Errorf("form %s: field '%s' minlength/maxlength cannot be negative", path, f.Name)
	}
	if f.MaxLength > 0 && f.MinLength > f.MaxLength {
		return fmt.Errorf("form %s: field '%s' minlength greater than maxlength", path, f.Name)
	}

	if (f.Type == "select" || f.Type == "radio") && len(f.Options) == 0 {
		return fmt.Errorf("form %s: field '%s' needs at least one option", path, f.Name)
	}
	return nil
}
