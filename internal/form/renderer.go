// internal/form/renderer.go
//
// Forms subsystem: HTML renderer.
//
// Context
//   Converts a FormDef into plain, accessible HTML.  The renderer applies
//   HTML5 validation hints, injects the CSRF token, re-populates submitted values, and writes each field's error message
//   next to its control.
//
// Style
//   No framework classes.  Each input gets id="fld-{name}" and is wrapped in
//   <div class="form-field">; failing fields add the "has-error" class.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strconv"
)

// RenderOptions bundles optional parameters influencing HTML output.
type RenderOptions struct {
	Prefill  map[string]string // values keyed by field name
	Errors   ValidationResult  // messages keyed by field name
	Token    string            // CSRF token; generated when empty
	Disabled bool              // render the submit control disabled
}

// RenderForm returns the markup for fd.
func RenderForm(fd *FormDef, opts RenderOptions) (template.HTML, error) {
	if opts.Token == "" {
		tok, err := GenerateToken()
		if err != nil {
			return "", fmt.Errorf("RenderForm: token: %w", err)
		}
		opts.Token = tok
	}

	var buf bytes.Buffer
	buf.WriteString(`<div class="lead-form" data-form="` + html.EscapeString(fd.ID) + `">` + "\n")

	if msg := opts.Errors[FormLevel]; msg != "" {
		buf.WriteString(`<p class="form-error" role="alert">` + html.EscapeString(msg) + `</p>` + "\n")
	}

	for i := range fd.Fields {
		f := &fd.Fields[i]
		if err := writeField(&buf, f, opts.Prefill[f.Name], opts.Errors[f.Name]); err != nil {
			return "", err
		}
	}

	buf.WriteString(fmt.Sprintf(`<input type="hidden" name="csrf_token" value="%s">`+"\n", html.EscapeString(opts.Token)))

	disabled := ""
	if opts.Disabled {
		disabled = ` disabled aria-busy="true"`
	}
	buf.WriteString(`<button type="submit"` + disabled + `>Send Message</button>` + "\n")
	buf.WriteString(`</div>`)
	return template.HTML(buf.String()), nil
}

// writeField emits one field.
func writeField(buf *bytes.Buffer, f *FieldDef, val, errMsg string) error {
	class := "form-field"
	if errMsg != "" {
		class += " has-error"
	}
	buf.WriteString(`<div class="` + class + `">` + "\n")

	name := html.EscapeString(f.Name)
	idAttr := `id="fld-` + name + `"`
	nameAttr := `name="` + name + `"`

	label := html.EscapeString(f.Label)
	if f.Required {
		label += " *"
	}
	buf.WriteString(`<label for="fld-` + name + `">` + label + `</label>` + "\n")

	switch f.Type {
	case "text", "email", "tel":
		buf.WriteString(`<input ` + idAttr + ` ` + nameAttr + ` type="` + f.Type + `"`)
		if f.Placeholder != "" {
			buf.WriteString(` placeholder="` + html.EscapeString(f.Placeholder) + `"`)
		}
		writeConstraints(buf, f)
		if f.Pattern != "" {
			buf.WriteString(` pattern="` + html.EscapeString(f.Pattern) + `"`)
		}
		if val != "" {
			buf.WriteString(` value="` + html.EscapeString(val) + `"`)
		}
		buf.WriteString(`>` + "\n")

	case "textarea":
		buf.WriteString(`<textarea ` + idAttr + ` ` + nameAttr + ` rows="6"`)
		writeConstraints(buf, f)
		if f.Placeholder != "" {
			buf.WriteString(` placeholder="` + html.EscapeString(f.Placeholder) + `"`)
		}
		buf.WriteString(`>` + html.EscapeString(val) + `</textarea>` + "\n")

	case "select":
		buf.WriteString(`<select ` + idAttr + ` ` + nameAttr)
		if f.Required {
			buf.WriteString(` required`)
		}
		buf.WriteString(`>` + "\n")
		buf.WriteString(`<option value="">` + html.EscapeString(f.Placeholder) + `</option>` + "\n")
		for _, opt := range f.Options {
			sel := ""
			if val == opt {
				sel = ` selected`
			}
			o := html.EscapeString(opt)
			buf.WriteString(`<option value="` + o + `"` + sel + `>` + o + `</option>` + "\n")
		}
		buf.WriteString(`</select>` + "\n")

	case "radio":
		for i, opt := range f.Options {
			radioID := fmt.Sprintf("fld-%s-%d", name, i)
			checked := ""
			if val == opt {
				checked = ` checked`
			}
			o := html.EscapeString(opt)
			buf.WriteString(`<div class="radio-option">` + "\n")
			buf.WriteString(`<input id="` + radioID + `" ` + nameAttr + ` type="radio" value="` + o + `"` + checked)
			if f.Required {
				buf.WriteString(` required`)
			}
			buf.WriteString(`>` + "\n")
			buf.WriteString(`<label for="` + radioID + `">` + o + `</label>` + "\n")
			buf.WriteString(`</div>` + "\n")
		}

	default:
		return fmt.Errorf("writeField: unsupported field type %q in form field %s", f.Type, f.Name)
	}

	buf.WriteString(`<span class="error" aria-live="polite">` + html.EscapeString(errMsg) + `</span>` + "\n")
	buf.WriteString(`</div>` + "\n")
	return nil
}

func writeConstraints(buf *bytes.Buffer, f *FieldDef) {
	if f.Required {
		buf.WriteString(` required`)
	}
	if f.MinLength > 0 {
		buf.WriteString(` minlength="` + strconv.Itoa(f.MinLength) + `"`)
	}
	if f.MaxLength > 0 {
		buf.WriteString(` maxlength="` + strconv.Itoa(f.MaxLength) + `"`)
	}
}
