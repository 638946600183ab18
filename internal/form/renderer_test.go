package form

import (
	"strings"
	"testing"
)

func TestRenderFormMarkup(t *testing.T) {
	withKey(t)
	out, err := RenderForm(contactDef(), RenderOptions{
		Prefill:  map[string]string{"firstName": `J"<x>`, "service": "Other", "message": "hi <b>"},
		Errors:   ValidationResult{"firstName": "First name must be at least 2 characters", FormLevel: "Form expired."},
		Token:    "TOKEN",
		Disabled: true,
	})
	if err != nil {
		t.Fatalf("RenderForm: %v", err)
	}
	html := string(out)
	if strings.Contains(html, "render_ts") {
		t.Error("unsigned render timestamp still emitted")
	}

	for _, want := range []string{
		`<p class="form-error" role="alert">Form expired.</p>`,
		`<div class="form-field has-error">`,
		`<label for="fld-firstName">First Name *</label>`,
		`value="J&#34;&lt;x&gt;"`,
		`<option value="Other" selected>Other</option>`,
		`<option value="">Select a service</option>`,
		`>hi &lt;b&gt;</textarea>`,
		`<span class="error" aria-live="polite">First name must be at least 2 characters</span>`,
		`<input type="hidden" name="csrf_token" value="TOKEN">`,
		`<button type="submit" disabled aria-busy="true">Send Message</button>`,
		`<label for="fld-company">Company Name</label>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("missing %s", want)
		}
	}
}

func TestRenderFormMintsToken(t *testing.T) {
	withKey(t)
	out, err := RenderForm(contactDef(), RenderOptions{})
	if err != nil {
		t.Fatalf("RenderForm: %v", err)
	}
	i := strings.Index(string(out), `name="csrf_token" value="`)
	if i < 0 {
		t.Fatal("no token input")
	}
	rest := string(out)[i+len(`name="csrf_token" value="`):]
	tok := rest[:strings.IndexByte(rest, '"')]
	if _, _, ok := VerifyToken(tok); !ok {
		t.Fatalf("minted token %q does not verify", tok)
	}
}
