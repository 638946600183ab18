package form

import (
	"reflect"
	"strings"
	"testing"
)

func validDraft() Draft {
	return Draft{
		"firstName": "John",
		"lastName":  "Doe",
		"email":     "john@example.com",
		"phone":     "+1 234 567 8900",
		"company":   "",
		"service":   "SEO Optimization",
		"budget":    "$5,000 - $10,000",
		"message":   "We need help with our SEO strategy.",
	}
}

func contactDef() *FormDef { return ContactDef(ContactOptions{}) }

func TestValidateAcceptsValidDraft(t *testing.T) {
	clean, res := Validate(contactDef(), validDraft())
	if !res.Valid() {
		t.Fatalf("unexpected errors: %v", res)
	}
	if clean["company"] != "" {
		t.Fatalf("optional company should be empty, got %q", clean["company"])
	}
	if len(clean) != 8 {
		t.Fatalf("clean should carry every field, got %d", len(clean))
	}
}

func TestValidateSingleViolations(t *testing.T) {
	cases := []struct {
		field, value, want string
	}{
		{"firstName", "J", "First name must be at least 2 characters"},
		{"firstName", "   J   ", "First name must be at least 2 characters"},
		{"lastName", "", "Last name must be at least 2 characters"},
		{"email", "not-an-email", "Please enter a valid email address"},
		{"email", "", "Please enter a valid email address"},
		{"phone", "12345", "Please enter a valid phone number"},
		{"service", "", "Please select a service"},
		{"service", "Underwater Basket Weaving", "Please select a service"},
		{"budget", "", "Please select a budget range"},
		{"message", "too short", "Message must be at least 10 characters"},
		{"message", "   short   ", "Message must be at least 10 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.field+"="+tc.value, func(t *testing.T) {
			d := validDraft()
			d[tc.field] = tc.value
			_, res := Validate(contactDef(), d)
			want := ValidationResult{tc.field: tc.want}
			if !reflect.DeepEqual(res, want) {
				t.Fatalf("got %v, want %v", res, want)
			}
		})
	}
}

func TestValidateReportsEveryViolation(t *testing.T) {
	_, res := Validate(contactDef(), Draft{})
	for _, f := range []string{"firstName", "lastName", "email", "phone", "service", "budget", "message"} {
		if res[f] == "" {
			t.Errorf("missing error for %s", f)
		}
	}
	if _, ok := res["company"]; ok {
		t.Error("company is optional")
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	d := validDraft()
	d["email"] = "nope"
	d["message"] = "short"
	fd := contactDef()

	_, first := Validate(fd, d)
	_, second := Validate(fd, d)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ: %v vs %v", first, second)
	}
}

func TestValidateTrimsAndCountsRunes(t *testing.T) {
	d := validDraft()
	d["firstName"] = "  Zoë  "
	d["lastName"] = "Ng"
	clean, res := Validate(contactDef(), d)
	if !res.Valid() {
		t.Fatalf("unexpected errors: %v", res)
	}
	if clean["firstName"] != "Zoë" {
		t.Fatalf("firstName not trimmed: %q", clean["firstName"])
	}
}

func TestValidateFieldDefaults(t *testing.T) {
	f := &FieldDef{Name: "code", Label: "Code", Type: "text", Required: true, Pattern: `^[A-Z]{3}$`, MaxLength: 3}

	if _, msg := ValidateField(f, ""); msg != "This field is required." {
		t.Fatalf("required msg = %q", msg)
	}
	if _, msg := ValidateField(f, "abcd"); msg != "Must be at most 3 characters." {
		t.Fatalf("max msg = %q", msg)
	}
	if _, msg := ValidateField(f, "abc"); msg != "Input does not match required format." {
		t.Fatalf("pattern msg = %q", msg)
	}
	if v, msg := ValidateField(f, " ABC "); msg != "" || v != "ABC" {
		t.Fatalf("got %q, %q", v, msg)
	}
}

func TestOrderedFollowsDefinition(t *testing.T) {
	res := ValidationResult{"message": "m", "email": "e", FormLevel: "f", "zzz": "z"}
	got := res.Ordered(contactDef())
	var names []string
	for _, e := range got {
		names = append(names, e.Name)
	}
	if strings.Join(names, ",") != ",email,message,zzz" {
		t.Fatalf("order = %q", names)
	}
	if ValidationResult(nil).Ordered(contactDef()) != nil {
		t.Fatal("empty result should order to nil")
	}
}
