package head

import (
	"strings"
	"testing"
)

func TestRenderOrderAndEscaping(t *testing.T) {
	b := New()
	b.SetTitle("Old")
	b.SetTitle(`Contact "Us" & more`)
	b.Meta("description", "Reach <us>")
	b.Meta("description", "ignored")
	b.Link("canonical", "/contact")
	b.Link("canonical", "/contact")
	if err := b.JSONLD(map[string]string{"@type": "ContactPage", "name": "</script>"}); err != nil {
		t.Fatalf("JSONLD: %v", err)
	}

	got := string(b.Render())
	want := []string{
		"<title>Contact &#34;Us&#34; &amp; more</title>",
		`<meta name="description" content="Reach &lt;us&gt;">`,
		`<link rel="canonical" href="/contact">`,
		`<script type="application/ld+json">`,
	}
	last := -1
	for _, w := range want {
		i := strings.Index(got, w)
		if i < 0 {
			t.Fatalf("missing %q in\n%s", w, got)
		}
		if i < last {
			t.Fatalf("%q out of order", w)
		}
		last = i
	}
	if strings.Count(got, "<meta") != 1 || strings.Count(got, "<link") != 1 {
		t.Fatalf("duplicates not dropped:\n%s", got)
	}
	if strings.Contains(got, `"</script>"`) {
		t.Fatal("JSON-LD not escaped")
	}
}

func TestJSONLDError(t *testing.T) {
	if err := New().JSONLD(make(chan int)); err == nil {
		t.Fatal("want marshal error")
	}
}
