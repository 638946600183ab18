// internal/head/builder.go
//
// The Builder collects everything that should appear inside a page’s
// <head> element.  It is scoped to a single render call.  Handlers push
// tags into the builder, then the page template emits Render() once.
//
// Features
// --------
//   - SetTitle    – single <title> tag (last call wins).
//   - Meta, Link  – name/content and rel/href pairs, deduplicated.
//   - JSONLD      – marshals a value into <script type="application/ld+json">.
//
// All attribute values are escaped here; callers pass plain strings.
package head

import (
	"encoding/json"
	"html/template"
	"strings"
)

// Builder is not safe for concurrent use.
type Builder struct {
	title  string
	metas  [][2]string
	links  [][2]string
	jsonLD []string
	seen   map[string]struct{}
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{seen: make(map[string]struct{})}
}

// SetTitle overrides the page <title>.  The last caller wins.
func (b *Builder) SetTitle(t string) { b.title = t }

// Meta adds <meta name content>.  Repeated names keep the first value.
func (b *Builder) Meta(name, content string) {
	if b.once("meta:" + name) {
		b.metas = append(b.metas, [2]string{name, content})
	}
}

// Link adds <link rel href>.  Exact duplicates are dropped.
func (b *Builder) Link(rel, href string) {
	if b.once("link:" + rel + " " + href) {
		b.links = append(b.links, [2]string{rel, href})
	}
}

// JSONLD adds one structured-data block.
func (b *Builder) JSONLD(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	// json.Marshal already escapes <, >, and &, so the block cannot close
	// its script element early.
	b.jsonLD = append(b.jsonLD, string(raw))
	return nil
}

func (b *Builder) once(key string) bool {
	if _, dup := b.seen[key]; dup {
		return false
	}
	b.seen[key] = struct{}{}
	return true
}

// Render returns the collected tags in a stable order: title, metas, links,
// then JSON-LD.
func (b *Builder) Render() template.HTML {
	var sb strings.Builder
	esc := template.HTMLEscapeString
	if b.title != "" {
		sb.WriteString("<title>" + esc(b.title) + "</title>\n")
	}
	for _, m := range b.metas {
		sb.WriteString(`<meta name="` + esc(m[0]) + `" content="` + esc(m[1]) + `">` + "\n")
	}
	for _, l := range b.links {
		sb.WriteString(`<link rel="` + esc(l[0]) + `" href="` + esc(l[1]) + `">` + "\n")
	}
	for _, js := range b.jsonLD {
		sb.WriteString(`<script type="application/ld+json">` + js + "</script>\n")
	}
	return template.HTML(sb.String())
}
