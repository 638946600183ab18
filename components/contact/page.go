package contact

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/yanizio/adept-leads/internal/config"
	"github.com/yanizio/adept-leads/internal/form"
	"github.com/yanizio/adept-leads/internal/head"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTpl = template.Must(template.ParseFS(templateFS, "templates/contact.html"))

// pageData feeds templates/contact.html.
type pageData struct {
	Head     template.HTML
	Form     template.HTML
	Notice   string
	Success  bool
	Channels []channelView
}

// pageDescription is the meta description of the contact page.
const pageDescription = "Tell us about your project and we'll get back to you within 24 hours."

// buildHead assembles the <head> tags of the contact page, including a
// schema.org ContactPage block listing the reachable channels.
func buildHead(title string, channels []config.Channel) (template.HTML, error) {
	h := head.New()
	h.SetTitle(title)
	h.Meta("description", pageDescription)
	h.Meta("robots", "index, follow")
	h.Link("canonical", "/contact")

	type contactPoint struct {
		Type        string `json:"@type"`
		ContactType string `json:"contactType"`
		URL         string `json:"url,omitempty"`
		Description string `json:"description,omitempty"`
	}
	points := make([]contactPoint, 0, len(channels))
	for _, ch := range channels {
		points = append(points, contactPoint{
			Type:        "ContactPoint",
			ContactType: ch.Title,
			URL:         ch.Action,
			Description: ch.Content,
		})
	}
	if err := h.JSONLD(map[string]any{
		"@context":     "https://schema.org",
		"@type":        "ContactPage",
		"name":         title,
		"description":  pageDescription,
		"contactPoint": points,
	}); err != nil {
		return "", err
	}
	return h.Render(), nil
}

// channelView marks configured actions as trusted so tel: links survive
// html/template's URL filter.
type channelView struct {
	Title       string
	Content     string
	Description string
	Action      template.URL
}

func channelViews(in []config.Channel) []channelView {
	out := make([]channelView, len(in))
	for i, ch := range in {
		out[i] = channelView{
			Title:       ch.Title,
			Content:     ch.Content,
			Description: ch.Description,
			Action:      template.URL(ch.Action),
		}
	}
	return out
}

func (c *Component) handlePageGET(w http.ResponseWriter, r *http.Request) {
	c.renderPage(w, http.StatusOK, result{})
}

func (c *Component) handlePagePOST(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseForm(); err != nil {
		c.renderPage(w, http.StatusBadRequest, result{notice: ErrorNotice})
		return
	}

	fd, ok := c.def()
	if !ok {
		http.NotFound(w, r)
		return
	}
	// Only defined fields are read; hidden inputs and stray keys are ignored.
	values := make(map[string]string, len(fd.Fields))
	for _, f := range fd.Fields {
		values[f.Name] = r.PostForm.Get(f.Name)
	}

	res := c.submit(r.Context(), r.PostForm.Get("csrf_token"), values)
	c.renderPage(w, res.status, res)
}

// renderPage writes the full page.  A fresh token, and so a new form
// instance, is minted unless res carries the posted one.
func (c *Component) renderPage(w http.ResponseWriter, status int, res result) {
	fd, ok := c.def()
	if !ok {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	markup, err := form.RenderForm(fd, form.RenderOptions{
		Prefill:  res.draft,
		Errors:   res.errs,
		Disabled: res.busy,
		Token:    res.token,
	})
	if err != nil {
		c.log.Errorw("render contact form", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	channels := c.channels()
	headHTML, err := buildHead(fd.Title, channels)
	if err != nil {
		c.log.Errorw("render contact head", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := pageTpl.Execute(&buf, pageData{
		Head:     headHTML,
		Form:     markup,
		Notice:   res.notice,
		Success:  status == http.StatusOK && res.notice != "",
		Channels: channelViews(channels),
	}); err != nil {
		c.log.Errorw("render contact page", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
