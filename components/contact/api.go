package contact

import (
	"encoding/json"
	"net/http"

	"github.com/yanizio/adept-leads/internal/config"
	"github.com/yanizio/adept-leads/internal/form"
)

// submitRequest is the body of POST /api/contact.  Instance is optional; when
// present it must match the instance carried by CSRFToken.
type submitRequest struct {
	Instance  string            `json:"instance"`
	CSRFToken string            `json:"csrfToken"`
	Fields    map[string]string `json:"fields"`
}

// submitResponse is the body of every POST /api/contact reply.
type submitResponse struct {
	Status string            `json:"status"`
	Errors []form.ErrorField `json:"errors,omitempty"`
	Notice string            `json:"notice,omitempty"`
}

// optionsResponse is the body of GET /api/contact/options.  The token starts
// a new form instance for script clients.
type optionsResponse struct {
	Services  []string         `json:"services"`
	Budgets   []string         `json:"budgets"`
	Channels  []config.Channel `json:"channels"`
	Instance  string           `json:"instance"`
	CSRFToken string           `json:"csrfToken"`
}

// Status strings mirror the session outcomes.
var statusText = map[int]string{
	http.StatusOK:                  "submitted",
	http.StatusBadRequest:          "bad_request",
	http.StatusConflict:            "submitting",
	http.StatusUnprocessableEntity: "invalid",
	http.StatusBadGateway:          "failed",
	http.StatusInternalServerError: "error",
}

func (c *Component) handleOptions(w http.ResponseWriter, r *http.Request) {
	fd, ok := c.def()
	if !ok {
		writeJSON(w, http.StatusNotFound, submitResponse{Status: "error", Notice: "form not found"})
		return
	}
	tok, err := form.GenerateToken()
	if err != nil {
		c.log.Errorw("generate csrf token", "err", err)
		writeJSON(w, http.StatusInternalServerError, submitResponse{Status: "error", Notice: ErrorNotice})
		return
	}
	instance, _, _ := form.VerifyToken(tok)

	resp := optionsResponse{
		Channels:  c.channels(),
		Instance:  instance,
		CSRFToken: tok,
	}
	if f, ok := fd.Field("service"); ok {
		resp.Services = f.Options
	}
	if f, ok := fd.Field("budget"); ok {
		resp.Budgets = f.Options
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

func (c *Component) handleSubmitJSON(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Status: statusText[http.StatusBadRequest], Notice: "malformed JSON body"})
		return
	}

	if req.Instance != "" {
		if inst, _, ok := form.VerifyToken(req.CSRFToken); ok && inst != req.Instance {
			writeJSON(w, http.StatusBadRequest, submitResponse{Status: statusText[http.StatusBadRequest], Notice: "instance does not match token"})
			return
		}
	}

	fd, ok := c.def()
	if !ok {
		writeJSON(w, http.StatusNotFound, submitResponse{Status: "error", Notice: "form not found"})
		return
	}
	if req.Fields == nil {
		req.Fields = map[string]string{}
	}

	res := c.submit(r.Context(), req.CSRFToken, req.Fields)
	writeJSON(w, res.status, submitResponse{
		Status: statusText[res.status],
		Errors: res.errs.Ordered(fd),
		Notice: res.notice,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
