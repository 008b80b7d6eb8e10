package http

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"budget/internal/core"
	"budget/internal/log"
	appweb "budget/web"
)

// Full pages, each rendered inside layout.html. partialSet holds only the
// layout and the partials, for HTMX fragments.
var pages = []string{
	"index.html",
	"account_new.html",
	"account_remove.html",
	"transaction_new.html",
	"subscription_new.html",
}

const partialSet = "partials"

var templateFuncs = template.FuncMap{
	"money":     core.FormatAmount,
	"monthName": monthName,
}

func parseTemplates() (map[string]*template.Template, error) {
	base, err := template.New("layout.html").
		Funcs(templateFuncs).
		ParseFS(appweb.TemplatesFS, "templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	set := map[string]*template.Template{partialSet: base}
	for _, page := range pages {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		t, err := clone.ParseFS(appweb.TemplatesFS, "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		set[page] = t
	}
	return set, nil
}

// render executes a named template from set into a buffer first, so a
// failing template never leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, set, name string, data any) {
	logger := log.FromContext(r.Context())

	t, ok := s.templates[set]
	if !ok {
		logger.ErrorContext(r.Context(), "Templates not loaded", "template", set)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		logger.ErrorContext(r.Context(), "Template execution failed",
			"template", set+"/"+name,
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// page renders a static page with no data beyond the layout's.
func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, name, "layout.html", pageData{Title: pageTitles[name]})
	}
}

var pageTitles = map[string]string{
	"index.html":            "Dashboard",
	"account_new.html":      "New account",
	"account_remove.html":   "Remove account",
	"transaction_new.html":  "New transaction",
	"subscription_new.html": "New subscription",
}

type pageData struct {
	Title string
	Data  any
}
