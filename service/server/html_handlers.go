package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/brojonat/sollink/service/dashboard"
)

//go:embed templates/*.html
var templatesFS embed.FS

// TemplateRenderer holds parsed HTML templates
type TemplateRenderer struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewTemplateRenderer creates a new template renderer from embedded files.
// funcs is installed before parsing, normally view.FuncMap.
func NewTemplateRenderer(funcs template.FuncMap, logger *slog.Logger) (*TemplateRenderer, error) {
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &TemplateRenderer{
		templates: tmpl,
		logger:    logger,
	}, nil
}

// Render renders a template with the given data
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tr.templates.ExecuteTemplate(w, name, data)
}

type dashboardPage struct {
	dashboard.Snapshot
	StreamEnabled bool
}

// handleDashboardPage serves the dashboard rendered from the current snapshot.
func handleDashboardPage(renderer *TemplateRenderer, dash Dashboard, streamEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := dashboardPage{
			Snapshot:      dash.Snapshot(),
			StreamEnabled: streamEnabled,
		}
		if err := renderer.Render(w, "dashboard.html", page); err != nil {
			renderer.logger.Error("failed to render template", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}
