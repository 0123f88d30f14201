package daemon

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"searchq/internal/api"
	"searchq/internal/logging"
)

//go:embed ui/manager.html.tmpl
var uiFS embed.FS

var managerPage = template.Must(template.ParseFS(uiFS, "ui/manager.html.tmpl"))

type pageData struct {
	Token string
	View  api.QueueView
}

func (s *apiServer) handlePage(w http.ResponseWriter, r *http.Request) {
	view, err := s.daemon.View(r.Context(), "")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	data := pageData{View: view}
	if s.token != "" {
		data.Token = r.URL.Query().Get("token")
	}

	var buf bytes.Buffer
	if err := managerPage.Execute(&buf, data); err != nil {
		s.logger.Error("render management page",
			logging.Error(err),
			logging.String(logging.FieldEventType, "ui_render_failed"),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}
