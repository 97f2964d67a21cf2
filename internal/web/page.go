package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"weekplan/internal/app"
	appLog "weekplan/internal/log"
	"weekplan/internal/model"
)

//go:embed templates/week.html
var templatesFS embed.FS

type pageRenderer struct {
	tmpl *template.Template
}

func newPageRenderer() *pageRenderer {
	funcs := template.FuncMap{
		"px": func(v float64) string {
			return strconv.FormatFloat(v, 'f', 1, 64) + "px"
		},
		"int": func(c model.Color) int { return int(c) },
	}
	tmpl := template.Must(template.New("week.html").Funcs(funcs).ParseFS(templatesFS, "templates/week.html"))
	return &pageRenderer{tmpl: tmpl}
}

type pageData struct {
	View app.View
	Dark bool

	OriginX float64
	OriginY float64
	Width   float64
	Height  float64
}

func newPageData(v app.View, dark bool) pageData {
	d := pageData{View: v, Dark: dark}
	if len(v.Days) > 0 {
		d.OriginX = v.Days[0].X
	}
	if len(v.Hours) > 0 {
		d.OriginY = v.Hours[0].Y
	}
	d.Width = d.OriginX + float64(len(v.Days))*v.ColumnWidth
	d.Height = d.OriginY + v.GridHeight
	return d
}

// handleWeekPage renders the grid server-side. The body carries
// data-ready="true" so headless captures know the page is complete.
func (s *Server) handleWeekPage(w http.ResponseWriter, r *http.Request) {
	data := newPageData(s.planner.View(), r.URL.Query().Get("theme") == "dark")

	var buf bytes.Buffer
	if err := s.page.tmpl.Execute(&buf, data); err != nil {
		appLog.Error("week page render failed", err)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
