package api

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"NewsCrew/internal/studio"
	"NewsCrew/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

// pages 持有预解析的页面模板，每个页面与公共布局单独组合。
type pages struct {
	index  *template.Template
	result *template.Template
	errors *template.Template
}

func mustLoadPages() *pages {
	load := func(name string) *template.Template {
		return template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name))
	}
	return &pages{
		index:  load("index.html"),
		result: load("result.html"),
		errors: load("error.html"),
	}
}

type errorPage struct {
	Code    int
	Message string
}

// render 先渲染到缓冲区，模板出错时不会输出半个页面。
func (p *pages) render(w http.ResponseWriter, status int, tmpl *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		logger.L().Error("渲染页面失败", slog.String("page", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (p *pages) renderIndex(w http.ResponseWriter) {
	p.render(w, http.StatusOK, p.index, "index.html", nil)
}

func (p *pages) renderResult(w http.ResponseWriter, pack *studio.ContentPack) {
	p.render(w, http.StatusOK, p.result, "result.html", pack)
}

func (p *pages) renderError(w http.ResponseWriter, status int, message string) {
	p.render(w, status, p.errors, "error.html", errorPage{Code: status, Message: message})
}
