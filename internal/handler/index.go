package handler

import (
	"embed"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer renders the embedded HTML templates for echo.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates; a parse error is a build defect.
func NewRenderer() *Renderer {
	return &Renderer{tmpl: template.Must(template.ParseFS(templateFS, "templates/*.html"))}
}

func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}

type indexView struct {
	Region    string `json:"region"`
	IsReplica bool   `json:"is_replica"`
	DBStatus  string `json:"db_status"`
}

// Index handles GET / and reports region, replica flag and whether a
// connection could be opened.  No query is run.
func (h *Handler) Index(c echo.Context) error {
	view := indexView{Region: h.Cfg.Region, IsReplica: h.Cfg.IsReplica, DBStatus: "disconnected"}
	if sess, ok := h.open(c.Request().Context()); ok {
		view.DBStatus = "connected"
		h.release(sess)
	}
	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) {
		return c.JSON(http.StatusOK, view)
	}
	return c.Render(http.StatusOK, "index.html", view)
}
