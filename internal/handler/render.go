package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/barangay/internal/auth"
	"github.com/dukerupert/barangay/internal/model"
)

// Shared templates parsed into every page set.
const (
	layoutTemplate   = "layout.html"
	partialsTemplate = "partials.html"
)

// Page is the data every full page template receives.
type Page struct {
	Title   string
	Auth    auth.AuthContext
	Flash   *Flash
	Office  model.OfficeProfile
	Pending int

	// Message and Errors describe a rejected form submission.
	Message string
	Errors  map[string]string

	Data any
}

func (p Page) IsAdmin() bool {
	return p.Auth.Role == model.RoleAdmin
}

func (p Page) SignedIn() bool {
	return p.Auth.OperatorID != 0
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"datetime": func(t time.Time) string {
		return t.Local().Format("Jan 2, 2006 3:04 PM")
	},
	"isodate": func(t time.Time) string {
		return t.Format(model.DateLayout)
	},
	"datep": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"deref": func(p *int) string {
		if p == nil {
			return ""
		}
		return fmt.Sprint(*p)
	},
	"refID": func(p *int64) string {
		if p == nil {
			return ""
		}
		return fmt.Sprint(*p)
	},
	"percent": func(n, total int) int {
		if total <= 0 {
			return 0
		}
		return n * 100 / total
	},
	"officeName": func(p model.OfficeProfile) string {
		if p.Barangay == "" {
			return "Barangay Records"
		}
		return "Barangay " + p.Barangay
	},
	"filesize": func(n int64) string {
		const unit = 1024
		if n < unit {
			return fmt.Sprintf("%d B", n)
		}
		div, exp := int64(unit), 0
		for m := n / unit; m >= unit; m /= unit {
			div *= unit
			exp++
		}
		return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
	},
	"lower": strings.ToLower,
	"list": func(v ...string) []string {
		return v
	},
}

// Renderer executes page templates. Each page is parsed together with the
// layout and shared partials so pages can define their own "content" block.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	names, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	pages := make(map[string]*template.Template)
	for _, name := range names {
		if name == layoutTemplate || name == partialsTemplate {
			continue
		}
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(fsys, layoutTemplate, partialsTemplate, name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Renderer{pages: pages, logger: logger.With("component", "render")}, nil
}

// Render executes the layout with the named page. Output is buffered so a
// template failure still produces a clean 500.
func (rd *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) {
	tmpl, ok := rd.pages[name]
	if !ok {
		rd.logger.Error("unknown template", "name", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		rd.logger.Error("template error", "name", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
