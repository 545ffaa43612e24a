package news

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/bissquit/news-portal/internal/domain"
	"github.com/bissquit/news-portal/internal/pkg/ctxlog"
	"github.com/bissquit/news-portal/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templatesFS embed.FS

// HomePageSize is the number of articles shown on the home page.
const HomePageSize = 10

// Pages serves the public server-rendered site.
type Pages struct {
	service   *Service
	templates map[string]*template.Template
}

type pageData struct {
	Viewer   *domain.User
	Query    string
	Articles []*domain.Article
	Article  *domain.Article
	CanEdit  bool
}

// NewPages parses the embedded templates.
func NewPages(service *Service) (*Pages, error) {
	strict := bluemonday.StrictPolicy()
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string { return t.Format("2 January 2006, 15:04") },
		"summary": func(a *domain.Article) string {
			plain := *a
			plain.Body = strings.TrimSpace(html.UnescapeString(strict.Sanitize(a.Body)))
			return plain.Summary()
		},
		// Bodies are sanitized before they are stored.
		"trusted": func(s string) template.HTML { return template.HTML(s) },
	}

	p := &Pages{
		service:   service,
		templates: make(map[string]*template.Template),
	}

	for _, name := range []string{"index", "search", "article", "not_found"} {
		tmpl, err := template.New(name).Funcs(funcMap).ParseFS(templatesFS,
			"templates/base.html",
			"templates/list.html",
			fmt.Sprintf("templates/%s.html", name),
		)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		p.templates[name] = tmpl
	}

	return p, nil
}

// RegisterRoutes registers the HTML routes. A signed-in viewer, when the
// router resolves one, is shown in the page header.
func (p *Pages) RegisterRoutes(r chi.Router) {
	r.Get("/", p.Home)
	r.Get("/articles/{id}", p.Article)
	r.Get("/search", p.Search)
}

// Home handles GET / with the latest articles.
func (p *Pages) Home(w http.ResponseWriter, r *http.Request) {
	articles, err := p.service.ListLatest(r.Context(), HomePageSize)
	if err != nil {
		p.serverError(w, r, err)
		return
	}

	p.render(w, r, http.StatusOK, "index", pageData{Articles: articles})
}

// Article handles GET /articles/{id}.
func (p *Pages) Article(w http.ResponseWriter, r *http.Request) {
	article, ok, err := p.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		p.serverError(w, r, err)
		return
	}
	if !ok {
		p.render(w, r, http.StatusNotFound, "not_found", pageData{})
		return
	}

	p.render(w, r, http.StatusOK, "article", pageData{
		Article: article,
		CanEdit: p.service.CanEdit(article, httputil.GetActor(r.Context())),
	})
}

// Search handles GET /search?q= over article titles.
func (p *Pages) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	articles, err := p.service.SearchByTitle(r.Context(), query)
	if err != nil {
		p.serverError(w, r, err)
		return
	}

	p.render(w, r, http.StatusOK, "search", pageData{Query: query, Articles: articles})
}

func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	data.Viewer = httputil.GetActor(r.Context())

	var buf bytes.Buffer
	if err := p.templates[name].ExecuteTemplate(&buf, "base", data); err != nil {
		p.serverError(w, r, fmt.Errorf("render %s: %w", name, err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		ctxlog.FromContext(r.Context()).Error("failed to write page", "error", err)
	}
}

func (p *Pages) serverError(w http.ResponseWriter, r *http.Request, err error) {
	ctxlog.FromContext(r.Context()).Error("page error", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
