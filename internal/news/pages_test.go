package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bissquit/news-portal/internal/domain"
	"github.com/bissquit/news-portal/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPagesFixture(t *testing.T) (*Service, chi.Router) {
	t.Helper()
	service := NewService(newMockRepository())
	pages, err := NewPages(service)
	require.NoError(t, err)

	r := chi.NewRouter()
	pages.RegisterRoutes(r)
	return service, r
}

func getPage(r chi.Router, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestPages_Home(t *testing.T) {
	service, r := newPagesFixture(t)
	now := time.Now()
	for i := 0; i < HomePageSize+2; i++ {
		article := validArticle(userA)
		article.Title = "Story number " + string(rune('A'+i))
		article.PublishedAt = now.Add(time.Duration(i) * time.Minute)
		require.NoError(t, service.Create(context.Background(), article))
	}

	rec := getPage(r, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Equal(t, HomePageSize, strings.Count(body, `<li>`))
	assert.Contains(t, body, "Story number L")
	assert.NotContains(t, body, "Story number A<")
}

func TestPages_HomeEmpty(t *testing.T) {
	_, r := newPagesFixture(t)

	rec := getPage(r, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No articles found.")
}

func TestPages_Article(t *testing.T) {
	service, r := newPagesFixture(t)
	article := validArticle(userA)
	article.Title = "Tom & Jerry <return>"
	article.Body = `<p>Cartoon <strong>classic</strong> returns.</p><script>alert(1)</script>`
	require.NoError(t, service.Create(context.Background(), article))

	rec := getPage(r, "/articles/"+article.ID)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Tom &amp; Jerry &lt;return&gt;")
	assert.Contains(t, body, "<strong>classic</strong>")
	assert.NotContains(t, body, "<script>")
}

func TestPages_ArticleNotFound(t *testing.T) {
	_, r := newPagesFixture(t)

	rec := getPage(r, "/articles/does-not-exist")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Article not found")
}

func TestPages_Search(t *testing.T) {
	service, r := newPagesFixture(t)
	for _, title := range []string{"Budget vote delayed", "Budget passes senate", "Storm hits coast"} {
		article := validArticle(userA)
		article.Title = title
		require.NoError(t, service.Create(context.Background(), article))
	}

	rec := getPage(r, "/search?q=budget")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, `<li>`))
	assert.NotContains(t, body, "Storm hits coast")
	assert.Contains(t, body, `value="budget"`)
}

func TestPages_SummaryStripsMarkup(t *testing.T) {
	service, r := newPagesFixture(t)
	article := validArticle(userA)
	article.Body = "<p>" + strings.Repeat("word ", 60) + "</p>"
	require.NoError(t, service.Create(context.Background(), article))

	rec := getPage(r, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "&lt;p&gt;")
	assert.Contains(t, body, "...")
}

func TestPages_Viewer(t *testing.T) {
	service := NewService(newMockRepository())
	pages, err := NewPages(service)
	require.NoError(t, err)
	article := validArticle(userA)
	require.NoError(t, service.Create(context.Background(), article))

	tests := []struct {
		name        string
		viewer      *domain.User
		wantBanner  string
		wantCanEdit bool
	}{
		{name: "anonymous"},
		{name: "author", viewer: userA, wantBanner: "Signed in as Alice (Reader)", wantCanEdit: true},
		{name: "other reader", viewer: userB, wantBanner: "Signed in as Bob (Reader)"},
		{name: "admin", viewer: admin, wantBanner: "Signed in as Root (Admin)", wantCanEdit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					if tt.viewer != nil {
						req = req.WithContext(httputil.WithActor(req.Context(), tt.viewer))
					}
					next.ServeHTTP(w, req)
				})
			})
			pages.RegisterRoutes(r)

			body := getPage(r, "/articles/"+article.ID).Body.String()

			if tt.wantBanner == "" {
				assert.NotContains(t, body, "Signed in as")
			} else {
				assert.Contains(t, body, tt.wantBanner)
			}
			assert.Equal(t, tt.wantCanEdit, strings.Contains(body, "You can edit or delete this article."))
		})
	}
}
