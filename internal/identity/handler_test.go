package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/news-portal/internal/domain"
	"github.com/bissquit/news-portal/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	repo    *mockRepository
	service *Service
	router  chi.Router
	admin   *domain.User
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	repo := newMockRepository()
	service := NewService(repo, fastBcrypt(), &mockAuthenticator{})
	admin := &domain.User{Name: "Admin", Email: "admin@example.com", Password: "admin123", Role: domain.RoleAdmin}
	require.NoError(t, service.Create(context.Background(), admin))

	handler := NewHandler(service, CookieSettings{Secure: true})
	r := chi.NewRouter()
	handler.RegisterRoutes(r, nil)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(httputil.WithActor(req.Context(), admin)))
			})
		})
		handler.RegisterProtectedRoutes(r)
		handler.RegisterAdminRoutes(r)
	})

	return &handlerFixture{repo: repo, service: service, router: r, admin: admin}
}

func (f *handlerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

func TestHandler_Login(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(http.MethodPost, "/auth/login", `{"email":"admin@example.com","password":"admin123"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "token-"+f.admin.ID, resp.Token)
	assert.Equal(t, f.admin.ID, resp.User.ID)

	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, httputil.SessionCookie)
	require.Contains(t, cookies, httputil.CSRFTokenCookie)
	assert.True(t, cookies[httputil.SessionCookie].HttpOnly)
	assert.True(t, cookies[httputil.SessionCookie].Secure)
	assert.False(t, cookies[httputil.CSRFTokenCookie].HttpOnly)
	assert.Len(t, cookies[httputil.CSRFTokenCookie].Value, 64)
}

func TestHandler_LoginFailures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "wrong password", body: `{"email":"admin@example.com","password":"nope"}`, wantStatus: http.StatusUnauthorized},
		{name: "unknown email", body: `{"email":"ghost@example.com","password":"admin123"}`, wantStatus: http.StatusUnauthorized},
		{name: "missing password", body: `{"email":"admin@example.com"}`, wantStatus: http.StatusBadRequest},
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)

			rec := f.do(http.MethodPost, "/auth/login", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestHandler_Logout(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(http.MethodPost, "/auth/logout", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	}
}

func TestHandler_Me(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(http.MethodGet, "/me", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var user domain.User
	decodeData(t, rec, &user)
	assert.Equal(t, f.admin.ID, user.ID)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestHandler_UserCRUD(t *testing.T) {
	f := newHandlerFixture(t)

	// Create
	rec := f.do(http.MethodPost, "/users", `{"name":"Bob","email":"bob@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.User
	decodeData(t, rec, &created)
	assert.Equal(t, domain.RoleReader, created.Role)

	// Duplicate
	rec = f.do(http.MethodPost, "/users", `{"name":"Bob","email":"BOB@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Get
	rec = f.do(http.MethodGet, "/users/"+created.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Update without password keeps it
	rec = f.do(http.MethodPut, "/users/"+created.ID, `{"name":"Robert","email":"bob@example.com","role":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, fastBcrypt().Compare(f.repo.users[created.ID].Password, "secret123"))
	assert.Equal(t, domain.RoleAdmin, f.repo.users[created.ID].Role)

	// List
	rec = f.do(http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var users []domain.User
	decodeData(t, rec, &users)
	assert.Len(t, users, 2)

	// Delete
	rec = f.do(http.MethodDelete, "/users/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, "/users/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_CreateUserValidation(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(http.MethodPost, "/users", `{"name":"Bob","email":"bob@example.com","password":"123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"password"`)

	rec = f.do(http.MethodPost, "/users", `{"name":"Bob","email":"bob@example.com","password":"secret123","role":"editor"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/users", `{"name":"Bob","email":"bob@example.com","password":"`+strings.Repeat("p", PasswordMaxBytes+1)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"password"`)
}

func TestHandler_DeleteUser(t *testing.T) {
	t.Run("self deletion is forbidden", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(http.MethodDelete, "/users/"+f.admin.ID, "")

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, f.repo.users, f.admin.ID)
	})

	t.Run("self deletion with the id in another case", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(http.MethodDelete, "/users/"+strings.ToUpper(f.admin.ID), "")

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, f.repo.users, f.admin.ID)
	})

	t.Run("other user with the id in upper case", func(t *testing.T) {
		f := newHandlerFixture(t)
		other := newUser("other@example.com")
		require.NoError(t, f.service.Create(context.Background(), other))

		rec := f.do(http.MethodDelete, "/users/"+strings.ToUpper(other.ID), "")

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.NotContains(t, f.repo.users, other.ID)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(http.MethodDelete, "/users/not-a-uuid", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("user with articles", func(t *testing.T) {
		f := newHandlerFixture(t)
		author := newUser("author@example.com")
		require.NoError(t, f.service.Create(context.Background(), author))
		f.repo.deleteErr = ErrUserHasArticles

		rec := f.do(http.MethodDelete, "/users/"+author.ID, "")

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
