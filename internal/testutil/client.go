// Package testutil provides helpers shared by the integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"testing"

	"github.com/bissquit/news-portal/internal/pkg/httputil"
)

// Credentials of the administrator bootstrapped by integration setups.
const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin123"
)

// Client drives the news portal over HTTP the way a browser or script would:
// cookies are kept in a jar and the CSRF header is echoed on writes. Every
// exchange with the JSON API is checked against the OpenAPI document.
type Client struct {
	BaseURL string
	// Token, when set, is sent as a Bearer token instead of relying on cookies.
	Token string
	// CSRFToken is echoed in the X-CSRF-Token header on state-changing requests.
	CSRFToken string

	http      *http.Client
	validator *OpenAPIValidator
	t         *testing.T
}

// NewClient creates a client bound to t. validator may be nil.
func NewClient(t *testing.T, baseURL string, validator *OpenAPIValidator) *Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}

	return &Client{
		BaseURL:   baseURL,
		http:      &http.Client{Jar: jar},
		validator: validator,
		t:         t,
	}
}

// Login signs in and keeps the session cookie. The CSRF token is captured
// for later writes and the bearer token is returned.
func (c *Client) Login(email, password string) string {
	c.t.Helper()

	resp, err := c.POST("/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		c.t.Fatalf("login request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login as %s failed: status=%d body=%s", email, resp.StatusCode, ReadBody(c.t, resp))
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == httputil.CSRFTokenCookie {
			c.CSRFToken = cookie.Value
		}
	}

	var session struct {
		Token string `json:"token"`
	}
	DecodeData(c.t, resp, &session)
	return session.Token
}

// LoginAsAdmin signs in with the bootstrapped administrator.
func (c *Client) LoginAsAdmin() string {
	c.t.Helper()
	return c.Login(AdminEmail, AdminPassword)
}

// CreateUser creates an account through the admin API and returns its id.
// The client must be signed in as an administrator.
func (c *Client) CreateUser(name, email, password, role string) string {
	c.t.Helper()

	resp, err := c.POST("/api/v1/users", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
		"role":     role,
	})
	if err != nil {
		c.t.Fatalf("create user request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("create user failed: status=%d body=%s", resp.StatusCode, ReadBody(c.t, resp))
	}

	var user struct {
		ID string `json:"id"`
	}
	DecodeData(c.t, resp, &user)
	return user.ID
}

// GET performs a GET request.
func (c *Client) GET(path string) (*http.Response, error) {
	return c.do(http.MethodGet, path, nil)
}

// POST performs a POST request with a JSON body.
func (c *Client) POST(path string, body any) (*http.Response, error) {
	return c.do(http.MethodPost, path, body)
}

// PUT performs a PUT request with a JSON body.
func (c *Client) PUT(path string, body any) (*http.Response, error) {
	return c.do(http.MethodPut, path, body)
}

// DELETE performs a DELETE request.
func (c *Client) DELETE(path string) (*http.Response, error) {
	return c.do(http.MethodDelete, path, nil)
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.CSRFToken != "" && method != http.MethodGet {
		req.Header.Set(httputil.CSRFTokenHeader, c.CSRFToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if c.validator != nil {
		if err := c.validator.Validate(req, payload, resp); err != nil {
			c.t.Errorf("%s %s does not match the OpenAPI document: %v", method, path, err)
		}
	}

	return resp, nil
}

// DecodeJSON decodes the response body into v and closes it.
func DecodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// DecodeData decodes the data member of a success envelope into v.
func DecodeData(t *testing.T, resp *http.Response, v any) {
	t.Helper()

	envelope := struct {
		Data any `json:"data"`
	}{Data: v}
	DecodeJSON(t, resp, &envelope)
}

// ReadBody reads the response body and closes it.
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}
