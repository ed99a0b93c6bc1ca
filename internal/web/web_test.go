package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"digital-clone/frontend/internal/apiclient"
	"digital-clone/frontend/internal/models"
	"digital-clone/frontend/internal/render"
	"digital-clone/frontend/internal/session"
	"digital-clone/frontend/internal/ws"
	"digital-clone/frontend/pkg/errors"
	"digital-clone/frontend/pkg/jwt"
	"digital-clone/frontend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cookieName = "sid"

// fakeAPI is the REST backend as seen by the pages
type fakeAPI struct {
	mu          sync.Mutex
	loginStatus int
	cloneStatus int
	listStatus  int
	convs       []models.Conversation
	created     int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	fault := func(status int) bool {
		if status == 0 || status == http.StatusOK {
			return false
		}
		reply(status, map[string]string{"detail": http.StatusText(status)})
		return true
	}

	switch {
	case r.URL.Path == "/api/auth/login":
		if !fault(f.loginStatus) {
			reply(http.StatusOK, models.AuthResult{Token: "opaque-token", User: &models.User{ID: "u1", Name: "Ada"}})
		}
	case r.URL.Path == "/api/clones":
		if !fault(f.listStatus) {
			reply(http.StatusOK, []models.Clone{{ID: "c1", Name: "Max"}})
		}
	case r.URL.Path == "/api/clones/c1":
		if !fault(f.cloneStatus) {
			reply(http.StatusOK, models.Clone{ID: "c1", Name: "Max"})
		}
	case r.URL.Path == "/api/clones/c1/conversations" && r.Method == http.MethodGet:
		reply(http.StatusOK, f.convs)
	case r.URL.Path == "/api/clones/c1/conversations":
		f.created++
		conv := models.Conversation{ID: "conv-1", CloneID: "c1", Title: "Chat with Max"}
		f.convs = append(f.convs, conv)
		reply(http.StatusOK, conv)
	case strings.HasSuffix(r.URL.Path, "/messages"):
		reply(http.StatusOK, []models.Message{})
	default:
		http.NotFound(w, r)
	}
}

func newTestRouter(t *testing.T, api *fakeAPI) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tmpl, err := render.Templates()
	require.NoError(t, err)

	client := apiclient.New(srv.URL, apiclient.WithLogger(logger.Nop()))
	sessions := NewSessions(jwt.NewService("test-secret", time.Hour), session.NewMemoryFactory(), cookieName, time.Hour, false)
	deps := &ws.Deps{Templates: tmpl, Log: logger.Nop()}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(errors.ErrorHandler(), sessions.Middleware())
	NewHandler(client, sessions, ws.NewHub(logger.Nop()), deps, nil).Register(r)
	return r
}

func do(r *gin.Engine, req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	var last *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			last = c
		}
	}
	return last
}

func login(t *testing.T, r *gin.Engine) *http.Cookie {
	t.Helper()
	form := url.Values{"email": {"ada@example.com"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := do(r, req, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	return cookie
}

func TestSignedOutPagesRedirectToLogin(t *testing.T) {
	r := newTestRouter(t, &fakeAPI{})

	w := do(r, httptest.NewRequest(http.MethodGet, "/clones/c1/chat", nil), nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?next=%2Fclones%2Fc1%2Fchat", w.Header().Get("Location"))
	assert.NotNil(t, sessionCookie(w))
}

func TestSignedOutJSONGetsUnauthorized(t *testing.T) {
	r := newTestRouter(t, &fakeAPI{})

	req := httptest.NewRequest(http.MethodGet, "/clones", nil)
	req.Header.Set("Accept", "application/json")
	w := do(r, req, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "SIGN_IN_REQUIRED")
}

func TestLoginFollowsNextAndListsClones(t *testing.T) {
	r := newTestRouter(t, &fakeAPI{})

	form := url.Values{"email": {"ada@example.com"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/login?next=%2Faccount", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := do(r, req, nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/account", w.Header().Get("Location"))

	w = do(r, httptest.NewRequest(http.MethodGet, "/clones", nil), sessionCookie(w))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Max")
	assert.Contains(t, w.Body.String(), "Sign out")
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   int
		msg    string
	}{
		{"bad credentials", http.StatusUnauthorized, http.StatusUnauthorized, "Email or password is incorrect."},
		{"backend down", http.StatusBadGateway, http.StatusServiceUnavailable, "Sign-in is unavailable right now."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, &fakeAPI{loginStatus: tt.status})

			form := url.Values{"email": {"ada@example.com"}, "password": {"wrong"}}
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := do(r, req, nil)

			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.msg)
			assert.Contains(t, w.Body.String(), "ada@example.com")
		})
	}
}

func TestChatPageRendersEmptyState(t *testing.T) {
	api := &fakeAPI{}
	r := newTestRouter(t, api)
	cookie := login(t, r)

	for i := 0; i < 2; i++ {
		w := do(r, httptest.NewRequest(http.MethodGet, "/clones/c1/chat", nil), cookie)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Start a conversation with Max")
		assert.Contains(t, w.Body.String(), `id="composer"`)
	}
	assert.Equal(t, 1, api.created, "second visit reuses the conversation")
}

func TestChatPageUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   int
		msg    string
	}{
		{"unknown clone", http.StatusNotFound, http.StatusNotFound, "This clone does not exist."},
		{"backend failure", http.StatusInternalServerError, http.StatusServiceUnavailable, "This chat is unavailable right now."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, &fakeAPI{cloneStatus: tt.status})
			cookie := login(t, r)

			w := do(r, httptest.NewRequest(http.MethodGet, "/clones/c1/chat", nil), cookie)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.msg)
			assert.NotContains(t, w.Body.String(), `id="composer"`)
		})
	}
}

func TestBackendRejectionSignsOut(t *testing.T) {
	api := &fakeAPI{listStatus: http.StatusUnauthorized}
	r := newTestRouter(t, api)
	cookie := login(t, r)

	w := do(r, httptest.NewRequest(http.MethodGet, "/clones", nil), cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = do(r, httptest.NewRequest(http.MethodGet, "/clones", nil), cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/login?next="))
}

func TestLogoutClearsSession(t *testing.T) {
	r := newTestRouter(t, &fakeAPI{})
	cookie := login(t, r)

	w := do(r, httptest.NewRequest(http.MethodPost, "/logout", nil), cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	w = do(r, httptest.NewRequest(http.MethodGet, "/clones", nil), cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/clones", safeNext(""))
	assert.Equal(t, "/clones", safeNext("https://evil.example"))
	assert.Equal(t, "/clones", safeNext("//evil.example"))
	assert.Equal(t, "/clones/c1/chat", safeNext("/clones/c1/chat"))
}
