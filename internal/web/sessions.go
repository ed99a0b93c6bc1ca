package web

import (
	"net/http"
	"net/url"
	"time"

	"digital-clone/frontend/internal/session"
	"digital-clone/frontend/pkg/errors"
	"digital-clone/frontend/pkg/jwt"
	"digital-clone/frontend/pkg/logger"
	"digital-clone/frontend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	storeKey     = "session"
	sessionIDKey = "sessionID"
)

// Sessions binds every request to a session store identified by a
// signed cookie. The cookie holds only the session id; the backend
// token lives in the persister.
type Sessions struct {
	signer  *jwt.Service
	factory session.Factory
	cookie  string
	ttl     time.Duration
	secure  bool
}

func NewSessions(signer *jwt.Service, factory session.Factory, cookie string, ttl time.Duration, secure bool) *Sessions {
	return &Sessions{signer: signer, factory: factory, cookie: cookie, ttl: ttl, secure: secure}
}

// Middleware hydrates the session store for the request
func (s *Sessions) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromContext(c.Request.Context())

		sid := ""
		if raw, err := c.Cookie(s.cookie); err == nil {
			if id, err := s.signer.Verify(raw); err == nil {
				sid = id
			}
		}
		if sid == "" {
			sid = s.issue(c)
		}

		store := session.NewStore(s.factory(sid), log)
		if err := store.Hydrate(c.Request.Context()); err != nil {
			log.Warn("Continuing with an empty session", "error", err.Error())
		}

		c.Set(storeKey, store)
		c.Set(sessionIDKey, sid)
		if u := store.User(); u != nil {
			c.Set("userID", u.ID)
			c.Request = c.Request.WithContext(middleware.WithUserID(c.Request.Context(), u.ID))
		}
		c.Next()
	}
}

func (s *Sessions) issue(c *gin.Context) string {
	sid := uuid.NewString()
	value, err := s.signer.Sign(sid)
	if err != nil {
		logger.FromContext(c.Request.Context()).LogError(err, "Failed to sign session cookie")
		return sid
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookie, value, int(s.ttl.Seconds()), "/", "", s.secure, true)
	return sid
}

// Rotate replaces the session id, e.g. after sign-in or sign-out
func (s *Sessions) Rotate(c *gin.Context) {
	sid := s.issue(c)
	c.Set(sessionIDKey, sid)
	c.Set(storeKey, session.NewStore(s.factory(sid), logger.FromContext(c.Request.Context())))
}

// Store returns the request's session store
func Store(c *gin.Context) *session.Store {
	if v, ok := c.Get(storeKey); ok {
		if s, ok := v.(*session.Store); ok {
			return s
		}
	}
	return session.NewStore(nil, nil)
}

// RequireUser sends signed-out browsers to the login page. Websocket
// and JSON requests get a 401 instead.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Store(c).Authenticated() {
			c.Next()
			return
		}
		if c.IsWebsocket() || c.GetHeader("Accept") == "application/json" {
			c.Error(errors.NewUnauthorizedError("SIGN_IN_REQUIRED", "sign in to continue"))
			c.Abort()
			return
		}
		c.Redirect(http.StatusSeeOther, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	}
}
