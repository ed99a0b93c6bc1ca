// Package web is the server-rendered browser front.
package web

import (
	"net/http"
	"strings"

	"digital-clone/frontend/internal/apiclient"
	"digital-clone/frontend/internal/models"
	"digital-clone/frontend/internal/ws"
	"digital-clone/frontend/pkg/errors"
	"digital-clone/frontend/pkg/logger"
	"digital-clone/frontend/pkg/observability"

	"github.com/gin-gonic/gin"
)

// Handler serves the pages
type Handler struct {
	api      *apiclient.Client
	sessions *Sessions
	hub      *ws.Hub
	wsDeps   *ws.Deps
	metrics  *observability.Metrics
}

func NewHandler(api *apiclient.Client, sessions *Sessions, hub *ws.Hub, wsDeps *ws.Deps, metrics *observability.Metrics) *Handler {
	return &Handler{
		api:      api,
		sessions: sessions,
		hub:      hub,
		wsDeps:   wsDeps,
		metrics:  metrics,
	}
}

// Register mounts every page on r. r must already run the session
// middleware.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusSeeOther, "/clones") })

	r.GET("/login", h.loginPage)
	r.POST("/login", h.login)
	r.GET("/register", h.registerPage)
	r.POST("/register", h.register)
	r.POST("/logout", h.logout)

	authed := r.Group("/", RequireUser())
	{
		authed.GET("/clones", h.listClones)
		authed.GET("/clones/new", h.newClonePage)
		authed.POST("/clones/new", h.createClone)
		authed.GET("/clones/:id/edit", h.editClonePage)
		authed.POST("/clones/:id/edit", h.updateClone)
		authed.POST("/clones/:id/delete", h.deleteClone)

		authed.GET("/clones/:id/memories", h.listMemories)
		authed.POST("/clones/:id/memories", h.addMemory)
		authed.POST("/clones/:id/memories/:memoryId/delete", h.deleteMemory)

		authed.GET("/clones/:id/chat", h.chatPage)
		authed.GET("/clones/:id/chat/ws", h.chatSocket)

		authed.GET("/account", h.accountPage)
		authed.POST("/account/consent", h.updateConsent)
		authed.GET("/account/export", h.exportAccount)
	}
}

// backend returns the API client bound to the request's session
func (h *Handler) backend(c *gin.Context) *apiclient.Client {
	return h.api.WithTokens(Store(c))
}

func (h *Handler) page(c *gin.Context, status int, name, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	data["User"] = Store(c).User()
	c.HTML(status, name, data)
}

// fail renders a backend failure. An unauthorized answer means the
// backend no longer accepts our token, so the session is dropped.
func (h *Handler) fail(c *gin.Context, err error) {
	log := logger.FromContext(c.Request.Context())
	appErr := errors.FromError(err)

	if appErr.Kind == errors.KindUnauthorized {
		if lerr := Store(c).Logout(c.Request.Context()); lerr != nil {
			log.LogError(lerr, "Failed to clear session")
		}
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	log.Warn("Page failed", "path", c.FullPath(), "kind", string(appErr.Kind), "code", appErr.Code)
	h.page(c, errors.StatusForKind(appErr.Kind), "error.html", "Error", gin.H{"Message": userMessage(appErr)})
}

func userMessage(e *errors.AppError) string {
	switch e.Kind {
	case errors.KindNetwork:
		return "The service is unavailable right now. Please try again shortly."
	case errors.KindShape:
		return "The service sent an unexpected answer."
	case errors.KindNotFound:
		return "Not found."
	default:
		return e.Message
	}
}

// safeNext only follows local redirects
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/clones"
	}
	return next
}

func (h *Handler) loginPage(c *gin.Context) {
	h.page(c, http.StatusOK, "login.html", "Sign in", gin.H{"Next": c.Query("next")})
}

func (h *Handler) login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	// Credentials are passed through, never logged
	h.sessions.Rotate(c)
	_, err := Store(c).Login(c.Request.Context(), h.api, email, password)
	if err != nil {
		status := errors.GetStatusCode(err)
		if errors.IsKind(err, errors.KindNetwork) {
			status = http.StatusServiceUnavailable
		}
		h.page(c, status, "login.html", "Sign in", gin.H{"Error": loginError(err), "Email": email})
		return
	}
	c.Redirect(http.StatusSeeOther, safeNext(c.Query("next")))
}

func loginError(err error) string {
	switch errors.KindOf(err) {
	case errors.KindUnauthorized:
		return "Email or password is incorrect."
	case errors.KindValidation:
		return errors.GetErrorMessage(err)
	default:
		return "Sign-in is unavailable right now."
	}
}

func (h *Handler) registerPage(c *gin.Context) {
	h.page(c, http.StatusOK, "register.html", "Register", nil)
}

func (h *Handler) register(c *gin.Context) {
	req := models.RegisterRequest{
		Name:     strings.TrimSpace(c.PostForm("name")),
		Email:    strings.TrimSpace(c.PostForm("email")),
		Password: c.PostForm("password"),
	}

	h.sessions.Rotate(c)
	if _, err := Store(c).Register(c.Request.Context(), h.api, req); err != nil {
		h.page(c, errors.GetStatusCode(err), "register.html", "Register", gin.H{
			"Error": errors.GetErrorMessage(err),
			"Name":  req.Name,
			"Email": req.Email,
		})
		return
	}
	c.Redirect(http.StatusSeeOther, "/clones")
}

func (h *Handler) logout(c *gin.Context) {
	if err := Store(c).Logout(c.Request.Context()); err != nil {
		logger.FromContext(c.Request.Context()).LogError(err, "Failed to clear session")
	}
	h.sessions.Rotate(c)
	c.Redirect(http.StatusSeeOther, "/login")
}
