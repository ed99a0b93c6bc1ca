package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"digital-clone/frontend/internal/chat"
	"digital-clone/frontend/internal/models"
	"digital-clone/frontend/internal/render"
	"digital-clone/frontend/internal/ws"
	"digital-clone/frontend/pkg/errors"
	"digital-clone/frontend/pkg/logger"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listClones(c *gin.Context) {
	clones, err := h.backend(c).ListClones(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, http.StatusOK, "clones.html", "Clones", gin.H{"Clones": clones})
}

func (h *Handler) newClonePage(c *gin.Context) {
	h.page(c, http.StatusOK, "clone_form.html", "New clone", gin.H{"Clone": models.Clone{Tone: models.DefaultTone()}})
}

// cloneForm reads the clone form; sliders post 0..100
func cloneForm(c *gin.Context) (models.CloneInput, error) {
	in := models.CloneInput{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		VoiceID:     c.PostForm("voice_id"),
	}
	for field, dst := range map[string]*float64{
		"warmth":    &in.Tone.Warmth,
		"humor":     &in.Tone.Humor,
		"formality": &in.Tone.Formality,
	} {
		raw := c.DefaultPostForm(field, "50")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return in, errors.NewValidationError("INVALID_TONE", fmt.Sprintf("%s must be a number", field))
		}
		*dst = v / 100
	}
	return in, nil
}

func formClone(id string, in models.CloneInput) models.Clone {
	return models.Clone{ID: id, Name: in.Name, Description: in.Description, Tone: in.Tone, VoiceID: in.VoiceID}
}

func (h *Handler) createClone(c *gin.Context) {
	in, err := cloneForm(c)
	if err == nil {
		_, err = h.backend(c).CreateClone(c.Request.Context(), in)
	}
	if errors.IsKind(err, errors.KindValidation) {
		h.page(c, http.StatusBadRequest, "clone_form.html", "New clone", gin.H{"Clone": formClone("", in), "Error": errors.GetErrorMessage(err)})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/clones")
}

func (h *Handler) editClonePage(c *gin.Context) {
	clone, err := h.backend(c).GetClone(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, http.StatusOK, "clone_form.html", "Edit "+clone.Name, gin.H{"Clone": clone})
}

func (h *Handler) updateClone(c *gin.Context) {
	id := c.Param("id")
	in, err := cloneForm(c)
	if err == nil {
		_, err = h.backend(c).UpdateClone(c.Request.Context(), id, in)
	}
	if errors.IsKind(err, errors.KindValidation) {
		h.page(c, http.StatusBadRequest, "clone_form.html", "Edit clone", gin.H{"Clone": formClone(id, in), "Error": errors.GetErrorMessage(err)})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/clones")
}

func (h *Handler) deleteClone(c *gin.Context) {
	if err := h.backend(c).DeleteClone(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/clones")
}

func (h *Handler) listMemories(c *gin.Context) {
	ctx := c.Request.Context()
	api := h.backend(c)

	clone, err := api.GetClone(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	memories, err := api.ListMemories(ctx, clone.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, http.StatusOK, "memories.html", "Memories", gin.H{"Clone": clone, "Memories": memories})
}

func (h *Handler) addMemory(c *gin.Context) {
	id := c.Param("id")
	_, err := h.backend(c).AddMemory(c.Request.Context(), id, c.PostForm("content"))
	if err != nil && !errors.IsKind(err, errors.KindValidation) {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/clones/"+id+"/memories")
}

func (h *Handler) deleteMemory(c *gin.Context) {
	id := c.Param("id")
	if err := h.backend(c).DeleteMemory(c.Request.Context(), id, c.Param("memoryId")); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/clones/"+id+"/memories")
}

// chatPage renders the initialized chat, or the unavailable screen.
// It never renders a partial chat.
func (h *Handler) chatPage(c *gin.Context) {
	cloneID := c.Param("id")
	log := logger.FromContext(c.Request.Context())

	ch, err := chat.NewInitializer(h.backend(c), log, h.metrics).Initialize(c.Request.Context(), cloneID)
	if err != nil {
		if errors.IsKind(err, errors.KindUnauthorized) {
			h.fail(c, err)
			return
		}
		status, msg := http.StatusServiceUnavailable, "This chat is unavailable right now. Please try again later."
		if errors.IsKind(err, errors.KindNotFound) {
			status, msg = http.StatusNotFound, "This clone does not exist."
		}
		h.page(c, status, "unavailable.html", "Chat unavailable", gin.H{"Message": msg})
		return
	}

	msgs := make([]render.HTMLMessage, 0, len(ch.History))
	for _, m := range ch.History {
		msgs = append(msgs, render.NewHTMLMessage(m, ch.Clone.Name, ch.Clone.ID))
	}
	h.page(c, http.StatusOK, "chat.html", ch.Clone.Name, gin.H{
		"Clone":      ch.Clone,
		"Messages":   msgs,
		"SocketPath": "/clones/" + ch.Clone.ID + "/chat/ws",
	})
}

func (h *Handler) chatSocket(c *gin.Context) {
	ws.ServeWs(h.hub, h.wsDeps, h.backend(c), c.Param("id"), c)
}

func (h *Handler) accountPage(c *gin.Context) {
	consent, err := h.backend(c).GetConsent(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, http.StatusOK, "account.html", "Account", gin.H{"Consent": consent})
}

func (h *Handler) updateConsent(c *gin.Context) {
	ctx := c.Request.Context()
	api := h.backend(c)

	current, err := api.GetConsent(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	checked := make(map[string]bool)
	for _, purpose := range c.PostFormArray("consent") {
		checked[purpose] = true
	}
	// Unchecked boxes are not posted; every known purpose is sent
	next := models.Consent{}
	for purpose := range current {
		next[purpose] = checked[purpose]
	}

	if _, err := api.UpdateConsent(ctx, next); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/account")
}

func (h *Handler) exportAccount(c *gin.Context) {
	dl, err := h.backend(c).ExportAccount(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	defer dl.Body.Close()

	name := dl.Filename
	if name == "" {
		name = "clone-export.zip"
	}
	c.Header("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)
	c.Header("Content-Type", dl.ContentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, dl.Body); err != nil {
		logger.FromContext(c.Request.Context()).Warn("Export download interrupted", "error", err.Error())
	}
}
