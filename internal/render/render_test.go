package render

import (
	"strings"
	"testing"
	"time"

	"digital-clone/frontend/internal/audio"
	"digital-clone/frontend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyState(t *testing.T) {
	s := DefaultStyles()
	out := s.History(nil, "Max")
	assert.Contains(t, out, "Start a conversation with Max")
}

func TestTerminalMessage(t *testing.T) {
	s := DefaultStyles()

	user := s.Message(MessageView{Message: models.Message{ID: "u1", Role: models.RoleUser, Content: "Hello"}})
	assert.Contains(t, user, "You")
	assert.Contains(t, user, "Hello")

	clone := s.Message(MessageView{
		Message:   models.Message{ID: "c1", Role: models.RoleClone, Content: "Hi there"},
		CloneName: "Max",
		Playable:  true,
		Audio:     audio.StateLoading,
	})
	assert.Contains(t, clone, "Max")
	assert.Contains(t, clone, "loading")

	system := s.Message(MessageView{Message: models.Message{
		ID: "local-1", Role: models.RoleSystem, Content: "failed",
		Metadata: map[string]any{models.MetadataLocal: true}, CreatedAt: time.Now(),
	}})
	assert.Contains(t, system, "failed")
}

func TestAudioLabel(t *testing.T) {
	assert.Contains(t, AudioLabel(audio.StateIdle), "play")
	assert.Contains(t, AudioLabel(audio.StateLoading), "loading")
	assert.Contains(t, AudioLabel(audio.StatePlaying), "playing")
}

func TestHTMLTemplates(t *testing.T) {
	tmpl, err := Templates()
	require.NoError(t, err)

	for _, name := range []string{"login.html", "register.html", "chat.html", "clones.html", "clone_form.html", "memories.html", "account.html", "unavailable.html", "error.html"} {
		assert.NotNil(t, tmpl.Lookup(name), name)
	}

	var sb strings.Builder
	err = tmpl.ExecuteTemplate(&sb, "chat.html", map[string]any{
		"Title":      "Max",
		"User":       &models.User{ID: "u1"},
		"Clone":      models.Clone{ID: "c1", Name: "Max"},
		"Messages":   []HTMLMessage{},
		"SocketPath": "/clones/c1/chat/ws",
	})
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "Start a conversation with Max")
}

func TestFragmentEscapesContent(t *testing.T) {
	tmpl, err := Templates()
	require.NoError(t, err)

	msg := NewHTMLMessage(models.Message{ID: "c1", Role: models.RoleClone, Content: "<b>hi</b>"}, "Max", "clone-1")
	assert.True(t, msg.Playable)

	html, err := Fragment(tmpl, []HTMLMessage{msg})
	require.NoError(t, err)
	assert.Contains(t, html, "&lt;b&gt;hi&lt;/b&gt;")
	assert.Contains(t, html, `class="play"`)

	user := NewHTMLMessage(models.Message{ID: "u1", Role: models.RoleUser, Content: "yo"}, "Max", "clone-1")
	assert.False(t, user.Playable)
}
