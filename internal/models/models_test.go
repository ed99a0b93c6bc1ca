package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatResponseValidate(t *testing.T) {
	user := &Message{ID: "u1", Role: RoleUser, Content: "hi"}
	clone := &Message{ID: "c1", Role: RoleClone, Content: "hello"}

	tests := []struct {
		name    string
		resp    *ChatResponse
		wantErr string
	}{
		{"complete", &ChatResponse{UserMessage: user, CloneMessage: clone}, ""},
		{"nil", nil, "empty response"},
		{"missing clone", &ChatResponse{UserMessage: user}, "missing clone_message"},
		{"missing user", &ChatResponse{CloneMessage: clone}, "missing user_message"},
		{"clone without id", &ChatResponse{UserMessage: user, CloneMessage: &Message{Role: RoleClone, Content: "x"}}, "clone_message: missing id"},
		{"unknown role", &ChatResponse{UserMessage: &Message{ID: "u", Role: "bot", Content: "x"}, CloneMessage: clone}, "invalid role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.resp.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestChatResponseDecodesBackendPayload(t *testing.T) {
	payload := `{"user_message":{"id":"u1","conversation_id":"conv","role":"user","content":"Hello there"},
		"clone_message":{"id":"c1","conversation_id":"conv","role":"clone","content":"Hi!","metadata":{"model":"x"}}}`

	var resp ChatResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &resp))
	require.NoError(t, resp.Validate())
	assert.Equal(t, "x", resp.CloneMessage.Metadata["model"])
	assert.False(t, resp.CloneMessage.IsLocal())
}

func TestToneValidate(t *testing.T) {
	assert.NoError(t, DefaultTone().Validate())
	assert.ErrorContains(t, Tone{Warmth: 1.5}.Validate(), "warmth")
	assert.ErrorContains(t, Tone{Humor: -0.1}.Validate(), "humor")
}

func TestCloneInputTrimsName(t *testing.T) {
	in := CloneInput{Name: "  ", Tone: DefaultTone()}
	assert.Error(t, in.Validate())

	in.Name = " Max "
	require.NoError(t, in.Validate())
	assert.Equal(t, "Max", in.Name)
}

func TestSpeechMIMEType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", SpeechAudio{Format: "mp3"}.MIMEType())
	assert.Equal(t, "audio/wav", SpeechAudio{Format: "wav"}.MIMEType())
	assert.Equal(t, "audio/flac", SpeechAudio{Format: "flac"}.MIMEType())
}
