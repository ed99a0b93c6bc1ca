package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainFieldsAreAttached(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", JSON: true, Output: &buf})

	log.WithClone("c1").WithConversation("conv-1").WithMessage("m1").
		LogError(errors.New("tts failed"), "audio playback failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "c1", entry["clone_id"])
	assert.Equal(t, "conv-1", entry["conversation_id"])
	assert.Equal(t, "m1", entry["message_id"])
	assert.Equal(t, "tts failed", entry["error"])
	assert.Equal(t, "ERROR", entry["level"])
}

func TestEmptyFieldsAreSkipped(t *testing.T) {
	log := Nop()
	assert.Same(t, log, log.WithConversation(""))
	assert.Same(t, log, log.WithRequestID(""))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", JSON: false, Output: &buf})

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestContextRoundTrip(t *testing.T) {
	log := Nop().WithRequestID("req-1")
	ctx := IntoContext(context.Background(), log)

	assert.Same(t, log, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
