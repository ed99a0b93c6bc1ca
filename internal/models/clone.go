package models

import (
	"fmt"
	"strings"
	"time"
)

// Tone holds the three personality sliders, each in [0,1]
type Tone struct {
	Warmth    float64 `json:"warmth"`
	Humor     float64 `json:"humor"`
	Formality float64 `json:"formality"`
}

// DefaultTone is used for newly created clones
func DefaultTone() Tone {
	return Tone{Warmth: 0.5, Humor: 0.5, Formality: 0.5}
}

// Validate checks every slider is within range
func (t Tone) Validate() error {
	for name, v := range map[string]float64{"warmth": t.Warmth, "humor": t.Humor, "formality": t.Formality} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	return nil
}

// Clone is a configured persona owned by a user
type Clone struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id,omitempty"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Tone          Tone      `json:"tone"`
	ModelProvider string    `json:"model_provider,omitempty"`
	VoiceProvider string    `json:"voice_provider,omitempty"`
	VoiceID       string    `json:"voice_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CloneInput is the body of clone create and update calls
type CloneInput struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Tone          Tone   `json:"tone"`
	ModelProvider string `json:"model_provider,omitempty"`
	VoiceProvider string `json:"voice_provider,omitempty"`
	VoiceID       string `json:"voice_id,omitempty"`
}

// Validate checks the input before it is sent
func (in *CloneInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("name is required")
	}
	return in.Tone.Validate()
}

// Memory is a fact a clone keeps about its owner
type Memory struct {
	ID        string    `json:"id"`
	CloneID   string    `json:"clone_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoryInput is the body of a memory create call
type MemoryInput struct {
	Content string `json:"content"`
}
