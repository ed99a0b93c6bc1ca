package ws

import "encoding/json"

// Inbound frame types
const (
	TypeSend       = "send"
	TypePlayAudio  = "play_audio"
	TypeAudioEnded = "audio_ended"
	TypePing       = "ping"
)

// Outbound frame types
const (
	TypePong        = "pong"
	TypeUnavailable = "unavailable"
	TypeHistory     = "history"
	TypeRejected    = "rejected"
	TypeSending     = "sending"
	TypeAppended    = "appended"
	TypeAudio       = "audio"
	TypeAudioState  = "audio_state"
	TypeAlert       = "alert"
)

// Message is the envelope of every frame in both directions
type Message struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

type outbound struct {
	Type    string `json:"type"`
	Content any    `json:"content,omitempty"`
}

// ClientContent is the payload of inbound frames
type ClientContent struct {
	Text      string `json:"text"`
	MessageID string `json:"message_id"`
}

type UnavailableContent struct {
	Message  string `json:"message"`
	NotFound bool   `json:"not_found"`
}

// HistoryContent carries the rendered initial history
type HistoryContent struct {
	HTML           string `json:"html"`
	ConversationID string `json:"conversation_id"`
}

type NoticeContent struct {
	MessageID string `json:"message_id,omitempty"`
	Message   string `json:"message"`
}

type SendingContent struct {
	Sending bool `json:"sending"`
}

// AppendedContent carries rendered messages to add below the history
type AppendedContent struct {
	HTML   string `json:"html"`
	Scroll bool   `json:"scroll"`
}

// AudioContent points the page at a playable clip
type AudioContent struct {
	MessageID string `json:"message_id"`
	URL       string `json:"url"`
	MIME      string `json:"mime"`
}

type AudioStateContent struct {
	MessageID string `json:"message_id"`
	State     string `json:"state"`
	Label     string `json:"label"`
}
