package models

// SpeechRequest is the body of a text-to-speech call
type SpeechRequest struct {
	Text string `json:"text"`
}

// SpeechAudio is a synthesized clip, base64 encoded
type SpeechAudio struct {
	AudioBase64 string `json:"audio_base64"`
	Format      string `json:"format"`
}

// MIMEType maps the backend format name to a content type
func (s SpeechAudio) MIMEType() string {
	switch s.Format {
	case "wav":
		return "audio/wav"
	case "ogg":
		return "audio/ogg"
	case "webm":
		return "audio/webm"
	case "", "mp3", "mpeg":
		return "audio/mpeg"
	default:
		return "audio/" + s.Format
	}
}
