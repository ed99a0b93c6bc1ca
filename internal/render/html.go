package render

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"digital-clone/frontend/internal/audio"
	"digital-clone/frontend/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the page templates
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"emptyState": EmptyState,
		"audioLabel": AudioLabel,
		"clock": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("15:04")
		},
		"percent": func(v float64) int { return int(v*100 + 0.5) },
	}).ParseFS(templateFS, "templates/*.html")
}

// HTMLMessage is the data of the "message" template
type HTMLMessage struct {
	ID        string
	Role      string
	Content   string
	CreatedAt time.Time
	CloneName string
	Playable  bool
	Local     bool
	Audio     audio.State
}

// NewHTMLMessage prepares a message for the browser
func NewHTMLMessage(m models.Message, cloneName, cloneID string) HTMLMessage {
	return HTMLMessage{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		CloneName: cloneName,
		Playable:  audio.Playable(m, cloneID),
		Local:     m.IsLocal(),
	}
}

// Fragment renders messages with the "message" template, for pushing
// over the websocket
func Fragment(t *template.Template, msgs []HTMLMessage) (string, error) {
	var buf bytes.Buffer
	for _, m := range msgs {
		if err := t.ExecuteTemplate(&buf, "message", m); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
