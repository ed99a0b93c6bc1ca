// Package render displays chat messages, in the terminal with lipgloss
// and in the browser with html/template.
package render

import (
	"strings"

	"digital-clone/frontend/internal/audio"
	"digital-clone/frontend/internal/models"

	"github.com/charmbracelet/lipgloss"
)

var (
	Primary     = lipgloss.Color("#7C3AED")
	Accent      = lipgloss.Color("#06B6D4")
	Muted       = lipgloss.Color("#6B7280")
	Destructive = lipgloss.Color("#EF4444")
)

// EmptyState is shown for a conversation without messages
func EmptyState(cloneName string) string {
	return "Start a conversation with " + cloneName
}

// AudioLabel is the play control text for a state
func AudioLabel(s audio.State) string {
	switch s {
	case audio.StateLoading:
		return "… loading"
	case audio.StatePlaying:
		return "■ playing"
	default:
		return "▶ play"
	}
}

// Styles holds the terminal styles of the chat view
type Styles struct {
	Header    lipgloss.Style
	UserName  lipgloss.Style
	CloneName lipgloss.Style
	Body      lipgloss.Style
	CloneBody lipgloss.Style
	System    lipgloss.Style
	Muted     lipgloss.Style
	Selected  lipgloss.Style
	Alert     lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Background(Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),
		UserName: lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true),
		CloneName: lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true),
		Body: lipgloss.NewStyle(),
		CloneBody: lipgloss.NewStyle().
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(Accent),
		System: lipgloss.NewStyle().
			Foreground(Destructive).
			Italic(true),
		Muted: lipgloss.NewStyle().
			Foreground(Muted),
		Selected: lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true),
		Alert: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Destructive).
			Padding(1, 2),
	}
}

// MessageView is everything needed to draw one message
type MessageView struct {
	Message   models.Message
	CloneName string
	Audio     audio.State
	Playable  bool
	Selected  bool
}

// Message draws one message. It has no side effects.
func (s Styles) Message(v MessageView) string {
	var sb strings.Builder

	switch v.Message.Role {
	case models.RoleUser:
		sb.WriteString(s.UserName.Render("You"))
		sb.WriteString("\n")
		sb.WriteString(s.Body.Render(v.Message.Content))
	case models.RoleSystem:
		sb.WriteString(s.System.Render("! " + v.Message.Content))
	default:
		name := s.CloneName.Render(v.CloneName)
		if v.Playable {
			label := AudioLabel(v.Audio)
			if v.Selected {
				label = s.Selected.Render("› " + label)
			} else {
				label = s.Muted.Render(label)
			}
			name += "  " + label
		}
		sb.WriteString(name)
		sb.WriteString("\n")
		sb.WriteString(s.CloneBody.Render(v.Message.Content))
	}

	if !v.Message.CreatedAt.IsZero() && !v.Message.IsLocal() {
		sb.WriteString("\n")
		sb.WriteString(s.Muted.Render(v.Message.CreatedAt.Local().Format("15:04")))
	}
	return sb.String()
}

// History draws the whole conversation, or the empty state
func (s Styles) History(views []MessageView, cloneName string) string {
	if len(views) == 0 {
		return s.Muted.Render(EmptyState(cloneName))
	}

	parts := make([]string, 0, len(views))
	for _, v := range views {
		parts = append(parts, s.Message(v))
	}
	return strings.Join(parts, "\n\n")
}
