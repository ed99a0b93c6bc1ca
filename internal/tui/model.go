// Package tui is the terminal chat with a single clone.
package tui

import (
	"context"
	"strings"

	"digital-clone/frontend/internal/audio"
	"digital-clone/frontend/internal/chat"
	"digital-clone/frontend/internal/models"
	"digital-clone/frontend/internal/render"
	"digital-clone/frontend/pkg/errors"
	"digital-clone/frontend/pkg/logger"
	"digital-clone/frontend/pkg/observability"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Backend is what the terminal chat needs from the API
type Backend interface {
	chat.Backend
	audio.Synthesizer
}

type phase int

const (
	phaseLoading phase = iota
	phaseReady
	phaseUnavailable
)

const helpText = "enter send · tab select · ctrl+s speak · pgup/pgdn scroll · ctrl+c quit"

type initializedMsg struct {
	chat *chat.Chat
	err  error
}

type sentMsg struct {
	result chat.Result
}

type audioStateMsg struct {
	messageID string
	state     audio.State
}

type audioAlertMsg struct {
	messageID string
	err       error
}

// Config wires a Model
type Config struct {
	Backend Backend
	CloneID string
	// Sink plays synthesized speech, e.g. through a local player command
	Sink    audio.Sink
	Log     *logger.Logger
	Metrics *observability.Metrics
}

// Model is the bubbletea model of one chat screen
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	backend Backend
	cloneID string
	sink    audio.Sink
	log     *logger.Logger
	metrics *observability.Metrics

	phase       phase
	chat        *chat.Chat
	session     *chat.Session
	unavailable string
	alert       string

	players  map[string]*audio.Player
	states   map[string]audio.State
	selected string
	events   chan tea.Msg

	styles   render.Styles
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int
}

func New(cfg Config) Model {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	styles := render.DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Type a message"
	ti.Prompt = "› "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.UserName

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.CloneName

	return Model{
		ctx:      ctx,
		cancel:   cancel,
		backend:  cfg.Backend,
		cloneID:  cfg.CloneID,
		sink:     cfg.Sink,
		log:      log.WithClone(cfg.CloneID),
		metrics:  cfg.Metrics,
		players:  make(map[string]*audio.Player),
		states:   make(map[string]audio.State),
		events:   make(chan tea.Msg, 64),
		styles:   styles,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.initialize(), m.listen())
}

func (m Model) initialize() tea.Cmd {
	initializer := chat.NewInitializer(m.backend, m.log, m.metrics)
	ctx, cloneID := m.ctx, m.cloneID
	return func() tea.Msg {
		c, err := initializer.Initialize(ctx, cloneID)
		return initializedMsg{chat: c, err: err}
	}
}

// listen forwards one event from the audio players
func (m Model) listen() tea.Cmd {
	events, done := m.events, m.ctx.Done()
	return func() tea.Msg {
		select {
		case ev := <-events:
			return ev
		case <-done:
			return nil
		}
	}
}

// emit hands an event from a player goroutine to the update loop
func (m Model) emit(msg tea.Msg) {
	select {
	case m.events <- msg:
	case <-m.ctx.Done():
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-5, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh(false)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case initializedMsg:
		if msg.err != nil {
			m.phase = phaseUnavailable
			m.unavailable = "This chat is unavailable right now. Please try again later."
			if errors.IsKind(msg.err, errors.KindNotFound) {
				m.unavailable = "This clone does not exist."
			} else if errors.IsKind(msg.err, errors.KindUnauthorized) {
				m.unavailable = "Your session has expired. Run `clonechat login` and try again."
			}
			return m, nil
		}
		m.chat = msg.chat
		m.session = chat.NewSession(msg.chat, m.backend, chat.WithLogger(m.log), chat.WithMetrics(m.metrics))
		m.phase = phaseReady
		m.input.Focus()
		m.refresh(true)
		return m, textinput.Blink

	case sentMsg:
		if msg.result.Discarded {
			return m, nil
		}
		m.input.Focus()
		m.refresh(msg.result.ScrollToBottom)
		return m, nil

	case audioStateMsg:
		m.states[msg.messageID] = msg.state
		m.refresh(false)
		return m, m.listen()

	case audioAlertMsg:
		m.alert = "Could not play audio: " + errors.GetErrorMessage(msg.err)
		return m, m.listen()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.teardown()
		return m, tea.Quit
	}

	// The alert blocks everything until dismissed
	if m.alert != "" {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEsc:
			m.alert = ""
		}
		return m, nil
	}

	if m.phase != phaseReady {
		if msg.Type == tea.KeyEsc || msg.String() == "q" {
			m.teardown()
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEsc:
		m.teardown()
		return m, tea.Quit
	case tea.KeyEnter:
		return m.send()
	case tea.KeyTab:
		m.selectNext(1)
		return m, nil
	case tea.KeyShiftTab:
		m.selectNext(-1)
		return m, nil
	case tea.KeyCtrlS:
		return m, m.play()
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send starts one request. Empty input and sends while another is in
// flight do nothing.
func (m Model) send() (tea.Model, tea.Cmd) {
	pending, err := m.session.Begin(m.input.Value())
	if err != nil {
		if errors.IsKind(err, errors.KindValidation) {
			return m, nil
		}
		m.log.Warn("Send rejected", "error", err.Error())
		return m, nil
	}

	m.input.Reset()
	m.input.Blur()

	session, ctx := m.session, m.ctx
	deliver := func() tea.Msg {
		resp, err := session.Deliver(ctx, pending)
		return sentMsg{result: session.Complete(pending, resp, err)}
	}
	return m, tea.Batch(deliver, m.spinner.Tick)
}

func (m *Model) playable() []models.Message {
	var out []models.Message
	for _, msg := range m.session.Messages() {
		if audio.Playable(msg, m.cloneID) {
			out = append(out, msg)
		}
	}
	return out
}

// selectNext moves the speak cursor between clone messages
func (m *Model) selectNext(step int) {
	msgs := m.playable()
	if len(msgs) == 0 {
		return
	}

	idx := -1
	for i, msg := range msgs {
		if msg.ID == m.selected {
			idx = i
		}
	}
	switch {
	case idx < 0 && step < 0:
		idx = len(msgs) - 1
	case idx < 0:
		idx = 0
	default:
		idx = (idx + step + len(msgs)) % len(msgs)
	}
	m.selected = msgs[idx].ID
	m.refresh(false)
}

// play requests speech for the selected message. Results arrive as
// audio events.
func (m Model) play() tea.Cmd {
	if m.selected == "" || m.sink == nil {
		return nil
	}
	p := m.player(m.selected)
	if p == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		_ = p.Request(ctx)
		return nil
	}
}

func (m Model) player(messageID string) *audio.Player {
	if p, ok := m.players[messageID]; ok {
		return p
	}
	for _, msg := range m.session.Messages() {
		if msg.ID != messageID {
			continue
		}
		id := msg.ID
		p := audio.NewPlayer(msg, m.cloneID, m.backend, m.sink,
			audio.WithLogger(m.log),
			audio.WithMetrics(m.metrics),
			audio.WithNotifier(audio.NotifierFunc(func(_ string, err error) {
				m.emit(audioAlertMsg{messageID: id, err: err})
			})),
			audio.OnStateChange(func(s audio.State) {
				m.emit(audioStateMsg{messageID: id, state: s})
			}),
		)
		m.players[id] = p
		return p
	}
	return nil
}

func (m *Model) refresh(bottom bool) {
	if m.session == nil {
		return
	}
	msgs := m.session.Messages()
	views := make([]render.MessageView, 0, len(msgs))
	for _, msg := range msgs {
		views = append(views, render.MessageView{
			Message:   msg,
			CloneName: m.chat.Clone.Name,
			Audio:     m.states[msg.ID],
			Playable:  audio.Playable(msg, m.cloneID) && m.sink != nil,
			Selected:  msg.ID == m.selected,
		})
	}
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width).Render(m.styles.History(views, m.chat.Clone.Name)))
	if bottom {
		m.viewport.GotoBottom()
	}
}

// teardown discards in-flight work and stops every playback
func (m *Model) teardown() {
	if m.session != nil {
		m.session.Close()
	}
	for _, p := range m.players {
		p.Teardown()
	}
	m.cancel()
}

func (m Model) View() string {
	switch m.phase {
	case phaseLoading:
		return m.spinner.View() + " Loading chat…\n"
	case phaseUnavailable:
		return m.styles.Alert.Render(m.unavailable) + "\n" + m.styles.Muted.Render("press q to quit") + "\n"
	}

	var sb strings.Builder
	sb.WriteString(m.styles.Header.Render(m.chat.Clone.Name))
	sb.WriteString("\n")

	if m.alert != "" {
		sb.WriteString(m.styles.Alert.Render(m.alert + "\n\n" + m.styles.Muted.Render("enter to dismiss")))
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	if m.session.State() == chat.StateSending {
		sb.WriteString(m.spinner.View() + " " + m.styles.Muted.Render(m.chat.Clone.Name+" is typing…"))
	} else {
		sb.WriteString(m.input.View())
	}
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render(helpText))
	return sb.String()
}
