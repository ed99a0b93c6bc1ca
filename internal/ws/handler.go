// Package ws serves the live chat view: one websocket per open chat
// page, each owning an initialized chat session and its audio players.
package ws

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"sync"
	"time"

	"digital-clone/frontend/internal/audio"
	"digital-clone/frontend/internal/chat"
	"digital-clone/frontend/internal/models"
	"digital-clone/frontend/internal/render"
	"digital-clone/frontend/pkg/errors"
	"digital-clone/frontend/pkg/logger"
	"digital-clone/frontend/pkg/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	sendBuffer = 64
)

// Backend is what one connection needs from the API client
type Backend interface {
	chat.Backend
	audio.Synthesizer
}

// Deps are shared by every connection
type Deps struct {
	Registry       *audio.Registry
	Templates      *template.Template
	Metrics        *observability.Metrics
	Log            *logger.Logger
	AllowedOrigins []string
	SendTimeout    time.Duration
	AudioTimeout   time.Duration
}

// Hub tracks open chat connections
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run tracks connections until ctx ends, then closes the rest
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("Client registered", "client_id", client.ID, "clone_id", client.cloneID)

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client)
			h.mu.Unlock()
			h.log.Debug("Client unregistered", "client_id", client.ID)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Conn.Close()
			}
			h.mu.Unlock()
			return
		}
	}
}

// ActiveConnections counts open chats
func (h *Hub) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Client is one open chat page
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub

	cloneID string
	backend Backend
	deps    *Deps
	log     *logger.Logger
	ctx     context.Context

	mu      sync.Mutex
	closed  bool
	chat    *chat.Chat
	session *chat.Session
	players map[string]*audio.Player
}

// ServeWs upgrades the request and runs the chat for cloneID
func ServeWs(hub *Hub, deps *Deps, backend Backend, cloneID string, c *gin.Context) {
	upgrader := websocket.Upgrader{
		CheckOrigin:      checkOrigin(deps.AllowedOrigins),
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		deps.Log.Warn("Websocket upgrade failed", "error", err.Error())
		return
	}

	log := logger.FromContext(c.Request.Context()).WithClone(cloneID)
	client := &Client{
		ID:      uuid.NewString(),
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		Hub:     hub,
		cloneID: cloneID,
		backend: backend,
		deps:    deps,
		log:     log,
		// Work started by this page survives the HTTP request but keeps
		// its values (request id, logger)
		ctx:     context.WithoutCancel(c.Request.Context()),
		players: make(map[string]*audio.Player),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}
	log.Info("Chat connection opened", "client_id", client.ID)

	go client.WritePump()
	go client.initialize()
	client.ReadPump()
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

func (c *Client) initialize() {
	ch, err := chat.NewInitializer(c.backend, c.log, c.deps.Metrics).Initialize(c.ctx, c.cloneID)
	if err != nil {
		c.sendMessage(TypeUnavailable, UnavailableContent{
			Message:  "This chat is unavailable right now.",
			NotFound: errors.IsKind(err, errors.KindNotFound),
		})
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.chat = ch
	c.session = chat.NewSession(ch, c.backend, chat.WithLogger(c.log), chat.WithMetrics(c.deps.Metrics))
	c.log = c.log.WithConversation(ch.Conversation.ID)
	c.mu.Unlock()

	html, err := c.fragment(ch.History)
	if err != nil {
		c.log.LogError(err, "Failed to render history")
		return
	}
	if len(ch.History) == 0 {
		html = `<p class="empty">` + template.HTMLEscapeString(render.EmptyState(ch.Clone.Name)) + `</p>`
	}
	c.sendMessage(TypeHistory, HistoryContent{HTML: html, ConversationID: ch.Conversation.ID})
}

func (c *Client) ReadPump() {
	defer c.close()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("Websocket read failed", "error", err.Error())
			}
			return
		}

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			c.log.Warn("Ignoring malformed frame", "error", err.Error())
			continue
		}

		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message Message) {
	var content ClientContent
	if len(message.Content) > 0 {
		if err := json.Unmarshal(message.Content, &content); err != nil {
			c.log.Warn("Ignoring malformed content", "type", message.Type)
			return
		}
	}

	switch message.Type {
	case TypeSend:
		c.handleSend(content.Text)
	case TypePlayAudio:
		c.handlePlay(content.MessageID)
	case TypeAudioEnded:
		if p := c.player(content.MessageID); p != nil {
			p.Ended()
		}
	case TypePing:
		c.sendMessage(TypePong, nil)
	default:
		c.log.Warn("Unknown message type", "type", message.Type)
	}
}

func (c *Client) current() *chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) handleSend(text string) {
	s := c.current()
	if s == nil {
		c.sendMessage(TypeRejected, NoticeContent{Message: "The chat is still loading."})
		return
	}

	p, err := s.Begin(text)
	if err != nil {
		// Empty input and double submits are dropped quietly
		if !errors.Is(err, chat.ErrSendInFlight) {
			c.log.Debug("Send rejected", "code", errors.GetErrorCode(err))
		}
		return
	}
	c.sendMessage(TypeSending, SendingContent{Sending: true})

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.deps.SendTimeout)
		defer cancel()

		resp, err := s.Deliver(ctx, p)
		res := s.Complete(p, resp, err)
		if res.Discarded {
			return
		}

		c.mu.Lock()
		for _, m := range res.Appended {
			c.addPlayerLocked(m)
		}
		c.mu.Unlock()

		html, rerr := c.fragment(res.Appended)
		if rerr != nil {
			c.log.LogError(rerr, "Failed to render messages")
		} else {
			c.sendMessage(TypeAppended, AppendedContent{HTML: html, Scroll: res.ScrollToBottom})
		}
		c.sendMessage(TypeSending, SendingContent{Sending: false})
	}()
}

func (c *Client) handlePlay(messageID string) {
	p := c.player(messageID)
	if p == nil {
		c.sendMessage(TypeAlert, NoticeContent{MessageID: messageID, Message: "This message cannot be played."})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.deps.AudioTimeout)
		defer cancel()
		if err := p.Request(ctx); err != nil && !errors.IsKind(err, errors.KindValidation) {
			c.log.WithMessage(messageID).Debug("Audio request ended with error", "kind", string(errors.KindOf(err)))
		}
	}()
}

func (c *Client) player(messageID string) *audio.Player {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.players[messageID]; ok {
		return p
	}
	if c.session == nil {
		return nil
	}
	for _, m := range c.session.Messages() {
		if m.ID == messageID {
			return c.addPlayerLocked(m)
		}
	}
	return nil
}

func (c *Client) addPlayerLocked(m models.Message) *audio.Player {
	if c.closed || m.Role != models.RoleClone {
		return nil
	}
	if p, ok := c.players[m.ID]; ok {
		return p
	}

	id := m.ID
	sink := audio.NewURLSink(c.deps.Registry, func(messageID, url, mime string) error {
		c.sendMessage(TypeAudio, AudioContent{MessageID: messageID, URL: url, MIME: mime})
		return nil
	})
	p := audio.NewPlayer(m, c.cloneID, c.backend, sink,
		audio.WithLogger(c.log),
		audio.WithMetrics(c.deps.Metrics),
		audio.WithNotifier(audio.NotifierFunc(func(messageID string, err error) {
			c.sendMessage(TypeAlert, NoticeContent{
				MessageID: messageID,
				Message:   "Audio could not be played: " + errors.GetErrorMessage(err),
			})
		})),
		audio.OnStateChange(func(s audio.State) {
			c.sendMessage(TypeAudioState, AudioStateContent{
				MessageID: id,
				State:     s.String(),
				Label:     render.AudioLabel(s),
			})
		}),
	)
	c.players[m.ID] = p
	return p
}

func (c *Client) fragment(msgs []models.Message) (string, error) {
	c.mu.Lock()
	name := ""
	if c.chat != nil {
		name = c.chat.Clone.Name
	}
	c.mu.Unlock()

	views := make([]render.HTMLMessage, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, render.NewHTMLMessage(m, name, c.cloneID))
	}
	return render.Fragment(c.deps.Templates, views)
}

// close unmounts the chat: late sends are discarded and every audio
// resource is released
func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	session := c.session
	players := c.players
	c.players = nil
	close(c.Send)
	c.mu.Unlock()

	if session != nil {
		session.Close()
	}
	for _, p := range players {
		p.Teardown()
	}

	select {
	case c.Hub.unregister <- c:
	case <-c.Hub.done:
	}
	c.Conn.Close()
	c.log.Info("Chat connection closed", "client_id", c.ID)
}

func (c *Client) sendMessage(messageType string, content any) {
	data, err := json.Marshal(outbound{Type: messageType, Content: content})
	if err != nil {
		c.log.LogError(err, "Failed to encode frame", "type", messageType)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
		c.log.Warn("Dropping frame for slow client", "type", messageType)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
