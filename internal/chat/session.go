package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"digital-clone/frontend/internal/models"
	"digital-clone/frontend/pkg/errors"
	"digital-clone/frontend/pkg/id"
	"digital-clone/frontend/pkg/logger"
	"digital-clone/frontend/pkg/observability"
)

// SendFailedText is the body of the system message shown when a send fails
const SendFailedText = "Sorry, your message could not be delivered. Please try again."

// ErrSendInFlight rejects a send while another one is pending
var ErrSendInFlight = errors.NewValidationError("SEND_IN_FLIGHT", "a message is already being sent")

// SendState is the send state of a chat session
type SendState int

const (
	StateIdle SendState = iota
	StateSending
)

func (s SendState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	default:
		return fmt.Sprintf("SendState(%d)", int(s))
	}
}

type sendEvent int

const (
	eventBegin sendEvent = iota
	eventComplete
)

var sendTransitions = map[SendState]map[sendEvent]SendState{
	StateIdle:    {eventBegin: StateSending},
	StateSending: {eventComplete: StateIdle},
}

// Pending identifies an accepted send until it completes
type Pending struct {
	Content string
	seq     uint64
}

// Result is what a completed send did to the message list
type Result struct {
	Appended []models.Message
	// Err is the failure behind an appended system message
	Err            error
	ScrollToBottom bool
	// Discarded is set when the session was closed before completion
	Discarded bool
}

// Option configures a Session
type Option func(*Session)

func WithLogger(l *logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session owns the ordered message list of one conversation.
// Messages are only ever appended.
type Session struct {
	mu       sync.Mutex
	cloneID  string
	convID   string
	messages []models.Message
	state    SendState
	seq      uint64
	closed   bool

	backend Backend
	log     *logger.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewSession starts a session from an initialized chat
func NewSession(chat *Chat, backend Backend, opts ...Option) *Session {
	s := &Session{
		cloneID:  chat.Clone.ID,
		convID:   chat.Conversation.ID,
		messages: append([]models.Message(nil), chat.History...),
		backend:  backend,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithClone(s.cloneID).WithConversation(s.convID)
	return s
}

// Messages returns a copy of the rendered sequence
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

func (s *Session) State() SendState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) ConversationID() string { return s.convID }

func (s *Session) CloneID() string { return s.cloneID }

// Sanitize strips C0 control characters and DEL, then surrounding
// whitespace
func Sanitize(text string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r <= 0x1f || r == 0x7f {
			return -1
		}
		return r
	}, text))
}

func (s *Session) transition(ev sendEvent) bool {
	next, ok := sendTransitions[s.state][ev]
	if !ok {
		return false
	}
	s.state = next
	return true
}

// Begin accepts text for sending. The caller clears its input as soon
// as Begin succeeds and then delivers the returned Pending.
func (s *Session) Begin(text string) (Pending, error) {
	content := Sanitize(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Pending{}, errors.NewValidationError("SESSION_CLOSED", "chat is closed")
	}
	if s.convID == "" {
		return Pending{}, errors.NewValidationError("NO_CONVERSATION", "no active conversation")
	}
	if content == "" {
		return Pending{}, errors.NewValidationError("EMPTY_MESSAGE", "message is empty")
	}
	if !s.transition(eventBegin) {
		return Pending{}, ErrSendInFlight
	}

	s.seq++
	return Pending{Content: content, seq: s.seq}, nil
}

// Deliver performs the backend call for p. It holds no lock.
func (s *Session) Deliver(ctx context.Context, p Pending) (*models.ChatResponse, error) {
	return s.backend.SendMessage(ctx, s.cloneID, s.convID, p.Content)
}

// Complete applies the outcome of a delivered send and returns to idle
func (s *Session) Complete(p Pending, resp *models.ChatResponse, err error) Result {
	if err == nil {
		if verr := resp.Validate(); verr != nil {
			err = errors.NewShapeError("SendMessage: " + verr.Error())
		}
	}
	s.metrics.RecordSend(context.Background(), err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.seq != s.seq || !s.transition(eventComplete) {
		s.log.Warn("Ignoring completion of unknown send")
		return Result{Discarded: true}
	}

	if s.closed {
		s.log.Info("Discarding send result after close", "failed", err != nil)
		return Result{Discarded: true, Err: err}
	}

	var appended []models.Message
	if err != nil {
		s.log.Warn("Send failed", "kind", string(errors.KindOf(err)), "error", err.Error())
		appended = []models.Message{s.systemMessage()}
	} else {
		appended = []models.Message{*resp.UserMessage, *resp.CloneMessage}
	}
	s.messages = append(s.messages, appended...)

	return Result{Appended: appended, Err: err, ScrollToBottom: true}
}

// Send runs Begin, Deliver and Complete. A rejected Begin is returned
// as Result.Err with nothing appended.
func (s *Session) Send(ctx context.Context, text string) Result {
	p, err := s.Begin(text)
	if err != nil {
		return Result{Err: err}
	}
	resp, err := s.Deliver(ctx, p)
	return s.Complete(p, resp, err)
}

// Close unmounts the session. Sends still in flight are discarded
// when they complete.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Session) systemMessage() models.Message {
	return models.Message{
		ID:             id.Local(),
		ConversationID: s.convID,
		Role:           models.RoleSystem,
		Content:        SendFailedText,
		Metadata:       map[string]any{models.MetadataLocal: true},
		CreatedAt:      s.now(),
	}
}
