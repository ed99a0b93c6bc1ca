// Package audio plays synthesized speech for clone messages.
package audio

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"digital-clone/frontend/internal/models"
	"digital-clone/frontend/pkg/errors"
	"digital-clone/frontend/pkg/logger"
	"digital-clone/frontend/pkg/observability"
)

var (
	// ErrAudioBusy rejects a request while the message is loading or playing
	ErrAudioBusy = errors.NewValidationError("AUDIO_BUSY", "audio is already loading or playing")
	// ErrNotPlayable rejects messages that are not clone-authored or
	// have no known clone
	ErrNotPlayable = errors.NewValidationError("NOT_PLAYABLE", "this message cannot be played")
)

// State is the playback state of one message
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type event int

const (
	eventRequest event = iota
	eventReady
	eventFailed
	eventEnded
)

var transitions = map[State]map[event]State{
	StateIdle:    {eventRequest: StateLoading},
	StateLoading: {eventReady: StatePlaying, eventFailed: StateIdle},
	StatePlaying: {eventEnded: StateIdle},
}

// Synthesizer turns text into speech as a given clone
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, cloneID, text string) (*models.SpeechAudio, error)
}

// Clip is decoded audio ready for a sink
type Clip struct {
	MessageID string
	Data      []byte
	Format    string
	MIMEType  string
}

// Sink starts playback of a clip and returns the resource it created
type Sink interface {
	Play(ctx context.Context, clip Clip) (Playback, error)
}

// Playback is one disposable playing resource. Done is closed when
// playback finishes on its own. Release is idempotent.
type Playback interface {
	Done() <-chan struct{}
	Release()
}

// Notifier shows a blocking alert for a failed request
type Notifier interface {
	Alert(messageID string, err error)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(messageID string, err error)

func (f NotifierFunc) Alert(messageID string, err error) { f(messageID, err) }

// Option configures a Player
type Option func(*Player)

func WithLogger(l *logger.Logger) Option {
	return func(p *Player) { p.log = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(p *Player) { p.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(p *Player) { p.notifier = n }
}

// OnStateChange registers a callback run after every transition,
// outside the player's lock
func OnStateChange(fn func(State)) Option {
	return func(p *Player) { p.onChange = fn }
}

// Player drives the audio of a single rendered message. Different
// players are independent; one player holds at most one playback.
type Player struct {
	mu       sync.Mutex
	msg      models.Message
	cloneID  string
	state    State
	playback Playback
	gen      uint64
	closed   bool

	synth    Synthesizer
	sink     Sink
	notifier Notifier
	onChange func(State)
	log      *logger.Logger
	metrics  *observability.Metrics
}

func NewPlayer(msg models.Message, cloneID string, synth Synthesizer, sink Sink, opts ...Option) *Player {
	p := &Player{
		msg:     msg,
		cloneID: cloneID,
		synth:   synth,
		sink:    sink,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.WithClone(cloneID).WithMessage(msg.ID)
	return p
}

// Playable reports whether a message may request audio at all: only
// clone-authored text of a known clone can be spoken
func Playable(msg models.Message, cloneID string) bool {
	return msg.Role == models.RoleClone && cloneID != "" && msg.Content != ""
}

func (p *Player) Playable() bool {
	return Playable(p.msg, p.cloneID)
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// fire applies ev under the lock and reports the new state
func (p *Player) fire(ev event) (State, bool) {
	next, ok := transitions[p.state][ev]
	if !ok {
		return p.state, false
	}
	p.state = next
	return next, true
}

func (p *Player) changed(s State) {
	if p.onChange != nil {
		p.onChange(s)
	}
}

// Request synthesizes the message text and starts playback. It blocks
// until playback has started or failed. Failures return the player to
// idle and raise the notifier.
func (p *Player) Request(ctx context.Context) error {
	if !p.Playable() {
		return ErrNotPlayable
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrNotPlayable
	}
	st, ok := p.fire(eventRequest)
	if !ok {
		p.mu.Unlock()
		return ErrAudioBusy
	}
	p.gen++
	gen := p.gen
	p.mu.Unlock()
	p.changed(st)

	pb, err := p.load(ctx)
	p.metrics.RecordSpeech(ctx, err)

	p.mu.Lock()
	if p.closed || p.gen != gen {
		p.mu.Unlock()
		if pb != nil {
			pb.Release()
		}
		return nil
	}
	if err != nil {
		st, _ = p.fire(eventFailed)
		p.mu.Unlock()

		if pb != nil {
			pb.Release()
		}
		p.log.Warn("Audio request failed", "kind", string(errors.KindOf(err)), "error", err.Error())
		p.changed(st)
		if p.notifier != nil {
			p.notifier.Alert(p.msg.ID, err)
		}
		return err
	}
	st, _ = p.fire(eventReady)
	p.playback = pb
	p.mu.Unlock()
	p.changed(st)

	go p.watch(gen, pb)
	return nil
}

func (p *Player) load(ctx context.Context) (Playback, error) {
	speech, err := p.synth.SynthesizeSpeech(ctx, p.cloneID, p.msg.Content)
	if err != nil {
		return nil, err
	}
	data, err := Decode(speech.AudioBase64)
	if err != nil {
		return nil, err
	}
	pb, err := p.sink.Play(ctx, Clip{
		MessageID: p.msg.ID,
		Data:      data,
		Format:    speech.Format,
		MIMEType:  speech.MIMEType(),
	})
	if err == nil && pb == nil {
		err = fmt.Errorf("audio sink returned no playback")
	}
	return pb, err
}

func (p *Player) watch(gen uint64, pb Playback) {
	<-pb.Done()
	p.end(gen)
}

// Ended reports that the listener finished playback
func (p *Player) Ended() {
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()
	p.end(gen)
}

func (p *Player) end(gen uint64) {
	p.mu.Lock()
	if p.gen != gen || p.state != StatePlaying {
		p.mu.Unlock()
		return
	}
	st, _ := p.fire(eventEnded)
	pb := p.playback
	p.playback = nil
	p.mu.Unlock()

	pb.Release()
	p.changed(st)
}

// Teardown releases any playback and disables the player. A request
// still loading is discarded when it returns.
func (p *Player) Teardown() {
	p.mu.Lock()
	p.closed = true
	p.gen++
	pb := p.playback
	p.playback = nil
	p.state = StateIdle
	p.mu.Unlock()

	if pb != nil {
		pb.Release()
	}
}

// Decode reads a base64 payload, tolerating a data: URL prefix and
// missing padding
func Decode(payload string) ([]byte, error) {
	if i := strings.Index(payload, ";base64,"); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+len(";base64,"):]
	}
	payload = strings.TrimSpace(payload)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil || len(data) == 0 {
		return nil, errors.NewShapeError("SynthesizeSpeech: audio is not valid base64")
	}
	return data, nil
}
