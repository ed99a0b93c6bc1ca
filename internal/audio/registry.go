package audio

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"digital-clone/frontend/pkg/cache"
	"digital-clone/frontend/pkg/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegistryOptions configures a Registry
type RegistryOptions struct {
	// BasePath prefixes the served URLs, e.g. "/audio"
	BasePath        string
	TTL             time.Duration
	MaxItems        int
	CleanupInterval time.Duration
}

type clipEntry struct {
	data []byte
	mime string
	done chan struct{}
	once sync.Once
}

func (e *clipEntry) finish() {
	e.once.Do(func() { close(e.done) })
}

// Registry is the server side of object URLs: decoded clips stay
// servable until revoked, evicted for capacity or expired.
type Registry struct {
	clips    *cache.Cache[*clipEntry]
	basePath string
	metrics  *observability.Metrics
}

func NewRegistry(opts RegistryOptions, metrics *observability.Metrics) *Registry {
	if opts.BasePath == "" {
		opts.BasePath = "/audio"
	}
	r := &Registry{
		clips: cache.New[*clipEntry](cache.Options{
			DefaultExpiration: opts.TTL,
			CleanupInterval:   opts.CleanupInterval,
			MaxItems:          opts.MaxItems,
		}),
		basePath: opts.BasePath,
		metrics:  metrics,
	}
	r.clips.SetOnEvicted(func(_ string, e *clipEntry) {
		e.finish()
		r.metrics.AudioURLDelta(context.Background(), -1)
	})
	return r
}

// Register stores a clip and returns its id and URL
func (r *Registry) Register(data []byte, mime string) (string, string, <-chan struct{}) {
	id := uuid.NewString()
	e := &clipEntry{data: data, mime: mime, done: make(chan struct{})}
	r.clips.Set(id, e)
	r.metrics.AudioURLDelta(context.Background(), 1)
	return id, r.basePath + "/" + id, e.done
}

// Revoke drops a clip; its URL stops resolving
func (r *Registry) Revoke(id string) {
	r.clips.Delete(id)
}

// Lookup returns a live clip
func (r *Registry) Lookup(id string) ([]byte, string, bool) {
	e, ok := r.clips.Get(id)
	if !ok {
		return nil, "", false
	}
	return e.data, e.mime, true
}

// Len counts registered clips, including expired ones not yet swept
func (r *Registry) Len() int {
	return r.clips.Count()
}

// Handler serves GET {BasePath}/:id
func (r *Registry) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		data, mime, ok := r.Lookup(c.Param("id"))
		if !ok {
			c.Status(http.StatusNotFound)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Header("Content-Length", strconv.Itoa(len(data)))
		c.Data(http.StatusOK, mime, data)
	}
}

// Close revokes every clip and stops the sweeper
func (r *Registry) Close() {
	r.clips.Flush()
	r.clips.Close()
}

// URLSink plays clips in the browser: each clip becomes a registry URL
// that is announced to the page.
type URLSink struct {
	registry *Registry
	announce func(messageID, url, mime string) error
}

func NewURLSink(registry *Registry, announce func(messageID, url, mime string) error) *URLSink {
	return &URLSink{registry: registry, announce: announce}
}

func (s *URLSink) Play(_ context.Context, clip Clip) (Playback, error) {
	id, url, done := s.registry.Register(clip.Data, clip.MIMEType)
	pb := &urlPlayback{registry: s.registry, id: id, url: url, done: done}

	if err := s.announce(clip.MessageID, url, clip.MIMEType); err != nil {
		return pb, err
	}
	return pb, nil
}

type urlPlayback struct {
	registry *Registry
	id       string
	url      string
	done     <-chan struct{}
}

func (p *urlPlayback) Done() <-chan struct{} { return p.done }

func (p *urlPlayback) Release() { p.registry.Revoke(p.id) }

func (p *urlPlayback) URL() string { return p.url }
