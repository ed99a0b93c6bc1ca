package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"digital-clone/frontend/pkg/logger"
)

// CommandSink plays clips through a local player such as ffplay.
// Each clip is written to a temp file that is removed on release.
type CommandSink struct {
	command []string
	dir     string
	log     *logger.Logger
}

func NewCommandSink(command []string, dir string, log *logger.Logger) *CommandSink {
	if log == nil {
		log = logger.Nop()
	}
	return &CommandSink{command: command, dir: dir, log: log}
}

func (s *CommandSink) Play(_ context.Context, clip Clip) (Playback, error) {
	if len(s.command) == 0 {
		return nil, fmt.Errorf("no audio player configured")
	}

	f, err := os.CreateTemp(s.dir, "clone-speech-*."+extension(clip.Format))
	if err != nil {
		return nil, fmt.Errorf("create audio file: %w", err)
	}
	if _, err := f.Write(clip.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("close audio file: %w", err)
	}

	// Playback outlives the request that started it
	ctx, cancel := context.WithCancel(context.Background())
	args := append(append([]string(nil), s.command[1:]...), f.Name())
	cmd := exec.CommandContext(ctx, s.command[0], args...)

	pb := &commandPlayback{path: f.Name(), cancel: cancel, done: make(chan struct{})}
	if err := cmd.Start(); err != nil {
		cancel()
		close(pb.done)
		os.Remove(f.Name())
		return nil, fmt.Errorf("start audio player: %w", err)
	}

	go func() {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			s.log.Warn("Audio player exited with error", "error", err.Error())
		}
		close(pb.done)
	}()
	return pb, nil
}

type commandPlayback struct {
	path   string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (p *commandPlayback) Done() <-chan struct{} { return p.done }

func (p *commandPlayback) Release() {
	p.once.Do(func() {
		p.cancel()
		<-p.done
		os.Remove(p.path)
	})
}

func extension(format string) string {
	switch format {
	case "", "mpeg":
		return "mp3"
	default:
		return format
	}
}
