package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// MemoryPersister keeps state for the lifetime of the process
type MemoryPersister struct {
	mu    sync.Mutex
	state *State
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (m *MemoryPersister) Load(context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	st := *m.state
	return &st, nil
}

func (m *MemoryPersister) Save(_ context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := *state
	m.state = &st
	return nil
}

func (m *MemoryPersister) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}

// FilePersister stores the terminal client's session as a 0600 JSON file
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (f *FilePersister) Load(context.Context) (*State, error) {
	data, err := os.ReadFile(f.path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		// A corrupt file is treated as signed out
		return nil, nil
	}
	return &st, nil
}

func (f *FilePersister) Save(_ context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FilePersister) Clear(context.Context) error {
	err := os.Remove(f.path)
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Factory builds the persister for one browser session
type Factory func(sessionID string) Persister

// NewMemoryFactory keeps every browser session in process memory
func NewMemoryFactory() Factory {
	var sessions sync.Map
	return func(sessionID string) Persister {
		p, _ := sessions.LoadOrStore(sessionID, NewMemoryPersister())
		return p.(*MemoryPersister)
	}
}
