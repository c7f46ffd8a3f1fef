package formcoach

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session busy: frame dropped")
	ErrSessionExists   = errors.New("session already exists")
)

// Observer receives arena events. Implementations must be safe for
// concurrent use.
type Observer interface {
	SessionOpened(ex Exercise)
	SessionClosed(ex Exercise, summary Summary)
	FrameAnalyzed(ex Exercise, res FrameResult)
	FrameDropped(ex Exercise)
}

type arenaEntry struct {
	mu      sync.Mutex
	session *Session
}

// Arena holds independent sessions keyed by id. Frames for different sessions
// are analyzed in parallel; a frame arriving while its session is still busy
// is dropped instead of queued.
type Arena struct {
	reg      *Registry
	observer Observer

	mu       sync.RWMutex
	sessions map[string]*arenaEntry
}

// ArenaOption configures an Arena.
type ArenaOption func(*Arena)

// WithObserver attaches an observer to the arena.
func WithObserver(o Observer) ArenaOption {
	return func(a *Arena) {
		a.observer = o
	}
}

// NewArena creates an empty arena; a nil registry means DefaultRegistry.
func NewArena(reg *Registry, opts ...ArenaOption) *Arena {
	if reg == nil {
		reg = DefaultRegistry()
	}
	a := &Arena{
		reg:      reg,
		sessions: make(map[string]*arenaEntry),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Open starts a session under a fresh id.
func (a *Arena) Open(ex Exercise) (string, error) {
	id := uuid.NewString()
	if err := a.OpenWithID(id, ex); err != nil {
		return "", err
	}
	return id, nil
}

// OpenWithID starts a session under a caller-chosen id.
func (a *Arena) OpenWithID(id string, ex Exercise) error {
	s, err := NewSession(a.reg, ex)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if _, ok := a.sessions[id]; ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	a.sessions[id] = &arenaEntry{session: s}
	a.mu.Unlock()

	logrus.WithFields(logrus.Fields{"session": id, "exercise": ex}).Debug("session opened")
	if a.observer != nil {
		a.observer.SessionOpened(ex)
	}
	return nil
}

func (a *Arena) entry(id string) (*arenaEntry, error) {
	a.mu.RLock()
	e, ok := a.sessions[id]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

// Config returns the exercise configuration the session was opened with.
func (a *Arena) Config(id string) (*ExerciseConfig, error) {
	e, err := a.entry(id)
	if err != nil {
		return nil, err
	}
	return e.session.Config(), nil
}

// Analyze runs one frame on the session. It never waits: if another frame for
// the same session is in flight the new frame is dropped with ErrSessionBusy.
func (a *Arena) Analyze(id string, f Frame) (FrameResult, error) {
	e, err := a.entry(id)
	if err != nil {
		return FrameResult{}, err
	}
	if !e.mu.TryLock() {
		if a.observer != nil {
			a.observer.FrameDropped(e.session.Exercise())
		}
		return FrameResult{}, fmt.Errorf("%w: %s", ErrSessionBusy, id)
	}
	res := e.session.Analyze(f)
	ex := e.session.Exercise()
	e.mu.Unlock()

	if res.RepCompleted {
		logrus.WithFields(logrus.Fields{
			"session": id,
			"rep":     res.RepCount,
			"score":   res.Form.Score,
		}).Debug("rep completed")
	}
	if a.observer != nil {
		a.observer.FrameAnalyzed(ex, res)
	}
	return res, nil
}

// Summary reports the session's set so far.
func (a *Arena) Summary(id string) (Summary, error) {
	e, err := a.entry(id)
	if err != nil {
		return Summary{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Summary(), nil
}

// Reps returns the completed rep records of the session.
func (a *Arena) Reps(id string) ([]RepRecord, error) {
	e, err := a.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Reps(), nil
}

// Reset clears the session for a new set.
func (a *Arena) Reset(id string) error {
	e, err := a.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.session.Reset()
	e.mu.Unlock()
	logrus.WithField("session", id).Debug("session reset")
	return nil
}

// Close removes the session and returns its final summary.
func (a *Arena) Close(id string) (Summary, error) {
	a.mu.Lock()
	e, ok := a.sessions[id]
	if ok {
		delete(a.sessions, id)
	}
	a.mu.Unlock()
	if !ok {
		return Summary{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	e.mu.Lock()
	summary := e.session.Summary()
	e.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"session":  id,
		"exercise": summary.Exercise,
		"reps":     summary.TotalReps,
	}).Debug("session closed")
	if a.observer != nil {
		a.observer.SessionClosed(summary.Exercise, summary)
	}
	return summary, nil
}

// IDs lists the open session ids in sorted order.
func (a *Arena) IDs() []string {
	a.mu.RLock()
	ids := make([]string, 0, len(a.sessions))
	for id := range a.sessions {
		ids = append(ids, id)
	}
	a.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of open sessions.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}
