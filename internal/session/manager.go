package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-reader/constants"
	"github.com/joseph-ayodele/invoice-reader/internal/sink"
)

const CookieName = "invoice_session"

var ErrUnknownSession = errors.New("unknown session")

type ManagerConfig struct {
	OutputDir  string        // <OutputDir>/<session-id>/invoice_data.csv
	ScratchDir string        // parent for per-session scratch dirs; empty -> os.TempDir()
	TTL        time.Duration // idle timeout; 0 disables expiry
}

// Manager owns every live session of the UI server.
type Manager struct {
	cfg      ManagerConfig
	logger   *slog.Logger
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create starts a session with its own CSV file and scratch directory.
func (m *Manager) Create() (*Session, error) {
	id := uuid.New().String()

	scratch, err := os.MkdirTemp(m.cfg.ScratchDir, "invoice-"+id[:8]+"-")
	if err != nil {
		m.logger.Error("session.create.scratch_failed", "error", err)
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	csvPath := filepath.Join(m.cfg.OutputDir, id, constants.DefaultCSVFile)
	s := New(id, sink.NewCSVSink(csvPath, m.logger), scratch)
	s.Touch(m.now())

	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session.created", "session_id", id, "csv", csvPath, "scratch", scratch, "live", n)
	return s, nil
}

// Get returns a live session and refreshes its idle timer.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		s.Touch(m.now())
	}
	return s, ok
}

// Resolve finds the caller's session by cookie, creating one (and the cookie) when needed.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if c, err := r.Cookie(CookieName); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			if s, ok := m.Get(c.Value); ok {
				return s, nil
			}
		}
	}
	s, err := m.Create()
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

// End tears a session down.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}
	return m.close(s, "ended")
}

// Sweep ends sessions idle for longer than the TTL and returns how many were ended.
func (m *Manager) Sweep() int {
	if m.cfg.TTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.TTL)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		_ = m.close(s, "expired")
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.cfg.TTL <= 0 {
		<-ctx.Done()
		return
	}
	every := m.cfg.TTL / 4
	if every < time.Minute {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("session.sweep", "expired", n)
			}
		}
	}
}

// Shutdown ends every session.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range all {
		if err := m.close(s, "shutdown"); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// close waits for a running upload batch before removing the scratch directory.
func (m *Manager) close(s *Session, reason string) error {
	s.Lock()
	defer s.Unlock()
	if err := s.Close(); err != nil {
		m.logger.Warn("session.close_failed", "session_id", s.ID, "reason", reason, "error", err)
		return err
	}
	m.logger.Info("session.closed",
		"session_id", s.ID,
		"reason", reason,
		"processed", s.Tracker.Len(),
		"age_ms", time.Since(s.CreatedAt).Milliseconds(),
	)
	return nil
}
