package session

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-reader/internal/entity"
)

// Sink is where a session's records go.
type Sink interface {
	Append(rec *entity.InvoiceRecord) error
	Path() string
}

// RawResult is one model output kept for display.
type RawResult struct {
	File    string          `json:"file"`
	Content json.RawMessage `json:"content"`
	At      time.Time       `json:"at"`
}

// Session groups the state that lives for one user or one batch run.
type Session struct {
	ID         string
	Tracker    *Tracker
	Sink       Sink
	ScratchDir string // temp copies of uploads; removed by Close
	CreatedAt  time.Time

	batch sync.Mutex // one upload batch at a time

	mu       sync.Mutex
	lastSeen time.Time
	results  []RawResult
	closed   bool
}

func New(id string, sink Sink, scratchDir string) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Tracker:    NewTracker(),
		Sink:       sink,
		ScratchDir: scratchDir,
		CreatedAt:  now,
		lastSeen:   now,
	}
}

// Lock serializes batches within the session.
func (s *Session) Lock()   { s.batch.Lock() }
func (s *Session) Unlock() { s.batch.Unlock() }

func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// AddResult appends a raw model output. Results are never removed.
func (s *Session) AddResult(file string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var raw json.RawMessage
	if json.Valid(content) {
		raw = append(json.RawMessage(nil), content...)
	} else {
		raw, _ = json.Marshal(string(content))
	}
	s.results = append(s.results, RawResult{File: file, Content: raw, At: time.Now()})
}

func (s *Session) Results() []RawResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RawResult, len(s.results))
	copy(out, s.results)
	return out
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close deletes the scratch directory. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.ScratchDir == "" {
		return nil
	}
	return os.RemoveAll(s.ScratchDir)
}
