// Package httpapi implements the HTTP surface of the reference server.
package httpapi

import (
	"sync"
	"time"

	"github.com/mistakeknot/recall/internal/auth"
	"github.com/mistakeknot/recall/internal/storage"
)

type Service struct {
	store   storage.Store
	issuer  *auth.Issuer
	bus     Broadcaster
	logs    *LogBuffer
	started time.Time
}

type Broadcaster interface {
	Broadcast(userID string, event any)
}

func NewService(store storage.Store, issuer *auth.Issuer) *Service {
	return &Service{
		store:   store,
		issuer:  issuer,
		logs:    NewLogBuffer(500),
		started: time.Now().UTC(),
	}
}

func (s *Service) WithBroadcaster(b Broadcaster) *Service {
	s.bus = b
	return s
}

// LogBuffer keeps the most recent request log lines in memory for the
// system logs endpoint.
type LogBuffer struct {
	mu    sync.Mutex
	lines []LogLine
	max   int
}

type LogLine struct {
	Time     time.Time `json:"time"`
	Method   string    `json:"method"`
	Path     string    `json:"path"`
	Status   int       `json:"status"`
	Duration string    `json:"duration"`
}

func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = 100
	}
	return &LogBuffer{max: max}
}

func (b *LogBuffer) Add(line LogLine) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

// Recent returns up to n most recent lines, newest last.
func (b *LogBuffer) Recent(n int) []LogLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.lines) {
		n = len(b.lines)
	}
	out := make([]LogLine, n)
	copy(out, b.lines[len(b.lines)-n:])
	return out
}
