package http

import (
	"log/slog"
	"sync"

	"github.com/aretw0/mosaic/internal/logging"
	"github.com/aretw0/mosaic/pkg/domain"
)

// StreamBuffer is the number of diffs a slow client may lag behind.
const StreamBuffer = 16

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *domain.SnapshotDiff]struct{} // SessionID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan *domain.SnapshotDiff]struct{}),
		logger:      logging.NewNop(),
	}
}

// Subscribe registers a stream for a session. first reports whether no other
// stream followed the session. leave removes the stream and reports whether
// it was the last one.
func (sm *StreamManager) Subscribe(sessionID string) (ch <-chan *domain.SnapshotDiff, first bool, leave func() bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	c := make(chan *domain.SnapshotDiff, StreamBuffer)
	subs, ok := sm.subscribers[sessionID]
	if !ok {
		subs = make(map[chan *domain.SnapshotDiff]struct{})
		sm.subscribers[sessionID] = subs
	}
	first = len(subs) == 0
	subs[c] = struct{}{}

	return c, first, func() bool {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		subs, ok := sm.subscribers[sessionID]
		if !ok {
			return false
		}
		if _, ok := subs[c]; !ok {
			return false
		}
		delete(subs, c)
		close(c)
		if len(subs) == 0 {
			delete(sm.subscribers, sessionID)
			return true
		}
		return false
	}
}

// CloseSession ends every stream of a session.
func (sm *StreamManager) CloseSession(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for c := range sm.subscribers[sessionID] {
		close(c)
	}
	delete(sm.subscribers, sessionID)
}

// Count returns the number of streams following a session.
func (sm *StreamManager) Count(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

func (sm *StreamManager) Broadcast(sessionID string, diff *domain.SnapshotDiff) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- diff:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping diff", "session_id", sessionID, "seq", diff.Seq)
		}
	}
}
