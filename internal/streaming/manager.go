package streaming

import (
	"encoding/json"
	"sync"
	"time"
)

// Event is one pipeline progress event delivered to stream subscribers.
type Event struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Seq       uint64    `json:"seq"`
}

// Marshal returns the JSON form of the event for wire transports.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

const defaultHistoryCapacity = 256

// Manager provides in-memory pub/sub for per-session pipeline events,
// with a bounded replay buffer for late subscribers.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	history     map[string]*ring
	capacity    int
}

// NewManager creates a Manager. A non-positive capacity uses the default.
func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &Manager{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		capacity:    capacity,
	}
}

// Subscribe adds a subscriber channel for a session; the caller must
// drain it and call Unsubscribe when done.
func (m *Manager) Subscribe(sessionID string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscribers[sessionID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		m.subscribers[sessionID] = subs
	}
	subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes the subscriber channel.
func (m *Manager) Unsubscribe(sessionID string, ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs, ok := m.subscribers[sessionID]; ok {
		if _, present := subs[ch]; present {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(m.subscribers, sessionID)
		}
	}
}

// Publish implements research.EventSink. It records the event in the
// session's replay buffer and fans it out without blocking; slow
// subscribers drop events.
func (m *Manager) Publish(sessionID, stage, message string) {
	evt := Event{
		SessionID: sessionID,
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rg := m.history[sessionID]
	if rg == nil {
		rg = newRing(m.capacity)
		m.history[sessionID] = rg
	}
	evt.Seq = rg.nextSeq
	rg.nextSeq++
	rg.push(evt)

	// Sends stay under the lock: they are non-blocking, and Unsubscribe
	// and Forget close channels under the same lock, so a send can never
	// hit a closed channel.
	for ch := range m.subscribers[sessionID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ReplaySince returns the buffered events with Seq > since, best-effort
// within the ring capacity.
func (m *Manager) ReplaySince(sessionID string, since uint64) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rg := m.history[sessionID]
	if rg == nil {
		return nil
	}
	return rg.since(since)
}

// Forget drops the session's replay buffer and disconnects subscribers.
func (m *Manager) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, sessionID)
	if subs, ok := m.subscribers[sessionID]; ok {
		for ch := range subs {
			close(ch)
		}
		delete(m.subscribers, sessionID)
	}
}

// ring is a fixed-capacity buffer of events with monotone sequence numbers.
type ring struct {
	buf     []Event
	start   int
	count   int
	nextSeq uint64
}

// Sequence numbers start at 1 so ReplaySince(id, 0) yields the whole buffer.
func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity), nextSeq: 1} }

func (r *ring) push(e Event) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
