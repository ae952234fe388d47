// Package behavior scores client interaction logs for bot-likeness and keeps
// a short per-session history of vote outcomes.
package behavior

import "sync"

// Action kinds reported by the client
const (
	ActionMouseMove = "mouse_move"
	ActionClickLike = "click_like"
	ActionScroll    = "scroll"
	ActionKeyDown   = "key_down"
	ActionTouch     = "touch_start"
)

// MaxActions bounds every action log, client and server side
const MaxActions = 50

// ActionEvent is one timestamped client interaction
type ActionEvent struct {
	Timestamp int64  `json:"timestamp"` // unix millis
	Action    string `json:"action"`
}

// ActionLog is a fixed-capacity ring of events; the oldest is dropped first
type ActionLog struct {
	mu     sync.Mutex
	events []ActionEvent
	start  int
	size   int
}

// NewActionLog creates a ring holding up to capacity events
// (MaxActions when capacity is not positive)
func NewActionLog(capacity int) *ActionLog {
	if capacity <= 0 {
		capacity = MaxActions
	}
	return &ActionLog{events: make([]ActionEvent, capacity)}
}

// Add appends an event, evicting the oldest when full
func (l *ActionLog) Add(e ActionEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	capacity := len(l.events)
	if l.size < capacity {
		l.events[(l.start+l.size)%capacity] = e
		l.size++
		return
	}
	l.events[l.start] = e
	l.start = (l.start + 1) % capacity
}

// Len returns the number of buffered events
func (l *ActionLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Events returns a copy of the buffered events, oldest first
func (l *ActionLog) Events() []ActionEvent {
	return l.Last(l.Len())
}

// Last returns up to n of the newest events, oldest first
func (l *ActionLog) Last(n int) []ActionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n > l.size {
		n = l.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]ActionEvent, n)
	capacity := len(l.events)
	first := l.start + l.size - n
	for i := 0; i < n; i++ {
		out[i] = l.events[(first+i)%capacity]
	}
	return out
}

// Trim keeps at most the newest MaxActions events of a submitted log
func Trim(actions []ActionEvent) []ActionEvent {
	if len(actions) <= MaxActions {
		return actions
	}
	return actions[len(actions)-MaxActions:]
}
