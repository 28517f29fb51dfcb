package convo

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MaxTeamTaskBytes bounds the shared team task. Oversized input is truncated
// on a code-point boundary with a warning.
const MaxTeamTaskBytes = 5 * 1024

// Hooks are optional observers fired by the log. Nil hooks are skipped.
type Hooks struct {
	OnMessageAdded    func(Message)
	OnTeamTaskChanged func(*string)
}

// Log is the append-only conversation log plus the team task.
// All mutation happens on the coordinator goroutine; reads from other
// goroutines receive defensive copies.
type Log struct {
	mu       sync.RWMutex
	messages []Message
	byID     map[string]int
	nextID   int
	teamTask *string
	hooks    Hooks
}

// NewLog creates an empty log.
func NewLog(hooks Hooks) *Log {
	return &Log{byID: make(map[string]int), nextID: 1, hooks: hooks}
}

// AddMessage validates, assigns the next monotone id, appends, and fires the
// OnMessageAdded hook. Returns the stored message.
func (l *Log) AddMessage(msg Message) (Message, error) {
	if msg.Speaker.ID == "" {
		return Message{}, fmt.Errorf("add message: empty speaker id")
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	l.mu.Lock()
	msg.ID = fmt.Sprintf("msg-%d", l.nextID)
	l.nextID++
	l.messages = append(l.messages, msg)
	l.byID[msg.ID] = len(l.messages) - 1
	l.mu.Unlock()

	if l.hooks.OnMessageAdded != nil {
		l.hooks.OnMessageAdded(msg)
	}
	return msg, nil
}

// Clear resets the log and the team task, firing OnTeamTaskChanged(nil).
func (l *Log) Clear() {
	l.mu.Lock()
	l.messages = nil
	l.byID = make(map[string]int)
	l.nextID = 1
	l.teamTask = nil
	l.mu.Unlock()

	if l.hooks.OnTeamTaskChanged != nil {
		l.hooks.OnTeamTaskChanged(nil)
	}
}

// SetTeamTask stores the shared team task, truncating oversized input on a
// code-point-safe boundary.
func (l *Log) SetTeamTask(task string) {
	if len(task) > MaxTeamTaskBytes {
		truncated := TruncateBytes(task, MaxTeamTaskBytes)
		slog.Warn("team task truncated", "original_bytes", len(task), "kept_bytes", len(truncated))
		task = truncated
	}

	l.mu.Lock()
	l.teamTask = &task
	l.mu.Unlock()

	if l.hooks.OnTeamTaskChanged != nil {
		l.hooks.OnTeamTaskChanged(&task)
	}
}

// TeamTask returns the current team task, nil when unset.
func (l *Log) TeamTask() *string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.teamTask == nil {
		return nil
	}
	v := *l.teamTask
	return &v
}

// Messages returns a copy of the full log.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// ByID returns the message with the given id.
func (l *Log) ByID(id string) (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byID[id]
	if !ok {
		return Message{}, false
	}
	return l.messages[idx], true
}

// Last returns the latest message.
func (l *Log) Last() (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

func (l *Log) indexOf(id string) (int, bool) {
	idx, ok := l.byID[id]
	return idx, ok
}
