package convo

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotVersion is the current snapshot wire version.
const SnapshotVersion = 1

// SnapshotVersionError reports an import of an incompatible snapshot.
type SnapshotVersionError struct {
	Got int
}

func (e *SnapshotVersionError) Error() string {
	return fmt.Sprintf("unsupported snapshot version %d (want %d)", e.Got, SnapshotVersion)
}

// Snapshot is the serialized conversation state.
type Snapshot struct {
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Messages  []Message `json:"messages"`
	TeamTask  *string   `json:"teamTask,omitempty"`
	NextID    int       `json:"nextId"`
}

// Export serializes the log, team task and id counter.
func (l *Log) Export() ([]byte, error) {
	l.mu.RLock()
	snap := Snapshot{
		Version:   SnapshotVersion,
		Timestamp: time.Now().UTC(),
		Messages:  make([]Message, len(l.messages)),
		TeamTask:  l.teamTaskCopyLocked(),
		NextID:    l.nextID,
	}
	copy(snap.Messages, l.messages)
	l.mu.RUnlock()

	return json.MarshalIndent(snap, "", "  ")
}

// Import replaces the log contents with a previously exported snapshot.
// A version mismatch fails without touching state.
func (l *Log) Import(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return &SnapshotVersionError{Got: snap.Version}
	}

	byID := make(map[string]int, len(snap.Messages))
	for i, m := range snap.Messages {
		byID[m.ID] = i
	}

	l.mu.Lock()
	l.messages = snap.Messages
	l.byID = byID
	l.nextID = snap.NextID
	l.teamTask = snap.TeamTask
	l.mu.Unlock()

	if l.hooks.OnTeamTaskChanged != nil {
		l.hooks.OnTeamTaskChanged(l.TeamTask())
	}
	return nil
}
