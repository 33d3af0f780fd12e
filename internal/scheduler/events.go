package scheduler

import (
	"time"

	"github.com/saleswire/agentsync/internal/engine"
	"github.com/saleswire/agentsync/internal/types"
)

// EventType discriminates scheduler event payloads.
type EventType string

// Event type constants
const (
	EventSyncStart    EventType = "syncStart"
	EventSyncProgress EventType = "syncProgress"
	EventSyncComplete EventType = "syncComplete"
)

// Event is one entry of the scheduler's observation stream. Progress
// events carry Percent and Label; completion events carry the Result.
type Event struct {
	Type    EventType
	Kind    types.SyncKind
	UserID  string
	Percent int
	Label   string
	Result  *engine.Result
	At      time.Time
}

// emit publishes without blocking. A slow or absent consumer costs
// events, not sync throughput; drops are counted so the daemon can report
// them.
func (s *Scheduler) emit(ev Event) {
	ev.At = time.Now()
	select {
	case s.events <- ev:
	default:
		s.droppedEvents.Add(1)
	}
}

// Events exposes the scheduler's event stream. The channel is never
// closed while the scheduler is alive; consume it in a select alongside
// your own shutdown signal.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// ResetDroppedEvents returns the number of events dropped since the last
// call and resets the counter.
func (s *Scheduler) ResetDroppedEvents() int64 {
	return s.droppedEvents.Swap(0)
}
