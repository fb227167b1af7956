package kandinsky

import (
	"context"
	"sync"

	"github.com/matiasleandrokruk/askbot/internal/infra/eventbus"
)

// JobStats counts job outcomes since process start.
type JobStats struct {
	Submitted int `json:"submitted"`
	InFlight  int `json:"in_flight"`
	Done      int `json:"done"`
	Failed    int `json:"failed"`
	TimedOut  int `json:"timed_out"`
	Canceled  int `json:"canceled"`
	// EventsDropped counts bus deliveries lost to full subscriber buffers.
	EventsDropped int64 `json:"events_dropped"`
}

// Monitor aggregates JobEvents from the bus.
type Monitor struct {
	bus eventbus.EventBus
	ch  <-chan eventbus.Event

	mu    sync.Mutex
	stats JobStats
}

// NewMonitor subscribes to bus right away so no event published after it
// returns is missed. Call Run to start consuming.
func NewMonitor(bus eventbus.EventBus) *Monitor {
	return &Monitor{bus: bus, ch: bus.Subscribe(JobTopic)}
}

// Run consumes job events until ctx is done, then unsubscribes.
func (m *Monitor) Run(ctx context.Context) {
	defer m.bus.Unsubscribe(JobTopic, m.ch)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-m.ch:
			if !ok {
				return
			}
			if je, ok := evt.Payload.(JobEvent); ok {
				m.record(je)
			}
		}
	}
}

func (m *Monitor) record(e JobEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch e.Status {
	case StatusPending:
		m.stats.Submitted++
		m.stats.InFlight++
		return
	case StatusDone:
		m.stats.Done++
	case StatusFailed:
		m.stats.Failed++
		// a submit failure never produced a job
		if e.JobID == "" {
			return
		}
	case StatusTimedOut:
		m.stats.TimedOut++
	case StatusCanceled:
		m.stats.Canceled++
	default:
		return
	}
	if m.stats.InFlight > 0 {
		m.stats.InFlight--
	}
}

// dropCounter is implemented by buses that shed events under backpressure.
type dropCounter interface {
	Dropped() int64
}

// Stats returns a snapshot of the counters.
func (m *Monitor) Stats() JobStats {
	m.mu.Lock()
	stats := m.stats
	m.mu.Unlock()
	if dc, ok := m.bus.(dropCounter); ok {
		stats.EventsDropped = dc.Dropped()
	}
	return stats
}
