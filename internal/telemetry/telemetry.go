// Package telemetry implements the append-only, multi-producer event sink
// the supervisor pipeline reports every decision to.
package telemetry

import (
	"log"
	"sync"

	"routersupervisor/internal/model"
)

const (
	defaultBufferSize = 256
	defaultCapacity    = 1000
)

// Sink is a buffered-channel, single-drain-goroutine event log. Any number
// of goroutines may call Record concurrently; a single internal goroutine
// is the only writer to the retained ring and the running counters, so
// neither needs its own lock against concurrent producers — only against
// concurrent readers of Events/Metrics.
type Sink struct {
	events   chan model.TelemetryEvent
	done     chan struct{}
	stopped  chan struct{}
	capacity int

	mu      sync.RWMutex
	ring    []model.TelemetryEvent
	metrics model.SupervisorMetrics
}

// NewSink starts a Sink with the given retained-event capacity (the oldest
// events are dropped once the ring is full; 0 or negative uses the default).
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	s := &Sink{
		events:   make(chan model.TelemetryEvent, defaultBufferSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		capacity: capacity,
	}
	go s.drain()
	return s
}

// Record enqueues evt from any producer goroutine. It never blocks the
// caller past the channel buffer: a full buffer drops the event with a log
// line rather than stalling the decision path that produced it, since a
// telemetry backlog must never slow down tool dispatch.
func (s *Sink) Record(evt model.TelemetryEvent) {
	select {
	case s.events <- evt:
	default:
		log.Printf("telemetry: buffer full, dropping event %s (%s)", evt.ID, evt.Operation)
	}
}

// drain is the sink's single writer: it owns ring and metrics outright and
// needs no lock against Record, only against concurrent Events/Metrics reads.
func (s *Sink) drain() {
	defer close(s.stopped)
	for {
		select {
		case evt := <-s.events:
			s.append(evt)
		case <-s.done:
			for {
				select {
				case evt := <-s.events:
					s.append(evt)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) append(evt model.TelemetryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring = append(s.ring, evt)
	if len(s.ring) > s.capacity {
		s.ring = s.ring[len(s.ring)-s.capacity:]
	}
	s.updateMetrics(evt)
}

func (s *Sink) updateMetrics(evt model.TelemetryEvent) {
	switch evt.Operation {
	case "set_goal":
		s.metrics.GoalsProcessed++
	case "process_call":
		s.metrics.CallsIntercepted++
	case "execute":
		if evt.WorkflowName != "" {
			s.metrics.WorkflowsExpanded++
		}
	}
	for _, rule := range evt.AppliedRules {
		switch rule {
		case "block":
			s.metrics.FirewallBlocks++
		case "auto_fix":
			s.metrics.FirewallAutoFixes++
		case "replace":
			s.metrics.FirewallReplacements++
		}
	}
}

// Events returns a snapshot copy of every currently retained event, oldest
// first. Mutating the returned slice has no effect on the sink.
func (s *Sink) Events() []model.TelemetryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TelemetryEvent, len(s.ring))
	copy(out, s.ring)
	return out
}

// Metrics returns a snapshot copy of the running counters.
func (s *Sink) Metrics() model.SupervisorMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}

// Close stops the drain goroutine, blocking until it has flushed any events
// already buffered in the channel. Record must not be called after Close
// returns.
func (s *Sink) Close() {
	close(s.done)
	<-s.stopped
}
