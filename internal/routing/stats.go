package routing

import (
	"sync/atomic"
	"time"
)

// statsRecorder funnels counters shared by concurrent fan-out tasks
// through atomics so no update is lost. Counters are incremented only
// on definite completion, never speculatively.
type statsRecorder struct {
	eventsTotal    atomic.Int64
	eventsRouted   atomic.Int64
	eventsFiltered atomic.Int64
	failedRoutes   atomic.Int64
	latencyTotalUS atomic.Int64
}

func (s *statsRecorder) recordEvent(latency time.Duration) {
	s.eventsTotal.Add(1)
	s.latencyTotalUS.Add(latency.Microseconds())
}

func (s *statsRecorder) recordRouted() {
	s.eventsRouted.Add(1)
}

func (s *statsRecorder) recordFiltered() {
	s.eventsFiltered.Add(1)
}

func (s *statsRecorder) recordFailedRoute() {
	s.failedRoutes.Add(1)
}

func (s *statsRecorder) snapshot() Stats {
	total := s.eventsTotal.Load()
	stats := Stats{
		EventsTotal:    total,
		EventsRouted:   s.eventsRouted.Load(),
		EventsFiltered: s.eventsFiltered.Load(),
		FailedRoutes:   s.failedRoutes.Load(),
	}
	if total > 0 {
		stats.AvgLatencyMS = float64(s.latencyTotalUS.Load()) / float64(total) / 1000.0
	}
	return stats
}
