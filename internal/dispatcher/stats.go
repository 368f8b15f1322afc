package dispatcher

import "sync/atomic"

// Stats is an in-process, lock-free set of ticket metrics (SPEC_FULL §11):
// one gauge of active tickets and three counters of finished ones, each an
// atomic. There is no Prometheus-style scrape endpoint; cmd/server returns
// the Snapshot as JSON from GET /healthz.
type Stats struct {
	activeTickets atomic.Int64
	completed     atomic.Int64
	timedOut      atomic.Int64
	cancelled     atomic.Int64
}

func (s *Stats) ticketStarted()   { s.activeTickets.Add(1) }
func (s *Stats) ticketCompleted() { s.activeTickets.Add(-1); s.completed.Add(1) }
func (s *Stats) ticketTimedOut()  { s.activeTickets.Add(-1); s.timedOut.Add(1) }
func (s *Stats) ticketCancelled() { s.activeTickets.Add(-1); s.cancelled.Add(1) }

// Snapshot is a point-in-time read of Stats, safe to log or return from an
// introspection hook.
type Snapshot struct {
	ActiveTickets int64
	Completed     int64
	TimedOut      int64
	Cancelled     int64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		ActiveTickets: s.activeTickets.Load(),
		Completed:     s.completed.Load(),
		TimedOut:      s.timedOut.Load(),
		Cancelled:     s.cancelled.Load(),
	}
}
