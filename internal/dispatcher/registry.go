package dispatcher

import (
	"sync"

	"streamgate-go/internal/core"
)

// registry is the process-local ticket registry (spec §4.D.2, §5). A single
// mutex guards both the (owner, conversation_id) uniqueness index and the
// ticket_id lookup table, matching the spec's "a single mutex... is
// sufficient" guidance.
type registry struct {
	mu    sync.Mutex
	byKey map[core.TicketKey]*ticket
	byID  map[string]*ticket
}

func newRegistry() *registry {
	return &registry{
		byKey: make(map[core.TicketKey]*ticket),
		byID:  make(map[string]*ticket),
	}
}

// admit registers t if no non-retired ticket already exists for t.key.
// Returns core.Conflict if one does.
func (r *registry) admit(key core.TicketKey, t *ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byKey[key]; ok && existing != nil {
		return core.Conflict("active ticket exists for conversation", nil)
	}
	r.byKey[key] = t
	r.byID[t.ticket.TicketID] = t
	return nil
}

func (r *registry) lookup(ticketID string) (*ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[ticketID]
	return t, ok
}

// retire removes t from both indices. Safe to call more than once.
func (r *registry) retire(key core.TicketKey, ticketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byKey[key]; ok && existing != nil && existing.ticket.TicketID == ticketID {
		delete(r.byKey, key)
	}
	delete(r.byID, ticketID)
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
