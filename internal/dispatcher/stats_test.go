package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsTransitions(t *testing.T) {
	var s Stats
	s.ticketStarted()
	s.ticketStarted()
	s.ticketCompleted()
	s.ticketTimedOut()

	snap := s.Snapshot()
	assert.Equal(t, int64(0), snap.ActiveTickets)
	assert.Equal(t, int64(1), snap.Completed)
	assert.Equal(t, int64(1), snap.TimedOut)
	assert.Equal(t, int64(0), snap.Cancelled)
}
