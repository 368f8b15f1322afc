package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconnectorStartsAvailable(t *testing.T) {
	r := newReconnector("test", func(ctx context.Context) error { return nil })
	assert.True(t, r.isAvailable())
	r.close()
}

func TestReconnectorMarkUnavailable(t *testing.T) {
	r := newReconnector("test", func(ctx context.Context) error { return nil })
	r.markUnavailable()
	assert.False(t, r.isAvailable())
	r.close()
}

func TestReconnectorRecoversOnSuccessfulProbe(t *testing.T) {
	var calls atomic.Int32
	probe := func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}
	r := newReconnector("test", probe)
	r.markUnavailable()

	go r.run()
	defer r.close()

	assert.Eventually(t, func() bool {
		return r.isAvailable()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReconnectorStaysDownOnFailingProbe(t *testing.T) {
	probe := func(ctx context.Context) error { return errors.New("still down") }
	r := newReconnector("test", probe)
	r.markUnavailable()

	go r.run()
	defer r.close()

	// First probe fires after the base 2s backoff; give it a little past
	// that and confirm a failing probe didn't flip availability back on.
	time.Sleep(2500 * time.Millisecond)
	assert.False(t, r.isAvailable())
}
