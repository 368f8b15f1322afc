package bus

import (
	"context"
	"sync/atomic"
	"time"

	"streamgate-go/pkg/log"
)

// reconnector runs a background probe loop with exponential backoff (base
// 2s, cap 30s per spec §4.A) and exposes a lock-free "available" flag that
// Publish/PublishStream check before doing any work, so a disconnected bus
// fails fast instead of hanging a dispatch.
type reconnector struct {
	name      string
	probe     func(ctx context.Context) error
	available atomic.Bool
	stop      chan struct{}
}

func newReconnector(name string, probe func(ctx context.Context) error) *reconnector {
	r := &reconnector{name: name, probe: probe, stop: make(chan struct{})}
	r.available.Store(true)
	return r
}

func (r *reconnector) run() {
	backoff := 2 * time.Second
	const backoffCap = 30 * time.Second
	for {
		select {
		case <-r.stop:
			return
		case <-time.After(backoff):
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := r.probe(ctx)
		cancel()
		if err == nil {
			if !r.available.Load() {
				log.Infof("bus: %s reconnected", r.name)
			}
			r.available.Store(true)
			backoff = 2 * time.Second
			continue
		}
		if r.available.Load() {
			log.Warnf("bus: %s unavailable: %v", r.name, err)
		}
		r.available.Store(false)
		backoff *= 2
		if backoff > backoffCap {
			backoff = backoffCap
		}
	}
}

func (r *reconnector) markUnavailable() { r.available.Store(false) }

func (r *reconnector) isAvailable() bool { return r.available.Load() }

func (r *reconnector) close() { close(r.stop) }
