package handler

import (
	"context"
	"encoding/json"
	"sync"

	"streamgate-go/internal/core"
	"streamgate-go/pkg/bus"
)

// fakeSub, fakeBus and fakeCache mirror the dispatcher package's test
// doubles — duplicated here rather than exported, since the dispatcher
// package's are unexported test-only types.

type fakeSub struct{ subject string }

func (f *fakeSub) Subject() string { return f.subject }

type fakeBus struct {
	mu           sync.Mutex
	handlers     map[string]bus.Handler
	blockPublish bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]bus.Handler)}
}

func (f *fakeBus) Publish(ctx context.Context, subject string, payload []byte, headers map[string]string) error {
	if f.blockPublish {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeBus) PublishStream(ctx context.Context, subject string, payload []byte) error {
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, subject string, handler bus.Handler) (bus.Subscription, error) {
	f.mu.Lock()
	f.handlers[subject] = handler
	f.mu.Unlock()
	return &fakeSub{subject: subject}, nil
}

func (f *fakeBus) Unsubscribe(sub bus.Subscription) error {
	f.mu.Lock()
	delete(f.handlers, sub.Subject())
	f.mu.Unlock()
	return nil
}

func (f *fakeBus) Close() error { return nil }

func (f *fakeBus) deliver(subject string, v interface{}) {
	payload, _ := json.Marshal(v)
	f.mu.Lock()
	h := f.handlers[subject]
	f.mu.Unlock()
	if h != nil {
		h(context.Background(), bus.Message{Subject: subject, Payload: payload})
	}
}

func (f *fakeBus) replySubject() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.handlers {
		if len(s) > 5 && s[:5] == "resp." {
			return s
		}
	}
	return ""
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]core.HotBufferEntry
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]core.HotBufferEntry)}
}

func (c *fakeCache) AppendChunk(ctx context.Context, conversationID string, entry core.HotBufferEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[conversationID] = append(c.entries[conversationID], entry)
	return nil
}

func (c *fakeCache) GetPersona(ctx context.Context, subject string) (string, error) { return "", nil }
