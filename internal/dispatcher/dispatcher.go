// Package dispatcher is the Streaming Dispatcher component (spec §4.D):
// the gateway's protocol engine. It admits a ChatRequest, allocates a
// StreamTicket, publishes the request to the bus, relays the worker's
// chunks back to a caller-supplied Sink in order, and enforces the
// timeout/cancellation/mirroring rules spec §4.D and §5 describe.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"streamgate-go/internal/core"
	"streamgate-go/internal/model"
	"streamgate-go/pkg/bus"
	"streamgate-go/pkg/log"
)

// Cache is the slice of the Session Cache the Dispatcher depends on:
// mirroring chunks into the hot buffer and reading a caller's persona at
// admission time. Declaring it here rather than taking *sessioncache.Cache
// directly keeps the Dispatcher testable without a real Redis instance.
type Cache interface {
	AppendChunk(ctx context.Context, conversationID string, entry core.HotBufferEntry) error
	GetPersona(ctx context.Context, subject string) (string, error)
}

// ticket bundles a core.StreamTicket with the bus subscriptions and the
// channel its subscription handler feeds into. Only the owning relay
// goroutine touches these fields after allocation; the registry's mutex
// guards the maps, not the ticket contents.
type ticket struct {
	ticket   core.StreamTicket
	key      core.TicketKey
	replySub bus.Subscription
	ackSub   bus.Subscription
	chunkCh  chan []byte
}

type Dispatcher struct {
	bus   bus.Client
	cache Cache
	cfg   Config
	reg   *registry
	stats Stats
	bgCtx context.Context
}

func New(busClient bus.Client, cache Cache, cfg Config) *Dispatcher {
	return &Dispatcher{
		bus:   busClient,
		cache: cache,
		cfg:   cfg.withDefaults(),
		reg:   newRegistry(),
		bgCtx: context.Background(),
	}
}

func (d *Dispatcher) Stats() Snapshot { return d.stats.Snapshot() }

// Dispatch is the Dispatcher's public contract. It performs admission,
// ticket allocation, subscription and publish synchronously, then hands the
// relay loop to a background goroutine and returns the ticket id
// immediately — callers that only need "the request was accepted" (the HTTP
// enqueue path) don't have to wait for the stream to finish.
//
// ctx governs the lifetime of the caller's interest in the stream — for the
// WebSocket Edge this is the connection's lifetime context (cancelled on
// disconnect); for the HTTP enqueue path it should be context.Background(),
// since that relay is fire-and-forget and must outlive the HTTP response.
func (d *Dispatcher) Dispatch(ctx context.Context, identity core.Identity, req core.ChatRequest, sink Sink) (string, error) {
	if err := d.admit(&req, identity); err != nil {
		return "", err
	}

	// Admission (allocate/subscribe/publish) is bounded independently of
	// the caller's ctx, which for the HTTP enqueue path is
	// context.Background() so the relay can outlive the response — spec
	// §5's HTTP request deadline applies to this synchronous admission
	// step, not to the fire-and-forget relay that follows it.
	admCtx, cancel := context.WithTimeout(ctx, d.cfg.AdmissionTimeout)
	defer cancel()

	t, key, err := d.allocate(req, identity)
	if err != nil {
		return "", err
	}

	if err := d.subscribeBoth(admCtx, t); err != nil {
		d.reg.retire(key, t.ticket.TicketID)
		return "", admissionErr("failed to subscribe", err)
	}

	persona, _ := d.safePersona(admCtx, identity.Subject)
	envelope := core.RequestEnvelope{
		ConversationID: req.ConversationID,
		Text:           req.Text,
		ModelID:        req.ModelID,
		Owner:          req.Owner,
		TicketID:       t.ticket.TicketID,
		Persona:        persona,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		d.unsubscribeBoth(t)
		d.reg.retire(key, t.ticket.TicketID)
		return "", core.Internal("failed to encode request envelope", err)
	}

	headers := map[string]string{
		"Reply": t.ticket.ReplySubject,
		"Ack":   t.ticket.AckSubject,
	}
	if err := d.bus.Publish(admCtx, d.cfg.RequestSubject, payload, headers); err != nil {
		d.unsubscribeBoth(t)
		d.reg.retire(key, t.ticket.TicketID)
		return "", admissionErr("failed to publish chat request", err)
	}

	d.stats.ticketStarted()
	d.mirrorRequest(admCtx, req, payload)

	go d.relay(ctx, t, req, sink)
	return t.ticket.TicketID, nil
}

// admissionErr maps a failed admission step to a *core.Error: a context
// deadline becomes KindTimeout (spec §5's 30s HTTP request deadline maps to
// a 504-class error), anything else is treated as the transport being
// unavailable.
func admissionErr(msg string, err error) *core.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.Timeout(msg, err)
	}
	return core.Unavailable(msg, err)
}

func (d *Dispatcher) admit(req *core.ChatRequest, identity core.Identity) error {
	if req.Text == "" {
		return core.BadRequest("empty message text", nil)
	}
	if req.ConversationID == "" {
		return core.BadRequest("missing conversation id", nil)
	}
	if req.Owner == "" {
		req.Owner = identity.Subject
	} else if req.Owner != identity.Subject {
		return core.Unauthenticated("owner does not match authenticated identity", nil)
	}
	req.SubmittedAt = time.Now()
	return nil
}

func (d *Dispatcher) allocate(req core.ChatRequest, identity core.Identity) (*ticket, core.TicketKey, error) {
	key := core.TicketKey{Owner: req.Owner, ConversationID: req.ConversationID}
	ticketID := uuid.NewString()
	now := time.Now()
	t := &ticket{
		ticket: core.StreamTicket{
			TicketID:       ticketID,
			ReplySubject:   "resp." + ticketID,
			AckSubject:     "inbox." + ticketID,
			Owner:          req.Owner,
			ConversationID: req.ConversationID,
			CreatedAt:      now,
			Deadline:       now.Add(d.cfg.TotalTicketTTL),
			State:          core.TicketNew,
		},
		key:     key,
		chunkCh: make(chan []byte, 32),
	}
	if err := d.reg.admit(key, t); err != nil {
		return nil, key, err
	}
	return t, key, nil
}

func (d *Dispatcher) subscribeBoth(ctx context.Context, t *ticket) error {
	replySub, err := d.bus.Subscribe(ctx, t.ticket.ReplySubject, func(ctx context.Context, msg bus.Message) {
		t.chunkCh <- msg.Payload
	})
	if err != nil {
		return err
	}
	t.replySub = replySub

	// Ack subject is reserved for future control messages; currently a
	// no-op sink per spec §9's open-questions note.
	ackSub, err := d.bus.Subscribe(ctx, t.ticket.AckSubject, func(ctx context.Context, msg bus.Message) {})
	if err != nil {
		_ = d.bus.Unsubscribe(replySub)
		return err
	}
	t.ackSub = ackSub

	t.ticket.State = core.TicketSubscribed
	return nil
}

func (d *Dispatcher) unsubscribeBoth(t *ticket) {
	if t.replySub != nil {
		_ = d.bus.Unsubscribe(t.replySub)
	}
	if t.ackSub != nil {
		_ = d.bus.Unsubscribe(t.ackSub)
	}
}

func (d *Dispatcher) safePersona(ctx context.Context, subject string) (string, error) {
	if d.cache == nil {
		return "", nil
	}
	persona, err := d.cache.GetPersona(ctx, subject)
	if err != nil {
		log.Warnf("dispatcher: failed to read persona for %s: %v", subject, err)
		return "", err
	}
	return persona, nil
}

func (d *Dispatcher) mirrorRequest(ctx context.Context, req core.ChatRequest, envelope []byte) {
	if d.cache != nil {
		entry := core.HotBufferEntry{
			ConversationID: req.ConversationID,
			Role:           "user",
			Text:           req.Text,
			Timestamp:      model.LocalTime(req.SubmittedAt),
		}
		if err := d.cache.AppendChunk(ctx, req.ConversationID, entry); err != nil {
			log.Warnf("dispatcher: failed to append user hot buffer entry: %v", err)
		}
	}
	if err := d.bus.PublishStream(ctx, d.cfg.RawMemorySubject, envelope); err != nil {
		log.Warnf("dispatcher: failed to mirror request to raw-memory stream: %v", err)
	}
}

// relay is the ticket state machine: Subscribed -> Relaying -> {Completed |
// Timeout | Cancelled} -> Retired.
func (d *Dispatcher) relay(ctx context.Context, t *ticket, req core.ChatRequest, sink Sink) {
	t.ticket.State = core.TicketRelaying

	idleTimer := time.NewTimer(d.cfg.IdleChunkTimeout)
	totalTimer := time.NewTimer(d.cfg.TotalTicketTTL)
	defer idleTimer.Stop()
	defer totalTimer.Stop()

	clientDone := ctx.Done()
	var drainC <-chan time.Time

	forwarding := true
	seq := 0
	var responseBuilder []byte
	finalState := core.TicketCompleted
	skipRawMemory := false

	finish := func() {
		idleTimer.Stop()
		totalTimer.Stop()
		d.unsubscribeBoth(t)
		d.reg.retire(t.key, t.ticket.TicketID)
		switch finalState {
		case core.TicketCompleted:
			d.stats.ticketCompleted()
		case core.TicketTimeout:
			d.stats.ticketTimedOut()
		case core.TicketCancelled:
			d.stats.ticketCancelled()
		}
		if finalState == core.TicketCompleted && !skipRawMemory {
			d.publishRawMemory(req, string(responseBuilder))
		}
	}

	for {
		select {
		case raw, ok := <-t.chunkCh:
			if !ok {
				finalState = core.TicketCancelled
				skipRawMemory = true
				finish()
				return
			}
			idleTimer.Reset(d.cfg.IdleChunkTimeout)
			seq++

			var wc core.WorkerChunk
			if err := json.Unmarshal(raw, &wc); err != nil {
				log.Warnf("dispatcher: dropping malformed worker chunk for ticket %s: %v", t.ticket.TicketID, err)
				continue
			}

			// The reply subject is carried over the ephemeral Redis
			// transport, which has no header mechanism (see
			// pkg/bus/redis_pubsub.go, DESIGN.md §2 Bus Client) — so a
			// worker's error signal can only ever arrive as wc.Error in
			// the payload here, never as a Message header.
			terminal := wc.Done || hasStopReason(wc) || wc.Error != ""
			chunk := core.Chunk{
				TicketID:       t.ticket.TicketID,
				SequenceNumber: seq,
				Payload:        raw,
				Terminal:       terminal,
				Err:            wc.Error,
			}

			if forwarding {
				if sink.Closed() {
					forwarding = false
					drainC = time.After(d.cfg.DrainTimeout)
				} else if err := sink.Send(chunk); err != nil {
					forwarding = false
					drainC = time.After(d.cfg.DrainTimeout)
				}
			}

			if wc.Error == "" {
				for _, ch := range wc.Choices {
					responseBuilder = append(responseBuilder, ch.Delta.Content...)
				}
			} else {
				skipRawMemory = true
			}

			if terminal {
				if wc.Error != "" {
					finalState = core.TicketCompleted
					skipRawMemory = true
				} else if !forwarding {
					finalState = core.TicketCancelled
					skipRawMemory = true
				} else {
					finalState = core.TicketCompleted
				}
				if forwarding || finalState == core.TicketCancelled {
					d.appendAssistantEntry(req.ConversationID, string(responseBuilder))
				}
				finish()
				return
			}

		case <-idleTimer.C:
			d.notifyTimeout(sink, t, seq+1, forwarding)
			finalState = core.TicketTimeout
			skipRawMemory = true
			finish()
			return

		case <-totalTimer.C:
			d.notifyTimeout(sink, t, seq+1, forwarding)
			finalState = core.TicketTimeout
			skipRawMemory = true
			finish()
			return

		case <-clientDone:
			clientDone = nil // stop selecting this case again
			if forwarding {
				forwarding = false
				drainC = time.After(d.cfg.DrainTimeout)
			}

		case <-drainC:
			finalState = core.TicketCancelled
			skipRawMemory = true
			finish()
			return
		}
	}
}

func hasStopReason(wc core.WorkerChunk) bool {
	for _, ch := range wc.Choices {
		if ch.FinishReason != nil && *ch.FinishReason == "stop" {
			return true
		}
	}
	return false
}

func (d *Dispatcher) notifyTimeout(sink Sink, t *ticket, seq int, forwarding bool) {
	if !forwarding {
		return
	}
	payload, _ := json.Marshal(core.WorkerChunk{Error: "timeout"})
	_ = sink.Send(core.Chunk{
		TicketID:       t.ticket.TicketID,
		SequenceNumber: seq,
		Payload:        payload,
		Terminal:       true,
		Err:            "timeout",
	})
}

func (d *Dispatcher) appendAssistantEntry(conversationID, text string) {
	if d.cache == nil || text == "" {
		return
	}
	entry := core.HotBufferEntry{
		ConversationID: conversationID,
		Role:           "assistant",
		Text:           text,
		Timestamp:      model.LocalTime(time.Now()),
	}
	if err := d.cache.AppendChunk(d.bgCtx, conversationID, entry); err != nil {
		log.Warnf("dispatcher: failed to append assistant hot buffer entry: %v", err)
	}
}

func (d *Dispatcher) publishRawMemory(req core.ChatRequest, responseText string) {
	record := core.RawMemoryRecord{
		ConversationID: req.ConversationID,
		Owner:          req.Owner,
		RequestText:    req.Text,
		ResponseText:   responseText,
		ModelID:        req.ModelID,
		RequestedAt:    model.LocalTime(req.SubmittedAt),
		CompletedAt:    model.LocalTime(time.Now()),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		log.Warnf("dispatcher: failed to encode raw-memory record: %v", err)
		return
	}
	if err := d.bus.PublishStream(d.bgCtx, d.cfg.RawMemorySubject, payload); err != nil {
		log.Warnf("dispatcher: failed to publish raw-memory record: %v", err)
	}
}
