package nostrmq

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nostrmq/nostrmq/pkg/nostr/context"
	"github.com/nostrmq/nostrmq/pkg/nostr/event"
	"github.com/nostrmq/nostrmq/pkg/nostr/filter"
	"github.com/nostrmq/nostrmq/pkg/nostr/filters"
	"github.com/nostrmq/nostrmq/pkg/nostr/keys"
	"github.com/nostrmq/nostrmq/pkg/nostr/kind"
	"github.com/nostrmq/nostrmq/pkg/nostr/kinds"
	"github.com/nostrmq/nostrmq/pkg/nostr/nip4"
	"github.com/nostrmq/nostrmq/pkg/nostr/pool"
	"github.com/nostrmq/nostrmq/pkg/nostr/subscriptionid"
	"github.com/nostrmq/nostrmq/pkg/nostr/tag"
	"github.com/nostrmq/nostrmq/pkg/nostr/timestamp"
	"github.com/nostrmq/nostrmq/pkg/tracker"
)

// OnMessage is the user callback invoked once per accepted message: the
// decrypted payload, the sender's public key, and the raw signed event.
type OnMessage func(payload json.RawMessage, sender string, raw *event.T)

// Message is the stream-consumer view of one accepted message.
type Message struct {
	Payload json.RawMessage
	Sender  string
	Raw     *event.T
}

// ReceiveOptions configures a subscription for messages addressed to this
// node.
type ReceiveOptions struct {
	// OnMessage is invoked for every accepted message. Required. A panic
	// inside it is logged and swallowed; the message still counts as
	// delivered.
	OnMessage OnMessage

	// Relays optionally restricts the subscription to a subset of the
	// pool.
	Relays []string

	// SecKeyOverride substitutes the identity key for this subscription
	// only; the public key is re-derived from it.
	SecKeyOverride string

	// AutoAck is a declared hook with no wire protocol behind it; enabling
	// it does nothing beyond a trace log.
	AutoAck bool
}

// Handle is the caller's view of an open receive subscription. Close is
// idempotent: it cancels the subscription on every relay, disconnects the
// pool, and ends the message stream.
type Handle struct {
	client *Client
	sub    *pool.Subscription

	messages  chan Message
	done      chan struct{}
	closeOnce sync.Once
}

// Messages is an asynchronous stream view of accepted messages; it ends
// when the handle is closed. Slow consumers do not stall the pipeline:
// messages beyond the buffer are dropped from the stream (the callback
// still sees every one).
func (h *Handle) Messages() <-chan Message { return h.messages }

// Done is closed once the handle has fully shut down.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Close cancels the subscription on all relays, disconnects the pool and
// completes the message stream. Safe to call any number of times.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.sub.Close()
		h.client.Close()
	})
}

// Receive subscribes to messages addressed to this node and dispatches
// each accepted one to the callback. The subscription filter asks relays
// only for kind-30072 events with our key in a p tag, from the replay
// tracker's watermark forward.
func (c *Client) Receive(ctx context.T, opt ReceiveOptions) (h *Handle,
	err error) {

	if opt.OnMessage == nil {
		return nil, &InvalidArgumentError{Argument: "on_message",
			Reason: "missing"}
	}
	sec, pub := c.sec, c.pub
	if opt.SecKeyOverride != "" {
		if !keys.IsValid32ByteHex(opt.SecKeyOverride) {
			return nil, &InvalidArgumentError{Argument: "seckey_override",
				Reason: "must be 64 characters of lowercase hex"}
		}
		sec = opt.SecKeyOverride
		if pub, err = keys.GetPublicKey(sec); err != nil {
			return nil, &InvalidArgumentError{Argument: "seckey_override",
				Reason: "cannot derive public key: " + err.Error()}
		}
	}

	trk := tracker.New(tracker.Options{
		Lookback:          time.Duration(c.cfg.LookbackSeconds) * time.Second,
		TrackLimit:        c.cfg.TrackLimit,
		CacheDir:          c.cfg.CacheDir,
		EnablePersistence: !c.cfg.DisablePersistence,
	})

	if err = c.connect(ctx); err != nil {
		return nil, err
	}

	since := timestamp.FromUnix(trk.SubscriptionSince())
	f := &filter.T{
		Kinds: kinds.T{kind.MessageQueue},
		Tags:  filter.TagMap{"#p": tag.T{pub}},
		Since: since.Ptr(),
	}
	sub := c.Pool().Subscribe(subscriptionid.NewRandom(), filters.T{f},
		opt.Relays...)

	h = &Handle{
		client:   c,
		sub:      sub,
		messages: make(chan Message, 32),
		done:     make(chan struct{}),
	}
	go h.run(opt, trk, sec, pub)
	return h, nil
}

// run is the single consumer of the subscription: it validates, decrypts,
// deduplicates and delivers, in arrival order.
func (h *Handle) run(opt ReceiveOptions, trk *tracker.T, sec, pub string) {
	defer close(h.done)
	defer close(h.messages)
	for d := range h.sub.Events {
		h.process(d, opt, trk, sec, pub)
	}
}

func (h *Handle) process(d pool.Delivery, opt ReceiveOptions,
	trk *tracker.T, sec, pub string) {

	ev := d.Event
	if ev.Kind != kind.MessageQueue {
		return
	}
	if !ev.Tags.ContainsAny("p", pub) {
		return
	}
	if trk.HasProcessed(ev.ID.String(), ev.CreatedAt.I64()) {
		return
	}

	ss, err := nip4.ComputeSharedSecret(ev.PubKey, sec)
	if err != nil {
		log.D.Ln((&DecryptError{Sender: ev.PubKey,
			EventID: ev.ID.String(), Err: err}).Error())
		return
	}
	cleartext, err := nip4.Decrypt(ev.Content, ss)
	if err != nil {
		log.D.Ln((&DecryptError{Sender: ev.PubKey,
			EventID: ev.ID.String(), Err: err}).Error())
		return
	}

	env, err := parseEnvelope(cleartext, pub)
	if err != nil {
		// already logged with the reason
		return
	}

	h.deliver(opt, env.Payload, ev)

	// delivered, even if the callback blew up
	trk.MarkProcessed(ev.ID.String(), ev.CreatedAt.I64())

	if opt.AutoAck {
		log.T.F("auto-ack requested for %s (hook is a no-op)", ev.ID)
	}
}

func (h *Handle) deliver(opt ReceiveOptions, payload json.RawMessage,
	ev *event.T) {

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.E.F("on_message callback panicked on event %s: %v",
					ev.ID, r)
			}
		}()
		opt.OnMessage(payload, ev.PubKey, ev)
	}()

	select {
	case h.messages <- Message{Payload: payload, Sender: ev.PubKey, Raw: ev}:
	default:
		log.D.F("stream consumer lagging, dropping event %s from stream",
			ev.ID)
	}
}
