package nostrmq

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nostrmq/nostrmq/pkg/nostr/context"
	"github.com/nostrmq/nostrmq/pkg/nostr/event"
	"github.com/nostrmq/nostrmq/pkg/nostr/eventid"
	"github.com/nostrmq/nostrmq/pkg/nostr/keys"
	"github.com/nostrmq/nostrmq/pkg/nostr/kind"
	"github.com/nostrmq/nostrmq/pkg/nostr/nip13"
	"github.com/nostrmq/nostrmq/pkg/nostr/nip4"
	"github.com/nostrmq/nostrmq/pkg/nostr/tags"
	"github.com/nostrmq/nostrmq/pkg/nostr/timestamp"
)

// PowPolicy selects the proof of work difficulty for one send. The zero
// value disables mining.
type PowPolicy struct {
	useDefault bool
	bits       int
}

// PowOff disables proof of work for the send.
func PowOff() PowPolicy { return PowPolicy{} }

// PowDefault mines at the configured pow_difficulty.
func PowDefault() PowPolicy { return PowPolicy{useDefault: true} }

// PowBits mines at an explicit difficulty; negative values clamp to zero.
func PowBits(n int) PowPolicy {
	if n < 0 {
		n = 0
	}
	return PowPolicy{bits: n}
}

func (p PowPolicy) resolve(configured int) int {
	if p.useDefault {
		if configured < 0 {
			return 0
		}
		return configured
	}
	return p.bits
}

// SendOptions describes one outgoing message.
type SendOptions struct {
	// Target is the recipient public key in hex. Required.
	Target string

	// Payload is any JSON-serializable value. Required.
	Payload interface{}

	// Response optionally names the key a reply should address. Defaults
	// to the sender's own public key.
	Response string

	// Relays optionally restricts the publish to a subset of the pool.
	Relays []string

	// Pow selects the mining policy. Zero value sends unmined.
	Pow PowPolicy

	// Timeout bounds the publish round trip. Defaults to 2 seconds.
	Timeout time.Duration
}

// Send encrypts the payload for the target, builds and signs the message
// event, optionally mines it, and publishes it to the relay pool. It waits
// until every targeted relay has answered or the timeout has passed, and
// succeeds, returning the event id, if at least one relay acknowledged it.
func (c *Client) Send(ctx context.T, opt SendOptions) (id eventid.T,
	err error) {

	// validation
	if !keys.IsValid32ByteHex(opt.Target) {
		return "", &InvalidArgumentError{Argument: "target",
			Reason: "must be 64 characters of lowercase hex"}
	}
	if opt.Response != "" && !keys.IsValid32ByteHex(opt.Response) {
		return "", &InvalidArgumentError{Argument: "response",
			Reason: "must be 64 characters of lowercase hex"}
	}
	if opt.Payload == nil {
		return "", &InvalidArgumentError{Argument: "payload",
			Reason: "missing"}
	}
	response := opt.Response
	if response == "" {
		response = c.pub
	}

	// the cleartext envelope
	cleartext, err := json.Marshal(envelope{
		Target:   opt.Target,
		Response: response,
		Payload:  opt.Payload,
	})
	if err != nil {
		return "", &InvalidArgumentError{Argument: "payload",
			Reason: "not JSON-serializable: " + err.Error()}
	}

	// encrypt against the target key
	ss, err := nip4.ComputeSharedSecret(opt.Target, c.sec)
	if err != nil {
		return "", &EncryptError{Target: opt.Target, Err: err}
	}
	content, err := nip4.Encrypt(string(cleartext), ss)
	if err != nil {
		return "", &EncryptError{Target: opt.Target, Err: err}
	}

	// the event template
	t := tags.T{
		{"p", opt.Target},
		{"d", uuid.NewString()},
	}
	if response != c.pub {
		t = append(t, []string{"response", response})
	}
	ev := &event.T{
		PubKey:    c.pub,
		CreatedAt: timestamp.Now(),
		Kind:      kind.MessageQueue,
		Tags:      t,
		Content:   content,
	}

	// optional mining
	if bits := opt.Pow.resolve(c.cfg.PowDifficulty); bits > 0 {
		if ev, err = nip13.Generate(ctx, ev, bits, c.cfg.PowThreads,
			nip13.DefaultTimeout); err != nil {

			if err == nip13.ErrGenerateTimeout {
				return "", &PowTimeoutError{Target: bits,
					Timeout: nip13.DefaultTimeout}
			}
			return "", err
		}
	}

	// sign, which also attaches the id
	if err = ev.Sign(c.sec); err != nil {
		return "", &SignError{Err: err}
	}

	// publish, bounded by the caller's timeout
	timeout := clampTimeout(opt.Timeout)
	pctx, cancel := context.Timeout(ctx, timeout)
	defer cancel()
	if err = c.connect(pctx); err != nil {
		return "", &PublishTimeoutError{EventID: ev.ID.String(),
			Timeout: timeout, Results: map[string]bool{}}
	}
	results := c.Pool().Publish(pctx, ev, opt.Relays...)
	for _, accepted := range results {
		if accepted {
			log.D.F("event %s accepted", ev.ID)
			return ev.ID, nil
		}
	}
	if pctx.Err() != nil {
		return "", &PublishTimeoutError{EventID: ev.ID.String(),
			Timeout: timeout, Results: results}
	}
	return "", &PublishRejectedError{EventID: ev.ID.String(),
		Results: results}
}
