// Package envelopes implements the relay protocol message framing used by
// this client: the outbound EVENT, REQ and CLOSE arrays and the inbound
// EVENT, OK, EOSE, CLOSED and NOTICE arrays. Every envelope marshals through
// the wire/array canonical printer so the byte forms match what relays
// expect, and Parse sniffs the label of an inbound message to return the
// matching type.
package envelopes

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nostrmq/nostrmq/pkg/nostr/event"
	"github.com/nostrmq/nostrmq/pkg/nostr/eventid"
	"github.com/nostrmq/nostrmq/pkg/nostr/filters"
	"github.com/nostrmq/nostrmq/pkg/nostr/subscriptionid"
	"github.com/nostrmq/nostrmq/pkg/nostr/wire/array"
	"github.com/nostrmq/nostrmq/pkg/slog"
)

var log, chk = slog.New(os.Stderr)

// The label strings that discriminate the envelope arrays.
const (
	LEvent  = "EVENT"
	LOK     = "OK"
	LReq    = "REQ"
	LClose  = "CLOSE"
	LClosed = "CLOSED"
	LEose   = "EOSE"
	LNotice = "NOTICE"
)

// I is the interface all envelopes implement so the writer side can treat
// them uniformly.
type I interface {
	Label() string
	ToArray() array.T
}

// Marshal renders any envelope to its wire bytes.
func Marshal(env I) []byte { return env.ToArray().Bytes() }

// Event is the bidirectional event carrier. Client to relay it has no
// subscription id; relay to client it names the subscription that matched.
type Event struct {
	SubscriptionID subscriptionid.T
	Event          *event.T
}

func (env *Event) Label() string { return LEvent }

func (env *Event) ToArray() array.T {
	if env.SubscriptionID == "" {
		return array.T{LEvent, env.Event.ToObject()}
	}
	return array.T{LEvent, env.SubscriptionID, env.Event.ToObject()}
}

func (env *Event) MarshalJSON() ([]byte, error) { return Marshal(env), nil }

// OK reports a relay's verdict on a published event: acceptance, or
// rejection with a machine readable reason prefix.
type OK struct {
	ID     eventid.T
	OK     bool
	Reason string
}

func (env *OK) Label() string { return LOK }

func (env *OK) ToArray() array.T {
	return array.T{LOK, env.ID, env.OK, env.Reason}
}

func (env *OK) MarshalJSON() ([]byte, error) { return Marshal(env), nil }

// Req opens a subscription with a set of filters.
type Req struct {
	SubscriptionID subscriptionid.T
	Filters        filters.T
}

func (env *Req) Label() string { return LReq }

func (env *Req) ToArray() array.T {
	a := array.T{LReq, env.SubscriptionID}
	return append(a, env.Filters.ToArray()...)
}

func (env *Req) MarshalJSON() ([]byte, error) { return Marshal(env), nil }

// Close cancels a subscription by id.
type Close struct {
	SubscriptionID subscriptionid.T
}

func (env *Close) Label() string { return LClose }

func (env *Close) ToArray() array.T {
	return array.T{LClose, env.SubscriptionID}
}

func (env *Close) MarshalJSON() ([]byte, error) { return Marshal(env), nil }

// Closed is a relay's notice that it has dropped a subscription.
type Closed struct {
	SubscriptionID subscriptionid.T
	Reason         string
}

func (env *Closed) Label() string { return LClosed }

func (env *Closed) ToArray() array.T {
	return array.T{LClosed, env.SubscriptionID, env.Reason}
}

func (env *Closed) MarshalJSON() ([]byte, error) { return Marshal(env), nil }

// Eose marks the end of stored events on a subscription.
type Eose struct {
	SubscriptionID subscriptionid.T
}

func (env *Eose) Label() string { return LEose }

func (env *Eose) ToArray() array.T {
	return array.T{LEose, env.SubscriptionID}
}

func (env *Eose) MarshalJSON() ([]byte, error) { return Marshal(env), nil }

// Notice is a free-form, human readable message from a relay.
type Notice struct {
	Text string
}

func (env *Notice) Label() string { return LNotice }

func (env *Notice) ToArray() array.T { return array.T{LNotice, env.Text} }

func (env *Notice) MarshalJSON() ([]byte, error) { return Marshal(env), nil }

// Parse identifies an inbound relay message and decodes it to the matching
// envelope type. Unknown labels are logged here and return a nil envelope
// and no error; the caller drops them. A malformed message returns an error but the
// connection survives it.
func Parse(b []byte) (env I, err error) {
	var elems []json.RawMessage
	if err = json.Unmarshal(b, &elems); err != nil {
		return nil, fmt.Errorf("message is not a json array: %w", err)
	}
	if len(elems) < 1 {
		return nil, fmt.Errorf("empty envelope array")
	}
	var label string
	if err = json.Unmarshal(elems[0], &label); err != nil {
		return nil, fmt.Errorf("envelope label is not a string: %w", err)
	}
	switch label {
	case LEvent:
		// relay to client form carries the subscription id in the middle
		if len(elems) < 3 {
			return nil, fmt.Errorf("EVENT envelope with %d elements",
				len(elems))
		}
		e := &Event{Event: &event.T{}}
		var sid string
		if err = json.Unmarshal(elems[1], &sid); err != nil {
			return nil, fmt.Errorf("EVENT subscription id: %w", err)
		}
		e.SubscriptionID = subscriptionid.T(sid)
		if err = json.Unmarshal(elems[2], e.Event); err != nil {
			return nil, fmt.Errorf("EVENT payload: %w", err)
		}
		return e, nil
	case LOK:
		if len(elems) < 3 {
			return nil, fmt.Errorf("OK envelope with %d elements", len(elems))
		}
		o := &OK{}
		var id string
		if err = json.Unmarshal(elems[1], &id); err != nil {
			return nil, fmt.Errorf("OK event id: %w", err)
		}
		o.ID = eventid.T(id)
		if err = json.Unmarshal(elems[2], &o.OK); err != nil {
			return nil, fmt.Errorf("OK verdict: %w", err)
		}
		if len(elems) > 3 {
			if err = json.Unmarshal(elems[3], &o.Reason); chk.D(err) {
				// the reason is advisory, keep the verdict
				o.Reason = ""
				err = nil
			}
		}
		return o, nil
	case LEose:
		if len(elems) < 2 {
			return nil, fmt.Errorf("EOSE envelope with %d elements",
				len(elems))
		}
		var sid string
		if err = json.Unmarshal(elems[1], &sid); err != nil {
			return nil, fmt.Errorf("EOSE subscription id: %w", err)
		}
		return &Eose{SubscriptionID: subscriptionid.T(sid)}, nil
	case LClosed:
		if len(elems) < 2 {
			return nil, fmt.Errorf("CLOSED envelope with %d elements",
				len(elems))
		}
		c := &Closed{}
		var sid string
		if err = json.Unmarshal(elems[1], &sid); err != nil {
			return nil, fmt.Errorf("CLOSED subscription id: %w", err)
		}
		c.SubscriptionID = subscriptionid.T(sid)
		if len(elems) > 2 {
			chk.D(json.Unmarshal(elems[2], &c.Reason))
		}
		return c, nil
	case LNotice:
		n := &Notice{}
		if len(elems) > 1 {
			if err = json.Unmarshal(elems[1], &n.Text); err != nil {
				return nil, fmt.Errorf("NOTICE text: %w", err)
			}
		}
		return n, nil
	default:
		log.T.F("unknown envelope label '%s'", label)
		return nil, nil
	}
}
