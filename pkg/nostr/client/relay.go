// Package client maintains one websocket connection to one relay: framing,
// liveness pings, a single writer goroutine, a single reader goroutine, and
// the publish-awaits-OK handshake. Reconnection policy lives with the pool
// that owns the client, not here.
package client

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/nostrmq/nostrmq/pkg/nostr/connection"
	"github.com/nostrmq/nostrmq/pkg/nostr/context"
	"github.com/nostrmq/nostrmq/pkg/nostr/envelopes"
	"github.com/nostrmq/nostrmq/pkg/nostr/event"
	"github.com/nostrmq/nostrmq/pkg/nostr/filters"
	"github.com/nostrmq/nostrmq/pkg/nostr/normalize"
	"github.com/nostrmq/nostrmq/pkg/nostr/subscriptionid"
	"github.com/nostrmq/nostrmq/pkg/slog"
	"github.com/puzpuzpuz/xsync/v2"
)

var log, chk = slog.New(os.Stderr)

// Status is the connection lifecycle state of one relay client.
type Status int32

const (
	Disconnected Status = iota
	Connecting
	Connected
	Errored
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Errored:
		return "error"
	}
	return "unknown"
}

const (
	// ConnectTimeout bounds the websocket open handshake.
	ConnectTimeout = 10 * time.Second
	// PublishTimeout bounds the wait for an OK after sending an EVENT.
	PublishTimeout = 5 * time.Second
	// pingInterval keeps intermediaries from reaping an idle socket.
	pingInterval = 29 * time.Second
)

// InboundHandler receives every parsed envelope the relay sends, in the
// order the relay sent them, tagged with the relay URL.
type InboundHandler func(url string, env envelopes.I)

type writeRequest struct {
	msg    []byte
	answer chan error
}

// T is a client for a single relay.
type T struct {
	closeMutex sync.Mutex
	url        string

	// RequestHeader is sent with the opening handshake, e.g. for an origin
	// header.
	RequestHeader http.Header

	Connection              *connection.C
	ConnectionContext       context.T // will be canceled when connection closes
	ConnectionContextCancel context.F

	status  atomic.Int32
	errMx   sync.Mutex
	lastErr error

	okCallbacks *xsync.MapOf[string, func(bool, string)]
	writeQueue  chan writeRequest

	onInbound InboundHandler
}

// New returns a client for the given relay URL that will deliver every
// inbound envelope to onInbound. The connection is not opened until Connect.
func New(url string, onInbound InboundHandler) *T {
	return &T{
		url:         normalize.URL(url),
		okCallbacks: xsync.NewMapOf[func(bool, string)](),
		writeQueue:  make(chan writeRequest),
		onInbound:   onInbound,
	}
}

// URL returns the normalized relay URL.
func (r *T) URL() string { return r.url }

func (r *T) String() string { return r.url }

// Status returns the current lifecycle state.
func (r *T) Status() Status { return Status(r.status.Load()) }

// LastError returns the error that put the client in the Errored state.
func (r *T) LastError() error {
	r.errMx.Lock()
	defer r.errMx.Unlock()
	return r.lastErr
}

func (r *T) setErr(err error) {
	r.errMx.Lock()
	r.lastErr = err
	r.errMx.Unlock()
}

// IsConnected returns true if the connection to this relay seems to be
// active.
func (r *T) IsConnected() bool { return r.Status() == Connected }

// Done exposes the connection lifetime so an owner can observe a drop.
// It returns nil before Connect has been called.
func (r *T) Done() <-chan struct{} {
	if r.ConnectionContext == nil {
		return nil
	}
	return r.ConnectionContext.Done()
}

// Connect tries to establish a websocket connection to the relay URL. If the
// context expires before the handshake completes an error is returned. Once
// connected, context expiration has no effect: call Close to close the
// connection.
func (r *T) Connect(c context.T) (err error) {
	if r.url == "" {
		return fmt.Errorf("invalid relay URL '%s'", r.URL())
	}
	r.status.Store(int32(Connecting))
	if _, ok := c.Deadline(); !ok {
		// if no timeout is set, force the open handshake bound
		var cancel context.F
		c, cancel = context.Timeout(c, ConnectTimeout)
		defer cancel()
	}
	var conn *connection.C
	if conn, err = connection.NewConnection(c, r.url,
		r.RequestHeader); err != nil {

		err = fmt.Errorf("error opening websocket to '%s': %w", r.URL(), err)
		r.setErr(err)
		r.status.Store(int32(Errored))
		return
	}
	r.Connection = conn
	r.ConnectionContext, r.ConnectionContextCancel = context.Cancel(
		context.Bg())
	r.status.Store(int32(Connected))

	// ping on an interval so the connection registers as live, and queue all
	// write operations through one goroutine so we don't do mutex spaghetti
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		var err error
		for {
			select {
			case <-ticker.C:
				err = wsutil.WriteClientMessage(r.Connection.Conn, ws.OpPing,
					nil)
				if err != nil {
					log.D.F("{%s} error writing ping: %v; closing websocket",
						r.URL(), err)
					r.setErr(err)
					r.status.Store(int32(Errored))
					chk.D(r.Close()) // this should trigger a context cancelation
					return
				}
			case wr := <-r.writeQueue:
				if wr.msg == nil {
					return
				}
				if err = r.Connection.WriteMessage(wr.msg); err != nil {
					wr.answer <- err
				}
				close(wr.answer)
			case <-r.ConnectionContext.Done():
				return
			}
		}
	}()

	// general message reader loop
	go r.messageReadLoop(conn)
	return nil
}

func (r *T) messageReadLoop(conn *connection.C) {
	buf := new(bytes.Buffer)
	var err error
	for {
		buf.Reset()
		if err = conn.ReadMessage(r.ConnectionContext, buf); err != nil {
			if r.Status() == Connected {
				r.setErr(err)
				r.status.Store(int32(Errored))
			}
			chk.D(r.Close())
			return
		}

		message := buf.Bytes()
		var env envelopes.I
		if env, err = envelopes.Parse(message); err != nil {
			// a parse failure does not kill the connection
			log.D.F("{%s} unparseable message '%s': %v", r.URL(),
				string(message), err)
			continue
		}
		if env == nil {
			// unknown message kind, already logged by the parser
			continue
		}

		switch e := env.(type) {
		case *envelopes.OK:
			if okCallback, exist := r.okCallbacks.Load(e.ID.String()); exist {
				okCallback(e.OK, e.Reason)
			} else {
				log.D.F("{%s} got an unexpected OK message for event %s",
					r.URL(), e.ID)
			}
		case *envelopes.Notice:
			log.D.F("NOTICE from %s: '%s'", r.URL(), e.Text)
			if r.onInbound != nil {
				r.onInbound(r.url, env)
			}
		default:
			if r.onInbound != nil {
				r.onInbound(r.url, env)
			}
		}
	}
}

// Write queues a message to be sent to the relay.
func (r *T) Write(msg []byte) (ch chan error) {
	ch = make(chan error, 1)
	if r.ConnectionContext == nil {
		ch <- fmt.Errorf("not connected")
		return
	}
	timeout := time.After(PublishTimeout)
	select {
	case r.writeQueue <- writeRequest{msg: msg, answer: ch}:
	case <-r.ConnectionContext.Done():
		ch <- fmt.Errorf("connection closed")
	case <-timeout:
		ch <- fmt.Errorf("write timed out")
	}
	return
}

// Publish sends an "EVENT" command to the relay and waits for the matching
// OK response. It returns nil only when the relay accepted the event. The
// single select over OK arrival, cancellation and timeout guarantees the
// callback is removed on every path.
func (r *T) Publish(c context.T, ev *event.T) (err error) {
	var cancel context.F
	if _, ok := c.Deadline(); !ok {
		c, cancel = context.Timeout(c, PublishTimeout)
	} else {
		// make the context cancelable so the OK arrival stops the wait
		c, cancel = context.Cancel(c)
	}
	defer cancel()

	id := ev.ID.String()
	gotOk := false
	r.okCallbacks.Store(id, func(ok bool, reason string) {
		gotOk = true
		if !ok {
			err = fmt.Errorf("relay %s rejected event %s: %s", r.URL(), id,
				reason)
		}
		cancel()
	})
	defer r.okCallbacks.Delete(id)

	if werr := <-r.Write(envelopes.Marshal(
		&envelopes.Event{Event: ev})); werr != nil {

		return werr
	}
	select {
	case <-c.Done():
		// either the OK arrived and canceled the context, or the deadline hit
		if gotOk {
			return err
		}
		return c.Err()
	case <-r.ConnectionContext.Done():
		// we lost connectivity while waiting
		return fmt.Errorf("connection to %s closed while awaiting OK",
			r.URL())
	}
}

// Req sends a "REQ" command opening the identified subscription with the
// given filters.
func (r *T) Req(id subscriptionid.T, f filters.T) error {
	return <-r.Write(envelopes.Marshal(
		&envelopes.Req{SubscriptionID: id, Filters: f}))
}

// CloseSubscription sends a "CLOSE" command for the identified subscription.
func (r *T) CloseSubscription(id subscriptionid.T) error {
	return <-r.Write(envelopes.Marshal(
		&envelopes.Close{SubscriptionID: id}))
}

// Close terminates the connection. Safe to call more than once.
func (r *T) Close() error {
	r.closeMutex.Lock()
	defer r.closeMutex.Unlock()
	if r.ConnectionContextCancel == nil {
		return fmt.Errorf("relay not connected")
	}
	r.ConnectionContextCancel()
	r.ConnectionContextCancel = nil
	if r.Status() != Errored {
		r.status.Store(int32(Disconnected))
	}
	return r.Connection.Conn.Close()
}
