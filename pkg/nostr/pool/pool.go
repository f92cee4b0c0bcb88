// Package pool owns a set of relay clients, one per URL: it connects and
// reconnects them with exponential backoff, multiplexes subscriptions over
// them, replays live subscriptions onto relays that come back, and fans
// inbound events out to their subscription's consumer, tagged with the
// source URL. Publish reports acceptance per URL; one accepting relay is
// success for the send pipeline built on top.
package pool

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nostrmq/nostrmq/pkg/nostr/client"
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

const (
	// backoffBase is the first reconnect delay; each further attempt
	// doubles it up to backoffCap.
	backoffBase = time.Second
	backoffCap  = 30 * time.Second

	// maxReconnectAttempts parks a relay in the error state; it then needs
	// a manual re-add.
	maxReconnectAttempts = 10
)

// relayEntry is the pool's bookkeeping for one URL.
type relayEntry struct {
	url string

	mx       sync.Mutex
	client   *client.T
	attempts int
	parked   bool
	removed  bool
}

func (e *relayEntry) current() *client.T {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.client
}

// Status reports the connection state for the URL, folding the parked
// condition into the Errored state.
func (e *relayEntry) Status() client.Status {
	e.mx.Lock()
	defer e.mx.Unlock()
	if e.parked {
		return client.Errored
	}
	if e.client == nil {
		return client.Disconnected
	}
	return e.client.Status()
}

// P is a pool of relay clients.
type P struct {
	Relays *xsync.MapOf[string, *relayEntry]
	subs   *xsync.MapOf[string, *Subscription]

	Context context.T
	cancel  context.F

	closeOnce sync.Once
}

// New creates a pool managing the given relay URLs. Connections are dialed
// in the background immediately; use Connect to wait for the first one.
func New(c context.T, urls ...string) (p *P) {
	ctx, cancel := context.Cancel(c)
	p = &P{
		Relays:  xsync.NewMapOf[*relayEntry](),
		subs:    xsync.NewMapOf[*Subscription](),
		Context: ctx,
		cancel:  cancel,
	}
	for _, u := range urls {
		p.AddRelay(u)
	}
	return
}

// AddRelay starts managing a URL, dialing it immediately. Re-adding a
// parked URL resets its attempt budget and dials again.
func (p *P) AddRelay(url string) {
	url = normalize.URL(url)
	e, loaded := p.Relays.LoadOrStore(url, &relayEntry{url: url})
	if loaded {
		e.mx.Lock()
		if !e.parked {
			// already managed and not parked; nothing to restart
			e.mx.Unlock()
			return
		}
		e.parked = false
		e.attempts = 0
		e.mx.Unlock()
	}
	go p.connectLoop(e)
}

// RemoveRelay closes the URL's connection and stops managing it.
func (p *P) RemoveRelay(url string) {
	url = normalize.URL(url)
	e, ok := p.Relays.LoadAndDelete(url)
	if !ok {
		return
	}
	e.mx.Lock()
	e.removed = true
	cl := e.client
	e.client = nil
	e.mx.Unlock()
	if cl != nil {
		chk.D(cl.Close())
	}
	// the subscriptions are no longer active there
	p.subs.Range(func(_ string, sub *Subscription) bool {
		sub.removeURL(url)
		return true
	})
}

// connectLoop dials the entry's URL, replays live subscriptions once
// connected, and when the connection drops, backs off and retries until the
// attempt budget is spent, which parks the URL.
func (p *P) connectLoop(e *relayEntry) {
	for {
		if p.Context.Err() != nil {
			return
		}
		e.mx.Lock()
		if e.removed || e.parked {
			e.mx.Unlock()
			return
		}
		e.mx.Unlock()

		cl := client.New(e.url, p.handleInbound)
		err := cl.Connect(p.Context)
		if err != nil {
			log.D.F("{%s} connect failed: %v", e.url, err)
			if p.backoff(e) {
				continue
			}
			return
		}

		e.mx.Lock()
		if e.removed {
			e.mx.Unlock()
			chk.D(cl.Close())
			return
		}
		e.client = cl
		e.attempts = 0
		e.mx.Unlock()
		log.D.F("{%s} connected", e.url)

		// replay every live subscription that targets this URL
		p.subs.Range(func(_ string, sub *Subscription) bool {
			if sub.IsLive() && sub.targets(e.url) {
				if err = cl.Req(sub.ID, sub.Filters); !chk.D(err) {
					sub.addURL(e.url)
				}
			}
			return true
		})

		select {
		case <-cl.Done():
		case <-p.Context.Done():
			return
		}

		// connection dropped; it no longer carries any subscription
		p.subs.Range(func(_ string, sub *Subscription) bool {
			sub.removeURL(e.url)
			return true
		})
		if cl.Status() == client.Disconnected {
			// clean close from our side; do not retry
			return
		}
		if !p.backoff(e) {
			return
		}
	}
}

// backoff sleeps for the entry's next reconnect delay. It reports false
// when the attempt budget is spent and the entry has been parked, or the
// pool is closing.
func (p *P) backoff(e *relayEntry) bool {
	e.mx.Lock()
	e.attempts++
	if e.attempts > maxReconnectAttempts {
		e.parked = true
		e.mx.Unlock()
		log.W.F("{%s} unreachable after %d reconnect attempts, parked until re-added",
			e.url, maxReconnectAttempts)
		return false
	}
	delay := backoffBase << (e.attempts - 1)
	e.mx.Unlock()
	if delay > backoffCap {
		delay = backoffCap
	}
	select {
	case <-time.After(delay):
		return true
	case <-p.Context.Done():
		return false
	}
}

// Connect waits until at least one relay is connected. It fails only when
// every relay has been parked or the context expires first.
func (p *P) Connect(c context.T) error {
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		connected, total, parked := 0, 0, 0
		p.Relays.Range(func(_ string, e *relayEntry) bool {
			total++
			e.mx.Lock()
			isParked := e.parked
			e.mx.Unlock()
			if isParked {
				parked++
			} else if e.Status() == client.Connected {
				connected++
			}
			return true
		})
		if connected > 0 {
			return nil
		}
		if total == 0 {
			return fmt.Errorf("no relays configured")
		}
		if parked == total {
			return fmt.Errorf("all %d relays failed to connect", total)
		}
		select {
		case <-tick.C:
		case <-c.Done():
			return c.Err()
		case <-p.Context.Done():
			return p.Context.Err()
		}
	}
}

// resolveTargets maps the optional URL list onto managed entries; an empty
// list means every managed relay.
func (p *P) resolveTargets(urls []string) (es []*relayEntry) {
	if len(urls) == 0 {
		p.Relays.Range(func(_ string, e *relayEntry) bool {
			es = append(es, e)
			return true
		})
		return
	}
	for _, u := range urls {
		if e, ok := p.Relays.Load(normalize.URL(u)); ok {
			es = append(es, e)
		}
	}
	return
}

// Publish sends the event to every target URL that is currently connected
// and reports per-URL acceptance: true only for relays that answered the
// EVENT with a positive OK within the publish timeout. URLs that are not
// connected, or not managed, report false.
func (p *P) Publish(c context.T, ev *event.T,
	urls ...string) (results map[string]bool) {

	results = make(map[string]bool)
	var mx sync.Mutex
	var wg sync.WaitGroup
	if len(urls) == 0 {
		for _, e := range p.resolveTargets(nil) {
			urls = append(urls, e.url)
		}
	}
	// seed every target with a negative result before any goroutine can
	// race the map
	for _, u := range urls {
		results[normalize.URL(u)] = false
	}
	for _, u := range urls {
		url := normalize.URL(u)
		e, ok := p.Relays.Load(url)
		if !ok {
			continue
		}
		cl := e.current()
		if cl == nil || !cl.IsConnected() {
			continue
		}
		wg.Add(1)
		go func(url string, cl *client.T) {
			defer wg.Done()
			err := cl.Publish(c, ev)
			if err != nil {
				log.D.F("{%s} publish %s failed: %v", url, ev.ID, err)
			}
			mx.Lock()
			results[url] = err == nil
			mx.Unlock()
		}(url, cl)
	}
	wg.Wait()
	return
}

// Subscribe records a subscription and sends its REQ to every target URL
// that is currently connected. Relays that connect later, or reconnect,
// receive the REQ the moment they come up, for as long as the subscription
// is live.
func (p *P) Subscribe(id subscriptionid.T, f filters.T,
	urls ...string) (sub *Subscription) {

	sub = newSubscription(p, id, f)
	if len(urls) > 0 {
		sub.targetSet = make(map[string]struct{}, len(urls))
		for _, u := range urls {
			sub.targetSet[normalize.URL(u)] = struct{}{}
		}
	}
	p.subs.Store(id.String(), sub)
	for _, e := range p.resolveTargets(urls) {
		cl := e.current()
		if cl == nil || !cl.IsConnected() {
			continue
		}
		if err := cl.Req(sub.ID, sub.Filters); !chk.D(err) {
			sub.addURL(e.url)
		}
	}
	return
}

// Unsubscribe sends CLOSE for the subscription to the given URLs, or all of
// them when none are named. When no URL remains active the record is
// removed entirely and its stream ends.
func (p *P) Unsubscribe(id subscriptionid.T, urls ...string) {
	sub, ok := p.subs.Load(id.String())
	if !ok {
		return
	}
	if len(urls) == 0 {
		sub.Close()
		return
	}
	if p.unsubscribe(sub, urls) == 0 {
		sub.Close()
	}
}

// unsubscribe sends CLOSE to the named URLs (nil means every URL the
// subscription is active on, and removes the record). Returns how many URLs
// the subscription remains active on.
func (p *P) unsubscribe(sub *Subscription, urls []string) (remaining int) {
	all := urls == nil
	if all {
		urls = sub.ActiveOn()
		p.subs.Delete(sub.ID.String())
	}
	for _, u := range urls {
		url := normalize.URL(u)
		if e, ok := p.Relays.Load(url); ok {
			if cl := e.current(); cl != nil && cl.IsConnected() {
				chk.D(cl.CloseSubscription(sub.ID))
			}
		}
		remaining = sub.removeURL(url)
	}
	if all {
		remaining = 0
	}
	return
}

// handleInbound is the fan-out point: every envelope from every connected
// relay lands here, on that relay's reader goroutine, preserving the
// relay's own ordering.
func (p *P) handleInbound(url string, env envelopes.I) {
	switch e := env.(type) {
	case *envelopes.Event:
		sub, ok := p.subs.Load(e.SubscriptionID.String())
		if !ok {
			log.T.F("{%s} event for unknown subscription '%s'", url,
				e.SubscriptionID)
			return
		}
		// the relay already filtered, but verify it did not send something
		// the subscription never asked for
		if !sub.Filters.Match(e.Event) {
			log.D.F("{%s} event %s does not match subscription %s", url,
				e.Event.ID, sub.ID)
			return
		}
		sub.dispatch(Delivery{
			Relay:          url,
			SubscriptionID: sub.ID,
			Event:          e.Event,
		})
	case *envelopes.Eose:
		if sub, ok := p.subs.Load(e.SubscriptionID.String()); ok {
			sub.dispatchEose()
		}
	case *envelopes.Closed:
		log.D.F("{%s} closed subscription '%s': %s", url, e.SubscriptionID,
			e.Reason)
		if sub, ok := p.subs.Load(e.SubscriptionID.String()); ok {
			sub.removeURL(url)
		}
	case *envelopes.Notice:
		// already logged by the client
	}
}

// Close cancels all reconnect timers, ends every subscription stream and
// closes every socket. Pending publishes resolve with the results they had.
func (p *P) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		p.subs.Range(func(_ string, sub *Subscription) bool {
			sub.Close()
			return true
		})
		p.Relays.Range(func(_ string, e *relayEntry) bool {
			e.mx.Lock()
			cl := e.client
			e.client = nil
			e.mx.Unlock()
			if cl != nil {
				chk.D(cl.Close())
			}
			return true
		})
	})
}
