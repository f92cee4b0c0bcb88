package pool

import (
	"sync"
	"sync/atomic"

	"github.com/nostrmq/nostrmq/pkg/nostr/event"
	"github.com/nostrmq/nostrmq/pkg/nostr/filters"
	"github.com/nostrmq/nostrmq/pkg/nostr/subscriptionid"
)

// Delivery is one event as it arrived from one relay. The pool does not
// deduplicate across relays; the same event id can be delivered once per
// relay that carries it.
type Delivery struct {
	Relay          string
	SubscriptionID subscriptionid.T
	Event          *event.T
}

// Subscription is the pool-level record of one REQ: its id, its filters,
// and the set of relay URLs it is currently live on. The pool owns the
// record; callers hold it only to read the Events stream and to Close it.
type Subscription struct {
	ID      subscriptionid.T
	Filters filters.T

	// Events emits every matching event from every relay the subscription
	// is active on, tagged with its source URL. Closed when the
	// subscription ends.
	Events chan Delivery

	// EndOfStoredEvents is closed when the first relay reports EOSE.
	EndOfStoredEvents chan struct{}

	pool  *P
	live  atomic.Bool
	eosed atomic.Bool
	done  chan struct{}

	// targetSet restricts the subscription to named relay URLs; nil means
	// every relay the pool manages. Written once at Subscribe time.
	targetSet map[string]struct{}

	// urls is the set of relay URLs the REQ has been sent to and not yet
	// closed on. Guarded by urlMx; mutated only by the pool.
	urlMx sync.Mutex
	urls  map[string]struct{}

	// sendMx serializes delivery against the close of the Events channel.
	sendMx    sync.Mutex
	closeOnce sync.Once
}

func newSubscription(p *P, id subscriptionid.T,
	f filters.T) (sub *Subscription) {

	sub = &Subscription{
		ID:                id,
		Filters:           f,
		Events:            make(chan Delivery, 32),
		EndOfStoredEvents: make(chan struct{}),
		done:              make(chan struct{}),
		pool:              p,
		urls:              make(map[string]struct{}),
	}
	sub.live.Store(true)
	return
}

// ActiveOn lists the relay URLs the subscription is currently live on.
func (sub *Subscription) ActiveOn() (urls []string) {
	sub.urlMx.Lock()
	defer sub.urlMx.Unlock()
	for u := range sub.urls {
		urls = append(urls, u)
	}
	return
}

// IsLive reports whether the subscription has not been closed.
func (sub *Subscription) IsLive() bool { return sub.live.Load() }

// targets reports whether the subscription wants the given relay URL.
func (sub *Subscription) targets(url string) bool {
	if sub.targetSet == nil {
		return true
	}
	_, ok := sub.targetSet[url]
	return ok
}

func (sub *Subscription) addURL(url string) {
	sub.urlMx.Lock()
	sub.urls[url] = struct{}{}
	sub.urlMx.Unlock()
}

// removeURL drops a url from the active set and reports how many remain.
func (sub *Subscription) removeURL(url string) (remaining int) {
	sub.urlMx.Lock()
	delete(sub.urls, url)
	remaining = len(sub.urls)
	sub.urlMx.Unlock()
	return
}

func (sub *Subscription) dispatch(d Delivery) {
	sub.sendMx.Lock()
	defer sub.sendMx.Unlock()
	if !sub.live.Load() {
		return
	}
	select {
	case sub.Events <- d:
	case <-sub.done:
	case <-sub.pool.Context.Done():
	}
}

func (sub *Subscription) dispatchEose() {
	if sub.eosed.CompareAndSwap(false, true) {
		close(sub.EndOfStoredEvents)
	}
}

// Close cancels the subscription on every relay it was sent to and ends the
// Events stream. Idempotent.
func (sub *Subscription) Close() {
	sub.closeOnce.Do(func() {
		// wake any blocked dispatch before taking the send lock, so the
		// channel close below cannot race a send in flight
		close(sub.done)
		sub.pool.unsubscribe(sub, nil)
		sub.sendMx.Lock()
		sub.live.Store(false)
		close(sub.Events)
		sub.sendMx.Unlock()
	})
}
