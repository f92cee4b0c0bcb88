package pool

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nostrmq/nostrmq/pkg/nostr/context"
	"github.com/nostrmq/nostrmq/pkg/nostr/event"
	"github.com/nostrmq/nostrmq/pkg/nostr/filter"
	"github.com/nostrmq/nostrmq/pkg/nostr/filters"
	"github.com/nostrmq/nostrmq/pkg/nostr/keys"
	"github.com/nostrmq/nostrmq/pkg/nostr/kind"
	"github.com/nostrmq/nostrmq/pkg/nostr/kinds"
	"github.com/nostrmq/nostrmq/pkg/nostr/normalize"
	"github.com/nostrmq/nostrmq/pkg/nostr/tags"
	"github.com/nostrmq/nostrmq/pkg/nostr/timestamp"
	"golang.org/x/net/websocket"
)

func newWebsocketServer(handler func(*websocket.Conn)) *httptest.Server {
	return httptest.NewServer(&websocket.Server{
		Handshake: func(conf *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: handler,
	})
}

func signedNote(t *testing.T) *event.T {
	t.Helper()
	priv := keys.GeneratePrivateKey()
	pub, err := keys.GetPublicKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	ev := &event.T{
		Kind:      kind.MessageQueue,
		Content:   "ct",
		CreatedAt: timestamp.Now(),
		Tags:      tags.T{{"p", pub}, {"d", "pool-test"}},
	}
	if err = ev.Sign(priv); err != nil {
		t.Fatal(err)
	}
	return ev
}

// acceptingRelay answers every EVENT with a positive OK.
func acceptingRelay(t *testing.T) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		for {
			var raw []json.RawMessage
			if err := websocket.JSON.Receive(conn, &raw); err != nil {
				return
			}
			var typ string
			json.Unmarshal(raw[0], &typ)
			if typ != "EVENT" {
				continue
			}
			var ev event.T
			if err := json.Unmarshal(raw[1], &ev); err != nil {
				t.Errorf("bad EVENT payload: %v", err)
				return
			}
			websocket.JSON.Send(conn, []any{"OK", ev.ID.String(), true, ""})
		}
	}
}

// slammingRelay hangs up the moment it sees an EVENT.
func slammingRelay() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		var raw []json.RawMessage
		if err := websocket.JSON.Receive(conn, &raw); err != nil {
			return
		}
		conn.Close()
	}
}

func waitConnected(t *testing.T, p *P) {
	t.Helper()
	ctx, cancel := context.Timeout(context.Bg(), 5*time.Second)
	defer cancel()
	if err := p.Connect(ctx); err != nil {
		t.Fatalf("pool connect: %v", err)
	}
}

func TestPublishOneOfN(t *testing.T) {
	good := newWebsocketServer(acceptingRelay(t))
	defer good.Close()
	bad1 := newWebsocketServer(slammingRelay())
	defer bad1.Close()
	bad2 := newWebsocketServer(slammingRelay())
	defer bad2.Close()

	p := New(context.Bg(), good.URL, bad1.URL, bad2.URL)
	defer p.Close()
	waitConnected(t, p)
	// give the slower dials a moment so all three URLs participate
	time.Sleep(200 * time.Millisecond)

	ev := signedNote(t)
	ctx, cancel := context.Timeout(context.Bg(), 6*time.Second)
	defer cancel()
	results := p.Publish(ctx, ev)

	if len(results) != 3 {
		t.Fatalf("publish results for %d URLs, want 3: %v", len(results),
			results)
	}
	if !results[normalize.URL(good.URL)] {
		t.Errorf("accepting relay not recorded true: %v", results)
	}
	if results[normalize.URL(bad1.URL)] || results[normalize.URL(bad2.URL)] {
		t.Errorf("hanging-up relays recorded true: %v", results)
	}
}

func TestPublishAllRejected(t *testing.T) {
	bad := newWebsocketServer(slammingRelay())
	defer bad.Close()

	p := New(context.Bg(), bad.URL)
	defer p.Close()
	waitConnected(t, p)

	ev := signedNote(t)
	ctx, cancel := context.Timeout(context.Bg(), 3*time.Second)
	defer cancel()
	results := p.Publish(ctx, ev)
	for url, accepted := range results {
		if accepted {
			t.Errorf("%s recorded true, want false", url)
		}
	}
}

func TestSubscriptionFanOutTagsSourceURL(t *testing.T) {
	note := signedNote(t)
	relayHandler := func(conn *websocket.Conn) {
		for {
			var raw []json.RawMessage
			if err := websocket.JSON.Receive(conn, &raw); err != nil {
				return
			}
			var typ string
			json.Unmarshal(raw[0], &typ)
			if typ != "REQ" {
				continue
			}
			var subid string
			json.Unmarshal(raw[1], &subid)
			websocket.JSON.Send(conn,
				[]any{"EVENT", subid, json.RawMessage(note.Serialize())})
			websocket.JSON.Send(conn, []any{"EOSE", subid})
		}
	}
	r1 := newWebsocketServer(relayHandler)
	defer r1.Close()
	r2 := newWebsocketServer(relayHandler)
	defer r2.Close()

	p := New(context.Bg(), r1.URL, r2.URL)
	defer p.Close()
	waitConnected(t, p)
	time.Sleep(200 * time.Millisecond)

	f := &filter.T{Kinds: kinds.T{kind.MessageQueue}}
	sub := p.Subscribe("fanout-test", filters.T{f})
	defer sub.Close()

	// both relays deliver the same event; the pool does not deduplicate
	seen := map[string]int{}
	timeout := time.After(5 * time.Second)
	for len(seen) < 2 {
		select {
		case d := <-sub.Events:
			if d.Event.ID != note.ID {
				t.Fatalf("unexpected event %s", d.Event.ID)
			}
			if d.SubscriptionID != "fanout-test" {
				t.Fatalf("unexpected subscription id %s", d.SubscriptionID)
			}
			seen[d.Relay]++
		case <-timeout:
			t.Fatalf("saw deliveries from %d relays, want 2: %v", len(seen),
				seen)
		}
	}
	select {
	case <-sub.EndOfStoredEvents:
	case <-time.After(3 * time.Second):
		t.Fatal("no EOSE signal")
	}
}

func TestSubscriptionReplayOnReconnect(t *testing.T) {
	reqs := make(chan string, 8)
	handler := func(conn *websocket.Conn) {
		for {
			var raw []json.RawMessage
			if err := websocket.JSON.Receive(conn, &raw); err != nil {
				return
			}
			var typ string
			json.Unmarshal(raw[0], &typ)
			if typ == "REQ" {
				var subid string
				json.Unmarshal(raw[1], &subid)
				reqs <- subid
			}
		}
	}
	srv := newWebsocketServer(handler)
	defer srv.Close()

	p := New(context.Bg(), srv.URL)
	defer p.Close()
	waitConnected(t, p)

	f := &filter.T{Kinds: kinds.T{kind.MessageQueue}}
	sub := p.Subscribe("replay-test", filters.T{f})
	defer sub.Close()

	select {
	case id := <-reqs:
		if id != "replay-test" {
			t.Fatalf("REQ for %s, want replay-test", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no initial REQ")
	}

	// drop the connection server side; the pool must reconnect and
	// replay the REQ without any caller involvement
	url := normalize.URL(srv.URL)
	e, ok := p.Relays.Load(url)
	if !ok {
		t.Fatal("relay entry missing")
	}
	e.current().Connection.Conn.Close()

	select {
	case id := <-reqs:
		if id != "replay-test" {
			t.Fatalf("replayed REQ for %s, want replay-test", id)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("subscription was not replayed after reconnect")
	}
	if !sub.IsLive() {
		t.Error("subscription should remain live across a reconnect")
	}
}

func TestRemoveRelayClosesAndForgets(t *testing.T) {
	srv := newWebsocketServer(acceptingRelay(t))
	defer srv.Close()

	p := New(context.Bg(), srv.URL)
	defer p.Close()
	waitConnected(t, p)

	url := normalize.URL(srv.URL)
	p.RemoveRelay(url)
	if _, ok := p.Relays.Load(url); ok {
		t.Error("removed relay still present")
	}

	ev := signedNote(t)
	ctx, cancel := context.Timeout(context.Bg(), time.Second)
	defer cancel()
	results := p.Publish(ctx, ev, url)
	if results[url] {
		t.Error("publish to a removed relay reported acceptance")
	}
}
