package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nostrmq/nostrmq/pkg/nostr/context"
	"github.com/nostrmq/nostrmq/pkg/nostr/envelopes"
	"github.com/nostrmq/nostrmq/pkg/nostr/event"
	"github.com/nostrmq/nostrmq/pkg/nostr/keys"
	"github.com/nostrmq/nostrmq/pkg/nostr/kind"
	"github.com/nostrmq/nostrmq/pkg/nostr/tag"
	"github.com/nostrmq/nostrmq/pkg/nostr/tags"
	"github.com/nostrmq/nostrmq/pkg/nostr/timestamp"
	"golang.org/x/net/websocket"
)

func TestPublishAccepted(t *testing.T) {
	// test note to be sent over websocket
	priv, pub := makeKeyPair(t)
	note := &event.T{
		Kind:      kind.MessageQueue,
		Content:   "hello",
		CreatedAt: timestamp.T(1672068534),
		Tags:      tags.T{tag.T{"p", pub}, tag.T{"d", "x"}},
		PubKey:    pub,
	}
	if err := note.Sign(priv); err != nil {
		t.Fatalf("note.Sign: %v", err)
	}

	// fake relay server
	var mu sync.Mutex // guards published to satisfy go test -race
	var published bool
	ws := newWebsocketServer(func(conn *websocket.Conn) {
		mu.Lock()
		published = true
		mu.Unlock()
		// verify the client sent exactly the note
		var raw []json.RawMessage
		if err := websocket.JSON.Receive(conn, &raw); err != nil {
			t.Errorf("websocket.JSON.Receive: %v", err)
		}
		ev := parseEventMessage(t, raw)
		if !bytes.Equal(ev.Serialize(), note.Serialize()) {
			t.Errorf("received event:\n%+v\nwant:\n%+v", ev, note)
		}
		// send back an ok command result
		res := []any{"OK", note.ID.String(), true, ""}
		if err := websocket.JSON.Send(conn, res); err != nil {
			t.Errorf("websocket.JSON.Send: %v", err)
		}
	})
	defer ws.Close()

	rl := mustConnect(t, ws.URL)
	defer rl.Close()
	if err := rl.Publish(context.Bg(), note); err != nil {
		t.Errorf("publish should have succeeded: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if !published {
		t.Errorf("fake relay server saw no event")
	}
}

func TestPublishBlocked(t *testing.T) {
	note := event.T{Kind: kind.MessageQueue, Content: "hello"}
	note.ID = note.GetID()

	ws := newWebsocketServer(func(conn *websocket.Conn) {
		// discard received message; not interested
		var raw []json.RawMessage
		if err := websocket.JSON.Receive(conn, &raw); err != nil {
			t.Errorf("websocket.JSON.Receive: %v", err)
		}
		// send back a rejection
		res := []any{"OK", note.ID.String(), false, "blocked"}
		websocket.JSON.Send(conn, res)
	})
	defer ws.Close()

	rl := mustConnect(t, ws.URL)
	defer rl.Close()
	if err := rl.Publish(context.Bg(), &note); err == nil {
		t.Errorf("should have failed to publish")
	}
}

func TestPublishWriteFailed(t *testing.T) {
	note := event.T{Kind: kind.MessageQueue, Content: "hello"}
	note.ID = note.GetID()

	ws := newWebsocketServer(func(conn *websocket.Conn) {
		// reject receive - force send error
		conn.Close()
	})
	defer ws.Close()

	rl := mustConnect(t, ws.URL)
	// brief pause so that publish always fails on the closed socket
	time.Sleep(10 * time.Millisecond)
	if err := rl.Publish(context.Bg(), &note); err == nil {
		t.Errorf("should have failed to publish")
	}
}

func TestStatusTransitions(t *testing.T) {
	ws := newWebsocketServer(discardingHandler)

	rl := New(ws.URL, nil)
	if rl.Status() != Disconnected {
		t.Errorf("before connect: %v, want disconnected", rl.Status())
	}
	if err := rl.Connect(context.Bg()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if rl.Status() != Connected {
		t.Errorf("after connect: %v, want connected", rl.Status())
	}
	if err := rl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if rl.Status() != Disconnected {
		t.Errorf("after close: %v, want disconnected", rl.Status())
	}
	ws.Close()

	// a dead server leaves the client in the error state
	rl2 := New(ws.URL, nil)
	ctx, cancel := context.Timeout(context.Bg(), 2*time.Second)
	defer cancel()
	if err := rl2.Connect(ctx); err == nil {
		t.Fatal("connect to a dead server should fail")
	}
	if rl2.Status() != Errored {
		t.Errorf("after failed connect: %v, want error", rl2.Status())
	}
	if rl2.LastError() == nil {
		t.Error("failed connect left no LastError")
	}
}

func TestInboundDelivery(t *testing.T) {
	_, pub := makeKeyPair(t)
	ws := newWebsocketServer(func(conn *websocket.Conn) {
		// wait for the REQ, then feed an event and an EOSE back
		var raw []json.RawMessage
		if err := websocket.JSON.Receive(conn, &raw); err != nil {
			t.Errorf("websocket.JSON.Receive: %v", err)
			return
		}
		subid, _ := parseSubscriptionMessage(t, raw)
		ev := map[string]any{
			"id":         "abcdef",
			"pubkey":     pub,
			"created_at": 1672068534,
			"kind":       30072,
			"tags":       [][]string{{"p", pub}},
			"content":    "ct",
			"sig":        "00",
		}
		websocket.JSON.Send(conn, []any{"EVENT", subid, ev})
		websocket.JSON.Send(conn, []any{"EOSE", subid})
		websocket.JSON.Send(conn, []any{"BOGUS", "ignored"})
		io.ReadAll(conn)
	})
	defer ws.Close()

	inbound := make(chan string, 4)
	rl := New(ws.URL, func(url string, env envelopes.I) {
		inbound <- env.Label()
	})
	if err := rl.Connect(context.Bg()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rl.Close()
	if err := rl.Req("test-sub", nil); err != nil {
		t.Fatalf("req: %v", err)
	}

	want := []string{"EVENT", "EOSE"}
	for _, label := range want {
		select {
		case got := <-inbound:
			if got != label {
				t.Errorf("inbound %s, want %s", got, label)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for %s", label)
		}
	}
}

func discardingHandler(conn *websocket.Conn) {
	io.ReadAll(conn) // discard all input
}

func newWebsocketServer(handler func(*websocket.Conn)) *httptest.Server {
	return httptest.NewServer(&websocket.Server{
		Handshake: anyOriginHandshake,
		Handler:   handler,
	})
}

// anyOriginHandshake is an alternative to default in golang.org/x/net/websocket
// which checks for origin. nostr client sends no origin and it makes no
// difference for the tests here anyway.
var anyOriginHandshake = func(conf *websocket.Config, r *http.Request) error {
	return nil
}

func mustConnect(t *testing.T, url string) *T {
	t.Helper()
	rl := New(url, nil)
	if err := rl.Connect(context.Bg()); err != nil {
		t.Fatalf("connect to %s: %v", url, err)
	}
	return rl
}

func makeKeyPair(t *testing.T) (priv, pub string) {
	t.Helper()
	privkey := keys.GeneratePrivateKey()
	pubkey, err := keys.GetPublicKey(privkey)
	if err != nil {
		t.Fatalf("GetPublicKey(%q): %v", privkey, err)
	}
	return privkey, pubkey
}

func parseEventMessage(t *testing.T, raw []json.RawMessage) event.T {
	t.Helper()
	if len(raw) < 2 {
		t.Fatalf("len(raw) = %d; want at least 2", len(raw))
	}
	var typ string
	json.Unmarshal(raw[0], &typ)
	if typ != "EVENT" {
		t.Errorf("typ = %q; want EVENT", typ)
	}
	var ev event.T
	if err := json.Unmarshal(raw[1], &ev); err != nil {
		t.Errorf("json.Unmarshal(`%s`): %v", string(raw[1]), err)
	}
	return ev
}

func parseSubscriptionMessage(t *testing.T,
	raw []json.RawMessage) (subid string, ff []json.RawMessage) {

	t.Helper()
	if len(raw) < 2 {
		t.Fatalf("len(raw) = %d; want at least 2", len(raw))
	}
	var typ string
	json.Unmarshal(raw[0], &typ)
	if typ != "REQ" {
		t.Errorf("typ = %q; want REQ", typ)
	}
	if err := json.Unmarshal(raw[1], &subid); err != nil {
		t.Errorf("json.Unmarshal sub id: %v", err)
	}
	ff = raw[2:]
	return
}
