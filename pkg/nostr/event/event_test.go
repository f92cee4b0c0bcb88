package event_test

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/nostrmq/nostrmq/pkg/hex"
	"github.com/nostrmq/nostrmq/pkg/nostr/event"
	"github.com/nostrmq/nostrmq/pkg/nostr/kind"
	"github.com/nostrmq/nostrmq/pkg/nostr/tags"
	"github.com/nostrmq/nostrmq/pkg/nostr/timestamp"
	"github.com/nostrmq/nostrmq/pkg/slog"
)

var log, chk = slog.New(os.Stderr)

const (
	TestSecHex = "1797f6f1d10593548b566ba32e81577aa4bc990eb0f16556bf884f1af4b17c25"
	TestPubHex = "4fdb07df4a683e3ee9b2a9d117e01bfe2548d7e8c0d4cb56d77e9c23091c3fc3"
)

func GetTestKeyPair() (sec *btcec.PrivateKey, pub *btcec.PublicKey) {
	b, _ := hex.Dec(TestSecHex)
	sec, pub = btcec.PrivKeyFromBytes(b)
	return
}

var TestEventContent = []string{
	`plain text`,
	`This event contains { braces } and [ brackets ] that must be properly
handled, as well as a line break, a dangling space and a
	tab.`,
	`"quoted" and backslash \ and control chars`,
}

func TestSignAndVerify(t *testing.T) {
	sec, _ := GetTestKeyPair()
	for _, content := range TestEventContent {
		ev := &event.T{
			CreatedAt: timestamp.Now(),
			Kind:      kind.MessageQueue,
			Tags: tags.T{
				{"p", TestPubHex},
				{"d", "test-unique-id"},
			},
			Content: content,
		}
		if err := ev.SignWithSecKey(sec); chk.D(err) {
			t.Fatal(err)
		}
		if ev.PubKey != TestPubHex {
			t.Errorf("derived pubkey %s, want %s", ev.PubKey, TestPubHex)
		}
		if ev.ID != ev.GetID() {
			t.Error("attached ID does not match recomputed ID")
		}
		valid, err := ev.CheckSignature()
		if chk.D(err) {
			t.Fatal(err)
		}
		if !valid {
			t.Error("signature does not verify")
		}
		log.D.Ln(ev.ToObject().String())
	}
}

func TestEventSerialization(t *testing.T) {
	sec, _ := GetTestKeyPair()
	for _, content := range TestEventContent {
		evt := &event.T{
			CreatedAt: timestamp.Now(),
			Kind:      kind.MessageQueue,
			Tags: tags.T{
				{"p", TestPubHex},
				{"d", "serialization"},
				{"nonce", "12345", "8"},
			},
			Content: content,
		}
		if err := evt.SignWithSecKey(sec); chk.D(err) {
			t.Fatal(err)
		}

		b, err := json.Marshal(evt)
		if err != nil {
			t.Fatal(err)
		}
		var re event.T
		if err = json.Unmarshal(b, &re); err != nil {
			t.Log(string(b))
			t.Fatal("failed to re parse event just serialized", err)
		}

		if evt.ID != re.ID || evt.PubKey != re.PubKey || evt.Content != re.Content ||
			evt.CreatedAt != re.CreatedAt || evt.Sig != re.Sig ||
			len(evt.Tags) != len(re.Tags) {
			t.Error("reparsed event differs from original")
		}

		for i := range evt.Tags {
			if len(evt.Tags[i]) != len(re.Tags[i]) {
				t.Errorf("reparsed tags %d length differ from original", i)
				continue
			}

			for j := range evt.Tags[i] {
				if evt.Tags[i][j] != re.Tags[i][j] {
					t.Errorf("reparsed tag content %d %d differ from original",
						i, j)
				}
			}
		}
	}
}
