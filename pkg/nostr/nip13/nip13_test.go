package nip13

import (
	"strings"
	"testing"
	"time"

	"github.com/nostrmq/nostrmq/pkg/nostr/context"
	"github.com/nostrmq/nostrmq/pkg/nostr/event"
	"github.com/nostrmq/nostrmq/pkg/nostr/kind"
	"github.com/nostrmq/nostrmq/pkg/nostr/tags"
	"github.com/nostrmq/nostrmq/pkg/nostr/timestamp"
)

func TestDifficulty(t *testing.T) {
	cases := []struct {
		id   string
		want int
	}{
		{"000000000e9d97a1ab09fc381030b346cdd7a142ad57e6df0b46dc9bef6c7e2d", 36},
		{"6bf5b4f434813c64b523d2b0e6efe18f3bd0cbbd0a5effd8ece9e00fd2531996", 1},
		{"00003479309ecdb46b1c04ce129d2709378518588bed6776e60474ebde3159ae", 18},
		{"01a76167d41add96be4959d9e618b7a35f26551d62c43c11e5e64094c6b53c83", 7},
		{"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", 0},
		{"0000000000000000000000000000000000000000000000000000000000000000", 256},
		{"too short", -1},
	}
	for _, c := range cases {
		if got := Difficulty(c.id); got != c.want {
			t.Errorf("Difficulty(%s) = %d, want %d", c.id, got, c.want)
		}
	}
}

func testTemplate() *event.T {
	return &event.T{
		PubKey:    "4fdb07df4a683e3ee9b2a9d117e01bfe2548d7e8c0d4cb56d77e9c23091c3fc3",
		CreatedAt: timestamp.Now(),
		Kind:      kind.MessageQueue,
		Tags: tags.T{
			{"p", "4fdb07df4a683e3ee9b2a9d117e01bfe2548d7e8c0d4cb56d77e9c23091c3fc3"},
			{"d", "pow-test"},
		},
		Content: "ciphertext goes here",
	}
}

func TestGenerateZeroTargetUnchanged(t *testing.T) {
	tmpl := testTemplate()
	mined, err := Generate(context.Bg(), tmpl, 0, 4, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if mined != tmpl {
		t.Error("zero target should return the template unchanged")
	}
	if nonce := mined.Tags.GetFirst([]string{"nonce"}); nonce != nil {
		t.Error("zero target must not add a nonce tag")
	}
}

func TestGenerateEightBits(t *testing.T) {
	const bits = 8
	for _, workers := range []int{1, 4} {
		tmpl := testTemplate()
		mined, err := Generate(context.Bg(), tmpl, bits, workers,
			time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		id := mined.GetID().String()
		if Difficulty(id) < bits {
			t.Errorf("mined id %s has %d leading zero bits, want >= %d",
				id, Difficulty(id), bits)
		}
		// exactly one nonce tag, last, committing to the target
		nonces := mined.Tags.GetAll("nonce")
		if len(nonces) != 1 {
			t.Fatalf("mined template has %d nonce tags, want 1", len(nonces))
		}
		last := mined.Tags[len(mined.Tags)-1]
		if last.Key() != "nonce" {
			t.Error("nonce tag is not the last tag")
		}
		if len(last) != 3 || last[2] != "8" {
			t.Errorf("nonce tag %v does not commit to 8 bits", last)
		}
		if !HasValidPoW(mined, bits) {
			t.Error("HasValidPoW rejects its own mined template")
		}
		// the original template is untouched
		if workers == 1 {
			if tmpl.Tags.GetFirst([]string{"nonce"}) != nil {
				t.Error("source template grew a nonce tag")
			}
		}
	}
}

func TestGenerateTimeout(t *testing.T) {
	// 64 bits cannot be found in a few milliseconds
	_, err := Generate(context.Bg(), testTemplate(), 64, 2,
		20*time.Millisecond)
	if err != ErrGenerateTimeout {
		t.Errorf("got %v, want ErrGenerateTimeout", err)
	}
}

func TestGenerateCanceled(t *testing.T) {
	ctx, cancel := context.Cancel(context.Bg())
	done := make(chan error, 1)
	go func() {
		_, err := Generate(ctx, testTemplate(), 64, 2, time.Minute)
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		if err != ErrGenerateCanceled {
			t.Errorf("got %v, want ErrGenerateCanceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("mining did not stop after cancellation")
	}
}

func TestHasValidPoW(t *testing.T) {
	mined, err := Generate(context.Bg(), testTemplate(), 8, 2, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	mined.ID = mined.GetID()

	if !HasValidPoW(mined, 0) {
		t.Error("zero target must always pass")
	}
	if !HasValidPoW(mined, 8) {
		t.Error("mined template fails its own target")
	}
	// the commitment is only 8 bits, so a 12 bit demand must fail the
	// commitment check regardless of the actual hash
	if HasValidPoW(mined, 12) {
		t.Error("12 bit demand passed against an 8 bit commitment")
	}

	// a declared difficulty the hash does not back is rejected
	fake := testTemplate()
	fake.Tags = append(fake.Tags, []string{"nonce", "1", "40"})
	fake.ID = fake.GetID()
	if strings.HasPrefix(fake.ID.String(), "0000000000") {
		t.Skip("freak hash collision with ten zeroes")
	}
	if HasValidPoW(fake, 40) {
		t.Error("declared-only difficulty passed verification")
	}
}

func TestCommittedDifficulty(t *testing.T) {
	ev := testTemplate()
	if CommittedDifficulty(ev) != 0 {
		t.Error("template without nonce tag must commit to 0")
	}
	ev.Tags = append(ev.Tags, []string{"nonce", "9000", "21"})
	if got := CommittedDifficulty(ev); got != 21 {
		t.Errorf("committed difficulty %d, want 21", got)
	}
}
