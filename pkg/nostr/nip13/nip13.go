// Package nip13 implements NIP-13 proof of work mining and verification for
// event identifiers.
// See https://github.com/nostr-protocol/nips/blob/master/13.md for details.
package nip13

import (
	"encoding/hex"
	"errors"
	"math/bits"
	"strconv"
	"time"

	"github.com/nostrmq/nostrmq/pkg/nostr/context"
	"github.com/nostrmq/nostrmq/pkg/nostr/event"
	"github.com/nostrmq/nostrmq/pkg/nostr/tag"
	"github.com/nostrmq/nostrmq/pkg/nostr/timestamp"
)

var (
	ErrDifficultyTooLow = errors.New("nip13: insufficient difficulty")
	ErrGenerateTimeout  = errors.New("nip13: generating proof of work took too long")
	ErrGenerateCanceled = errors.New("nip13: generating proof of work was canceled")
)

// DefaultTimeout bounds a mining run that was given no explicit deadline.
const DefaultTimeout = 5 * time.Minute

// checkInterval is how many nonces a worker burns through between looks at
// the cancellation signal and the wall clock.
const checkInterval = 1000

// Difficulty counts the number of leading zero bits in an event ID.
// It returns a negative number if the event ID is malformed.
func Difficulty(eventID string) int {
	if len(eventID) != 64 {
		return -1
	}
	var zeros int
	for i := 0; i < 64; i += 2 {
		if eventID[i:i+2] == "00" {
			zeros += 8
			continue
		}
		var b [1]byte
		if _, e := hex.Decode(b[:], []byte{eventID[i], eventID[i+1]}); e != nil {
			return -1
		}
		zeros += bits.LeadingZeros8(b[0])
		break
	}
	return zeros
}

// Check reports whether the event ID demonstrates a sufficient proof of work
// difficulty. Note that Check performs no validation other than counting
// leading zero bits in an event ID. It is up to the callers to verify the
// event with other methods, such as [event.T.CheckSignature].
func Check(eventID string, minDifficulty int) error {
	if Difficulty(eventID) < minDifficulty {
		return ErrDifficultyTooLow
	}
	return nil
}

// CommittedDifficulty returns the difficulty the event's nonce tag declares,
// or 0 when there is no parseable nonce tag. The declared value is a
// commitment only, the actual difficulty is always recomputed from the id.
func CommittedDifficulty(ev *event.T) (n int) {
	if nonce := ev.Tags.GetFirst([]string{"nonce"}); nonce != nil &&
		len(*nonce) >= 3 {

		n, _ = strconv.Atoi((*nonce)[2])
	}
	return
}

// HasValidPoW reports whether the event demonstrates at least minDifficulty
// leading zero bits, with a nonce tag committing to at least that target.
// A target of zero or below always passes. The event's id is recomputed when
// it is not attached.
func HasValidPoW(ev *event.T, minDifficulty int) bool {
	if minDifficulty <= 0 {
		return true
	}
	if CommittedDifficulty(ev) < minDifficulty {
		return false
	}
	id := ev.ID.String()
	if len(id) != 64 {
		id = ev.GetID().String()
	}
	return Difficulty(id) >= minDifficulty
}

// Generate performs proof of work on the event until either the target
// difficulty is reached or the function runs for longer than the timeout,
// in which case ErrGenerateTimeout is returned. A zero or negative target
// returns the event unchanged.
//
// Upon success the returned event contains exactly one "nonce" tag, placed
// last, committing to the target difficulty, and an updated CreatedAt.
//
// The search is split across the given number of workers, each running on
// its own goroutine so mining can use real OS threads without starving the
// network reactors: worker i walks the nonces i, i+workers, i+2·workers and
// so on, and the first solution wins, cancelling the rest.
func Generate(c context.T, evt *event.T, targetDifficulty, workers int,
	timeout time.Duration) (*event.T, error) {

	if targetDifficulty <= 0 {
		return evt, nil
	}
	if workers < 1 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.Timeout(c, timeout)
	defer cancel()

	found := make(chan *event.T, workers)
	for i := 0; i < workers; i++ {
		go mineWorker(ctx, evt, targetDifficulty, uint64(i), uint64(workers),
			found)
	}
	select {
	case solved := <-found:
		return solved, nil
	case <-ctx.Done():
		if c.Err() != nil {
			return nil, ErrGenerateCanceled
		}
		return nil, ErrGenerateTimeout
	}
}

// mineWorker searches the nonce subsequence starting at offset with the given
// stride, on a private copy of the event so workers never share tag storage.
func mineWorker(c context.T, evt *event.T, targetDifficulty int,
	offset, stride uint64, found chan<- *event.T) {

	nonceTag := tag.T{"nonce", "", strconv.Itoa(targetDifficulty)}
	cp := &event.T{
		PubKey:    evt.PubKey,
		CreatedAt: timestamp.Now(),
		Kind:      evt.Kind,
		Tags: append(evt.Tags.FilterOut([]string{"nonce"}), nonceTag),
		Content: evt.Content,
	}
	// the appended nonce tag is the last element, rewritten in place each
	// iteration.
	nonceTag = cp.Tags[len(cp.Tags)-1]

	nonce := offset
	for {
		nonceTag[1] = strconv.FormatUint(nonce, 10)
		if Difficulty(cp.GetID().String()) >= targetDifficulty {
			select {
			case found <- cp:
			case <-c.Done():
			}
			return
		}
		nonce += stride
		// benchmarks show one iteration is approx 3000ns on i7-8565U @
		// 1.8GHz. so, check every 3ms; arbitrary
		if nonce/stride%checkInterval == 0 {
			select {
			case <-c.Done():
				return
			default:
			}
			// refresh the timestamp so a long search doesn't emit an event
			// dated at the start of mining.
			cp.CreatedAt = timestamp.Now()
		}
	}
}
