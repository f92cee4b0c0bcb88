// Package tracker remembers what the receive pipeline has already handled:
// a watermark timestamp below which everything counts as seen, and a
// bounded, insertion-ordered set of recently processed event ids for the
// window above the watermark. Both survive restarts through two small JSON
// files rewritten whole under an advisory file lock; any persistence
// failure drops the tracker into memory-only mode for the rest of its life.
package tracker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/nostrmq/nostrmq/pkg/slog"
)

var log, chk = slog.New(os.Stderr)

const (
	// DefaultLookback is how far behind now the watermark starts when
	// there is no persisted state.
	DefaultLookback = 3600 * time.Second
	minLookback     = 60 * time.Second

	DefaultTrackLimit = 100
	minTrackLimit     = 10
	maxTrackLimit     = 1000

	DefaultCacheDir = ".nostrmq"

	timestampFile = "timestamp.json"
	snapshotFile  = "snapshot.json"
	lockFile      = ".lock"
)

// Options configures a tracker. Zero values take the documented defaults;
// out-of-range values are clamped, not rejected.
type Options struct {
	Lookback          time.Duration
	TrackLimit        int
	CacheDir          string
	EnablePersistence bool
}

// timestampState is the on-disk form of the watermark.
type timestampState struct {
	LastProcessed int64 `json:"lastProcessed"`
	UpdatedAt     int64 `json:"updatedAt"`
}

// snapshotState is the on-disk form of the recent-id set.
type snapshotState struct {
	EventIDs  []string `json:"eventIds"`
	CreatedAt int64    `json:"createdAt"`
	Count     int      `json:"count"`
}

// T is a replay tracker. All methods are safe for concurrent use, though
// the receive pipeline drives MarkProcessed from a single consumer.
type T struct {
	mx            sync.Mutex
	lastProcessed int64
	recent        []string
	recentSet     map[string]struct{}

	trackLimit int
	lookback   time.Duration
	cacheDir   string
	persist    bool
	flk        *flock.Flock
}

// New builds a tracker, loading any persisted watermark and snapshot. A
// cache directory that cannot be created flips the tracker into memory-only
// mode; cache files that are missing, unreadable or invalid count as absent
// state. It never fails construction.
func New(opt Options) (t *T) {
	if opt.Lookback <= 0 {
		opt.Lookback = DefaultLookback
	}
	if opt.Lookback < minLookback {
		opt.Lookback = minLookback
	}
	if opt.TrackLimit == 0 {
		opt.TrackLimit = DefaultTrackLimit
	}
	if opt.TrackLimit < minTrackLimit {
		opt.TrackLimit = minTrackLimit
	}
	if opt.TrackLimit > maxTrackLimit {
		opt.TrackLimit = maxTrackLimit
	}
	if opt.CacheDir == "" {
		opt.CacheDir = DefaultCacheDir
	}
	t = &T{
		trackLimit: opt.TrackLimit,
		lookback:   opt.Lookback,
		cacheDir:   opt.CacheDir,
		persist:    opt.EnablePersistence,
		recentSet:  make(map[string]struct{}),
	}
	now := time.Now().Unix()
	t.lastProcessed = now - int64(t.lookback/time.Second)

	if !t.persist {
		return
	}
	if err := os.MkdirAll(t.cacheDir, 0o755); chk.D(err) {
		log.W.F("cache dir '%s' unusable, continuing memory-only: %v",
			t.cacheDir, err)
		t.persist = false
		return
	}
	t.flk = flock.New(filepath.Join(t.cacheDir, lockFile))
	t.loadTimestamp(now)
	t.loadSnapshot()
	return
}

// PersistenceEnabled reports whether the tracker is still writing its
// state to disk. Once false it stays false.
func (t *T) PersistenceEnabled() bool {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.persist
}

// SubscriptionSince returns the watermark, for use as the `since` field of
// a relay subscription filter.
func (t *T) SubscriptionSince() int64 {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.lastProcessed
}

// HasProcessed reports whether the event is already accounted for: its
// timestamp is at or below the watermark, or its id is in the recent set.
// An event timestamped exactly at the watermark counts as processed; one
// second past it does not.
func (t *T) HasProcessed(id string, ts int64) bool {
	t.mx.Lock()
	defer t.mx.Unlock()
	if ts <= t.lastProcessed {
		return true
	}
	_, ok := t.recentSet[id]
	return ok
}

// RecentCount returns the number of ids in the recent set.
func (t *T) RecentCount() int {
	t.mx.Lock()
	defer t.mx.Unlock()
	return len(t.recent)
}

// MarkProcessed records the event as handled: the watermark moves up to
// its timestamp (never down), the id joins the recent set, and the oldest
// insertions are evicted past the track limit. Persistence failures are
// logged and swallowed, never propagated.
func (t *T) MarkProcessed(id string, ts int64) {
	t.mx.Lock()
	defer t.mx.Unlock()

	watermarkMoved := false
	if ts > t.lastProcessed {
		t.lastProcessed = ts
		watermarkMoved = true
	}

	inserted := false
	if _, ok := t.recentSet[id]; !ok {
		inserted = true
		t.recent = append(t.recent, id)
		t.recentSet[id] = struct{}{}
		for len(t.recent) > t.trackLimit {
			delete(t.recentSet, t.recent[0])
			t.recent = t.recent[1:]
		}
	}

	if watermarkMoved {
		t.saveTimestamp()
	}
	if inserted {
		t.saveSnapshot()
	}
}

// loadTimestamp reads timestamp.json. Anything invalid is treated as
// absent. Caller holds no lock yet (construction time).
func (t *T) loadTimestamp(now int64) {
	b, err := os.ReadFile(filepath.Join(t.cacheDir, timestampFile))
	if err != nil {
		return
	}
	var st timestampState
	if err = json.Unmarshal(b, &st); err != nil {
		log.D.F("invalid %s, starting fresh: %v", timestampFile, err)
		return
	}
	if st.LastProcessed <= 0 {
		return
	}
	// never trust a stale cache further back than twice the lookback
	floor := now - 2*int64(t.lookback/time.Second)
	if st.LastProcessed > floor {
		t.lastProcessed = st.LastProcessed
	} else {
		t.lastProcessed = floor
	}
}

// loadSnapshot reads snapshot.json, keeping the newest trackLimit entries
// in their insertion order.
func (t *T) loadSnapshot() {
	b, err := os.ReadFile(filepath.Join(t.cacheDir, snapshotFile))
	if err != nil {
		return
	}
	var st snapshotState
	if err = json.Unmarshal(b, &st); err != nil {
		log.D.F("invalid %s, starting fresh: %v", snapshotFile, err)
		return
	}
	ids := st.EventIDs
	if len(ids) > t.trackLimit {
		ids = ids[len(ids)-t.trackLimit:]
	}
	for _, id := range ids {
		if _, ok := t.recentSet[id]; ok {
			continue
		}
		t.recent = append(t.recent, id)
		t.recentSet[id] = struct{}{}
	}
}

// saveTimestamp rewrites timestamp.json whole. Caller holds t.mx.
func (t *T) saveTimestamp() {
	if !t.persist {
		return
	}
	b, _ := json.Marshal(timestampState{
		LastProcessed: t.lastProcessed,
		UpdatedAt:     time.Now().Unix(),
	})
	t.write(timestampFile, b)
}

// saveSnapshot rewrites snapshot.json whole. Caller holds t.mx.
func (t *T) saveSnapshot() {
	if !t.persist {
		return
	}
	b, _ := json.Marshal(snapshotState{
		EventIDs:  t.recent,
		CreatedAt: time.Now().Unix(),
		Count:     len(t.recent),
	})
	t.write(snapshotFile, b)
}

// write replaces one cache file under the advisory lock. A failure drops
// the tracker into memory-only mode for good.
func (t *T) write(name string, b []byte) {
	if err := t.flk.Lock(); err != nil {
		log.W.F("cache lock failed, continuing memory-only: %v", err)
		t.persist = false
		return
	}
	defer func() { chk.D(t.flk.Unlock()) }()
	if err := os.WriteFile(filepath.Join(t.cacheDir, name), b,
		0o644); err != nil {

		log.W.F("writing %s failed, continuing memory-only: %v", name, err)
		t.persist = false
	}
}
