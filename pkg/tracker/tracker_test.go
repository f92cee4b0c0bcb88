package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, dir string, limit int) *T {
	t.Helper()
	return New(Options{
		Lookback:          time.Hour,
		TrackLimit:        limit,
		CacheDir:          dir,
		EnablePersistence: true,
	})
}

func TestWatermarkBoundary(t *testing.T) {
	trk := New(Options{EnablePersistence: false})
	wm := trk.SubscriptionSince()

	assert.True(t, trk.HasProcessed("unseen", wm),
		"an event at exactly the watermark counts as processed")
	assert.False(t, trk.HasProcessed("unseen", wm+1),
		"an event one second past the watermark is new")
}

func TestWatermarkMonotonic(t *testing.T) {
	trk := New(Options{EnablePersistence: false})
	now := time.Now().Unix()

	trk.MarkProcessed("a", now)
	require.Equal(t, now, trk.SubscriptionSince())

	// an older event must not move the watermark backwards
	trk.MarkProcessed("b", now-500)
	assert.Equal(t, now, trk.SubscriptionSince())

	trk.MarkProcessed("c", now+5)
	assert.Equal(t, now+5, trk.SubscriptionSince())
}

func TestHasProcessedAfterMark(t *testing.T) {
	trk := New(Options{EnablePersistence: false})
	ts := time.Now().Unix() + 100

	assert.False(t, trk.HasProcessed("id-1", ts))
	trk.MarkProcessed("id-1", ts)
	assert.True(t, trk.HasProcessed("id-1", ts))
	// by id even above the watermark
	assert.True(t, trk.HasProcessed("id-1", ts+50))
}

func TestEvictionUnderLoad(t *testing.T) {
	dir := t.TempDir()
	trk := newTestTracker(t, dir, 10)
	// the clamp floor is 10
	require.Equal(t, 10, trk.trackLimit)

	base := time.Now().Unix() + 1000
	var ids []string
	for i := 1; i <= 20; i++ {
		id := fmt.Sprintf("event-%02d", i)
		ids = append(ids, id)
		trk.MarkProcessed(id, base+int64(i))
	}

	assert.Equal(t, 10, trk.RecentCount())
	// the newest ten are held by id
	for _, id := range ids[10:] {
		assert.True(t, trk.HasProcessed(id, base+100), id)
	}
	// the oldest ten fell out of the id set, but their timestamps are
	// at or below the watermark so they still count as processed
	for i, id := range ids[:10] {
		assert.True(t, trk.HasProcessed(id, base+int64(i+1)), id)
	}

	// the snapshot on disk holds exactly the newest ten in insertion order
	b, err := os.ReadFile(filepath.Join(dir, "snapshot.json"))
	require.NoError(t, err)
	var snap snapshotState
	require.NoError(t, json.Unmarshal(b, &snap))
	assert.Equal(t, ids[10:], snap.EventIDs)
	assert.Equal(t, 10, snap.Count)
}

func TestReplaySuppressionAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Unix() - 60

	trk := newTestTracker(t, dir, 10)
	events := map[string]int64{
		"e1": base + 1,
		"e2": base + 2,
		"e3": base + 3,
	}
	for id, ts := range events {
		trk.MarkProcessed(id, ts)
	}
	last := trk.SubscriptionSince()

	// a fresh tracker over the same cache dir remembers everything
	trk2 := newTestTracker(t, dir, 10)
	assert.Equal(t, last, trk2.SubscriptionSince())
	for id, ts := range events {
		assert.True(t, trk2.HasProcessed(id, ts), id)
	}
	assert.False(t, trk2.HasProcessed("e4", last+1))
}

func TestSnapshotRoundTripPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	trk := newTestTracker(t, dir, 50)
	base := time.Now().Unix() + 10
	var ids []string
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("ordered-%d", i)
		ids = append(ids, id)
		trk.MarkProcessed(id, base+int64(i))
	}

	trk2 := newTestTracker(t, dir, 50)
	assert.Equal(t, ids, trk2.recent)
}

func TestStaleTimestampClamped(t *testing.T) {
	dir := t.TempDir()
	ancient := time.Now().Add(-100 * time.Hour).Unix()
	b, _ := json.Marshal(timestampState{
		LastProcessed: ancient,
		UpdatedAt:     ancient,
	})
	require.NoError(t,
		os.WriteFile(filepath.Join(dir, "timestamp.json"), b, 0o644))

	trk := newTestTracker(t, dir, 10)
	floor := time.Now().Unix() - 2*3600
	assert.GreaterOrEqual(t, trk.SubscriptionSince(), floor-5,
		"a stale watermark is clamped to twice the lookback")
}

func TestCorruptCacheFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "timestamp.json"),
		[]byte("{truncated"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot.json"),
		[]byte("not json at all"), 0o644))

	trk := newTestTracker(t, dir, 10)
	assert.True(t, trk.PersistenceEnabled(),
		"unreadable state is absent state, not a persistence failure")
	assert.Equal(t, 0, trk.RecentCount())
}

func TestUnwritableCacheDirFallsBackToMemory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, cannot make an unwritable directory")
	}
	parent := t.TempDir()
	require.NoError(t, os.Chmod(parent, 0o555))
	t.Cleanup(func() { _ = os.Chmod(parent, 0o755) })
	dir := filepath.Join(parent, "cache")

	trk := New(Options{
		CacheDir:          dir,
		EnablePersistence: true,
	})
	assert.False(t, trk.PersistenceEnabled())

	// memory-only operation keeps working
	ts := time.Now().Unix() + 10
	trk.MarkProcessed("mem-only", ts)
	assert.True(t, trk.HasProcessed("mem-only", ts))

	// a restart has nothing on disk to load
	trk2 := New(Options{
		CacheDir:          dir,
		EnablePersistence: true,
	})
	assert.False(t, trk2.PersistenceEnabled())
	assert.False(t, trk2.HasProcessed("mem-only", ts))
}

func TestClampsAndDefaults(t *testing.T) {
	trk := New(Options{
		Lookback:          time.Second, // below the floor
		TrackLimit:        5,           // below the floor
		EnablePersistence: false,
	})
	assert.Equal(t, 10, trk.trackLimit)
	assert.Equal(t, minLookback, trk.lookback)

	trk = New(Options{
		TrackLimit:        5000, // above the ceiling
		EnablePersistence: false,
	})
	assert.Equal(t, maxTrackLimit, trk.trackLimit)
	assert.Equal(t, DefaultLookback, trk.lookback)
}
