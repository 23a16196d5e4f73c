// Package correlation contains a table that binds frame timestamps to display times.
package correlation

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/bluenviron/framesync/internal/clockorigin"
)

const (
	defaultMaxEntries = 256
	defaultShardCount = 16
)

// Stats are table statistics.
type Stats struct {
	Entries     int
	Recorded    uint64
	Overwritten uint64
	Resolved    uint64
	Missed      uint64
	Evicted     uint64
}

type entry struct {
	displayTime int64
	recordedAt  time.Time
	seq         uint64
}

type shard struct {
	mutex   sync.Mutex
	entries *linkedhashmap.Map // normalized pts -> entry, in insertion order
}

// remove entries older than maxAge, starting from the oldest one.
func (s *shard) purgeExpired(now time.Time, maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	var expired []interface{}
	it := s.entries.Iterator()
	for it.Next() {
		if now.Sub(it.Value().(*entry).recordedAt) <= maxAge {
			break
		}
		expired = append(expired, it.Key())
	}

	for _, key := range expired {
		s.entries.Remove(key)
	}

	return len(expired)
}

// sequence number of the oldest entry.
func (s *shard) oldest() (uint64, bool) {
	it := s.entries.Iterator()
	if !it.First() {
		return 0, false
	}
	return it.Value().(*entry).seq, true
}

func (s *shard) removeOldest() {
	it := s.entries.Iterator()
	if it.First() {
		s.entries.Remove(it.Key())
	}
}

// Table maps normalized frame timestamps to display times.
//
// Frame timestamps are normalized by subtracting the first timestamp ever
// recorded. Entries are spread over shards, each with its own lock.
// When the table holds more than MaxEntries entries, the oldest entry of
// the whole table is evicted. Expired entries are purged from the touched shard.
type Table struct {
	// maximum number of entries. It defaults to 256.
	MaxEntries int
	// entries older than this are discarded. Zero disables expiration.
	MaxAge time.Duration
	// number of independently locked shards. It defaults to 16.
	ShardCount int

	timeNow   func() time.Time
	ptsOrigin clockorigin.Origin
	shards    []*shard
	seq       atomic.Uint64

	entries     atomic.Int64
	recorded    atomic.Uint64
	overwritten atomic.Uint64
	resolved    atomic.Uint64
	missed      atomic.Uint64
	evicted     atomic.Uint64
}

// Initialize initializes Table.
func (t *Table) Initialize() error {
	if t.MaxEntries < 0 {
		return fmt.Errorf("invalid max entries: %d", t.MaxEntries)
	}
	if t.MaxAge < 0 {
		return fmt.Errorf("invalid max age: %v", t.MaxAge)
	}
	if t.ShardCount < 0 {
		return fmt.Errorf("invalid shard count: %d", t.ShardCount)
	}

	if t.MaxEntries == 0 {
		t.MaxEntries = defaultMaxEntries
	}
	if t.ShardCount == 0 {
		t.ShardCount = defaultShardCount
	}
	if t.ShardCount > t.MaxEntries {
		t.ShardCount = t.MaxEntries
	}
	if t.timeNow == nil {
		t.timeNow = time.Now
	}

	t.shards = make([]*shard, t.ShardCount)
	for i := range t.shards {
		t.shards[i] = &shard{entries: linkedhashmap.New()}
	}

	return nil
}

func (t *Table) shardFor(key int64) *shard {
	// consecutive keys differ by a constant frame interval,
	// mix them before picking a shard.
	h := uint64(key) * 0x9E3779B97F4A7C15
	return t.shards[(h>>32)%uint64(len(t.shards))]
}

// Origin returns the pts origin, if it has been established.
func (t *Table) Origin() (int64, bool) {
	return t.ptsOrigin.Get()
}

// Record binds a frame timestamp to a display time.
// The first call establishes the pts origin.
func (t *Table) Record(framePTS int64, displayTime int64) {
	key := framePTS - t.ptsOrigin.Init(framePTS)
	s := t.shardFor(key)

	s.mutex.Lock()

	now := t.timeNow()
	t.evict(s.purgeExpired(now, t.MaxAge))

	if _, ok := s.entries.Get(key); ok {
		// move the entry to the back of the eviction order
		s.entries.Remove(key)
		t.overwritten.Add(1)
	} else {
		t.entries.Add(1)
	}

	s.entries.Put(key, &entry{
		displayTime: displayTime,
		recordedAt:  now,
		seq:         t.seq.Add(1),
	})

	t.recorded.Add(1)

	s.mutex.Unlock()

	for t.entries.Load() > int64(t.MaxEntries) {
		if !t.evictOldest() {
			break
		}
	}
}

// evictOldest removes the oldest entry of the table.
// It returns false when there is nothing left to evict.
func (t *Table) evictOldest() bool {
	for {
		var target *shard
		var targetSeq uint64

		for _, s := range t.shards {
			s.mutex.Lock()
			seq, ok := s.oldest()
			s.mutex.Unlock()

			if ok && (target == nil || seq < targetSeq) {
				target = s
				targetSeq = seq
			}
		}

		if target == nil {
			return false
		}

		target.mutex.Lock()

		// the entry may have been resolved or evicted in the meantime
		seq, ok := target.oldest()
		if !ok || seq != targetSeq {
			target.mutex.Unlock()
			continue
		}

		if t.entries.Load() <= int64(t.MaxEntries) {
			target.mutex.Unlock()
			return true
		}

		target.removeOldest()
		t.evict(1)

		target.mutex.Unlock()
		return true
	}
}

// Resolve looks up and removes the display time bound to a frame timestamp.
// It returns false when there is no such entry or when no pts origin has
// been established yet.
func (t *Table) Resolve(framePTS int64) (int64, bool) {
	key, ok := t.ptsOrigin.Normalize(framePTS)
	if !ok {
		t.missed.Add(1)
		return 0, false
	}

	s := t.shardFor(key)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	t.evict(s.purgeExpired(t.timeNow(), t.MaxAge))

	v, ok := s.entries.Get(key)
	if !ok {
		t.missed.Add(1)
		return 0, false
	}

	s.entries.Remove(key)
	t.entries.Add(-1)
	t.resolved.Add(1)

	return v.(*entry).displayTime, true
}

func (t *Table) evict(n int) {
	if n != 0 {
		t.entries.Add(-int64(n))
		t.evicted.Add(uint64(n))
	}
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return int(t.entries.Load())
}

// Stats returns table statistics.
func (t *Table) Stats() Stats {
	return Stats{
		Entries:     t.Len(),
		Recorded:    t.recorded.Load(),
		Overwritten: t.overwritten.Load(),
		Resolved:    t.resolved.Load(),
		Missed:      t.missed.Load(),
		Evicted:     t.evicted.Load(),
	}
}
