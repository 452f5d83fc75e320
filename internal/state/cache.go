package state

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/muurk/multy/internal/logging"
)

const (
	// DefaultHistoryLimit is the number of events kept per resource
	DefaultHistoryLimit = 64

	// DefaultSubscriberBuffer is the channel size used when Subscribe gets 0
	DefaultSubscriberBuffer = 32
)

// Config tunes a Cache.
type Config struct {
	HistoryLimit int
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{HistoryLimit: DefaultHistoryLimit}
}

type subscriber struct {
	ch chan Event
}

// Cache holds the last committed snapshot per resource and fans change
// events out to subscribers.
//
// The cache is the only writer of its state. Readers always see the last
// fully committed snapshot; a slow subscriber loses events rather than
// blocking Update.
type Cache struct {
	mu sync.RWMutex

	config      Config
	snapshots   map[string]*Snapshot
	history     map[string][]Event
	unavailable map[string]bool

	subscribers map[uint64]*subscriber
	nextSub     uint64
	dropped     atomic.Uint64

	now func() time.Time
}

// NewCache creates an empty cache with default configuration.
func NewCache() *Cache {
	return NewCacheWithConfig(DefaultConfig())
}

// NewCacheWithConfig creates an empty cache.
func NewCacheWithConfig(config Config) *Cache {
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultHistoryLimit
	}
	return &Cache{
		config:      config,
		snapshots:   make(map[string]*Snapshot),
		history:     make(map[string][]Event),
		unavailable: make(map[string]bool),
		subscribers: make(map[uint64]*subscriber),
		now:         time.Now,
	}
}

// Preload installs snapshots without emitting events, so that the next
// Update diffs against a previously persisted state.
func (c *Cache) Preload(snaps []*Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range snaps {
		if s == nil || s.Resource == "" {
			continue
		}
		if _, ok := c.snapshots[s.Resource]; !ok {
			c.snapshots[s.Resource] = s
		}
	}
}

// Update commits snap as the resource's current snapshot and returns the
// change event, if anything changed.
func (c *Cache) Update(snap *Snapshot) (Event, bool) {
	if snap == nil {
		return Event{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.snapshots[snap.Resource]
	c.snapshots[snap.Resource] = snap

	ev := Diff(prev, snap)
	if ev.Empty() {
		return Event{}, false
	}
	ev.ID = uuid.NewString()
	ev.At = c.now()

	for _, a := range ev.Added {
		logging.LogChange(ev.Resource, "added", a.ID, len(a.Fields))
	}
	for _, r := range ev.Removed {
		logging.LogChange(ev.Resource, "removed", r.ID, len(r.Fields))
	}
	if len(ev.Updated) > 0 {
		logging.LogChange(ev.Resource, "updated", ev.Updated[0].Entity, len(ev.Updated))
	}

	c.publishLocked(ev)
	return ev, true
}

// MarkUnavailable records that resource could not be read. It emits an
// EventUnavailable only on the transition from available.
func (c *Cache) MarkUnavailable(resource string, cause error) (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unavailable[resource] {
		return Event{}, false
	}
	c.unavailable[resource] = true

	ev := Event{
		ID:       uuid.NewString(),
		Kind:     EventUnavailable,
		Resource: resource,
		At:       c.now(),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	logging.LogAvailability(resource, false, cause)
	c.publishLocked(ev)
	return ev, true
}

// MarkAvailable clears an unavailable flag and emits EventRecovered if the
// resource was unavailable.
func (c *Cache) MarkAvailable(resource string) (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.unavailable[resource] {
		return Event{}, false
	}
	delete(c.unavailable, resource)

	ev := Event{
		ID:       uuid.NewString(),
		Kind:     EventRecovered,
		Resource: resource,
		At:       c.now(),
	}
	logging.LogAvailability(resource, true, nil)
	c.publishLocked(ev)
	return ev, true
}

// Available reports whether resource is currently considered reachable.
func (c *Cache) Available(resource string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.unavailable[resource]
}

// Snapshot returns the last committed snapshot of resource. The returned
// snapshot is shared and must be treated as read-only.
func (c *Cache) Snapshot(resource string) (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.snapshots[resource]
	return s, ok
}

// Snapshots returns all committed snapshots ordered by resource name.
func (c *Cache) Snapshots() []*Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Snapshot, 0, len(c.snapshots))
	for _, name := range sortedKeys(c.snapshots) {
		out = append(out, c.snapshots[name])
	}
	return out
}

// Resources returns the names of resources with a committed snapshot.
func (c *Cache) Resources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.snapshots)
}

// Unavailable lists the resources currently marked unavailable, sorted.
// A resource can be unavailable before it ever produced a snapshot.
func (c *Cache) Unavailable() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.unavailable)
}

// History returns the retained events for resource, oldest first.
func (c *Cache) History(resource string) []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h := c.history[resource]
	out := make([]Event, len(h))
	copy(out, h)
	return out
}

// Subscribe registers a subscriber for all future events. The returned
// cancel function unregisters it and closes the channel.
func (c *Cache) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	sub := &subscriber{ch: make(chan Event, buffer)}
	c.subscribers[id] = sub
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Subscribers returns the number of registered subscribers.
func (c *Cache) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribers)
}

// Dropped returns how many events were discarded because a subscriber's
// buffer was full.
func (c *Cache) Dropped() uint64 {
	return c.dropped.Load()
}

// publishLocked appends ev to history and delivers it. Caller holds c.mu.
func (c *Cache) publishLocked(ev Event) {
	h := append(c.history[ev.Resource], ev)
	if over := len(h) - c.config.HistoryLimit; over > 0 {
		h = append([]Event(nil), h[over:]...)
	}
	c.history[ev.Resource] = h

	ids := make([]uint64, 0, len(c.subscribers))
	for id := range c.subscribers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		select {
		case c.subscribers[id].ch <- ev:
		default:
			c.dropped.Add(1)
		}
	}
}
