package normalize

import (
	"container/list"
	"sync"
	"time"
)

// dedup is a TTL-bound LRU of seen event ids. Bounded so a hot source
// cannot grow it without limit; expiry implements the dedup window.
type dedup struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	ll    *list.List               // most recent at front
	items map[string]*list.Element // id -> element
}

type dedupEntry struct {
	id  string
	exp time.Time
}

func newDedup(maxKeys int, ttl time.Duration) *dedup {
	if maxKeys <= 0 {
		maxKeys = 50_000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &dedup{
		cap:   maxKeys,
		ttl:   ttl,
		ll:    list.New(),
		items: make(map[string]*list.Element, maxKeys),
	}
}

// seenAndRecord atomically checks whether id was seen inside the window
// and records it if not. Returns true if it was already seen.
func (d *dedup) seenAndRecord(id string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.items[id]; ok {
		en := el.Value.(dedupEntry)
		if now.Before(en.exp) {
			d.ll.MoveToFront(el)
			return true
		}
		// expired entry; fall through and re-record
		d.ll.Remove(el)
		delete(d.items, id)
	}

	el := d.ll.PushFront(dedupEntry{id: id, exp: now.Add(d.ttl)})
	d.items[id] = el

	// Evict over capacity, then sweep expired entries at the tail.
	for d.ll.Len() > d.cap {
		d.evictTail()
	}
	for {
		t := d.ll.Back()
		if t == nil || now.Before(t.Value.(dedupEntry).exp) {
			break
		}
		d.evictTail()
	}
	return false
}

func (d *dedup) evictTail() {
	t := d.ll.Back()
	if t == nil {
		return
	}
	d.ll.Remove(t)
	delete(d.items, t.Value.(dedupEntry).id)
}

func (d *dedup) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ll.Len()
}
