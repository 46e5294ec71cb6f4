// Package tmap provides a single-goroutine hash table with bounded
// worst-case bucket degradation.
//
// Entries are stored in power-of-two sized bucket array. Colliding entries
// form a singly-linked chain per bucket; a chain that grows past a threshold
// on a large enough table is escalated to a red-black tree, bounding lookups
// in that bucket to O(log n) even under adversarial hash collisions. When the
// load factor is exceeded the table doubles and every bucket is re-partitioned
// into exactly two destination buckets by testing a single extra hash bit,
// preserving the relative order of each bucket's entries.
//
// Map is not safe for concurrent use. A modification counter gives
// best-effort, fail-fast detection of concurrent misuse during iteration, but
// callers that need concurrency must synchronize externally or use a
// different, explicitly concurrent design.
package tmap

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
)

const (
	// defaultCapacity is the bucket count used when WithCapacity is not given.
	defaultCapacity = 16
	// maxCapacity caps table growth. Once reached, the table stops resizing
	// and buckets grow without bound instead of overflowing the capacity math.
	maxCapacity = 1 << 30
	// defaultLoadFactor is the size/capacity ratio that triggers a resize.
	defaultLoadFactor = 0.75
	// treeifyThreshold escalates a bucket to a tree when an insertion lands
	// on a chain already holding this many entries, provided the table
	// capacity is at least minTreeifyCapacity.
	treeifyThreshold = 8
	// untreeifyThreshold is the entry count at or below which a tree bucket
	// is converted back to a chain (after a removal or a resize split).
	untreeifyThreshold = 6
	// minTreeifyCapacity is the smallest table capacity at which buckets may
	// be treeified. Below it, an overlong chain triggers a resize instead:
	// spreading entries over more buckets beats growing trees in a small table.
	minTreeifyCapacity = 64
)

type slotKind uint8

const (
	slotEmpty slotKind = iota
	slotChain
	slotTree
)

// slot is one bucket position: a tagged variant over the three bucket
// representations. head and first are meaningful only for the kinds that use
// them (head: chain head or tree root; first: insertion-order head, tree
// buckets only). Keeping first separate from the tree root is what lets
// untreeify and split reconstruct the original chain order exactly.
type slot struct {
	head  handle
	first handle
	kind  slotKind
}

// Map is a hash table from K to V with per-bucket tree escalation.
//
// The zero Map is not usable; construct with New or NewWithHasher. A Map must
// not be mutated from multiple goroutines, and never concurrently with
// iteration: iteration fails fast with ErrConcurrentModification when it
// detects such use.
type Map[K comparable, V any] struct {
	arena      arena[K, V]
	buckets    []slot
	size       int
	threshold  int
	loadFactor float64
	initialCap int // materialized lazily on first insert

	modCount uint64 // bumped on every structural mutation
	seq      uint64 // creation sequence, tree tie-break order
	seed     uint64
	keyHash  HashFunc[K]
	growths  uint32
}

// Config defines configurable Map options.
type Config struct {
	capacity   int
	loadFactor float64
}

// WithCapacity configures the initial bucket count. The value is rounded up
// to the next power of two, clamped to the maximum capacity, and the bucket
// array is allocated lazily on the first insertion. Non-positive values are a
// construction error.
func WithCapacity(n int) func(*Config) {
	return func(c *Config) {
		c.capacity = n
	}
}

// WithLoadFactor configures the size/capacity ratio that triggers a resize.
// The value must be positive and finite; anything else is a construction
// error.
func WithLoadFactor(f float64) func(*Config) {
	return func(c *Config) {
		c.loadFactor = f
	}
}

// New creates a Map using the built-in hash function for K.
func New[K comparable, V any](options ...func(*Config)) (*Map[K, V], error) {
	return NewWithHasher[K, V](nil, options...)
}

// NewWithHasher creates a Map with a custom key hash function.
// A nil keyHash selects the built-in hasher. Equal keys must produce equal
// hashes; the hash of a key must not change while it is stored.
func NewWithHasher[K comparable, V any](
	keyHash HashFunc[K],
	options ...func(*Config),
) (*Map[K, V], error) {
	c := &Config{
		capacity:   defaultCapacity,
		loadFactor: defaultLoadFactor,
	}
	for _, o := range options {
		o(c)
	}

	if c.capacity <= 0 {
		return nil, errors.Wrapf(ErrInvalidCapacity, "got %d", c.capacity)
	}
	if c.loadFactor <= 0 || math.IsNaN(c.loadFactor) || math.IsInf(c.loadFactor, 0) {
		return nil, errors.Wrapf(ErrInvalidLoadFactor, "got %v", c.loadFactor)
	}

	m := &Map[K, V]{
		arena:      arena[K, V]{free: nilHandle},
		loadFactor: c.loadFactor,
		initialCap: nextPowOf2(min(c.capacity, maxCapacity)),
		seed:       rand.Uint64(),
		keyHash:    keyHash,
	}
	if m.keyHash == nil {
		m.keyHash = defaultHasher[K]()
	}
	return m, nil
}

func (m *Map[K, V]) node(h handle) *node[K, V] {
	return m.arena.at(h)
}

func (m *Map[K, V]) hashOf(key K) uint64 {
	return spread(m.keyHash(key, m.seed))
}

func (m *Map[K, V]) bucketIndex(hash uint64) uint64 {
	return hash & uint64(len(m.buckets)-1)
}

func (m *Map[K, V]) newNode(hash uint64, key K, value V) handle {
	m.seq++
	return m.arena.alloc(hash, m.seq, key, value)
}

// initTable materializes the bucket array. Deferred until the first
// insertion so that constructing unused maps stays cheap.
func (m *Map[K, V]) initTable() {
	m.buckets = make([]slot, m.initialCap)
	m.threshold = thresholdFor(m.initialCap, m.loadFactor)
}

// thresholdFor computes floor(capacity * loadFactor), saturating at MaxInt
// when an extreme load factor overflows the int range.
func thresholdFor(capacity int, loadFactor float64) int {
	t := float64(capacity) * loadFactor
	if t >= math.MaxInt {
		return math.MaxInt
	}
	return int(t)
}

// Load retrieves the value stored for key.
func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	e := m.findNode(key)
	if e == nilHandle {
		return
	}
	return m.node(e).value, true
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	return m.findNode(key) != nilHandle
}

// Size returns the number of entries currently stored.
func (m *Map[K, V]) Size() int {
	return m.size
}

// Store sets the value for key, replacing any previous value.
func (m *Map[K, V]) Store(key K, value V) {
	m.put(key, value, false)
}

// Swap stores value for key and returns the previous value, if any.
func (m *Map[K, V]) Swap(key K, value V) (previous V, loaded bool) {
	return m.put(key, value, false)
}

// LoadOrStore stores value only if key is absent. It returns the value left
// in the map and whether the key was already present.
func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	prev, loaded := m.put(key, value, true)
	if loaded {
		return prev, true
	}
	return value, false
}

// Delete removes the entry for key, if present.
func (m *Map[K, V]) Delete(key K) {
	m.removeNode(key)
}

// LoadAndDelete removes the entry for key and returns its value, if any.
func (m *Map[K, V]) LoadAndDelete(key K) (value V, loaded bool) {
	return m.removeNode(key)
}

// Clear removes all entries. The bucket array and the entry arena are
// discarded wholesale; no per-entry work is done.
func (m *Map[K, V]) Clear() {
	if m.buckets == nil && m.size == 0 {
		return
	}
	m.modCount++
	m.buckets = nil
	m.arena.reset()
	m.size = 0
	m.threshold = 0
}

func (m *Map[K, V]) findNode(key K) handle {
	if m.size == 0 || len(m.buckets) == 0 {
		return nilHandle
	}
	hash := m.hashOf(key)
	s := &m.buckets[m.bucketIndex(hash)]
	switch s.kind {
	case slotChain:
		for e := s.head; e != nilHandle; e = m.node(e).next {
			n := m.node(e)
			if n.hash == hash && n.key == key {
				return e
			}
		}
	case slotTree:
		return m.treeFind(s.head, hash, key)
	}
	return nilHandle
}

func (m *Map[K, V]) put(key K, value V, onlyIfAbsent bool) (previous V, loaded bool) {
	if m.buckets == nil {
		m.initTable()
	}
	hash := m.hashOf(key)
	idx := m.bucketIndex(hash)
	s := &m.buckets[idx]

	switch s.kind {
	case slotEmpty:
		e := m.newNode(hash, key, value)
		s.kind = slotChain
		s.head = e

	case slotChain:
		binCount := 0
		tail := nilHandle
		for e := s.head; e != nilHandle; e = m.node(e).next {
			n := m.node(e)
			if n.hash == hash && n.key == key {
				previous = n.value
				if !onlyIfAbsent {
					n.value = value
				}
				return previous, true
			}
			tail = e
			binCount++
		}
		e := m.newNode(hash, key, value)
		m.node(tail).next = e
		if binCount >= treeifyThreshold {
			m.treeifyBin(idx)
		}

	case slotTree:
		previous, loaded = m.putTreeVal(s, hash, key, value, onlyIfAbsent)
		if loaded {
			return previous, true
		}
	}

	m.modCount++
	m.size++
	if m.size > m.threshold {
		m.resize()
	}
	return previous, false
}

func (m *Map[K, V]) removeNode(key K) (value V, loaded bool) {
	if m.size == 0 || len(m.buckets) == 0 {
		return
	}
	hash := m.hashOf(key)
	idx := m.bucketIndex(hash)
	s := &m.buckets[idx]

	switch s.kind {
	case slotChain:
		prev := nilHandle
		for e := s.head; e != nilHandle; e = m.node(e).next {
			n := m.node(e)
			if n.hash == hash && n.key == key {
				value = n.value
				if prev == nilHandle {
					s.head = n.next
					if s.head == nilHandle {
						s.kind = slotEmpty
					}
				} else {
					m.node(prev).next = n.next
				}
				m.arena.release(e)
				m.modCount++
				m.size--
				return value, true
			}
			prev = e
		}

	case slotTree:
		e := m.treeFind(s.head, hash, key)
		if e == nilHandle {
			return
		}
		value = m.node(e).value
		m.removeTreeNode(s, e)
		m.modCount++
		m.size--
		return value, true
	}
	return
}

// treeifyBin converts the chain at idx to a tree, unless the table is still
// below minTreeifyCapacity, in which case the table is resized instead to
// relieve the collision pressure.
func (m *Map[K, V]) treeifyBin(idx uint64) {
	if len(m.buckets) < minTreeifyCapacity {
		m.resize()
		return
	}
	m.treeify(&m.buckets[idx])
}

// resize doubles the bucket array and re-partitions every bucket. Because
// capacities are powers of two, an entry's new index differs from its old one
// only in bit oldCap of its stored hash: testing that single bit sends it
// either to the same index (low half) or to index+oldCap (high half), with
// the relative order of each half preserved. No hash is recomputed.
func (m *Map[K, V]) resize() {
	oldCap := len(m.buckets)
	if oldCap >= maxCapacity {
		// Growth is exhausted. Freeze the threshold so inserts keep working
		// and buckets absorb the growth.
		m.threshold = math.MaxInt
		return
	}

	newCap := oldCap << 1
	newBuckets := make([]slot, newCap)

	for j := range m.buckets {
		s := &m.buckets[j]
		switch s.kind {
		case slotEmpty:
			continue

		case slotChain:
			if m.node(s.head).next == nilHandle {
				// Single entry: relocate directly by the new mask.
				e := s.head
				d := &newBuckets[m.node(e).hash&uint64(newCap-1)]
				d.kind = slotChain
				d.head = e
				continue
			}
			var loHead, loTail, hiHead, hiTail handle = nilHandle, nilHandle, nilHandle, nilHandle
			var next handle
			for e := s.head; e != nilHandle; e = next {
				n := m.node(e)
				next = n.next
				n.next = nilHandle
				if n.hash&uint64(oldCap) == 0 {
					if loTail == nilHandle {
						loHead = e
					} else {
						m.node(loTail).next = e
					}
					loTail = e
				} else {
					if hiTail == nilHandle {
						hiHead = e
					} else {
						m.node(hiTail).next = e
					}
					hiTail = e
				}
			}
			if loHead != nilHandle {
				newBuckets[j] = slot{kind: slotChain, head: loHead, first: nilHandle}
			}
			if hiHead != nilHandle {
				newBuckets[j+oldCap] = slot{kind: slotChain, head: hiHead, first: nilHandle}
			}

		case slotTree:
			m.splitTree(s, newBuckets, j, oldCap)
		}
	}

	m.buckets = newBuckets
	m.threshold = thresholdFor(newCap, m.loadFactor)
	m.growths++
}
