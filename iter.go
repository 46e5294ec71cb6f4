package tmap

// Range calls fn for every entry until fn returns false. The visit order is
// unspecified. Range captures the modification counter at the start and
// rechecks it after every callback: if fn (or anything else) structurally
// mutates the map mid-iteration, Range stops and returns
// ErrConcurrentModification instead of silently skipping or duplicating
// entries. Value updates of existing keys are not structural and are allowed.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) error {
	if m.size == 0 || len(m.buckets) == 0 {
		return nil
	}
	mc := m.modCount
	for i := range m.buckets {
		s := &m.buckets[i]
		var e handle
		switch s.kind {
		case slotEmpty:
			continue
		case slotChain:
			e = s.head
		case slotTree:
			e = s.first
		}
		for e != nilHandle {
			n := m.node(e)
			if !fn(n.key, n.value) {
				return nil
			}
			if m.modCount != mc {
				return ErrConcurrentModification
			}
			e = n.next
		}
	}
	return nil
}

// Iterator is a stateful cursor over a Map's entries. It is invalidated by
// any structural mutation of the map: the next call to Next then fails and
// Err reports ErrConcurrentModification.
//
// Usage:
//
//	it := m.Iter()
//	for it.Next() {
//		_ = it.Key()
//		_ = it.Value()
//	}
//	if err := it.Err(); err != nil {
//		// the map was mutated while iterating
//	}
type Iterator[K comparable, V any] struct {
	m        *Map[K, V]
	expected uint64
	bucket   int
	next     handle
	current  handle
	err      error
}

// Iter returns an iterator positioned before the first entry.
func (m *Map[K, V]) Iter() *Iterator[K, V] {
	it := &Iterator[K, V]{
		m:        m,
		expected: m.modCount,
		next:     nilHandle,
		current:  nilHandle,
	}
	return it
}

// Next advances to the next entry. It returns false when the iteration is
// exhausted or has failed; distinguish the two with Err.
func (it *Iterator[K, V]) Next() bool {
	if it.err != nil {
		return false
	}
	m := it.m
	if m.modCount != it.expected {
		it.err = ErrConcurrentModification
		it.current = nilHandle
		return false
	}
	for it.next == nilHandle {
		if it.bucket >= len(m.buckets) {
			it.current = nilHandle
			return false
		}
		s := &m.buckets[it.bucket]
		it.bucket++
		switch s.kind {
		case slotChain:
			it.next = s.head
		case slotTree:
			it.next = s.first
		}
	}
	it.current = it.next
	it.next = m.node(it.current).next
	return true
}

// Key returns the key of the current entry, or the zero value when no entry
// is current (before the first Next, after exhaustion, or after a failure).
func (it *Iterator[K, V]) Key() K {
	if it.current == nilHandle {
		var zero K
		return zero
	}
	return it.m.node(it.current).key
}

// Value returns the value of the current entry, or the zero value when no
// entry is current.
func (it *Iterator[K, V]) Value() V {
	if it.current == nilHandle {
		var zero V
		return zero
	}
	return it.m.node(it.current).value
}

// Err returns the error that terminated the iteration, if any.
func (it *Iterator[K, V]) Err() error {
	return it.err
}
