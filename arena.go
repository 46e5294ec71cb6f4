package tmap

import "unsafe"

// handle is an index into the entry arena. Chain and tree links are stored
// as handles instead of raw pointers, so rotations, splits and bucket
// conversions are plain index reassignments and can never leave a dangling
// reference into freed memory.
type handle int32

// nilHandle marks the absence of a linked entry.
const nilHandle handle = -1

// node is one stored key-value pair. A chain entry uses only next; a tree
// entry additionally uses prev/parent/left/right/red. hash and seq are
// immutable for the lifetime of the entry: hash is the spread hash computed
// at creation, seq is the creation sequence number used as the tie-break
// order for exact hash collisions inside a tree bucket.
type node[K comparable, V any] struct {
	hash  uint64
	seq   uint64
	key   K
	value V

	next   handle // chain link and insertion-order link; free-list link while unallocated
	prev   handle // insertion-order back link, tree buckets only
	parent handle
	left   handle
	right  handle
	red    bool
}

// arena owns every node of one table. Freed nodes are threaded onto a free
// list through their next field and reused before the backing slice grows.
type arena[K comparable, V any] struct {
	nodes []node[K, V]
	free  handle
}

func (a *arena[K, V]) at(h handle) *node[K, V] {
	return &a.nodes[h]
}

// alloc returns a handle to a fresh node. Any *node obtained before a call
// to alloc must be considered invalid afterwards: growing the backing slice
// moves the nodes.
func (a *arena[K, V]) alloc(hash, seq uint64, key K, value V) handle {
	n := node[K, V]{
		hash:   hash,
		seq:    seq,
		key:    key,
		value:  value,
		next:   nilHandle,
		prev:   nilHandle,
		parent: nilHandle,
		left:   nilHandle,
		right:  nilHandle,
	}
	if a.free != nilHandle {
		h := a.free
		a.free = a.nodes[h].next
		a.nodes[h] = n
		return h
	}
	if len(a.nodes) == cap(a.nodes) {
		a.grow()
	}
	a.nodes = append(a.nodes, n)
	return handle(len(a.nodes) - 1)
}

// release zeroes the node so the key and value no longer pin anything for
// the GC, and pushes it onto the free list.
func (a *arena[K, V]) release(h handle) {
	a.nodes[h] = node[K, V]{
		next:   a.free,
		prev:   nilHandle,
		parent: nilHandle,
		left:   nilHandle,
		right:  nilHandle,
	}
	a.free = h
}

// reset drops every node at once. Used by Clear; per-entry release is not
// needed because the whole backing slice is discarded.
func (a *arena[K, V]) reset() {
	a.nodes = nil
	a.free = nilHandle
}

// grow reallocates the backing slice, rounding the new slab so that it
// occupies whole cache lines.
func (a *arena[K, V]) grow() {
	nodeSize := unsafe.Sizeof(node[K, V]{})
	newCap := cap(a.nodes) * 2
	if newCap == 0 {
		newCap = 16
	}
	slab := (uintptr(newCap)*nodeSize + CacheLineSize - 1) / CacheLineSize * CacheLineSize
	newCap = int(slab / nodeSize)
	nodes := make([]node[K, V], len(a.nodes), newCap)
	copy(nodes, a.nodes)
	a.nodes = nodes
}
