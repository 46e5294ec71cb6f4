package tmap

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Stats is a point-in-time snapshot of a Map's internal shape.
type Stats struct {
	Capacity     int
	Size         int
	Threshold    int
	LoadFactor   float64
	EmptyBuckets int
	ChainBuckets int
	TreeBuckets  int
	MaxChainLen  int
	TotalGrowths uint32
}

// Stats collects a snapshot. Capacity is zero until the first insertion
// materializes the bucket array.
func (m *Map[K, V]) Stats() Stats {
	s := Stats{
		Capacity:     len(m.buckets),
		Size:         m.size,
		Threshold:    m.threshold,
		LoadFactor:   m.loadFactor,
		TotalGrowths: m.growths,
	}
	for i := range m.buckets {
		b := &m.buckets[i]
		switch b.kind {
		case slotEmpty:
			s.EmptyBuckets++
		case slotChain:
			s.ChainBuckets++
			if l := m.linkageCount(b.head, m.size+1); l > s.MaxChainLen {
				s.MaxChainLen = l
			}
		case slotTree:
			s.TreeBuckets++
		}
	}
	return s
}

// String returns a string representation of the stats.
func (s *Stats) String() string {
	var sb strings.Builder
	sb.WriteString("Stats{\n")
	sb.WriteString(fmt.Sprintf("Capacity:     %d\n", s.Capacity))
	sb.WriteString(fmt.Sprintf("Size:         %d\n", s.Size))
	sb.WriteString(fmt.Sprintf("Threshold:    %d\n", s.Threshold))
	sb.WriteString(fmt.Sprintf("LoadFactor:   %.2f\n", s.LoadFactor))
	sb.WriteString(fmt.Sprintf("EmptyBuckets: %d\n", s.EmptyBuckets))
	sb.WriteString(fmt.Sprintf("ChainBuckets: %d\n", s.ChainBuckets))
	sb.WriteString(fmt.Sprintf("TreeBuckets:  %d\n", s.TreeBuckets))
	sb.WriteString(fmt.Sprintf("MaxChainLen:  %d\n", s.MaxChainLen))
	sb.WriteString(fmt.Sprintf("TotalGrowths: %d\n", s.TotalGrowths))
	sb.WriteString("}\n")
	return sb.String()
}

// CheckIntegrity walks the whole table and verifies its structural
// invariants: acyclic chains, entries located in the bucket their hash maps
// to, the red-black discipline of every tree bucket, agreement between tree
// shape and order linkage, and the size counter. It returns an error wrapping
// ErrConcurrentModification on the first violation found.
//
// This is a best-effort misuse probe. It detects the kind of damage left
// behind by unsynchronized concurrent mutation; it cannot make such use safe.
func (m *Map[K, V]) CheckIntegrity() error {
	if m.buckets == nil {
		if m.size != 0 {
			return errors.Wrapf(ErrConcurrentModification,
				"no bucket array but size is %d", m.size)
		}
		return nil
	}
	mask := uint64(len(m.buckets) - 1)
	total := 0
	for i := range m.buckets {
		s := &m.buckets[i]
		switch s.kind {
		case slotEmpty:
			continue

		case slotChain:
			c := 0
			for e := s.head; e != nilHandle; e = m.node(e).next {
				n := m.node(e)
				if n.hash&mask != uint64(i) {
					return errors.Wrapf(ErrConcurrentModification,
						"bucket %d: entry hashed to bucket %d", i, n.hash&mask)
				}
				c++
				if c > m.size {
					return errors.Wrapf(ErrConcurrentModification,
						"bucket %d: chain is cyclic", i)
				}
			}
			total += c

		case slotTree:
			c := 0
			for e := s.first; e != nilHandle; e = m.node(e).next {
				n := m.node(e)
				if n.hash&mask != uint64(i) {
					return errors.Wrapf(ErrConcurrentModification,
						"bucket %d: entry hashed to bucket %d", i, n.hash&mask)
				}
				c++
				if c > m.size {
					return errors.Wrapf(ErrConcurrentModification,
						"bucket %d: order linkage is cyclic", i)
				}
			}
			tc, _, err := m.checkTree(s.head, nilHandle, i)
			if err != nil {
				return err
			}
			if tc != c {
				return errors.Wrapf(ErrConcurrentModification,
					"bucket %d: tree has %d entries, order linkage %d", i, tc, c)
			}
			total += c
		}
	}
	if total != m.size {
		return errors.Wrapf(ErrConcurrentModification,
			"counted %d entries, size is %d", total, m.size)
	}
	return nil
}

// checkTree verifies the red-black invariants below h: correct parent links,
// (hash, seq) ordering, no red node with a red parent, and equal black
// height on every path. It returns the subtree entry count and black height.
func (m *Map[K, V]) checkTree(h, parent handle, bucket int) (count, blackHeight int, err error) {
	if h == nilHandle {
		return 0, 1, nil
	}
	n := m.node(h)
	if n.parent != parent {
		return 0, 0, errors.Wrapf(ErrConcurrentModification,
			"bucket %d: broken parent link", bucket)
	}
	if parent == nilHandle && n.red {
		return 0, 0, errors.Wrapf(ErrConcurrentModification,
			"bucket %d: red root", bucket)
	}
	if n.red && parent != nilHandle && m.node(parent).red {
		return 0, 0, errors.Wrapf(ErrConcurrentModification,
			"bucket %d: red entry with red parent", bucket)
	}
	if n.left != nilHandle {
		l := m.node(n.left)
		if !nodeLess(l.hash, l.seq, n.hash, n.seq) {
			return 0, 0, errors.Wrapf(ErrConcurrentModification,
				"bucket %d: left child out of order", bucket)
		}
	}
	if n.right != nilHandle {
		r := m.node(n.right)
		if nodeLess(r.hash, r.seq, n.hash, n.seq) {
			return 0, 0, errors.Wrapf(ErrConcurrentModification,
				"bucket %d: right child out of order", bucket)
		}
	}
	lc, lb, err := m.checkTree(n.left, h, bucket)
	if err != nil {
		return 0, 0, err
	}
	rc, rb, err := m.checkTree(n.right, h, bucket)
	if err != nil {
		return 0, 0, err
	}
	if lb != rb {
		return 0, 0, errors.Wrapf(ErrConcurrentModification,
			"bucket %d: black height mismatch %d != %d", bucket, lb, rb)
	}
	if !n.red {
		lb++
	}
	return lc + rc + 1, lb, nil
}
