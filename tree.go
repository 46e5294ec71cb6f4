package tmap

// Tree buckets are red-black trees ordered by (hash, seq): the stored spread
// hash first, with exact collisions broken by the entry's creation sequence
// number. Both components are immutable, so the relative order of any two
// entries is the same in every tree they ever occupy, across any number of
// resizes. Alongside the tree shape, entries keep their insertion-order
// next/prev linkage (slot.first); untreeify and split walk that linkage, so
// converting back to a chain reproduces the original chain order.

// nodeLess is the total order of tree positions.
func nodeLess(h1, s1, h2, s2 uint64) bool {
	if h1 != h2 {
		return h1 < h2
	}
	return s1 < s2
}

// treeFind locates the entry for key in the tree rooted at root. It descends
// by hash; a probe key carries no sequence number, so at a hash-equal node
// that fails the equality check both subtrees of the hash-equal region must
// be searched. The fan-out is bounded by the number of exact hash collisions.
func (m *Map[K, V]) treeFind(root handle, hash uint64, key K) handle {
	p := root
	for p != nilHandle {
		n := m.node(p)
		if hash < n.hash {
			p = n.left
			continue
		}
		if hash > n.hash {
			p = n.right
			continue
		}
		if n.key == key {
			return p
		}
		if q := m.treeFind(n.left, hash, key); q != nilHandle {
			return q
		}
		p = n.right
	}
	return nilHandle
}

// putTreeVal finds or inserts key in the tree bucket s. A new entry is placed
// by (hash, seq) and appended to the insertion-order linkage tail.
func (m *Map[K, V]) putTreeVal(
	s *slot,
	hash uint64,
	key K,
	value V,
	onlyIfAbsent bool,
) (previous V, loaded bool) {
	if e := m.treeFind(s.head, hash, key); e != nilHandle {
		n := m.node(e)
		previous = n.value
		if !onlyIfAbsent {
			n.value = value
		}
		return previous, true
	}

	x := m.newNode(hash, key, value)
	xn := m.node(x)

	p := s.head
	for {
		n := m.node(p)
		if nodeLess(xn.hash, xn.seq, n.hash, n.seq) {
			if n.left == nilHandle {
				n.left = x
				break
			}
			p = n.left
		} else {
			if n.right == nilHandle {
				n.right = x
				break
			}
			p = n.right
		}
	}
	xn.parent = p
	xn.red = true
	s.head = m.balanceInsertion(s.head, x)

	tail := s.first
	for m.node(tail).next != nilHandle {
		tail = m.node(tail).next
	}
	m.node(tail).next = x
	xn.prev = tail
	return previous, false
}

// treeify converts the chain bucket s into a tree bucket. The existing chain
// becomes the insertion-order linkage unchanged.
func (m *Map[K, V]) treeify(s *slot) {
	prev := nilHandle
	for e := s.head; e != nilHandle; e = m.node(e).next {
		m.node(e).prev = prev
		prev = e
	}
	s.first = s.head
	s.head = m.buildTree(s.first)
	s.kind = slotTree
}

// buildTree builds a tree over the entries on the next-linkage starting at
// first, leaving the linkage itself untouched.
func (m *Map[K, V]) buildTree(first handle) handle {
	root := nilHandle
	for e := first; e != nilHandle; e = m.node(e).next {
		root = m.treeInsert(root, e)
	}
	return root
}

// treeInsert places x (by hash, seq) into the tree rooted at root and
// rebalances. x's shape fields are reset here; stale links from a previous
// tree life must not leak into the new tree.
func (m *Map[K, V]) treeInsert(root, x handle) handle {
	xn := m.node(x)
	xn.parent = nilHandle
	xn.left = nilHandle
	xn.right = nilHandle
	if root == nilHandle {
		xn.red = false
		return x
	}
	p := root
	for {
		n := m.node(p)
		if nodeLess(xn.hash, xn.seq, n.hash, n.seq) {
			if n.left == nilHandle {
				n.left = x
				break
			}
			p = n.left
		} else {
			if n.right == nilHandle {
				n.right = x
				break
			}
			p = n.right
		}
	}
	xn.parent = p
	xn.red = true
	return m.balanceInsertion(root, x)
}

// untreeify converts the tree bucket s back into a chain. The chain is the
// insertion-order linkage, so the original order is reconstructed exactly.
func (m *Map[K, V]) untreeify(s *slot) {
	for e := s.first; e != nilHandle; e = m.node(e).next {
		n := m.node(e)
		n.prev = nilHandle
		n.parent = nilHandle
		n.left = nilHandle
		n.right = nilHandle
		n.red = false
	}
	s.head = s.first
	s.first = nilHandle
	s.kind = slotChain
}

// linkageCount counts entries on the next-linkage, stopping at limit.
func (m *Map[K, V]) linkageCount(e handle, limit int) int {
	c := 0
	for e != nilHandle && c < limit {
		c++
		e = m.node(e).next
	}
	return c
}

// removeTreeNode unlinks p from the order linkage and the tree shape of
// bucket s, rebalances, and releases the entry. If the removal leaves the
// bucket at or below untreeifyThreshold entries, the bucket reverts to a
// chain.
func (m *Map[K, V]) removeTreeNode(s *slot, p handle) {
	pn := m.node(p)

	if pn.prev == nilHandle {
		s.first = pn.next
	} else {
		m.node(pn.prev).next = pn.next
	}
	if pn.next != nilHandle {
		m.node(pn.next).prev = pn.prev
	}
	if s.first == nilHandle {
		*s = slot{kind: slotEmpty}
		m.arena.release(p)
		return
	}

	root := s.head
	pl, pr := pn.left, pn.right
	var replacement handle

	if pl != nilHandle && pr != nilHandle {
		// Two children: swap p with its in-order successor, then delete at
		// the successor's old position.
		sh := pr
		for m.node(sh).left != nilHandle {
			sh = m.node(sh).left
		}
		sn := m.node(sh)
		sn.red, pn.red = pn.red, sn.red
		sr := sn.right
		pp := pn.parent
		if sh == pr {
			pn.parent = sh
			sn.right = p
		} else {
			sp := sn.parent
			pn.parent = sp
			if sp != nilHandle {
				spn := m.node(sp)
				if sh == spn.left {
					spn.left = p
				} else {
					spn.right = p
				}
			}
			sn.right = pr
			m.node(pr).parent = sh
		}
		pn.left = nilHandle
		pn.right = sr
		if sr != nilHandle {
			m.node(sr).parent = p
		}
		sn.left = pl
		m.node(pl).parent = sh
		sn.parent = pp
		if pp == nilHandle {
			root = sh
		} else if p == m.node(pp).left {
			m.node(pp).left = sh
		} else {
			m.node(pp).right = sh
		}
		if sr != nilHandle {
			replacement = sr
		} else {
			replacement = p
		}
	} else if pl != nilHandle {
		replacement = pl
	} else if pr != nilHandle {
		replacement = pr
	} else {
		replacement = p
	}

	if replacement != p {
		pp := pn.parent
		m.node(replacement).parent = pp
		if pp == nilHandle {
			root = replacement
		} else if p == m.node(pp).left {
			m.node(pp).left = replacement
		} else {
			m.node(pp).right = replacement
		}
		pn.left = nilHandle
		pn.right = nilHandle
		pn.parent = nilHandle
	}

	if !pn.red {
		root = m.balanceDeletion(root, replacement)
	}

	if replacement == p {
		// p was a leaf: detach it from its parent now that rebalancing is done.
		pp := pn.parent
		pn.parent = nilHandle
		if pp != nilHandle {
			ppn := m.node(pp)
			if p == ppn.left {
				ppn.left = nilHandle
			} else {
				ppn.right = nilHandle
			}
		}
	}

	s.head = root
	m.arena.release(p)

	if m.linkageCount(s.first, untreeifyThreshold+1) <= untreeifyThreshold {
		m.untreeify(s)
	}
}

// splitTree partitions tree bucket s into the low and high destination
// buckets of a resize, by bit oldCap of each entry's stored hash. The order
// linkage is rebuilt per half in the original relative order; a half at or
// below untreeifyThreshold entries becomes a chain, a larger half a tree.
func (m *Map[K, V]) splitTree(s *slot, newBuckets []slot, j, oldCap int) {
	var loHead, loTail, hiHead, hiTail handle = nilHandle, nilHandle, nilHandle, nilHandle
	lc, hc := 0, 0
	var next handle
	for e := s.first; e != nilHandle; e = next {
		n := m.node(e)
		next = n.next
		n.next = nilHandle
		n.prev = nilHandle
		if n.hash&uint64(oldCap) == 0 {
			if loTail == nilHandle {
				loHead = e
			} else {
				m.node(loTail).next = e
				n.prev = loTail
			}
			loTail = e
			lc++
		} else {
			if hiTail == nilHandle {
				hiHead = e
			} else {
				m.node(hiTail).next = e
				n.prev = hiTail
			}
			hiTail = e
			hc++
		}
	}
	if loHead != nilHandle {
		m.installSplit(&newBuckets[j], loHead, lc)
	}
	if hiHead != nilHandle {
		m.installSplit(&newBuckets[j+oldCap], hiHead, hc)
	}
}

// installSplit installs one split half into its destination slot, demoting
// to a chain when the half is small enough.
func (m *Map[K, V]) installSplit(dst *slot, head handle, count int) {
	if count <= untreeifyThreshold {
		dst.kind = slotChain
		dst.head = head
		dst.first = nilHandle
		for e := head; e != nilHandle; e = m.node(e).next {
			n := m.node(e)
			n.prev = nilHandle
			n.parent = nilHandle
			n.left = nilHandle
			n.right = nilHandle
			n.red = false
		}
		return
	}
	dst.kind = slotTree
	dst.first = head
	dst.head = m.buildTree(head)
}

// rotateLeft rotates p's right child above p and returns the (possibly new)
// root.
func (m *Map[K, V]) rotateLeft(root, p handle) handle {
	if p == nilHandle {
		return root
	}
	pn := m.node(p)
	r := pn.right
	if r == nilHandle {
		return root
	}
	rn := m.node(r)

	rl := rn.left
	pn.right = rl
	if rl != nilHandle {
		m.node(rl).parent = p
	}
	pp := pn.parent
	rn.parent = pp
	if pp == nilHandle {
		root = r
		rn.red = false
	} else if m.node(pp).left == p {
		m.node(pp).left = r
	} else {
		m.node(pp).right = r
	}
	rn.left = p
	pn.parent = r
	return root
}

// rotateRight rotates p's left child above p and returns the (possibly new)
// root.
func (m *Map[K, V]) rotateRight(root, p handle) handle {
	if p == nilHandle {
		return root
	}
	pn := m.node(p)
	l := pn.left
	if l == nilHandle {
		return root
	}
	ln := m.node(l)

	lr := ln.right
	pn.left = lr
	if lr != nilHandle {
		m.node(lr).parent = p
	}
	pp := pn.parent
	ln.parent = pp
	if pp == nilHandle {
		root = l
		ln.red = false
	} else if m.node(pp).right == p {
		m.node(pp).right = l
	} else {
		m.node(pp).left = l
	}
	ln.right = p
	pn.parent = l
	return root
}

// balanceInsertion restores the red-black invariants after x was linked in
// as a red leaf: the root stays black, no red node has a red parent, and
// every root-to-leaf path keeps an equal black height.
func (m *Map[K, V]) balanceInsertion(root, x handle) handle {
	m.node(x).red = true
	for {
		xp := m.node(x).parent
		if xp == nilHandle {
			m.node(x).red = false
			return x
		}
		xpp := m.node(xp).parent
		if !m.node(xp).red || xpp == nilHandle {
			return root
		}
		xppn := m.node(xpp)
		if xp == xppn.left {
			xppr := xppn.right
			if xppr != nilHandle && m.node(xppr).red {
				m.node(xppr).red = false
				m.node(xp).red = false
				xppn.red = true
				x = xpp
				continue
			}
			if x == m.node(xp).right {
				x = xp
				root = m.rotateLeft(root, x)
				xp = m.node(x).parent
				if xp == nilHandle {
					xpp = nilHandle
				} else {
					xpp = m.node(xp).parent
				}
			}
			if xp != nilHandle {
				m.node(xp).red = false
				if xpp != nilHandle {
					m.node(xpp).red = true
					root = m.rotateRight(root, xpp)
				}
			}
		} else {
			xppl := xppn.left
			if xppl != nilHandle && m.node(xppl).red {
				m.node(xppl).red = false
				m.node(xp).red = false
				xppn.red = true
				x = xpp
				continue
			}
			if x == m.node(xp).left {
				x = xp
				root = m.rotateRight(root, x)
				xp = m.node(x).parent
				if xp == nilHandle {
					xpp = nilHandle
				} else {
					xpp = m.node(xp).parent
				}
			}
			if xp != nilHandle {
				m.node(xp).red = false
				if xpp != nilHandle {
					m.node(xpp).red = true
					root = m.rotateLeft(root, xpp)
				}
			}
		}
	}
}

// balanceDeletion restores the red-black invariants after a removal, where x
// took the removed node's place (x may be the removed node itself when it
// had no children).
func (m *Map[K, V]) balanceDeletion(root, x handle) handle {
	for {
		if x == nilHandle || x == root {
			return root
		}
		xp := m.node(x).parent
		if xp == nilHandle {
			m.node(x).red = false
			return x
		}
		if m.node(x).red {
			m.node(x).red = false
			return root
		}
		xpn := m.node(xp)
		if xpn.left == x {
			xpr := xpn.right
			if xpr != nilHandle && m.node(xpr).red {
				m.node(xpr).red = false
				xpn.red = true
				root = m.rotateLeft(root, xp)
				xp = m.node(x).parent
				if xp == nilHandle {
					xpr = nilHandle
				} else {
					xpr = m.node(xp).right
				}
			}
			if xpr == nilHandle {
				x = xp
				continue
			}
			sl, sr := m.node(xpr).left, m.node(xpr).right
			if (sr == nilHandle || !m.node(sr).red) &&
				(sl == nilHandle || !m.node(sl).red) {
				m.node(xpr).red = true
				x = xp
				continue
			}
			if sr == nilHandle || !m.node(sr).red {
				if sl != nilHandle {
					m.node(sl).red = false
				}
				m.node(xpr).red = true
				root = m.rotateRight(root, xpr)
				xp = m.node(x).parent
				if xp == nilHandle {
					xpr = nilHandle
				} else {
					xpr = m.node(xp).right
				}
			}
			if xpr != nilHandle {
				if xp == nilHandle {
					m.node(xpr).red = false
				} else {
					m.node(xpr).red = m.node(xp).red
				}
				if sr = m.node(xpr).right; sr != nilHandle {
					m.node(sr).red = false
				}
			}
			if xp != nilHandle {
				m.node(xp).red = false
				root = m.rotateLeft(root, xp)
			}
			x = root
		} else {
			xpl := xpn.left
			if xpl != nilHandle && m.node(xpl).red {
				m.node(xpl).red = false
				xpn.red = true
				root = m.rotateRight(root, xp)
				xp = m.node(x).parent
				if xp == nilHandle {
					xpl = nilHandle
				} else {
					xpl = m.node(xp).left
				}
			}
			if xpl == nilHandle {
				x = xp
				continue
			}
			sl, sr := m.node(xpl).left, m.node(xpl).right
			if (sl == nilHandle || !m.node(sl).red) &&
				(sr == nilHandle || !m.node(sr).red) {
				m.node(xpl).red = true
				x = xp
				continue
			}
			if sl == nilHandle || !m.node(sl).red {
				if sr != nilHandle {
					m.node(sr).red = false
				}
				m.node(xpl).red = true
				root = m.rotateLeft(root, xpl)
				xp = m.node(x).parent
				if xp == nilHandle {
					xpl = nilHandle
				} else {
					xpl = m.node(xp).left
				}
			}
			if xpl != nilHandle {
				if xp == nilHandle {
					m.node(xpl).red = false
				} else {
					m.node(xpl).red = m.node(xp).red
				}
				if sl = m.node(xpl).left; sl != nilHandle {
					m.node(sl).red = false
				}
			}
			if xp != nilHandle {
				m.node(xp).red = false
				root = m.rotateRight(root, xp)
			}
			x = root
		}
	}
}
