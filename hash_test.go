package tmap

import "testing"

func TestSpread(t *testing.T) {
	// Low 32 bits pass through untouched when there are no high bits.
	if got := spread(0x12345678); got != 0x12345678 {
		t.Fatalf("spread(0x12345678) = %#x", got)
	}
	// High bits must fold into the low half, where the bucket mask lives.
	h := uint64(0xABCD) << 40
	if got := spread(h) & 0xFFFFFFFF; got == 0 {
		t.Fatalf("spread(%#x) left the mask bits empty", h)
	}
	if spread(0) != 0 {
		t.Fatal("spread(0) != 0")
	}
}

func TestNextPowOf2(t *testing.T) {
	cases := []struct{ in, want int }{
		{-1, 1}, {0, 1}, {1, 1}, {2, 2}, {3, 4}, {4, 4}, {5, 8},
		{15, 16}, {16, 16}, {17, 32}, {1000, 1024}, {1 << 20, 1 << 20},
		{(1 << 20) + 1, 1 << 21},
	}
	for _, c := range cases {
		if got := nextPowOf2(c.in); got != c.want {
			t.Fatalf("nextPowOf2(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestDefaultHasherIntIdentity(t *testing.T) {
	h := defaultHasher[int]()
	for _, v := range []int{0, 1, 42, 1 << 40} {
		if got := h(v, 12345); got != uint64(v) {
			t.Fatalf("int hasher(%d) = %d", v, got)
		}
	}
}

func TestDefaultHasherStringSeeded(t *testing.T) {
	h := defaultHasher[string]()
	if h("abc", 1) == h("abc", 2) {
		t.Fatal("string hasher ignores the seed")
	}
	if h("abc", 7) != h("abc", 7) {
		t.Fatal("string hasher is not deterministic")
	}
	if h("abc", 7) == h("abd", 7) {
		t.Fatal("string hasher collides on adjacent keys")
	}
}

func TestBuiltinHasherStructKeys(t *testing.T) {
	type pair struct {
		A int
		B string
	}
	h := defaultHasher[pair]()
	x := pair{1, "x"}
	if h(x, 9) != h(pair{1, "x"}, 9) {
		t.Fatal("equal struct keys hash differently")
	}
}

func TestHashersAgreeWithEquality(t *testing.T) {
	// Two maps with different seeds must still both work; the seed only has
	// to be stable within one instance.
	m1, _ := New[string, int]()
	m2, _ := New[string, int]()
	for i, k := range testData {
		m1.Store(k, i)
		m2.Store(k, i)
	}
	for i, k := range testData {
		if v, ok := m1.Load(k); !ok || v != i {
			t.Fatalf("m1 key %q: (%d, %v)", k, v, ok)
		}
		if v, ok := m2.Load(k); !ok || v != i {
			t.Fatalf("m2 key %q: (%d, %v)", k, v, ok)
		}
	}
}
