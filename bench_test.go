package tmap

import (
	"fmt"
	"testing"
)

var benchData [1 << 14]string

func init() {
	for i := range benchData {
		benchData[i] = fmt.Sprintf("%b", i)
	}
}

func BenchmarkStore(b *testing.B) {
	benchmarkStore(b, testData[:])
}

func BenchmarkStoreLarge(b *testing.B) {
	benchmarkStore(b, benchData[:])
}

func benchmarkStore(b *testing.B, data []string) {
	b.ReportAllocs()
	m, _ := New[string, int](WithCapacity(len(data)))
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		m.Store(data[i], i)
		i++
		if i >= len(data) {
			i = 0
		}
	}
}

func BenchmarkLoadHit(b *testing.B) {
	benchmarkLoadHit(b, testData[:])
}

func BenchmarkLoadHitLarge(b *testing.B) {
	benchmarkLoadHit(b, benchData[:])
}

func benchmarkLoadHit(b *testing.B, data []string) {
	b.ReportAllocs()
	m, _ := New[string, int]()
	for i := range data {
		m.Store(data[i], i)
	}
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		_, _ = m.Load(data[i])
		i++
		if i >= len(data) {
			i = 0
		}
	}
}

func BenchmarkLoadMiss(b *testing.B) {
	b.ReportAllocs()
	m, _ := New[string, int]()
	for i := range testData {
		m.Store(testData[i], i)
	}
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		_, _ = m.Load(benchData[len(benchData)-1-i%1024])
		i++
	}
}

// BenchmarkLoadTreeBucket measures lookups when every key shares a bucket and
// the bucket has escalated to a tree.
func BenchmarkLoadTreeBucket(b *testing.B) {
	b.ReportAllocs()
	m, _ := NewWithHasher[int, int](
		func(int, uint64) uint64 { return 7 },
		WithCapacity(minTreeifyCapacity),
	)
	const n = 1024
	for i := 0; i < n; i++ {
		m.Store(i, i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.Load(i % n)
	}
}

// BenchmarkLoadChainBucket keeps a fully colliding bucket one entry under the
// escalation threshold so every lookup scans a chain.
func BenchmarkLoadChainBucket(b *testing.B) {
	b.ReportAllocs()
	m, _ := NewWithHasher[int, int](
		func(int, uint64) uint64 { return 7 },
		WithCapacity(minTreeifyCapacity),
	)
	const n = treeifyThreshold
	for i := 0; i < n; i++ {
		m.Store(i, i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.Load(i % n)
	}
}

func BenchmarkStoreDelete(b *testing.B) {
	b.ReportAllocs()
	m, _ := New[string, int]()
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		m.Store(testData[i], i)
		m.Delete(testData[i])
		i++
		if i >= len(testData) {
			i = 0
		}
	}
}

func BenchmarkRange(b *testing.B) {
	b.ReportAllocs()
	m, _ := New[string, int]()
	for i := range benchData {
		m.Store(benchData[i], i)
	}
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		_ = m.Range(func(string, int) bool { return true })
	}
}
