package tmap

import (
	"math/bits"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// HashFunc computes a 64-bit hash for a key. The seed is chosen per map
// instance; implementations are free to ignore it, but mixing it in hardens
// a map against precomputed collision sets.
type HashFunc[K comparable] func(key K, seed uint64) uint64

// spread folds the upper half of the hash onto the lower half.
// Bucket indices are taken from the low bits (hash & (capacity-1)), so hash
// functions whose entropy sits in the high bits would otherwise cluster.
func spread(h uint64) uint64 {
	return h ^ (h >> 32)
}

// nextPowOf2 calculates the smallest power of 2 that is greater than or
// equal to n. Compatible with both 32-bit and 64-bit systems.
func nextPowOf2(n int) int {
	if n <= 0 {
		return 1
	}

	if bits.UintSize == 32 {
		v := uint32(n)
		v--
		v |= v >> 1
		v |= v >> 2
		v |= v >> 4
		v |= v >> 8
		v |= v >> 16
		v++
		return int(v)
	}

	v := uint64(n)
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return int(v)
}

// defaultHasher picks a hash function for K. Integer kinds hash to their own
// value (their natural distribution is already sufficient, and spread runs on
// top of it anyway). Strings go through xxhash mixed with the map seed.
// Every other comparable kind falls back to the runtime's built-in hasher
// for the type.
func defaultHasher[K comparable]() HashFunc[K] {
	switch any(*new(K)).(type) {
	case string:
		return func(key K, seed uint64) uint64 {
			return xxhash.Sum64String(*(*string)(unsafe.Pointer(&key))) ^ seed
		}

	case uint, int, uintptr:
		return func(key K, _ uint64) uint64 {
			return uint64(*(*uintptr)(unsafe.Pointer(&key)))
		}

	case uint64, int64:
		return func(key K, _ uint64) uint64 {
			return *(*uint64)(unsafe.Pointer(&key))
		}

	case uint32, int32:
		return func(key K, _ uint64) uint64 {
			return uint64(*(*uint32)(unsafe.Pointer(&key)))
		}

	case uint16, int16:
		return func(key K, _ uint64) uint64 {
			return uint64(*(*uint16)(unsafe.Pointer(&key)))
		}

	case uint8, int8:
		return func(key K, _ uint64) uint64 {
			return uint64(*(*uint8)(unsafe.Pointer(&key)))
		}

	default:
		return builtinHasher[K]()
	}
}

// builtinHasher obtains Go's built-in hash function for K by reading the
// runtime map type descriptor.
//
// Notes:
//   - This relies on Go's internal type representation
//   - It should be verified for compatibility with each Go version upgrade
func builtinHasher[K comparable]() HashFunc[K] {
	var m map[K]struct{}
	hasher := iTypeOf(m).MapType().Hasher
	return func(key K, seed uint64) uint64 {
		return uint64(hasher(noescape(unsafe.Pointer(&key)), uintptr(seed)))
	}
}

type iTFlag uint8
type iKind uint8
type iNameOff int32
type iTypeOff int32

type iType struct {
	Size_       uintptr
	PtrBytes    uintptr
	Hash        uint32
	TFlag       iTFlag
	Align_      uint8
	FieldAlign_ uint8
	Kind_       iKind
	Equal       func(unsafe.Pointer, unsafe.Pointer) bool
	GCData      *byte
	Str         iNameOff
	PtrToThis   iTypeOff
}

func (t *iType) MapType() *iMapType {
	return (*iMapType)(unsafe.Pointer(t))
}

type iMapType struct {
	iType
	Key   *iType
	Elem  *iType
	Group *iType
	// function for hashing keys (ptr to key, seed) -> hash
	Hasher func(unsafe.Pointer, uintptr) uintptr
}

func iTypeOf(a any) *iType {
	eface := *(*iEmptyInterface)(unsafe.Pointer(&a))
	return (*iType)(noescape(unsafe.Pointer(eface.Type)))
}

type iEmptyInterface struct {
	Type *iType
	Data unsafe.Pointer
}

//go:nosplit
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	//goland:noinspection ALL
	return unsafe.Pointer(x ^ 0)
}
