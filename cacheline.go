package tmap

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize is the cache line size of the target platform.
// It's automatically calculated using the `golang.org/x/sys` package.
// The entry arena grows in slabs rounded to whole cache lines so that
// adjacent entries of one bucket tend to share lines.
const CacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})
