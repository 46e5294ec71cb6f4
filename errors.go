package tmap

import "github.com/pkg/errors"

var (
	// ErrInvalidCapacity is returned by New when WithCapacity was given a
	// non-positive value. Invalid configuration is rejected, never clamped.
	ErrInvalidCapacity = errors.New("initial capacity must be positive")

	// ErrInvalidLoadFactor is returned by New when WithLoadFactor was given
	// a value that is not a positive, finite number.
	ErrInvalidLoadFactor = errors.New("load factor must be positive and finite")

	// ErrConcurrentModification reports a structural change observed while
	// an iteration was in progress, or structural damage found by
	// CheckIntegrity. It surfaces unsynchronized concurrent use of a Map;
	// it does not make such use safe.
	ErrConcurrentModification = errors.New("concurrent structural modification detected")
)
