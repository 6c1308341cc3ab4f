// Package storage defines the key-value slot stores that persist serialized
// trees, plus a zstd codec usable in front of any of them.
//
// Implementations live in the memory, badger and s3 subpackages.
package storage

import (
	"context"
	stderr "errors"
)

var (
	// ErrSlotNotFound is returned by Get when the slot has never been written.
	ErrSlotNotFound = stderr.New("slot not found")
	// ErrQuotaExceeded is returned by Put when the store cannot hold the value.
	ErrQuotaExceeded = stderr.New("slot quota exceeded")
	// ErrSlotCorrupt is returned by Get when a stored value cannot be decoded.
	ErrSlotCorrupt = stderr.New("slot content is corrupt")
)

// SlotStore is a named-value store. Values are opaque byte strings.
type SlotStore interface {
	// Get returns the value of key or an error wrapping ErrSlotNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put replaces the value of key. Capacity failures wrap ErrQuotaExceeded.
	Put(ctx context.Context, key string, data []byte) error
	// Delete removes key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error
	// Close releases resources held by the store.
	Close() error
}

// IsNotFound reports whether err means the slot is absent.
func IsNotFound(err error) bool {
	return stderr.Is(err, ErrSlotNotFound)
}

// IsCorrupt reports whether err means the slot holds undecodable bytes.
func IsCorrupt(err error) bool {
	return stderr.Is(err, ErrSlotCorrupt)
}

// IsQuotaExceeded reports whether err is a capacity failure.
func IsQuotaExceeded(err error) bool {
	return stderr.Is(err, ErrQuotaExceeded)
}
