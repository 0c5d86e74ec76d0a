package group

import (
	"github.com/c2h5oh/datasize"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ledgerwatch/shi/comparer"
)

// Settings bundles a group's registration-time configuration (spec §6).
// Byte-size fields use datasize.ByteSize, the same convention the
// ambient stage configuration in this codebase uses for memory limits.
type Settings struct {
	HashTableSize uint64
	MemorySize    datasize.ByteSize
	SegmentSize   datasize.ByteSize
	PageSize      datasize.ByteSize

	// Device, if non-empty, backs evicted records with an mmap'd file
	// instead of dropping them once they are evicted from memory.
	Device         string
	DeviceCapacity int64

	// IPUCache1Size/IPUCache2Size, in bytes, provision the two optional
	// in-place-update caches spec §9 leaves to the implementer. Zero
	// (the default) ships them disabled.
	IPUCache1Size int
	IPUCache2Size int

	Comparer comparer.KeyComparer

	// Registry, if non-nil, receives this group's prometheus collectors
	// under its name as a constant label.
	Registry prometheus.Registerer
}

func (s Settings) withDefaults() Settings {
	if s.HashTableSize == 0 {
		s.HashTableSize = 1 << 16
	}
	if s.MemorySize == 0 {
		s.MemorySize = 256 * datasize.MB
	}
	if s.SegmentSize == 0 {
		s.SegmentSize = 32 * datasize.MB
	}
	if s.PageSize == 0 {
		s.PageSize = 4 * datasize.KB
	}
	return s
}
