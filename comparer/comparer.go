// Package comparer supplies the build-time key-comparer strategies a group
// is registered with (spec §9: "build-time selection of a comparer
// strategy via a capability interface ... required at registration; no
// runtime type inspection" — replacing the source's reflection-based
// default comparer lookup).
package comparer

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// KeyComparer is the capability every group must supply at registration:
// marshal a predicate key to its wire bytes, and hash/compare those bytes.
// The secondary store only ever needs per-predicate equality, never "full
// composite" equality (spec §4.2).
type KeyComparer interface {
	Marshal(key any) []byte
	Hash(keyBytes []byte) uint64
	Equals(a, b []byte) bool
}

type bytesComparer struct{}

// Bytes compares predicate keys via their raw byte encoding, hashed with
// xxhash (the same hashing library the retrieval pack's badger-based store
// depends on) rather than a hand-rolled FNV loop.
var Bytes KeyComparer = bytesComparer{}

func (bytesComparer) Marshal(key any) []byte {
	switch k := key.(type) {
	case []byte:
		return k
	case string:
		return []byte(k)
	default:
		panic(fmt.Sprintf("comparer.Bytes: unsupported key type %T, marshal it to []byte yourself or use a typed comparer", key))
	}
}

func (bytesComparer) Hash(keyBytes []byte) uint64 { return xxhash.Sum64(keyBytes) }

func (bytesComparer) Equals(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type uint64Comparer struct{}

// Uint64 marshals uint64, int64, int, uint32 and int32 predicate keys as
// big-endian 8-byte strings, so equal keys are always byte-identical
// regardless of host endianness. Any other key type panics.
var Uint64 KeyComparer = uint64Comparer{}

func (uint64Comparer) Marshal(key any) []byte {
	var v uint64
	switch k := key.(type) {
	case uint64:
		v = k
	case int64:
		v = uint64(k)
	case int:
		v = uint64(k)
	case uint32:
		v = uint64(k)
	case int32:
		v = uint64(k)
	default:
		panic(fmt.Sprintf("comparer.Uint64: unsupported key type %T", key))
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func (uint64Comparer) Hash(keyBytes []byte) uint64 { return xxhash.Sum64(keyBytes) }

func (uint64Comparer) Equals(a, b []byte) bool { return bytesComparer{}.Equals(a, b) }

type stringComparer struct{}

// String marshals string predicate keys verbatim.
var String KeyComparer = stringComparer{}

func (stringComparer) Marshal(key any) []byte {
	s, ok := key.(string)
	if !ok {
		panic(fmt.Sprintf("comparer.String: unsupported key type %T", key))
	}
	return []byte(s)
}

func (stringComparer) Hash(keyBytes []byte) uint64 { return xxhash.Sum64(keyBytes) }

func (stringComparer) Equals(a, b []byte) bool { return bytesComparer{}.Equals(a, b) }
