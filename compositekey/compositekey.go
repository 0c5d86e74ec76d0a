// Package compositekey implements the logical view over the contiguous run
// of N KeyPointers stored with one secondary record (spec §4.2): the
// Accessor knows a group's predicate_count and therefore how to convert
// between "address of the first KeyPointer" and "address of predicate i's
// KeyPointer".
//
// This implementation packs a KeyPointer's chain address as
// (recordAddress<<8 | ordinal): the low byte names which of the record's
// (at most 255) predicates the address refers to, the rest names the
// record's log address. Spec §4.1 calls for recovering "the record start
// given only a hash-chain entry" via byte-offset subtraction against a raw
// pointer; this is the same recovery expressed without unsafe pointer
// arithmetic (spec §9's replacement-strategy note), and it is what lets one
// record's N KeyPointers each head an independent, directly-addressable
// hash chain.
package compositekey

import "github.com/ledgerwatch/shi/keypointer"

// ordinalBits is the number of low bits of a KeyPointer address reserved
// for the predicate ordinal; 8 bits comfortably covers predicate_ordinal's
// byte range (≤255, spec §3).
const ordinalBits = 8

// PackAddress builds the chain-address of predicate ordinal's KeyPointer
// within the record stored at recordAddr.
func PackAddress(recordAddr int64, ordinal uint8) int64 {
	return recordAddr<<ordinalBits | int64(ordinal)
}

// UnpackAddress splits a KeyPointer chain-address back into the record's
// log address and the predicate ordinal it names.
func UnpackAddress(kpAddr int64) (recordAddr int64, ordinal uint8) {
	return kpAddr >> ordinalBits, uint8(kpAddr & (1<<ordinalBits - 1))
}

// Accessor knows a group's fixed predicate count and provides the
// operations the secondary store needs to navigate a stored composite key
// without caring what the predicate key type is.
type Accessor struct {
	PredicateCount int
}

func NewAccessor(predicateCount int) *Accessor {
	if predicateCount <= 0 || predicateCount > 255 {
		panic("compositekey: predicate count must be in [1,255]")
	}
	return &Accessor{PredicateCount: predicateCount}
}

// HeaderBlockSize is the total size, in bytes, of the N KeyPointer headers
// that make up one composite key.
func (a *Accessor) HeaderBlockSize() int { return a.PredicateCount * keypointer.Size }

// KeyPointerAt returns a view over predicate i's header, given the byte
// slice holding the record's full KeyPointer header block (exactly
// HeaderBlockSize() bytes, ordinal 0 first).
func (a *Accessor) KeyPointerAt(headers []byte, i int) keypointer.View {
	if i < 0 || i >= a.PredicateCount {
		panic("compositekey: ordinal out of range")
	}
	return keypointer.Cast(headers, i*keypointer.Size)
}

// RecordAddressFromKeyPointerAddress computes the log address of a
// record's header, given the chain address of any one of its KeyPointers.
func (a *Accessor) RecordAddressFromKeyPointerAddress(kpAddr int64) (recordAddr int64, ordinal uint8) {
	return UnpackAddress(kpAddr)
}

// Hash returns the hash of predicate i's key within headers, as recorded
// in that KeyPointer's key_hash field (the secondary store never needs
// "full composite" equality — only per-predicate, spec §4.2).
func (a *Accessor) Hash(headers []byte, i int) uint64 {
	return a.KeyPointerAt(headers, i).KeyHash()
}

// Equals compares predicate i's key bytes between two composite records,
// using comparer for the byte-level comparison.
func Equals(comparer interface{ Equals(a, b []byte) bool }, aKey, bKey []byte) bool {
	return comparer.Equals(aKey, bKey)
}
