// Package keypointer implements the fixed-size, zero-copy-addressable
// per-predicate header described in spec §4.1: a single hash-chain
// back-pointer, the predicate's ordinal within its group, a flag byte, and
// the predicate key's hash and length (the key bytes themselves live
// out-of-line, beside the header block — see secondarystore.Record).
//
// A View never allocates: it is a typed window over a caller-owned byte
// slice. Per spec §9's replacement for raw pointer reinterpretation, this
// is the "typed view over a byte slice with explicit size/alignment
// constraints" — arithmetic happens via encoding/binary, not unsafe
// pointer casts, and a View must not outlive the slice that backs it.
package keypointer

import "encoding/binary"

// Size is the on-wire size, in bytes, of one KeyPointer header.
//
//	previous_address        int64  (8)
//	offset_to_start_of_keys int32  (4)
//	predicate_ordinal       uint8  (1)
//	flags                   uint8  (1)
//	key_len                 uint16 (2)
//	key_hash                uint64 (8)
const Size = 24

// Flags is the bit set from spec §3: {is_null, is_deleted,
// is_out_of_line_key, is_unlink_old, is_link_new}.
type Flags uint8

const (
	FlagNull Flags = 1 << iota
	FlagDeleted
	FlagOutOfLineKey
	FlagUnlinkOld
	FlagLinkNew
)

// Has reports whether all bits in want are set.
func (f Flags) Has(want Flags) bool { return f&want == want }

func (f Flags) String() string {
	s := ""
	add := func(bit Flags, name string) {
		if f.Has(bit) {
			if s != "" {
				s += "|"
			}
			s += name
		}
	}
	add(FlagNull, "null")
	add(FlagDeleted, "deleted")
	add(FlagOutOfLineKey, "out_of_line_key")
	add(FlagUnlinkOld, "unlink_old")
	add(FlagLinkNew, "link_new")
	if s == "" {
		return "none"
	}
	return s
}

// View is a typed window over buf[offset:offset+Size].
type View struct {
	buf []byte
}

// Cast reinterprets buf[offset:offset+Size] as a KeyPointer header. Panics
// (via the normal slice bounds check) if buf is too short.
func Cast(buf []byte, offset int) View {
	return View{buf: buf[offset : offset+Size : offset+Size]}
}

func (v View) PreviousAddress() int64 {
	return int64(binary.LittleEndian.Uint64(v.buf[0:8]))
}

func (v View) SetPreviousAddress(addr int64) {
	binary.LittleEndian.PutUint64(v.buf[0:8], uint64(addr))
}

func (v View) OffsetToStartOfKeys() int32 {
	return int32(binary.LittleEndian.Uint32(v.buf[8:12]))
}

func (v View) SetOffsetToStartOfKeys(off int32) {
	binary.LittleEndian.PutUint32(v.buf[8:12], uint32(off))
}

func (v View) PredicateOrdinal() uint8 { return v.buf[12] }

func (v View) SetPredicateOrdinal(o uint8) { v.buf[12] = o }

func (v View) Flags() Flags { return Flags(v.buf[13]) }

func (v View) SetFlags(f Flags) { v.buf[13] = byte(f) }

func (v View) SetFlagBits(bits Flags) { v.buf[13] |= byte(bits) }

func (v View) ClearFlagBits(bits Flags) { v.buf[13] &^= byte(bits) }

// ClearUpdateFlags atomically (from the owning record's single-writer
// perspective — no other writer ever touches another record's KeyPointers)
// clears is_unlink_old|is_link_new after a successful splice, per §4.1.
func (v View) ClearUpdateFlags() { v.ClearFlagBits(FlagUnlinkOld | FlagLinkNew) }

func (v View) KeyLen() uint16 { return binary.LittleEndian.Uint16(v.buf[14:16]) }

func (v View) SetKeyLen(n uint16) { binary.LittleEndian.PutUint16(v.buf[14:16], n) }

func (v View) KeyHash() uint64 { return binary.LittleEndian.Uint64(v.buf[16:24]) }

func (v View) SetKeyHash(h uint64) { binary.LittleEndian.PutUint64(v.buf[16:24], h) }

// IsNull reports whether this KeyPointer's predicate produced no key, per
// invariant 3: a null KeyPointer still occupies its slot in the composite
// (so offset arithmetic stays constant-time) but is never linked into a
// chain.
func (v View) IsNull() bool { return v.Flags().Has(FlagNull) }

// IsDeleted reports whether the underlying RecordId should be treated as
// tombstoned for this predicate, per invariant 4.
func (v View) IsDeleted() bool { return v.Flags().Has(FlagDeleted) }
