package secondarystore

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/ledgerwatch/shi/compositekey"
	"github.com/ledgerwatch/shi/shi"
)

// Record is one stored composite key: a run of accessor.PredicateCount
// KeyPointer headers plus the RecordId they all point at and the
// out-of-line key bytes each non-null KeyPointer names (spec §3
// CompositeKey, §4.1 KeyPointer.key).
//
// A Record is never mutated in place once published (invariant 5: the
// invalid bit is cleared only after every CAS splice succeeds, and after
// that its own KeyPointers are frozen — only *other* records' chain
// pointers change around it).
type Record struct {
	invalid  atomic.Bool // publication fence; see invariant 5
	version  int64       // session phase/version this record was written under
	recordID shi.RecordId
	headers  []byte   // accessor.HeaderBlockSize() bytes
	keys     [][]byte // per-ordinal key bytes, nil entry means that predicate was null
}

func newRecord(acc *compositekey.Accessor, recordID shi.RecordId, version int64) *Record {
	r := &Record{
		version:  version,
		recordID: recordID,
		headers:  make([]byte, acc.HeaderBlockSize()),
		keys:     make([][]byte, acc.PredicateCount),
	}
	r.invalid.Store(true)
	return r
}

// Invalid reports whether this record is still mid-construction: no reader
// may observe it while true (invariant 5).
func (r *Record) Invalid() bool { return r.invalid.Load() }

func (r *Record) RecordID() shi.RecordId { return r.recordID }

func (r *Record) Version() int64 { return r.version }

// KeyBytes returns predicate i's out-of-line key bytes, or nil if that
// predicate was null for this record.
func (r *Record) KeyBytes(i int) []byte { return r.keys[i] }

// serialize encodes a record for the evicted (on-disk) region: recordID(8)
// | version(8) | headers(HeaderBlockSize) | for each ordinal, its key bytes
// back to back (lengths recovered from each KeyPointer's KeyLen field, so
// no extra framing is needed).
func serialize(acc *compositekey.Accessor, r *Record) []byte {
	size := 16 + len(r.headers)
	for _, k := range r.keys {
		size += len(k)
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(r.recordID))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(r.version))
	off := 16
	off += copy(buf[off:], r.headers)
	for _, k := range r.keys {
		off += copy(buf[off:], k)
	}
	return buf
}

// deserialize is the inverse of serialize.
func deserialize(acc *compositekey.Accessor, buf []byte) *Record {
	r := &Record{
		recordID: shi.RecordId(binary.LittleEndian.Uint64(buf[0:8])),
		version:  int64(binary.LittleEndian.Uint64(buf[8:16])),
		headers:  append([]byte(nil), buf[16:16+acc.HeaderBlockSize()]...),
		keys:     make([][]byte, acc.PredicateCount),
	}
	off := 16 + acc.HeaderBlockSize()
	for i := 0; i < acc.PredicateCount; i++ {
		kp := acc.KeyPointerAt(r.headers, i)
		n := int(kp.KeyLen())
		if n == 0 {
			continue
		}
		r.keys[i] = append([]byte(nil), buf[off:off+n]...)
		off += n
	}
	r.invalid.Store(false)
	return r
}
