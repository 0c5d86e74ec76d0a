package secondarystore

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/ledgerwatch/shi/compositekey"
)

// Region names which of the three address-space partitions from spec §5
// an address falls into.
type Region int

const (
	RegionMutable Region = iota
	RegionImmutable
	RegionOnDisk
)

// LogConfig is the subset of spec §6's `log` settings this reference
// allocator consumes. MemorySize/SegmentSize/PageSize are accepted for
// fidelity with the settings surface but only Device and DeviceCapacity
// drive actual behavior here: when Device is empty, evicted records are
// simply dropped (matching "physically collectable" in spec §3's
// lifecycle note) instead of round-tripped through storage.
type LogConfig struct {
	MemorySize    datasizeByteSize
	SegmentSize   datasizeByteSize
	PageSize      datasizeByteSize
	Device        string
	DeviceCapacity int64
}

// datasizeByteSize is a plain uint64 alias, so this package does not
// import datasize; group.Settings uses datasize.ByteSize directly and
// converts when building a LogConfig.
type datasizeByteSize = uint64

type diskEntry struct {
	offset int64
	length int
}

// diskSegment is an append-only mmap-backed region standing in for
// spec's "Log-device I/O", which is explicitly out of scope as a
// collaborator (spec §1) — this is the minimal real backing needed to
// exercise the evict/pending-read contract end to end.
type diskSegment struct {
	f      *os.File
	mm     mmap.MMap
	cursor int64
}

func openDiskSegment(path string, capacity int64) (*diskSegment, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("secondarystore: open disk segment: %w", err)
	}
	if err := f.Truncate(capacity); err != nil {
		f.Close()
		return nil, fmt.Errorf("secondarystore: size disk segment: %w", err)
	}
	mm, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("secondarystore: mmap disk segment: %w", err)
	}
	return &diskSegment{f: f, mm: mm}, nil
}

func (d *diskSegment) write(b []byte) (offset int64, err error) {
	offset = atomic.AddInt64(&d.cursor, int64(len(b))) - int64(len(b))
	if offset+int64(len(b)) > int64(len(d.mm)) {
		return 0, fmt.Errorf("secondarystore: disk segment full (capacity %d)", len(d.mm))
	}
	copy(d.mm[offset:], b)
	return offset, nil
}

func (d *diskSegment) readAt(offset int64, n int) []byte {
	return append([]byte(nil), d.mm[offset:offset+int64(n)]...)
}

func (d *diskSegment) close() error {
	if err := d.mm.Flush(); err != nil {
		return err
	}
	if err := d.mm.Unmap(); err != nil {
		return err
	}
	return d.f.Close()
}

// Log is the monotone, append-only allocator backing one SecondaryStore.
// Addresses are assigned sequentially starting at 0. head/safeReadOnly/begin
// partition the address space into mutable, immutable-in-memory, and
// on-disk regions (spec §5).
type Log struct {
	mu  sync.RWMutex
	acc *compositekey.Accessor

	records []*Record // records[a-begin] is the record at address a, for begin <= a < head
	head    int64
	safeReadOnly int64
	begin   int64

	disk      *diskSegment
	diskIndex map[int64]diskEntry
}

func NewLog(acc *compositekey.Accessor, cfg LogConfig) (*Log, error) {
	l := &Log{acc: acc}
	if cfg.Device != "" {
		capacity := cfg.DeviceCapacity
		if capacity <= 0 {
			capacity = 64 << 20 // 64MiB default, large enough for test workloads
		}
		d, err := openDiskSegment(cfg.Device, capacity)
		if err != nil {
			return nil, err
		}
		l.disk = d
		l.diskIndex = make(map[int64]diskEntry)
	}
	return l, nil
}

// Close releases the disk segment, if any.
func (l *Log) Close() error {
	if l.disk != nil {
		return l.disk.close()
	}
	return nil
}

// HeadAddress returns the next address that will be allocated.
func (l *Log) HeadAddress() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.head
}

// Allocate reserves the next address for rec and publishes it into the
// mutable region. The record starts Invalid (spec invariant 5) until the
// caller clears that bit.
func (l *Log) Allocate(rec *Record) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	addr := l.head
	l.records = append(l.records, rec)
	l.head++
	return addr
}

// GetPhysical resolves addr to its Record and which region it currently
// lives in. A hit in the on-disk region is reported as not-found here —
// real disk I/O does not complete synchronously with the chain walk that
// discovers it needs it — so callers fall through to the pending-context
// path (spec §4.3.2 step 5) and resume via GetPhysicalOnDisk once that
// I/O is modeled as complete. found is also false if addr was compacted
// away with no disk backing configured at all.
func (l *Log) GetPhysical(addr int64) (rec *Record, region Region, found bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if addr < 0 || addr >= l.head {
		return nil, RegionMutable, false
	}
	if addr < l.begin {
		return nil, RegionOnDisk, false
	}
	rec = l.records[addr-l.begin]
	if addr >= l.safeReadOnly {
		return rec, RegionMutable, true
	}
	return rec, RegionImmutable, true
}

// GetPhysicalOnDisk performs the actual disk fetch for addr, used only by
// a resumed read once its pending I/O is considered complete.
func (l *Log) GetPhysicalOnDisk(addr int64) (rec *Record, found bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.diskIndex == nil {
		return nil, false
	}
	entry, ok := l.diskIndex[addr]
	if !ok {
		return nil, false
	}
	buf := l.disk.readAt(entry.offset, entry.length)
	return deserialize(l.acc, buf), true
}

// Flush advances the safe-read-only boundary to the current head: every
// record allocated so far becomes immutable.
func (l *Log) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.safeReadOnly = l.head
}

// Evict moves every record in [begin, to) out of the in-memory working set.
// With a disk backing configured they remain reachable (GetPhysical reports
// them as on-disk, GetPhysicalOnDisk fetches them); without one they are
// simply dropped, matching "physically
// collectable" once they fall below begin (spec §3).
func (l *Log) Evict(to int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if to <= l.begin {
		return nil
	}
	if to > l.head {
		to = l.head
	}
	if l.disk != nil {
		for a := l.begin; a < to; a++ {
			rec := l.records[a-l.begin]
			buf := serialize(l.acc, rec)
			offset, err := l.disk.write(buf)
			if err != nil {
				return err
			}
			l.diskIndex[a] = diskEntry{offset: offset, length: len(buf)}
		}
	}
	l.records = l.records[to-l.begin:]
	l.begin = to
	if l.safeReadOnly < l.begin {
		l.safeReadOnly = l.begin
	}
	return nil
}

// FlushAndEvict flushes then evicts everything up to the current head.
func (l *Log) FlushAndEvict() error {
	l.Flush()
	l.mu.RLock()
	head := l.head
	l.mu.RUnlock()
	return l.Evict(head)
}

// BeginAddress reports the oldest address still held in memory. With a disk
// backing configured, evicted addresses below it remain readable through
// GetPhysicalOnDisk.
func (l *Log) BeginAddress() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.begin
}
