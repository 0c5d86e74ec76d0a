package secondarystore

import (
	"github.com/ledgerwatch/shi/internal/bufpool"
	"github.com/ledgerwatch/shi/shi"
)

// PendingContext is produced when a chain read falls through to the
// on-disk region (spec §4.3.2 step 5). It carries its own copy of the
// query key — taken from the pool, because "the stack does not survive
// I/O" once the calling goroutine moves on — plus enough state to resume
// the walk once the read completes.
type PendingContext struct {
	ordinal      int
	keyBuf       []byte
	resumeAddr   int64
	pool         *bufpool.Pool
	store        *Store
	completeOnce bool
}

func (s *Store) newPendingContext(ordinal int, key []byte, resumeAddr int64) *PendingContext {
	buf := s.bufs.Get(len(key))
	copy(buf, key)
	return &PendingContext{
		ordinal:    ordinal,
		keyBuf:     buf,
		resumeAddr: resumeAddr,
		pool:       s.bufs,
		store:      s,
	}
}

// Complete drains this pending context synchronously: the on-disk region
// in this reference store is backed by an mmap'd file rather than a
// remote device, so the actual fetch never blocks for long, but it is
// still modeled as a distinct step so callers exercise the same
// suspend/resume contract a genuinely async disk would require.
func (p *PendingContext) Complete() ReadResult {
	defer p.release()
	return p.store.resumeRead(p.ordinal, p.keyBuf, p.resumeAddr)
}

func (p *PendingContext) release() {
	if p.completeOnce {
		return
	}
	p.completeOnce = true
	p.pool.Put(p.keyBuf)
}

// ReadResult is the outcome of Store.Read / PendingContext.Complete.
type ReadResult struct {
	Status      shi.Status
	RecordID    shi.RecordId
	Deleted     bool
	NextAddress int64 // address to resume the chain walk from, for multi-hit queries
	Pending     *PendingContext
}
