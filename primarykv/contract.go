// Package primarykv describes the external collaborator the index is
// built against (spec §4.5.3, §6): the primary key/value store whose
// mutations drive group predicate execution, and whose own hash chain
// the liveness check walks before surfacing a query result. This
// package is deliberately a thin seam — the index never owns the
// primary store, it only needs read access to one user key's chain.
package primarykv

// Store is the read surface the index's liveness check depends on. A
// RecordId in this codebase is always a primary-store address, so
// ReadAt(r) and the chain walk from Head(key) operate on the same
// address space the index's own RecordIds live in.
type Store interface {
	// ReadAt resolves a primary-store address to the user key and value
	// last written there. found is false once the address has been
	// compacted out of the store entirely.
	ReadAt(addr int64) (key []byte, value any, found bool)

	// Head returns the most recent address in key's hash chain, or
	// found=false if the key has never been written.
	Head(key []byte) (addr int64, found bool)

	// Prev follows one hop of addr's hash chain (skipping any read-cache
	// entries internally), returning ok=false once the chain is
	// exhausted.
	Prev(addr int64) (prevAddr int64, ok bool)
}

// InvalidAddress never names a real primary-store record.
const InvalidAddress int64 = -1
