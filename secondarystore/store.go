// Package secondarystore implements the per-group log-structured index
// from spec §4.3: a hash table whose entries head independent per-predicate
// chains, a log-structured allocator, and the Insert/Read state machines
// that splice a composite key's N KeyPointers into those chains under CAS.
package secondarystore

import (
	"fmt"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/ledgerwatch/shi/comparer"
	"github.com/ledgerwatch/shi/compositekey"
	"github.com/ledgerwatch/shi/internal/bufpool"
	"github.com/ledgerwatch/shi/internal/metrics"
	"github.com/ledgerwatch/shi/keypointer"
	"github.com/ledgerwatch/shi/shi"
	"github.com/ledgerwatch/shi/shierr"
)

// Config bundles the construction-time parameters for one Store, drawn
// from a group's registration Settings (spec §6).
type Config struct {
	PredicateCount int
	HashTableSize  uint64
	Log            LogConfig
	Comparer       comparer.KeyComparer

	// IPUCache1Size/IPUCache2Size size two optional fastcache instances
	// mirroring core/state/db_state_writer.go's SetAccountCache-style
	// pattern. A zero size leaves the corresponding cache nil. Per spec §9
	// Open Questions the IPU caching scheme is left to the implementer;
	// this store ships the hook but never consults either cache on the
	// read or insert hot path, so a nonzero size only costs memory today.
	IPUCache1Size int
	IPUCache2Size int
}

// Store owns one group's hash table, log, and the insert/read state
// machines that operate on individual hash chains.
type Store struct {
	acc      *compositekey.Accessor
	table    *HashTable
	log      *Log
	comparer comparer.KeyComparer
	metrics  *metrics.Store
	bufs     *bufpool.Pool
	epoch    epoch

	ipuCache1 *fastcache.Cache
	ipuCache2 *fastcache.Cache

	maxInsertAttempts int
}

func NewStore(cfg Config, m *metrics.Store) (*Store, error) {
	if cfg.PredicateCount <= 0 {
		return nil, shierr.New(shierr.ArgumentError, "NewStore", fmt.Errorf("predicate count must be positive"))
	}
	if cfg.Comparer == nil {
		return nil, shierr.New(shierr.ArgumentError, "NewStore", fmt.Errorf("a key comparer is required"))
	}
	if cfg.HashTableSize == 0 || cfg.HashTableSize&(cfg.HashTableSize-1) != 0 {
		return nil, shierr.New(shierr.ArgumentError, "NewStore", fmt.Errorf("hash table size %d is not a power of two", cfg.HashTableSize))
	}
	acc := compositekey.NewAccessor(cfg.PredicateCount)
	log, err := NewLog(acc, cfg.Log)
	if err != nil {
		return nil, shierr.New(shierr.ArgumentError, "NewStore", err)
	}
	s := &Store{
		acc:               acc,
		table:             NewHashTable(cfg.HashTableSize),
		log:               log,
		comparer:          cfg.Comparer,
		metrics:           m,
		bufs:              bufpool.New(8),
		maxInsertAttempts: 10000,
	}
	if cfg.IPUCache1Size > 0 {
		s.ipuCache1 = fastcache.New(cfg.IPUCache1Size)
	}
	if cfg.IPUCache2Size > 0 {
		s.ipuCache2 = fastcache.New(cfg.IPUCache2Size)
	}
	return s, nil
}

// closeCaches resets the IPU caches, if configured; Close calls it before
// releasing the store's log segment.
func (s *Store) closeCaches() {
	if s.ipuCache1 != nil {
		s.ipuCache1.Reset()
	}
	if s.ipuCache2 != nil {
		s.ipuCache2.Reset()
	}
}

func (s *Store) Close() error {
	s.closeCaches()
	return s.log.Close()
}

func (s *Store) Accessor() *compositekey.Accessor { return s.acc }

// AdvanceToPrepare/CompletePrepare expose the store's version/phase to the
// index layer's checkpoint orchestration (spec §6 persistence hooks).
func (s *Store) AdvanceToPrepare() int64 { return s.epoch.AdvanceToPrepare() }
func (s *Store) CompletePrepare()        { s.epoch.CompletePrepare() }
func (s *Store) CurrentVersion() int64   { return s.epoch.Version() }

func (s *Store) hashFor(ordinal int, key []byte) uint64 {
	h := s.comparer.Hash(key)
	// Fold the ordinal in so distinct predicates rarely collide into the
	// same bucket tag; correctness never depends on this (the chain-walk
	// mismatch path in Read handles collisions regardless), it only
	// affects how often that path is exercised.
	return h ^ (uint64(ordinal+1) * 0x9E3779B97F4A7C15)
}

// Flush advances the safe-read-only boundary (spec §6 `flush`).
func (s *Store) Flush() { s.log.Flush() }

// FlushAndEvict advances both boundaries (spec §6 `flush_and_evict`).
func (s *Store) FlushAndEvict() error { return s.log.FlushAndEvict() }

type pivotDetectedError struct{}

func (pivotDetectedError) Error() string { return "version pivot detected" }

// Insert splices a composite key's KeyPointers into their respective
// predicate chains, allocating one new record for recordID. keys[i]==nil
// means predicate i is null for this record (no chain linkage, spec
// invariant 3); deleteFlags, if non-nil, marks predicate i's KeyPointer
// is_deleted (used by Delete and by Update's unlink record).
//
// Implements spec §4.3.1's Internal Insert algorithm end to end, including
// the downward-invariant CAS retry loop (step 4) and the whole-insert
// RetryNow outer retry ("Retry semantics"). A version pivot (step 2) is not
// retried here: Insert returns a VersionShift error to the caller.
func (s *Store) Insert(keys [][]byte, deleteFlags []bool, recordID shi.RecordId, sess *Session) error {
	if len(keys) != s.acc.PredicateCount {
		return shierr.New(shierr.ArgumentError, "Insert", fmt.Errorf("expected %d keys, got %d", s.acc.PredicateCount, len(keys)))
	}
	allNull := true
	for _, k := range keys {
		if k != nil {
			allNull = false
			break
		}
	}
	if allNull {
		return nil
	}

	type casHelper struct {
		ordinal      int
		slotIdx      int
		hash         uint64
		prevSnapshot uint64
		installed    uint64 // non-zero once this ordinal's CAS has succeeded this attempt
	}

	for attempt := 0; attempt < s.maxInsertAttempts; attempt++ {
		rec := newRecord(s.acc, recordID, sess.Version())
		helpers := make([]casHelper, 0, s.acc.PredicateCount)
		pivot := false

		// Link-up pass (step 1).
		for i, k := range keys {
			kp := s.acc.KeyPointerAt(rec.headers, i)
			kp.SetPredicateOrdinal(uint8(i))
			kp.SetPreviousAddress(InvalidAddress)
			if k == nil {
				kp.SetFlagBits(keypointer.FlagNull)
				continue
			}
			if deleteFlags != nil && i < len(deleteFlags) && deleteFlags[i] {
				kp.SetFlagBits(keypointer.FlagDeleted)
			}
			kp.SetKeyLen(uint16(len(k)))
			h := s.hashFor(i, k)
			kp.SetKeyHash(h)
			rec.keys[i] = k

			slotIdx, snapshot, err := s.table.FindOrCreateTag(h)
			if err != nil {
				return shierr.New(shierr.InternalError, "Insert", err)
			}
			prevAddr, nonEmpty := EntryAddress(snapshot)
			if nonEmpty {
				prevRecAddr, prevOrd := compositekey.UnpackAddress(prevAddr)
				if prevRec, _, found := s.log.GetPhysical(prevRecAddr); found {
					prevKP := s.acc.KeyPointerAt(prevRec.headers, int(prevOrd))
					if prevKP.IsDeleted() && prevKP.PreviousAddress() == InvalidAddress {
						// Tombstoned, empty-chain predecessor: elide it,
						// this insert becomes the new chain root.
						prevAddr = InvalidAddress
					} else if sess.Phase() == PhasePrepare && prevRec.Version() > sess.Version() {
						pivot = true
					}
				}
			}
			kp.SetPreviousAddress(prevAddr)
			helpers = append(helpers, casHelper{ordinal: i, slotIdx: slotIdx, hash: h, prevSnapshot: snapshot})
		}

		if pivot {
			if s.metrics != nil {
				s.metrics.VersionShift.Inc()
			}
			return shierr.New(shierr.VersionShift, "Insert", nil)
		}

		// Allocate (step 3).
		addr := s.log.Allocate(rec)

		// Publish pass (step 4).
		retryWhole := false
		for hi := range helpers {
			h := &helpers[hi]
			kp := s.acc.KeyPointerAt(rec.headers, h.ordinal)
			for {
				newAddr := compositekey.PackAddress(addr, uint8(h.ordinal))
				newEntry := NewEntry(h.hash, newAddr)
				actual, swapped := s.table.CAS(h.slotIdx, h.prevSnapshot, newEntry)
				if swapped {
					h.installed = newEntry
					break
				}
				actualAddr, nonEmpty := EntryAddress(actual)
				if !nonEmpty {
					// Slot was claimed concurrently with an empty chain;
					// retry the CAS against the fresh snapshot.
					h.prevSnapshot = actual
					continue
				}
				actualRecAddr, _ := compositekey.UnpackAddress(actualAddr)
				if actualRecAddr < addr {
					// Another writer spliced in below us: adopt it and
					// keep the downward invariant, retry only this CAS.
					kp.SetPreviousAddress(actualAddr)
					h.prevSnapshot = actual
					continue
				}
				// actualRecAddr > addr: the slot moved above our
				// allocation. The downward invariant is unsatisfiable for
				// this attempt.
				retryWhole = true
				break
			}
			if retryWhole {
				break
			}
		}

		if retryWhole {
			if s.metrics != nil {
				s.metrics.RetryNow.Inc()
			}
			// Best-effort revert of any CAS this attempt already
			// installed, so no slot is left pointing at a record we are
			// about to abandon permanently invalid.
			for hi := range helpers {
				h := &helpers[hi]
				if h.installed == 0 {
					continue
				}
				s.table.CAS(h.slotIdx, h.installed, h.prevSnapshot)
			}
			continue // tail-recurse into step 1 (spec "Retry semantics")
		}

		// Finalize (step 5).
		for _, h := range helpers {
			s.acc.KeyPointerAt(rec.headers, h.ordinal).ClearUpdateFlags()
		}
		rec.invalid.Store(false)
		if s.metrics != nil {
			s.metrics.Inserts.Inc()
		}
		return nil
	}
	return shierr.New(shierr.InternalError, "Insert", fmt.Errorf("exceeded %d retry attempts", s.maxInsertAttempts))
}

// Delete models a delete as an insert of a record whose KeyPointers all
// carry is_deleted (spec §4.3.3): it occupies the same chain positions as
// a normal insert and readers skip it via their dead-records set.
func (s *Store) Delete(keys [][]byte, recordID shi.RecordId, sess *Session) error {
	flags := make([]bool, len(keys))
	for i, k := range keys {
		if k != nil {
			flags[i] = true
		}
	}
	return s.Insert(keys, flags, recordID, sess)
}

// Update performs the two-phase RCU update from spec §4.3.4: an "unlink"
// record tombstoning predicates whose key changed or disappeared, followed
// by a "live" record carrying fresh entries for predicates that are new or
// changed. Predicates whose before/after key is unchanged are left alone —
// the old record's entry stays canonical for them.
func (s *Store) Update(beforeKeys, afterKeys [][]byte, oldRecordID, newRecordID shi.RecordId, sess *Session) error {
	n := s.acc.PredicateCount
	if len(beforeKeys) != n || len(afterKeys) != n {
		return shierr.New(shierr.ArgumentError, "Update", fmt.Errorf("expected %d keys on each side", n))
	}
	unlinkKeys := make([][]byte, n)
	unlinkFlags := make([]bool, n)
	liveKeys := make([][]byte, n)
	anyUnlink, anyLive := false, false

	for i := 0; i < n; i++ {
		before, after := beforeKeys[i], afterKeys[i]
		wasNull, isNull := before == nil, after == nil
		equal := !wasNull && !isNull && s.comparer.Equals(before, after)
		unlink := !wasNull && (isNull || !equal)
		link := !isNull && (wasNull || !equal)
		if unlink {
			unlinkKeys[i] = before
			unlinkFlags[i] = true
			anyUnlink = true
		}
		if link {
			liveKeys[i] = after
			anyLive = true
		}
	}

	if !anyUnlink && !anyLive {
		return nil // property 4: identical before/after is a pure no-op
	}
	if anyUnlink {
		if err := s.Insert(unlinkKeys, unlinkFlags, oldRecordID, sess); err != nil {
			return err
		}
	}
	if anyLive {
		if err := s.Insert(liveKeys, nil, newRecordID, sess); err != nil {
			return err
		}
	}
	return nil
}

// Read walks predicate ordinal's chain for key, starting fresh (via a
// hash-table lookup) if startAddress is InvalidAddress, or resuming a
// prior walk otherwise. Implements spec §4.3.2.
func (s *Store) Read(ordinal int, key []byte, startAddress int64) ReadResult {
	var addr int64
	if startAddress != InvalidAddress {
		addr = startAddress
	} else {
		hash := s.hashFor(ordinal, key)
		a, found := s.table.FindTag(hash)
		if !found {
			return ReadResult{Status: shi.StatusNotFound}
		}
		addr = a
	}
	return s.walk(ordinal, key, addr, false)
}

// resumeRead continues a walk that previously suspended for I/O: the
// first hop of this walk is the address that was pending, so its record
// is fetched via the on-disk path directly rather than suspending again.
func (s *Store) resumeRead(ordinal int, key []byte, addr int64) ReadResult {
	return s.walk(ordinal, key, addr, true)
}

func (s *Store) walk(ordinal int, key []byte, addr int64, resuming bool) ReadResult {
	hops := 0
	for {
		if addr == InvalidAddress {
			return ReadResult{Status: shi.StatusNotFound}
		}
		recAddr, kpOrdinal := compositekey.UnpackAddress(addr)
		rec, region, found := s.log.GetPhysical(recAddr)
		if !found && resuming {
			resuming = false
			if r, ok := s.log.GetPhysicalOnDisk(recAddr); ok {
				rec, found = r, true
			}
		}
		if !found {
			if region == RegionOnDisk {
				if s.metrics != nil {
					s.metrics.PendingReads.Inc()
				}
				return ReadResult{Status: shi.StatusPending, Pending: s.newPendingContext(ordinal, key, addr)}
			}
			return ReadResult{Status: shi.StatusNotFound}
		}
		hops++
		if !rec.Invalid() {
			kp := s.acc.KeyPointerAt(rec.headers, int(kpOrdinal))
			if int(kpOrdinal) == ordinal && !kp.IsNull() && s.comparer.Equals(rec.KeyBytes(int(kpOrdinal)), key) {
				if s.metrics != nil {
					s.metrics.ChainLength.Observe(float64(hops))
				}
				return ReadResult{
					Status:      shi.StatusOK,
					RecordID:    rec.RecordID(),
					Deleted:     kp.IsDeleted(),
					NextAddress: kp.PreviousAddress(),
				}
			}
			addr = kp.PreviousAddress()
			continue
		}
		// Invariant 5: never observe an invalid record. In the absence of
		// a real concurrent writer this should not happen in this
		// reference store's tests; treat it as an exhausted chain rather
		// than spin forever.
		return ReadResult{Status: shi.StatusNotFound}
	}
}
