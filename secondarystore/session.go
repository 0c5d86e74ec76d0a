package secondarystore

import "sync/atomic"

// Phase models the checkpoint-adjacent state machine spec §4.3.1 step 2
// refers to as "the session's version/phase". Only two phases matter to
// the insert protocol: Normal (the common case) and Prepare (a checkpoint
// is collecting a consistent cut, so writers touching records from a
// newer version must be deflected back to the caller via VersionShift).
type Phase int32

const (
	PhaseNormal Phase = iota
	PhasePrepare
)

// epoch is the store-wide version/phase pair every Session snapshots from.
type epoch struct {
	version atomic.Int64
	phase   atomic.Int32
}

func (e *epoch) Version() int64 { return e.version.Load() }
func (e *epoch) Phase() Phase   { return Phase(e.phase.Load()) }

// AdvanceToPrepare bumps the version and enters Prepare, as a checkpoint
// begins collecting a consistent cut.
func (e *epoch) AdvanceToPrepare() int64 {
	v := e.version.Add(1)
	e.phase.Store(int32(PhasePrepare))
	return v
}

// CompletePrepare returns to Normal once the checkpoint's cut is taken.
func (e *epoch) CompletePrepare() { e.phase.Store(int32(PhaseNormal)) }

// Session is a single-owner handle on a Store: "operations execute
// serially from its owner's perspective and may not be concurrently
// invoked" (spec §5). Sessions are cheap; callers needing concurrent flows
// open separate sessions against the same Store.
type Session struct {
	store  *Store
	version int64
	serial  int64
}

// NewSession snapshots the store's current version. A session that spans a
// checkpoint's version bump gets VersionShift from Insert while the store is
// in Prepare and the chain head it would link onto was written under a newer
// version than its own; Refresh brings it up to the current version.
func (s *Store) NewSession() *Session {
	return &Session{store: s, version: s.epoch.Version()}
}

// Refresh re-snapshots the session's version, the prescribed response to a
// VersionShift error (spec §7: "Operation retried on the new phase").
func (sess *Session) Refresh() {
	sess.version = sess.store.epoch.Version()
}

func (sess *Session) Version() int64 { return sess.version }

func (sess *Session) Phase() Phase { return sess.store.epoch.Phase() }

// NextSerial returns the next monotonically non-decreasing serial number
// for this session (spec §5 ordering guarantee).
func (sess *Session) NextSerial() int64 {
	sess.serial++
	return sess.serial
}
