package group

import (
	"fmt"

	"github.com/ledgerwatch/shi/secondarystore"
	"github.com/ledgerwatch/shi/shi"
	"github.com/ledgerwatch/shi/shierr"
)

// Session is a single-owner handle executing one group's predicates
// against a stream of primary mutations (spec §4.4's three-state
// lifecycle). Not thread-safe: a logical flow owns its Session; concurrent
// flows open separate ones (spec §4.5.2).
type Session struct {
	group     *Group
	store     *secondarystore.Session
	preUpdate [][]byte // parked "before" composite, nil when no PreUpdate is pending
}

// NewSession opens a per-thread session on this group's store.
func (g *Group) NewSession() *Session {
	return &Session{group: g, store: g.store.NewSession()}
}

func (s *Session) Refresh() { s.store.Refresh() }

// Insert executes ExecutionPhase Insert: build the composite from value,
// no-op if every predicate is null, else an internal insert at recordID.
func (s *Session) Insert(value any, recordID shi.RecordId) error {
	keys, allNull := s.group.buildKeys(value)
	if allNull {
		return nil
	}
	return s.group.store.Insert(keys, nil, recordID, s.store)
}

// Delete executes ExecutionPhase Delete: build the composite from the
// about-to-be-removed value, internal delete.
func (s *Session) Delete(value any, recordID shi.RecordId) error {
	keys, _ := s.group.buildKeys(value)
	return s.group.store.Delete(keys, recordID, s.store)
}

// PreUpdate executes ExecutionPhase PreUpdate: park the before composite,
// no store I/O (spec §4.4). Must be followed by exactly one PostUpdate
// before the session is reused for another update.
func (s *Session) PreUpdate(beforeValue any) {
	keys, _ := s.group.buildKeys(beforeValue)
	s.preUpdate = keys
}

// PostUpdate executes ExecutionPhase PostUpdate: build the after
// composite, diff against the parked before composite, and drive the
// two-phase RCU update if anything changed.
func (s *Session) PostUpdate(afterValue any, oldRecordID, newRecordID shi.RecordId) error {
	if s.preUpdate == nil {
		return shierr.New(shierr.InvalidOperation, "PostUpdate", fmt.Errorf("PostUpdate called without a preceding PreUpdate"))
	}
	before := s.preUpdate
	s.preUpdate = nil
	after, _ := s.group.buildKeys(afterValue)
	return s.group.store.Update(before, after, oldRecordID, newRecordID, s.store)
}
