package index

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ledgerwatch/shi/group"
	"github.com/ledgerwatch/shi/shi"
	"github.com/ledgerwatch/shi/shierr"
)

// Session bundles one group.Session per registered group (spec §4.5.2).
// It holds no session on the primary store: liveness checks run through
// the Manager's shared primary handle. Not thread-safe: one logical
// mutation/query flow per Session.
type Session struct {
	manager  *Manager
	groups   map[string]*group.Session
	poisoned bool
}

// NewSession opens a fan-out session across every currently registered
// group. Groups registered after this call are not included.
func (m *Manager) NewSession() *Session {
	groups := make(map[string]*group.Session)
	for _, g := range m.groupList() {
		groups[g.Name] = g.NewSession()
	}
	return &Session{manager: m, groups: groups}
}

func (s *Session) Refresh() {
	for _, gs := range s.groups {
		gs.Refresh()
	}
}

// guarded contains a predicate panic (spec §9 open question: "treat it
// as an InternalError that aborts the current mutation and poisons the
// session") so one misbehaving predicate cannot crash the calling flow.
func guarded(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = shierr.New(shierr.InternalError, "predicate", fmt.Errorf("panic: %v", r))
		}
	}()
	return fn()
}

func (s *Session) fanOut(fn func(gs *group.Session) error) error {
	if s.poisoned {
		return shierr.New(shierr.InvalidOperation, "Session", fmt.Errorf("session is poisoned by a prior failure"))
	}
	var eg errgroup.Group
	for _, gs := range s.groups {
		gs := gs
		eg.Go(func() error { return guarded(func() error { return fn(gs) }) })
	}
	if err := eg.Wait(); err != nil {
		s.poisoned = true
		return err
	}
	return nil
}

// Insert fans ExecutionPhase Insert out across every group (spec §4.5.1
// step 2).
func (s *Session) Insert(value any, recordID shi.RecordId) error {
	return s.fanOut(func(gs *group.Session) error { return gs.Insert(value, recordID) })
}

// Delete fans ExecutionPhase Delete out across every group.
func (s *Session) Delete(value any, recordID shi.RecordId) error {
	return s.fanOut(func(gs *group.Session) error { return gs.Delete(value, recordID) })
}

// PreUpdate parks the before composite in every group, ahead of the
// primary mutation (spec §4.5.1 step 3). Predicate panics here poison
// the session the same way a mutating phase's would.
func (s *Session) PreUpdate(beforeValue any) error {
	return s.fanOut(func(gs *group.Session) error {
		gs.PreUpdate(beforeValue)
		return nil
	})
}

// PostUpdate fans ExecutionPhase PostUpdate out across every group,
// after the primary mutation has taken effect.
func (s *Session) PostUpdate(afterValue any, oldRecordID, newRecordID shi.RecordId) error {
	return s.fanOut(func(gs *group.Session) error {
		return gs.PostUpdate(afterValue, oldRecordID, newRecordID)
	})
}
