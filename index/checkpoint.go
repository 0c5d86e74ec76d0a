package index

import (
	"fmt"

	"github.com/ledgerwatch/shi/shierr"
)

// CheckpointToken is this implementation's choice of checkpoint format
// (spec §9 open question: "checkpoint format is not fixed by the
// source; only the API contract is"). It records the version each
// group's log was cut at, which is all Recover needs to validate a
// checkpoint is being resumed against the same group set it was taken
// from; there is no on-disk image behind it in this reference store.
type CheckpointToken struct {
	GroupVersions map[string]int64
}

// TakeFullCheckpoint cuts a version boundary across every group and
// evicts everything behind it (spec §6 take_full_checkpoint).
func (m *Manager) TakeFullCheckpoint() (CheckpointToken, error) {
	token, err := m.TakeIndexCheckpoint()
	if err != nil {
		return CheckpointToken{}, err
	}
	if err := m.FlushAndEvict(); err != nil {
		return CheckpointToken{}, err
	}
	return token, nil
}

// TakeIndexCheckpoint cuts a version boundary across every group without
// evicting (spec §6 take_index_checkpoint).
func (m *Manager) TakeIndexCheckpoint() (CheckpointToken, error) {
	groups := m.groupList()
	token := CheckpointToken{GroupVersions: make(map[string]int64, len(groups))}
	for _, g := range groups {
		token.GroupVersions[g.Name] = g.AdvanceToPrepare()
	}
	// A real engine waits for every in-flight session to observe the new
	// version (surfacing VersionShift to stragglers) before completing
	// prepare; this reference store has no background sessions to wait
	// for, so it completes immediately.
	for _, g := range groups {
		g.CompletePrepare()
	}
	return token, nil
}

// TakeHybridLogCheckpoint advances the safe-read-only boundary across
// every group without cutting a version boundary (spec §6
// take_hybrid_log_checkpoint).
func (m *Manager) TakeHybridLogCheckpoint() error {
	return m.Flush()
}

// CompleteCheckpointAsync is synchronous here: every checkpoint call
// above has already finished its work by the time it returns (spec §6
// complete_checkpoint_async).
func (m *Manager) CompleteCheckpointAsync(CheckpointToken) error { return nil }

// Recover validates that token names exactly the groups currently
// registered (spec §6 recover). It restores no state: the recorded
// versions are not applied to the groups.
func (m *Manager) Recover(token CheckpointToken) error {
	groups := m.groupList()
	if len(token.GroupVersions) != len(groups) {
		return shierr.New(shierr.ArgumentError, "Recover", fmt.Errorf("checkpoint token names %d groups, manager has %d", len(token.GroupVersions), len(groups)))
	}
	for _, g := range groups {
		if _, ok := token.GroupVersions[g.Name]; !ok {
			return shierr.New(shierr.ArgumentError, "Recover", fmt.Errorf("checkpoint token missing group %q", g.Name))
		}
	}
	return nil
}

// DisposeFromMemory evicts every group's in-memory working set (spec §6
// dispose_from_memory).
func (m *Manager) DisposeFromMemory() error {
	return m.FlushAndEvict()
}
