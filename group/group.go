// Package group implements spec §4.4: binding a set of predicates that
// share one key type to one SecondaryStore, executing them against a
// primary value pair, and exposing the resulting composite-key chains as
// queries.
package group

import (
	"fmt"

	"github.com/ledgerwatch/shi/comparer"
	"github.com/ledgerwatch/shi/internal/metrics"
	"github.com/ledgerwatch/shi/secondarystore"
	"github.com/ledgerwatch/shi/shierr"
)

// Group owns one SecondaryStore and the predicate functions that build
// its composite keys out of a primary user value.
type Group struct {
	Name       string
	predicates []PredicateDef
	store      *secondarystore.Store
	comparer   comparer.KeyComparer
	metrics    *metrics.Store
}

// RegisterGroup builds a Group's SecondaryStore and validates its
// predicate set (spec §6 registration). predicates must be non-empty and
// every name unique; the store's predicate count is len(predicates).
func RegisterGroup(name string, predicates []PredicateDef, settings Settings) (*Group, error) {
	if name == "" {
		return nil, shierr.New(shierr.ArgumentError, "RegisterGroup", fmt.Errorf("group name must not be empty"))
	}
	if len(predicates) == 0 {
		return nil, shierr.New(shierr.ArgumentError, "RegisterGroup", fmt.Errorf("group %q: at least one predicate is required", name))
	}
	seen := make(map[string]struct{}, len(predicates))
	for _, p := range predicates {
		if p.Fn == nil {
			return nil, shierr.New(shierr.ArgumentError, "RegisterGroup", fmt.Errorf("group %q: predicate %q has a nil function", name, p.Name))
		}
		if _, dup := seen[p.Name]; dup {
			return nil, shierr.New(shierr.ArgumentError, "RegisterGroup", fmt.Errorf("group %q: duplicate predicate name %q", name, p.Name))
		}
		seen[p.Name] = struct{}{}
	}
	settings = settings.withDefaults()
	if settings.Comparer == nil {
		return nil, shierr.New(shierr.ArgumentError, "RegisterGroup", fmt.Errorf("group %q: a key comparer is required", name))
	}

	m := metrics.NewStore(settings.Registry, name)
	store, err := secondarystore.NewStore(secondarystore.Config{
		PredicateCount: len(predicates),
		HashTableSize:  settings.HashTableSize,
		Comparer:       settings.Comparer,
		IPUCache1Size:  settings.IPUCache1Size,
		IPUCache2Size:  settings.IPUCache2Size,
		Log: secondarystore.LogConfig{
			MemorySize:     uint64(settings.MemorySize),
			SegmentSize:    uint64(settings.SegmentSize),
			PageSize:       uint64(settings.PageSize),
			Device:         settings.Device,
			DeviceCapacity: settings.DeviceCapacity,
		},
	}, m)
	if err != nil {
		return nil, err
	}
	return &Group{Name: name, predicates: predicates, store: store, comparer: settings.Comparer, metrics: m}, nil
}

// Close releases the group's store (and its disk backing, if any).
func (g *Group) Close() error { return g.store.Close() }

// Predicates lists the handles callers use to address query ordinals.
func (g *Group) Predicates() []PredicateHandle {
	out := make([]PredicateHandle, len(g.predicates))
	for i, p := range g.predicates {
		out[i] = PredicateHandle{Name: p.Name, Ordinal: i}
	}
	return out
}

// Flush/FlushAndEvict delegate to the underlying store (spec §6 hooks).
func (g *Group) Flush()                { g.store.Flush() }
func (g *Group) FlushAndEvict() error  { return g.store.FlushAndEvict() }
func (g *Group) AdvanceToPrepare() int64 { return g.store.AdvanceToPrepare() }
func (g *Group) CompletePrepare()        { g.store.CompletePrepare() }

// buildKeys runs every predicate against value, returning one marshaled
// key slot per predicate ordinal (nil where the predicate does not
// apply). allNull is true when every slot came back nil.
func (g *Group) buildKeys(value any) (keys [][]byte, allNull bool) {
	keys = make([][]byte, len(g.predicates))
	allNull = true
	for i, p := range g.predicates {
		key, ok := p.Fn(value)
		if !ok {
			continue
		}
		keys[i] = g.comparer.Marshal(key)
		allNull = false
	}
	return keys, allNull
}
