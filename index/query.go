package index

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/ledgerwatch/shi/group"
	"github.com/ledgerwatch/shi/shi"
)

// ResultItem is one liveness-confirmed (user key, user value) pair a
// query surfaces (spec §6 query API: "yields ... provider_data ... along
// with the matching RecordIds").
type ResultItem struct {
	RecordID shi.RecordId
	Key      []byte
	Value    any
}

func drainCursor(c *group.Cursor) []shi.RecordId {
	var out []shi.RecordId
	for {
		id, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, id)
	}
}

// idSet tracks a result set via a 32-bit roaring projection of the
// RecordId plus a back-map to the original value — the same tradeoff
// group.Cursor's dead_records set makes, justified the same way: this
// reference store's address space does not exceed it in testing.
type idSet struct {
	bitmap *roaring.Bitmap
	ids    map[uint32]shi.RecordId
}

func newIDSet() *idSet { return &idSet{bitmap: roaring.New(), ids: make(map[uint32]shi.RecordId)} }

func (s *idSet) add(id shi.RecordId) {
	k := uint32(id)
	s.bitmap.Add(k)
	s.ids[k] = id
}

func (s *idSet) addAll(ids []shi.RecordId) {
	for _, id := range ids {
		s.add(id)
	}
}

func (s *idSet) values() []shi.RecordId {
	out := make([]shi.RecordId, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, id)
	}
	return out
}

func (m *Manager) liveFilter(ids []shi.RecordId) []ResultItem {
	out := make([]ResultItem, 0, len(ids))
	for _, id := range ids {
		if key, value, live := checkLiveness(m.primary, id, m.metrics); live {
			out = append(out, ResultItem{RecordID: id, Key: key, Value: value})
		}
	}
	return out
}

// Query is spec §6 query arity 1: a single (predicate, key) chain.
func (m *Manager) Query(g *group.Group, ordinal int, key any) ([]ResultItem, error) {
	cur, err := g.Query(ordinal, key)
	if err != nil {
		return nil, err
	}
	return m.liveFilter(drainCursor(cur)), nil
}

// QueryUnion is spec §6 query arity 2: union over multiple keys on one chain.
func (m *Manager) QueryUnion(g *group.Group, ordinal int, keys []any) ([]ResultItem, error) {
	set := newIDSet()
	for _, key := range keys {
		cur, err := g.Query(ordinal, key)
		if err != nil {
			return nil, err
		}
		set.addAll(drainCursor(cur))
	}
	return m.liveFilter(set.values()), nil
}

// ChainSpec names one (group, predicate ordinal, key) chain to compose.
type ChainSpec struct {
	Group   *group.Group
	Ordinal int
	Key     any
}

func (m *Manager) materialize(spec ChainSpec) (*idSet, error) {
	cur, err := spec.Group.Query(spec.Ordinal, spec.Key)
	if err != nil {
		return nil, err
	}
	set := newIDSet()
	set.addAll(drainCursor(cur))
	return set, nil
}

func pickID(sets []*idSet, k uint32) shi.RecordId {
	for _, set := range sets {
		if id, ok := set.ids[k]; ok {
			return id
		}
	}
	return 0
}

// Compose2 is spec §6 arity 3: two-chain boolean composition.
func (m *Manager) Compose2(a, b ChainSpec, match func(inA, inB bool) bool) ([]ResultItem, error) {
	return m.ComposeN([]ChainSpec{a, b}, func(in []bool) bool { return match(in[0], in[1]) })
}

// Compose3 is spec §6 arity 4: three-chain boolean composition.
func (m *Manager) Compose3(a, b, c ChainSpec, match func(inA, inB, inC bool) bool) ([]ResultItem, error) {
	return m.ComposeN([]ChainSpec{a, b, c}, func(in []bool) bool { return match(in[0], in[1], in[2]) })
}

// ComposeN is spec §6 arity 5: N chains over the same key type, matched
// by an arbitrary boolean function of their membership vector.
func (m *Manager) ComposeN(specs []ChainSpec, match func(in []bool) bool) ([]ResultItem, error) {
	sets := make([]*idSet, len(specs))
	union := roaring.New()
	for i, spec := range specs {
		set, err := m.materialize(spec)
		if err != nil {
			return nil, err
		}
		sets[i] = set
		union.Or(set.bitmap)
	}
	var matched []shi.RecordId
	it := union.Iterator()
	for it.HasNext() {
		k := it.Next()
		in := make([]bool, len(sets))
		for i, set := range sets {
			in[i] = set.bitmap.Contains(k)
		}
		if match(in) {
			matched = append(matched, pickID(sets, k))
		}
	}
	return m.liveFilter(matched), nil
}

// ChainBatch is one key-type group's chains for ComposeBatches (spec §6
// arity 6: "analogous forms for 2 and 3 key types").
type ChainBatch struct {
	Specs []ChainSpec
}

// ComposeBatches matches across several key-type batches at once; match
// receives one membership vector per batch, in batch order.
func (m *Manager) ComposeBatches(batches []ChainBatch, match func(in [][]bool) bool) ([]ResultItem, error) {
	batchSets := make([][]*idSet, len(batches))
	union := roaring.New()
	for bi, batch := range batches {
		sets := make([]*idSet, len(batch.Specs))
		for si, spec := range batch.Specs {
			set, err := m.materialize(spec)
			if err != nil {
				return nil, err
			}
			sets[si] = set
			union.Or(set.bitmap)
		}
		batchSets[bi] = sets
	}
	var matched []shi.RecordId
	it := union.Iterator()
	for it.HasNext() {
		k := it.Next()
		in := make([][]bool, len(batchSets))
		var id shi.RecordId
		for bi, sets := range batchSets {
			in[bi] = make([]bool, len(sets))
			for si, set := range sets {
				in[bi][si] = set.bitmap.Contains(k)
			}
			if got := pickID(sets, k); got != 0 {
				id = got
			}
		}
		if match(in) {
			matched = append(matched, id)
		}
	}
	return m.liveFilter(matched), nil
}
