package index

import (
	"fmt"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/shi/comparer"
	"github.com/ledgerwatch/shi/group"
	"github.com/ledgerwatch/shi/primarykv"
	"github.com/ledgerwatch/shi/shi"
)

// widget is the scenario record type shared by the property tests and
// the seeded end-to-end scenarios below.
type widget struct {
	size  int
	color int
	count int
}

var sizeNames = [5]string{"small", "medium", "large", "xlarge", "xxlarge"}
var colorNames = [7]string{"red", "orange", "yellow", "green", "blue", "indigo", "violet"}

func sizePredicate(v any) (any, bool) { return sizeNames[v.(widget).size], true }
func colorPredicate(v any) (any, bool) {
	return colorNames[v.(widget).color], true
}
func binPredicate(v any) (any, bool) {
	bin := v.(widget).count / 100
	if bin < 9 {
		return strconv.Itoa(bin), true
	}
	return nil, false
}

type scenarioFixture struct {
	mgr     *Manager
	primary *primarykv.MemStore
	size    *group.Group
	color   *group.Group
	bin     *group.Group
	records map[shi.RecordId]widget
	order   []shi.RecordId
}

func newScenarioFixture(t *testing.T, n int, seed int64) *scenarioFixture {
	t.Helper()
	primary := primarykv.NewMemStore()
	mgr := Attach(primary)

	sizeGroup, err := mgr.RegisterGroup("size", []group.PredicateDef{{Name: "size", Fn: sizePredicate}},
		group.Settings{HashTableSize: 256, Comparer: comparer.String})
	require.NoError(t, err)
	colorGroup, err := mgr.RegisterGroup("color", []group.PredicateDef{{Name: "color", Fn: colorPredicate}},
		group.Settings{HashTableSize: 256, Comparer: comparer.String})
	require.NoError(t, err)
	binGroup, err := mgr.RegisterGroup("bin", []group.PredicateDef{{Name: "bin", Fn: binPredicate}},
		group.Settings{HashTableSize: 256, Comparer: comparer.String})
	require.NoError(t, err)

	f := &scenarioFixture{
		mgr: mgr, primary: primary,
		size: sizeGroup, color: colorGroup, bin: binGroup,
		records: make(map[shi.RecordId]widget, n),
	}

	rnd := rand.New(rand.NewSource(seed))
	sess := mgr.NewSession()
	for i := 0; i < n; i++ {
		w := widget{size: rnd.Intn(5), color: rnd.Intn(7), count: rnd.Intn(1000)}
		addr := primary.Put([]byte(fmt.Sprintf("rec-%d", i)), w)
		id := shi.RecordId(addr)
		require.NoError(t, sess.Insert(w, id))
		f.records[id] = w
		f.order = append(f.order, id)
	}
	return f
}

func idsOf(items []ResultItem) map[shi.RecordId]struct{} {
	out := make(map[shi.RecordId]struct{}, len(items))
	for _, it := range items {
		out[it.RecordID] = struct{}{}
	}
	return out
}

func (f *scenarioFixture) expectSize(s int) map[shi.RecordId]struct{} {
	out := make(map[shi.RecordId]struct{})
	for id, w := range f.records {
		if w.size == s {
			out[id] = struct{}{}
		}
	}
	return out
}

func (f *scenarioFixture) expectColor(c int) map[shi.RecordId]struct{} {
	out := make(map[shi.RecordId]struct{})
	for id, w := range f.records {
		if w.color == c {
			out[id] = struct{}{}
		}
	}
	return out
}

func (f *scenarioFixture) expectBin(b int) map[shi.RecordId]struct{} {
	out := make(map[shi.RecordId]struct{})
	for id, w := range f.records {
		if w.count/100 == b && b < 9 {
			out[id] = struct{}{}
		}
	}
	return out
}

// S1: querying a single size value returns exactly the matching set.
func TestScenarioS1SizeQuery(t *testing.T) {
	f := newScenarioFixture(t, 1000, 13)
	items, err := f.mgr.Query(f.size, 0, sizeNames[2])
	require.NoError(t, err)
	require.Equal(t, f.expectSize(2), idsOf(items))
}

// S2: querying a single color value returns exactly the matching set.
func TestScenarioS2ColorQuery(t *testing.T) {
	f := newScenarioFixture(t, 1000, 13)
	items, err := f.mgr.Query(f.color, 0, "blue")
	require.NoError(t, err)
	require.Equal(t, f.expectColor(4), idsOf(items))
}

// S3: (size==medium) AND (color==blue) equals the intersection of S1,S2.
func TestScenarioS3Intersection(t *testing.T) {
	f := newScenarioFixture(t, 1000, 13)
	items, err := f.mgr.Compose2(
		ChainSpec{Group: f.size, Ordinal: 0, Key: "medium"},
		ChainSpec{Group: f.color, Ordinal: 0, Key: "blue"},
		func(inA, inB bool) bool { return inA && inB },
	)
	require.NoError(t, err)

	expect := make(map[shi.RecordId]struct{})
	sizeSet := f.expectSize(1)
	colorSet := f.expectColor(4)
	for id := range sizeSet {
		if _, ok := colorSet[id]; ok {
			expect[id] = struct{}{}
		}
	}
	require.Equal(t, expect, idsOf(items))
}

// S4: (size==medium) OR (color==blue) OR (bin==7) equals the union.
func TestScenarioS4Union(t *testing.T) {
	f := newScenarioFixture(t, 1000, 13)
	items, err := f.mgr.ComposeN([]ChainSpec{
		{Group: f.size, Ordinal: 0, Key: "medium"},
		{Group: f.color, Ordinal: 0, Key: "blue"},
		{Group: f.bin, Ordinal: 0, Key: "7"},
	}, func(in []bool) bool { return in[0] || in[1] || in[2] })
	require.NoError(t, err)

	expect := make(map[shi.RecordId]struct{})
	for id := range f.expectSize(1) {
		expect[id] = struct{}{}
	}
	for id := range f.expectColor(4) {
		expect[id] = struct{}{}
	}
	for id := range f.expectBin(7) {
		expect[id] = struct{}{}
	}
	require.Equal(t, expect, idsOf(items))
}

// S5: bin_pred=9 is always empty, because the predicate returns None
// whenever the quotient reaches 9.
func TestScenarioS5OutOfRangeBinIsEmpty(t *testing.T) {
	f := newScenarioFixture(t, 1000, 13)
	items, err := f.mgr.Query(f.bin, 0, "9")
	require.NoError(t, err)
	require.Empty(t, items)
}

// S6: upserting every medium record to xxlarge empties the medium query,
// and the xxlarge query returns the records already xxlarge plus one entry
// per updated medium record.
func TestScenarioS6BulkSizeUpdate(t *testing.T) {
	f := newScenarioFixture(t, 1000, 13)
	medium := f.expectSize(1)
	originalXXLargeCount := len(f.expectSize(4))

	sess := f.mgr.NewSession()
	for id := range medium {
		before := f.records[id]
		require.NoError(t, sess.PreUpdate(before))
		after := before
		after.size = 4
		newID := shi.RecordId(f.primary.Put([]byte(fmt.Sprintf("rec-updated-%d", id)), after))
		require.NoError(t, sess.PostUpdate(after, id, newID))
		f.records[newID] = after
		delete(f.records, id)
	}

	mediumItems, err := f.mgr.Query(f.size, 0, "medium")
	require.NoError(t, err)
	require.Empty(t, mediumItems)

	xxlargeItems, err := f.mgr.Query(f.size, 0, "xxlarge")
	require.NoError(t, err)
	require.Len(t, xxlargeItems, originalXXLargeCount+len(medium), "xxlarge now covers the records already that size plus every updated medium record")
}

// S7: deleting every red record empties a subsequent red query, and
// liveness suppresses any older chain entries for those RecordIds.
func TestScenarioS7BulkDelete(t *testing.T) {
	f := newScenarioFixture(t, 1000, 13)
	red := f.expectColor(0)

	sess := f.mgr.NewSession()
	for id := range red {
		require.NoError(t, sess.Delete(f.records[id], id))
	}

	items, err := f.mgr.Query(f.color, 0, "red")
	require.NoError(t, err)
	require.Empty(t, items)
}

// Property 1: after any sequence of mutations, a full query on a
// predicate returns exactly the records whose current value matches.
func TestPropertyQueryMatchesCurrentState(t *testing.T) {
	f := newScenarioFixture(t, 200, 7)
	for s := 0; s < 5; s++ {
		items, err := f.mgr.Query(f.size, 0, sizeNames[s])
		require.NoError(t, err)
		require.Equal(t, f.expectSize(s), idsOf(items))
	}
}

// Property 4: an update whose before/after keys are identical on every
// predicate is a no-op on the secondary store's log tail.
func TestPropertyNoOpUpdateDoesNotAllocate(t *testing.T) {
	g, err := group.RegisterGroup("solo", []group.PredicateDef{{Name: "color", Fn: colorPredicate}},
		group.Settings{HashTableSize: 64, Comparer: comparer.String})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	sess := g.NewSession()
	w := widget{color: 3}
	require.NoError(t, sess.Insert(w, 1))

	sess.PreUpdate(w)
	require.NoError(t, sess.PostUpdate(w, 1, 2))

	cur, err := g.Query(0, colorNames[3])
	require.NoError(t, err)
	var ids []shi.RecordId
	for {
		id, ok := cur.Next()
		if !ok {
			break
		}
		ids = append(ids, id)
	}
	require.Equal(t, []shi.RecordId{1}, ids, "the no-op update must not have linked a second entry")
}

// Property 6: insert then delete leaves no entry for that record in the
// predicate query.
func TestPropertyInsertThenDeleteIsEmpty(t *testing.T) {
	f := newScenarioFixture(t, 50, 21)
	sess := f.mgr.NewSession()
	w := widget{size: 2, color: 5, count: 42}
	id := shi.RecordId(f.primary.Put([]byte("extra"), w))
	require.NoError(t, sess.Insert(w, id))
	require.NoError(t, sess.Delete(w, id))

	items, err := f.mgr.Query(f.size, 0, "large")
	require.NoError(t, err)
	for _, it := range items {
		require.NotEqual(t, id, it.RecordID)
	}
}
