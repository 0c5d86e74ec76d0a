package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/shi/primarykv"
	"github.com/ledgerwatch/shi/shi"
)

// fakeChainStore lets a test dictate exactly which addresses exist and how
// they chain, to exercise checkLiveness's three outcomes directly: live
// (the walk reaches r), stale (the walk passes below r), and not-found
// (r itself was compacted away).
type fakeChainStore struct {
	byAddr map[int64]struct {
		key   []byte
		value any
	}
	head map[string]int64
	prev map[int64]int64
}

func (f *fakeChainStore) ReadAt(addr int64) ([]byte, any, bool) {
	r, ok := f.byAddr[addr]
	if !ok {
		return nil, nil, false
	}
	return r.key, r.value, true
}

func (f *fakeChainStore) Head(key []byte) (int64, bool) {
	a, ok := f.head[string(key)]
	return a, ok
}

func (f *fakeChainStore) Prev(addr int64) (int64, bool) {
	p, ok := f.prev[addr]
	return p, ok
}

var _ primarykv.Store = (*fakeChainStore)(nil)

func TestCheckLivenessRecordAtHeadIsLive(t *testing.T) {
	f := &fakeChainStore{
		byAddr: map[int64]struct {
			key   []byte
			value any
		}{5: {key: []byte("k"), value: "v"}},
		head: map[string]int64{"k": 5},
		prev: map[int64]int64{},
	}
	key, value, live := checkLiveness(f, shi.RecordId(5), nil)
	require.True(t, live)
	require.Equal(t, []byte("k"), key)
	require.Equal(t, "v", value)
}

func TestCheckLivenessRecordBelowHeadButStillChainedIsLive(t *testing.T) {
	f := &fakeChainStore{
		byAddr: map[int64]struct {
			key   []byte
			value any
		}{
			3: {key: []byte("k"), value: "old"},
			7: {key: []byte("k"), value: "new"},
		},
		head: map[string]int64{"k": 7},
		prev: map[int64]int64{7: 3},
	}
	_, _, live := checkLiveness(f, shi.RecordId(3), nil)
	require.True(t, live, "address 3 is still reachable by walking down from the head")
}

func TestCheckLivenessChainBypassesAddressIsStale(t *testing.T) {
	f := &fakeChainStore{
		byAddr: map[int64]struct {
			key   []byte
			value any
		}{
			4: {key: []byte("k"), value: "orphaned"},
			9: {key: []byte("k"), value: "new"},
			2: {key: []byte("k"), value: "ancient"},
		},
		head: map[string]int64{"k": 9},
		// 9's chain skips straight to 2, never touching 4: 4 was spliced
		// out without a chaining link (e.g. overwritten in place).
		prev: map[int64]int64{9: 2},
	}
	_, _, live := checkLiveness(f, shi.RecordId(4), nil)
	require.False(t, live, "the walk passed below address 4 without matching it")
}

func TestCheckLivenessCompactedRecordIsNotFound(t *testing.T) {
	f := &fakeChainStore{
		byAddr: map[int64]struct {
			key   []byte
			value any
		}{},
		head: map[string]int64{},
		prev: map[int64]int64{},
	}
	_, _, live := checkLiveness(f, shi.RecordId(11), nil)
	require.False(t, live)
}
