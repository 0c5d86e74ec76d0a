package secondarystore

import (
	"path/filepath"
	"testing"

	"github.com/ledgerwatch/shi/comparer"
	"github.com/ledgerwatch/shi/shi"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, predicateCount int) *Store {
	t.Helper()
	s, err := NewStore(Config{
		PredicateCount: predicateCount,
		HashTableSize:  64,
		Comparer:       comparer.Bytes,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndReadSinglePredicate(t *testing.T) {
	s := newTestStore(t, 1)
	sess := s.NewSession()

	require.NoError(t, s.Insert([][]byte{[]byte("blue")}, nil, shi.RecordId(1), sess))
	require.NoError(t, s.Insert([][]byte{[]byte("red")}, nil, shi.RecordId(2), sess))
	require.NoError(t, s.Insert([][]byte{[]byte("blue")}, nil, shi.RecordId(3), sess))

	res := s.Read(0, []byte("blue"), InvalidAddress)
	require.Equal(t, shi.StatusOK, res.Status)
	require.Equal(t, shi.RecordId(3), res.RecordID)

	// Continue the chain from NextAddress to find the older "blue" hit.
	res2 := s.Read(0, []byte("blue"), res.NextAddress)
	require.Equal(t, shi.StatusOK, res2.Status)
	require.Equal(t, shi.RecordId(1), res2.RecordID)
	require.Equal(t, InvalidAddress, res2.NextAddress, "blue#1 is the chain root, nothing further to walk")

	miss := s.Read(0, []byte("green"), InvalidAddress)
	require.Equal(t, shi.StatusNotFound, miss.Status)
}

func TestInsertNullPredicateIsNoLinkage(t *testing.T) {
	s := newTestStore(t, 2)
	sess := s.NewSession()

	require.NoError(t, s.Insert([][]byte{nil, []byte("x")}, nil, shi.RecordId(1), sess))

	res := s.Read(0, []byte("anything"), InvalidAddress)
	require.Equal(t, shi.StatusNotFound, res.Status, "ordinal 0 was null, must not be linked")

	res2 := s.Read(1, []byte("x"), InvalidAddress)
	require.Equal(t, shi.StatusOK, res2.Status)
	require.Equal(t, shi.RecordId(1), res2.RecordID)
}

func TestInsertAllNullIsNoOp(t *testing.T) {
	s := newTestStore(t, 2)
	sess := s.NewSession()
	require.NoError(t, s.Insert([][]byte{nil, nil}, nil, shi.RecordId(1), sess))
	require.Equal(t, int64(0), s.log.HeadAddress(), "all-null insert must not allocate")
}

func TestDeleteThenQueryEmptyButRecordRemains(t *testing.T) {
	s := newTestStore(t, 1)
	sess := s.NewSession()
	require.NoError(t, s.Insert([][]byte{[]byte("v")}, nil, shi.RecordId(1), sess))
	require.NoError(t, s.Delete([][]byte{[]byte("v")}, shi.RecordId(1), sess))

	res := s.Read(0, []byte("v"), InvalidAddress)
	require.Equal(t, shi.StatusOK, res.Status, "the delete tombstone is still a chain hit")
	require.True(t, res.Deleted)
	require.Equal(t, shi.RecordId(1), res.RecordID)
	require.Equal(t, int64(2), s.log.HeadAddress(), "both the insert and the delete-insert allocated a record")
}

func TestUpdateChangedKeyMovesChain(t *testing.T) {
	s := newTestStore(t, 1)
	sess := s.NewSession()
	require.NoError(t, s.Insert([][]byte{[]byte("medium")}, nil, shi.RecordId(1), sess))

	require.NoError(t, s.Update([][]byte{[]byte("medium")}, [][]byte{[]byte("xxlarge")}, shi.RecordId(1), shi.RecordId(2), sess))

	oldRes := s.Read(0, []byte("medium"), InvalidAddress)
	require.Equal(t, shi.StatusOK, oldRes.Status)
	require.True(t, oldRes.Deleted, "medium chain's latest entry must be the unlink tombstone")

	newRes := s.Read(0, []byte("xxlarge"), InvalidAddress)
	require.Equal(t, shi.StatusOK, newRes.Status)
	require.False(t, newRes.Deleted)
	require.Equal(t, shi.RecordId(2), newRes.RecordID)
}

func TestUpdateUnchangedKeyIsNoOp(t *testing.T) {
	s := newTestStore(t, 1)
	sess := s.NewSession()
	require.NoError(t, s.Insert([][]byte{[]byte("v")}, nil, shi.RecordId(1), sess))
	head := s.log.HeadAddress()

	require.NoError(t, s.Update([][]byte{[]byte("v")}, [][]byte{[]byte("v")}, shi.RecordId(1), shi.RecordId(2), sess))

	require.Equal(t, head, s.log.HeadAddress(), "identical before/after must not allocate (property 4)")
}

func TestEvictionProducesPendingThenCompletes(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(Config{
		PredicateCount: 1,
		HashTableSize:  64,
		Comparer:       comparer.Bytes,
		Log:            LogConfig{Device: filepath.Join(dir, "seg0"), DeviceCapacity: 1 << 20},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	sess := s.NewSession()
	require.NoError(t, s.Insert([][]byte{[]byte("k")}, nil, shi.RecordId(7), sess))
	require.NoError(t, s.FlushAndEvict())

	res := s.Read(0, []byte("k"), InvalidAddress)
	require.Equal(t, shi.StatusPending, res.Status)
	require.NotNil(t, res.Pending)

	done := res.Pending.Complete()
	require.Equal(t, shi.StatusOK, done.Status)
	require.Equal(t, shi.RecordId(7), done.RecordID)
}

func TestVersionShiftDuringPrepare(t *testing.T) {
	s := newTestStore(t, 1)
	sess := s.NewSession()
	require.NoError(t, s.Insert([][]byte{[]byte("v")}, nil, shi.RecordId(1), sess))

	s.AdvanceToPrepare()
	defer s.CompletePrepare()

	// sess still thinks it's at the old version; a fresh session at the
	// bumped version writes a predicate whose chain head is the record the
	// older session wrote.
	newSess := s.NewSession()
	err := s.Insert([][]byte{[]byte("v")}, nil, shi.RecordId(2), newSess)
	// The head record's version (captured at the old session's version)
	// is not greater than newSess's version, so this alone should not
	// pivot. A session older than the new chain head's version does.
	require.NoError(t, err)

	staleSess := &Session{store: s, version: -1}
	err = s.Insert([][]byte{[]byte("v")}, nil, shi.RecordId(3), staleSess)
	require.Error(t, err)
}
