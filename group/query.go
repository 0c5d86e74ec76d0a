package group

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/ledgerwatch/shi/secondarystore"
	"github.com/ledgerwatch/shi/shi"
	"github.com/ledgerwatch/shi/shierr"
)

// Cursor is the lazy, finite, not-restartable sequence of RecordIds a
// query produces (spec §4.4). Each call to Next continues from the
// previous hit's previous_address; a tombstoned hit is recorded in the
// local dead_records set and suppressed from the stream (spec §4.5.3),
// along with any later hit for a RecordId already seen as deleted.
type Cursor struct {
	store   *secondarystore.Store
	ordinal int
	key     []byte

	started bool
	next    int64
	done    bool
	dead    *roaring.Bitmap
}

// Query opens a cursor over ordinal's chain for key (spec §4.4
// `query(predicate_ordinal, key)`).
func (g *Group) Query(ordinal int, key any) (*Cursor, error) {
	if ordinal < 0 || ordinal >= len(g.predicates) {
		return nil, shierr.New(shierr.ArgumentError, "Query", fmt.Errorf("predicate ordinal %d out of range [0,%d)", ordinal, len(g.predicates)))
	}
	return &Cursor{
		store:   g.store,
		ordinal: ordinal,
		key:     g.comparer.Marshal(key),
		next:    secondarystore.InvalidAddress,
		dead:    roaring.New(),
	}, nil
}

// dead_records entries are keyed by the low 32 bits of a RecordId. This
// reference store's RecordIds are monotone log addresses; a query's
// suppression set only ever needs to span the chain it is currently
// walking, so a 32-bit projection is sufficient for the scale this
// in-memory log reaches in practice.
func roaringKey(r shi.RecordId) uint32 { return uint32(r) }

// Next advances the cursor. ok is false once the chain is exhausted; the
// cursor is not restartable afterward.
func (c *Cursor) Next() (shi.RecordId, bool) {
	for {
		if c.done {
			return 0, false
		}
		var addr int64
		if !c.started {
			addr = secondarystore.InvalidAddress
			c.started = true
		} else {
			if c.next == secondarystore.InvalidAddress {
				c.done = true
				return 0, false
			}
			addr = c.next
		}

		res := c.store.Read(c.ordinal, c.key, addr)
		if res.Status == shi.StatusPending {
			res = res.Pending.Complete()
		}
		if res.Status != shi.StatusOK {
			c.done = true
			return 0, false
		}
		c.next = res.NextAddress

		if res.Deleted {
			c.dead.Add(roaringKey(res.RecordID))
			continue
		}
		if c.dead.Contains(roaringKey(res.RecordID)) {
			continue
		}
		return res.RecordID, true
	}
}
