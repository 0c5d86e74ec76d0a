package index

import (
	"github.com/ledgerwatch/shi/internal/metrics"
	"github.com/ledgerwatch/shi/primarykv"
	"github.com/ledgerwatch/shi/shi"
)

// checkLiveness implements spec §4.5.3: a query-returned RecordId is only
// surfaced if walking the primary store's chain for its user key down from
// the head reaches this exact address. A record below the head that the walk
// still passes through is live; a walk that drops below it without a match,
// or a record or key the primary store no longer has, marks it stale.
func checkLiveness(primary primarykv.Store, r shi.RecordId, m *metrics.Store) (key []byte, value any, live bool) {
	addr := int64(r)
	key, value, found := primary.ReadAt(addr)
	if !found {
		observeLiveness(m, false)
		return nil, nil, false
	}
	head, ok := primary.Head(key)
	if !ok {
		observeLiveness(m, false)
		return key, value, false
	}
	for cur := head; ; {
		if cur == addr {
			observeLiveness(m, true)
			return key, value, true
		}
		if cur < addr {
			// Downward invariant: the chain will never reach addr now.
			observeLiveness(m, false)
			return key, value, false
		}
		prev, ok := primary.Prev(cur)
		if !ok {
			observeLiveness(m, false)
			return key, value, false
		}
		cur = prev
	}
}

func observeLiveness(m *metrics.Store, live bool) {
	if m == nil {
		return
	}
	if live {
		m.LivenessHit.Inc()
	} else {
		m.LivenessMiss.Inc()
	}
}
