// Package shi implements the Subset Hash Index: a secondary indexing
// engine layered on a log-structured key/value store, answering predicate
// queries of the form "which primary records satisfy predicate P".
package shi

// RecordId is the opaque, sortable identifier of a primary-store record.
// In this implementation it is a primary-log address: monotonically
// increasing, which is what the liveness walk (index/liveness.go) and the
// downward-chain invariant both rely on.
type RecordId uint64

// InvalidRecordId never names a real record.
const InvalidRecordId RecordId = ^RecordId(0)

// Status is the non-erroneous outcome of a fallible operation. It is
// returned alongside a result, never as an error value: distinguishing
// "the operation went fine and here is what happened" from "the operation
// could not be completed" (see shierr.Error for the latter).
type Status int

const (
	// StatusOK means the operation completed and produced a result.
	StatusOK Status = iota
	// StatusPending means the operation fell through to slower storage and
	// must be completed asynchronously; see secondarystore.PendingContext.
	StatusPending
	// StatusNotFound means no matching record exists.
	StatusNotFound
	// StatusError means the operation failed; see the accompanying error.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPending:
		return "pending"
	case StatusNotFound:
		return "not_found"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}
