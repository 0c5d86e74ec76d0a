package group

// PredicateFunc extracts predicate ordinal's key from a primary user value.
// ok is false when the predicate does not apply to this value (the
// resulting KeyPointer will be null, per spec invariant 3).
type PredicateFunc func(value any) (key any, ok bool)

// PredicateDef names one predicate within a Group. Ordinal is implied by
// position in the Group's predicate slice, not stored here.
type PredicateDef struct {
	Name string
	Fn   PredicateFunc
}

// PredicateHandle identifies a registered predicate for callers building
// queries, without exposing the Group's internal slice.
type PredicateHandle struct {
	Name    string
	Ordinal int
}
