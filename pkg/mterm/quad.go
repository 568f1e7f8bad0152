package mterm

import "math"

// Forever is the open-ended interval sentinel ("+∞") used for valid_to and
// tx_to on current rows (§3 Version record).
const Forever int64 = math.MaxInt64

// DefaultGraph is the atom id reserved for the unnamed default graph (g=0,
// §3 Quad).
const DefaultGraph uint64 = 0

// AtomID is a 64-bit interned atom identifier (§3 Atom, §4.1).
type AtomID = uint64

// Quad is a tuple of four atom ids: (subject, predicate, object, graph).
// Graph == DefaultGraph denotes the default graph.
type Quad struct {
	S, P, O, G AtomID
}

// Version is the bitemporal interval pair attached to every stored quad
// row (§3 Version record): valid-time is when the fact holds in the
// world, transaction-time is when it was recorded in the store.
type Version struct {
	ValidFrom int64
	ValidTo   int64
	TxFrom    int64
	TxTo      int64
}

// IsCurrent reports whether both intervals contain instant now.
func (v Version) IsCurrent(now int64) bool {
	return v.ValidFrom <= now && now < v.ValidTo && v.TxFrom <= now && now < v.TxTo
}

// HoldsAsOf reports whether the version is the one query_as_of(t) returns:
// valid_from <= t < valid_to and tx_from <= t < tx_to (§4.4).
func (v Version) HoldsAsOf(t int64) bool {
	return v.ValidFrom <= t && t < v.ValidTo && v.TxFrom <= t && t < v.TxTo
}

// OverlapsValid reports whether the version's valid interval overlaps
// [t1, t2), used by query_during (§4.4).
func (v Version) OverlapsValid(t1, t2 int64) bool {
	return v.ValidFrom < t2 && t1 < v.ValidTo
}

// VersionedQuad pairs a Quad with its Version record; this is the unit of
// storage the index keys are built from and what query_all_versions
// streams back, oldest-first.
type VersionedQuad struct {
	Quad
	Version
}
