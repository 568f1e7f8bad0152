// Package mpool implements Mercury's L5 store pool and history pruner:
// named store handles with an atomic active/staging role swap (§5), and
// a prune pass that rewrites a store's history under a retention policy.
//
// The rent/name/clear/switch role-swap pattern is grounded on the
// teacher's deployment model in pkg/manager (build a new replica,
// validate it, then atomically flip traffic to it) generalized here from
// "new container replaces old" to "staging store replaces active store".
package mpool

import (
	"fmt"
	"sync"

	"github.com/cuemby/mercury/pkg/mindex"
	"github.com/cuemby/mercury/pkg/mlog"
	"github.com/cuemby/mercury/pkg/mmetrics"
	"github.com/cuemby/mercury/pkg/mstore"
	"github.com/cuemby/mercury/pkg/mterm"
)

// Pool manages a set of named store handles rooted under one base
// directory, with one designated "active" name per logical slot.
type Pool struct {
	mu     sync.RWMutex
	baseDir string
	log    mlog.Logger
	stores map[string]*mstore.Store
	active map[string]string // slot -> active store name
}

// New creates an empty pool rooted at baseDir.
func New(baseDir string, logger mlog.Logger) *Pool {
	if logger == nil {
		logger = mlog.Nop{}
	}
	return &Pool{
		baseDir: baseDir,
		log:     logger,
		stores:  make(map[string]*mstore.Store),
		active:  make(map[string]string),
	}
}

// Rent opens (or returns the already-open) store named name, creating it
// under the pool's base directory on first use (§5 rent).
func (p *Pool) Rent(name string) (*mstore.Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.stores[name]; ok {
		return s, nil
	}
	s, err := mstore.Open(fmt.Sprintf("%s/%s", p.baseDir, name), name, p.log)
	if err != nil {
		return nil, err
	}
	p.stores[name] = s
	return s, nil
}

// Get returns an already-rented store by name, the pool's `["name"]`
// accessor (§5).
func (p *Pool) Get(name string) (*mstore.Store, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.stores[name]
	return s, ok
}

// Clear closes and evicts a rented store from the pool without deleting
// its on-disk files (§5 clear).
func (p *Pool) Clear(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stores[name]
	if !ok {
		return nil
	}
	delete(p.stores, name)
	return s.Close()
}

// Switch atomically reassigns slot's active store name from one rented
// store to another (§5 switch) — a staging store replaces the active one
// for all future Active(slot) lookups, with no window where slot
// resolves to neither. Rent and Get look stores up by name and are not
// affected by Switch.
func (p *Pool) Switch(slot, newActiveName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.stores[newActiveName]; !ok {
		return fmt.Errorf("mpool: cannot switch %s to unrented store %s", slot, newActiveName)
	}
	p.active[slot] = newActiveName
	return nil
}

// Active returns the store currently active for slot.
func (p *Pool) Active(slot string) (*mstore.Store, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	name, ok := p.active[slot]
	if !ok {
		return nil, false
	}
	s, ok := p.stores[name]
	return s, ok
}

// CloseAll closes every rented store.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for name, s := range p.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.stores, name)
	}
	return firstErr
}

// HistoryMode selects how the pruner treats past versions of a quad
// (§5 prune).
type HistoryMode uint8

const (
	// FlattenToCurrent drops every version except the one current as of
	// the prune instant, collapsing all history.
	FlattenToCurrent HistoryMode = iota
	// PreserveVersions keeps every version whose valid-time interval is
	// still current or future, dropping only versions fully superseded
	// in valid-time (old facts that have been corrected).
	PreserveVersions
	// PreserveAll is a no-op pass used to compute prune statistics
	// without removing anything (paired with DryRun for a preview).
	PreserveAll
)

// GraphFilter restricts pruning to quads in the given named graphs; a nil
// filter matches every graph.
type GraphFilter struct {
	Graphs []mterm.Term
}

func (f *GraphFilter) matches(graphAtom mterm.AtomID, resolved mterm.Term) bool {
	if f == nil || len(f.Graphs) == 0 {
		return true
	}
	for _, g := range f.Graphs {
		if g.Kind == resolved.Kind && g.Lexical == resolved.Lexical {
			return true
		}
	}
	return false
}

// PredicateFilter restricts pruning to quads using the given predicates; a
// nil filter matches every predicate.
type PredicateFilter struct {
	Predicates []mterm.Term
}

func (f *PredicateFilter) matches(resolved mterm.Term) bool {
	if f == nil || len(f.Predicates) == 0 {
		return true
	}
	for _, p := range f.Predicates {
		if p.Lexical == resolved.Lexical {
			return true
		}
	}
	return false
}

// PruneOptions configures one Prune pass.
type PruneOptions struct {
	Mode      HistoryMode
	Graphs    *GraphFilter
	Predicates *PredicateFilter
	Now       int64
	// DryRun computes and returns the count of rows that would be
	// dropped without mutating the store.
	DryRun bool
}

// PruneResult summarizes one Prune pass.
type PruneResult struct {
	Scanned int
	Dropped int
}

// survivor is a resolved quad row kept across a compaction, ready to be
// re-added to a staging store.
type survivor struct {
	s, p, o, g mterm.Term
	version    mterm.Version
}

// Prune rewrites slot's active store according to opts: it scans every
// indexed row, resolving terms through the atom store for graph/predicate
// filtering, and — when rows would actually be dropped and DryRun is not
// set — writes the surviving rows into a freshly rented staging store and
// atomically swaps it in for slot via Switch (§5: "build a pruned staging
// store, then atomically switch", never an in-place delete of a live
// index).
func Prune(pool *Pool, slot string, opts PruneOptions) (PruneResult, error) {
	timer := mmetrics.NewTimer()
	modeLabel := pruneModeLabel(opts.Mode)
	defer timer.ObserveDurationVec(mmetrics.PruneDuration, modeLabel)

	s, ok := pool.Active(slot)
	if !ok {
		var err error
		s, err = pool.Rent(slot)
		if err != nil {
			return PruneResult{}, err
		}
	}

	var result PruneResult
	var survivors []survivor
	err := mindex.Scan(s.Index(), mindex.SPO, mindex.Pattern{}, func(row mindex.Row) bool {
		result.Scanned++

		if opts.Mode == PreserveAll {
			survivors = append(survivors, resolveSurvivor(s, row))
			return true
		}

		predTerm, err := s.Atoms().Resolve(row.Quad.P)
		if err != nil {
			return true
		}
		if !opts.Predicates.matches(predTerm) {
			survivors = append(survivors, resolveSurvivor(s, row))
			return true
		}
		graphTerm, err := s.Atoms().Resolve(row.Quad.G)
		if err != nil {
			return true
		}
		if !opts.Graphs.matches(row.Quad.G, graphTerm) {
			survivors = append(survivors, resolveSurvivor(s, row))
			return true
		}

		drop := false
		switch opts.Mode {
		case FlattenToCurrent:
			drop = !row.Version.IsCurrent(opts.Now)
		case PreserveVersions:
			drop = row.Version.ValidTo <= opts.Now && row.Version.ValidTo != mterm.Forever
		}
		if drop {
			result.Dropped++
			return true
		}

		subjTerm, err := s.Atoms().Resolve(row.Quad.S)
		if err != nil {
			return true
		}
		objTerm, err := s.Atoms().Resolve(row.Quad.O)
		if err != nil {
			return true
		}
		survivors = append(survivors, survivor{s: subjTerm, p: predTerm, o: objTerm, g: graphTerm, version: row.Version})
		return true
	})
	if err != nil {
		return result, err
	}

	mmetrics.PrunedQuadsTotal.WithLabelValues(modeLabel).Add(float64(result.Dropped))

	if opts.DryRun || result.Dropped == 0 {
		return result, nil
	}

	stagingName := fmt.Sprintf("%s-pruned-%d", slot, opts.Now)
	staging, err := pool.Rent(stagingName)
	if err != nil {
		return result, err
	}
	if err := staging.BeginBatch(); err != nil {
		return result, err
	}
	for _, sv := range survivors {
		if err := staging.AddBatched(sv.s, sv.p, sv.o, sv.g, sv.version.ValidFrom, sv.version.ValidTo); err != nil {
			staging.RollbackBatch()
			return result, err
		}
	}
	if err := staging.CommitBatch(); err != nil {
		return result, err
	}
	if err := pool.Switch(slot, stagingName); err != nil {
		return result, err
	}
	return result, nil
}

// resolveSurvivor resolves every atom of row against s's atom table,
// keeping it unfiltered (§5 PreserveAll / filter-excluded rows always
// survive unchanged into the staging store).
func resolveSurvivor(s *mstore.Store, row mindex.Row) survivor {
	subjTerm, _ := s.Atoms().Resolve(row.Quad.S)
	predTerm, _ := s.Atoms().Resolve(row.Quad.P)
	objTerm, _ := s.Atoms().Resolve(row.Quad.O)
	graphTerm, _ := s.Atoms().Resolve(row.Quad.G)
	return survivor{s: subjTerm, p: predTerm, o: objTerm, g: graphTerm, version: row.Version}
}

func pruneModeLabel(m HistoryMode) string {
	switch m {
	case FlattenToCurrent:
		return "flatten_to_current"
	case PreserveVersions:
		return "preserve_versions"
	default:
		return "preserve_all"
	}
}
