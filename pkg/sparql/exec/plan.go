package exec

import (
	"fmt"
	"os"
	"sort"

	"github.com/cuemby/mercury/pkg/mlog"
	"github.com/cuemby/mercury/pkg/mpool"
	"github.com/cuemby/mercury/pkg/mstore"
	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/sparql/ast"
	"github.com/cuemby/mercury/pkg/sparql/expr"
)

// ServiceExecutor is the injected interface a SERVICE block dispatches
// through (§6.3's HttpServiceExecutor); Execute works without one as
// long as no query in practice uses SERVICE.
type ServiceExecutor interface {
	Execute(endpoint string, query string) ([]mterm.Row, []string, error)
}

// Executor holds everything one query evaluation needs: the store to
// scan, the resolved prefix map, the temporal view to query through,
// and an optional SERVICE dispatcher.
type Executor struct {
	Store    *mstore.Store
	Prefixes expr.PrefixMap
	Now      int64
	Temporal *ast.TemporalClause
	Service  ServiceExecutor

	t1, t2 int64
	mode   ast.TemporalKind
}

// NewExecutor builds an Executor for one query, resolving the
// top-level temporal clause (a constant expression, evaluated against
// the empty row) once up front.
func NewExecutor(store *mstore.Store, pr ast.Prologue, now int64, temporal *ast.TemporalClause, svc ServiceExecutor) (*Executor, error) {
	ex := &Executor{Store: store, Prefixes: expr.BuildPrefixMap(pr), Now: now, Temporal: temporal, Service: svc, mode: ast.TemporalNone}
	if temporal == nil {
		return ex, nil
	}
	ex.mode = temporal.Kind
	ctx := expr.Context{Row: mterm.EmptyRow, Prefixes: ex.Prefixes}
	if temporal.T1 != nil {
		v, err := expr.Eval(*temporal.T1, ctx)
		if err != nil {
			return nil, fmt.Errorf("exec: temporal clause: %w", err)
		}
		n, ok := v.AsTerm()
		if !ok {
			return nil, fmt.Errorf("exec: temporal clause argument is unbound")
		}
		i, ok2 := n.AsInt()
		if !ok2 {
			return nil, fmt.Errorf("exec: temporal clause argument is not an integer timestamp")
		}
		ex.t1 = i
	}
	if temporal.T2 != nil {
		v, err := expr.Eval(*temporal.T2, ctx)
		if err != nil {
			return nil, fmt.Errorf("exec: temporal clause: %w", err)
		}
		n, _ := v.AsTerm()
		i, _ := n.AsInt()
		ex.t2 = i
	}
	return ex, nil
}

// queryTemporal dispatches to the store's Current/AsOf/During/AllVersions
// query method per the resolved temporal mode.
func (ex *Executor) queryTemporal(tp mstore.TermPattern, fn func(mterm.Quad, mterm.Version) bool) error {
	switch ex.mode {
	case ast.AsOf:
		return ex.Store.QueryAsOf(tp, ex.t1, fn)
	case ast.During:
		return ex.Store.QueryDuring(tp, ex.t1, ex.t2, fn)
	case ast.AllVersions:
		return ex.Store.QueryAllVersions(tp, fn)
	default:
		return ex.Store.QueryCurrent(tp, ex.Now, fn)
	}
}

// RunWhere evaluates a WHERE-clause group graph pattern starting from
// the single empty-row seed, returning every solution row.
func (ex *Executor) RunWhere(ggp *ast.GroupGraphPattern) ([]mterm.Row, error) {
	if ggp == nil {
		return []mterm.Row{mterm.EmptyRow}, nil
	}
	return ex.runGroup(ggp, []mterm.Row{mterm.EmptyRow}, nil)
}

// runGroup evaluates ggp starting from seeds, within graph (nil means
// the default/query graph context inherited from an enclosing GRAPH
// block, if any).
func (ex *Executor) runGroup(ggp *ast.GroupGraphPattern, seeds []mterm.Row, graph *mterm.Term) ([]mterm.Row, error) {
	rows := seeds
	var err error
	for _, tp := range ggp.Triples {
		rows, err = ex.joinTriple(rows, tp, ggp.Depth, graph)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return rows, nil
		}
	}

	for _, el := range ggp.Elements {
		switch {
		case el.Filter != nil:
			rows = ex.applyFilter(rows, el.Filter)
		case el.Bind != nil:
			rows, err = ex.applyBind(rows, el.Bind)
			if err != nil {
				return nil, err
			}
		case el.Optional != nil:
			rows, err = ex.applyOptional(rows, el.Optional, graph)
			if err != nil {
				return nil, err
			}
		case el.Minus != nil:
			rows, err = ex.applyMinus(rows, el.Minus, graph)
			if err != nil {
				return nil, err
			}
		case el.Group != nil:
			rows, err = ex.runGroup(el.Group, rows, graph)
			if err != nil {
				return nil, err
			}
		case len(el.Union) > 0:
			rows, err = ex.applyUnion(rows, el.Union, graph)
			if err != nil {
				return nil, err
			}
		case el.Graph != nil:
			rows, err = ex.applyGraph(rows, el.Graph, ggp.Depth)
			if err != nil {
				return nil, err
			}
		case el.Values != nil:
			rows = ex.applyValues(rows, el.Values)
		case el.Sub != nil:
			rows, err = ex.applySubquery(rows, el.Sub)
			if err != nil {
				return nil, err
			}
		case el.Service != nil:
			rows, err = ex.applyService(rows, el.Service)
			if err != nil {
				return nil, err
			}
		}
		if len(rows) == 0 {
			return rows, nil
		}
	}
	return rows, nil
}

func (ex *Executor) applyFilter(rows []mterm.Row, f *ast.FilterElement) []mterm.Row {
	out := rows[:0]
	for _, r := range rows {
		v, err := expr.Eval(f.Expr, expr.Context{Row: r, Depth: f.Depth, Prefixes: ex.Prefixes, ExistsEval: ex.existsEval})
		if err != nil {
			continue
		}
		b, ok := expr.AsBool(v)
		if ok && b {
			out = append(out, r)
		}
	}
	return append([]mterm.Row{}, out...)
}

func (ex *Executor) existsEval(pat *ast.GroupGraphPattern, r mterm.Row) (bool, error) {
	rows, err := ex.runGroup(pat, []mterm.Row{r}, nil)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (ex *Executor) applyBind(rows []mterm.Row, b *ast.BindElement) ([]mterm.Row, error) {
	out := make([]mterm.Row, 0, len(rows))
	for _, r := range rows {
		v, err := expr.Eval(b.Expr, expr.Context{Row: r, Depth: b.Depth, Prefixes: ex.Prefixes, ExistsEval: ex.existsEval})
		if err != nil {
			v = mterm.UnboundValue
		}
		out = append(out, r.ExtendBind(b.Var, v, b.Depth))
	}
	return out, nil
}

func (ex *Executor) applyOptional(rows []mterm.Row, sub *ast.GroupGraphPattern, graph *mterm.Term) ([]mterm.Row, error) {
	var out []mterm.Row
	for _, r := range rows {
		matches, err := ex.runGroup(sub, []mterm.Row{r}, graph)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			out = append(out, r)
			continue
		}
		out = append(out, matches...)
	}
	return out, nil
}

// applyMinus evaluates sub on its own (§4.9: MINUS's right side is
// evaluated independently of the left, never joined against r), then
// excludes any r that is compatible with, and shares at least one
// bound variable with, some solution of sub — SPARQL 1.1 §9.2's "r is
// excluded iff dom(r) ∩ dom(μ) ≠ ∅ and r, μ agree on the overlap" rule.
func (ex *Executor) applyMinus(rows []mterm.Row, sub *ast.GroupGraphPattern, graph *mterm.Term) ([]mterm.Row, error) {
	matches, err := ex.runGroup(sub, []mterm.Row{mterm.EmptyRow}, graph)
	if err != nil {
		return nil, err
	}
	var out []mterm.Row
	for _, r := range rows {
		exclude := false
		for _, m := range matches {
			if sharesBinding(r, m) && r.Compatible(m) {
				exclude = true
				break
			}
		}
		if !exclude {
			out = append(out, r)
		}
	}
	return out, nil
}

// sharesBinding reports whether r and m bind at least one variable name
// in common — MINUS never excludes a solution over a disjoint domain,
// regardless of whether the bound values happen to be compatible.
func sharesBinding(r, m mterm.Row) bool {
	mNames := map[string]bool{}
	for _, n := range m.Names() {
		mNames[n] = true
	}
	for _, n := range r.Names() {
		if mNames[n] {
			return true
		}
	}
	return false
}

func (ex *Executor) applyUnion(rows []mterm.Row, branches []*ast.GroupGraphPattern, graph *mterm.Term) ([]mterm.Row, error) {
	var out []mterm.Row
	for _, r := range rows {
		for _, b := range branches {
			matches, err := ex.runGroup(b, []mterm.Row{r}, graph)
			if err != nil {
				return nil, err
			}
			out = append(out, matches...)
		}
	}
	return out, nil
}

func (ex *Executor) applyGraph(rows []mterm.Row, g *ast.GraphElement, depth int) ([]mterm.Row, error) {
	if g.Graph.Kind == ast.TermVar {
		var out []mterm.Row
		graphs, err := ex.distinctGraphs()
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			for _, gt := range graphs {
				bound := r.ExtendBind(g.Graph.Name, mterm.TermValue(gt), depth)
				matches, err := ex.runGroup(g.Pattern, []mterm.Row{bound}, &gt)
				if err != nil {
					return nil, err
				}
				out = append(out, matches...)
			}
		}
		return out, nil
	}
	gt, err := expr.ResolveTerm(g.Graph, ex.Prefixes)
	if err != nil {
		return nil, err
	}
	var out []mterm.Row
	for _, r := range rows {
		matches, err := ex.runGroup(g.Pattern, []mterm.Row{r}, &gt)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}

func (ex *Executor) distinctGraphs() ([]mterm.Term, error) {
	seen := map[mterm.AtomID]bool{}
	var out []mterm.Term
	err := ex.queryTemporal(mstore.TermPattern{}, func(q mterm.Quad, _ mterm.Version) bool {
		if seen[q.G] {
			return true
		}
		seen[q.G] = true
		t, err := ex.Store.Atoms().Resolve(q.G)
		if err == nil {
			out = append(out, t)
		}
		return true
	})
	return out, err
}

func (ex *Executor) applyValues(rows []mterm.Row, ve *ast.ValuesElement) []mterm.Row {
	var valueRows []mterm.Row
	for _, row := range ve.Rows {
		r := mterm.EmptyRow
		for i, name := range ve.Vars {
			if i >= len(row) || row[i].Kind == ast.TermUndef {
				continue
			}
			t, err := expr.ResolveTerm(row[i], ex.Prefixes)
			if err != nil {
				continue
			}
			r = r.Extend(name, mterm.TermValue(t))
		}
		valueRows = append(valueRows, r)
	}
	var out []mterm.Row
	for _, r := range rows {
		for _, vr := range valueRows {
			if r.Compatible(vr) {
				out = append(out, r.Merge(vr))
			}
		}
	}
	return out
}

func (ex *Executor) applySubquery(rows []mterm.Row, sub *ast.Query) ([]mterm.Row, error) {
	var out []mterm.Row
	for _, r := range rows {
		subEx := &Executor{Store: ex.Store, Prefixes: ex.Prefixes, Now: ex.Now, Temporal: ex.Temporal, Service: ex.Service, mode: ex.mode, t1: ex.t1, t2: ex.t2}
		subRows, err := subEx.RunWhere(sub.Where)
		if err != nil {
			return nil, err
		}
		projected, err := subEx.project(subRows, sub)
		if err != nil {
			return nil, err
		}
		for _, pr := range projected {
			if r.Compatible(pr) {
				out = append(out, r.Merge(pr))
			}
		}
	}
	return out, nil
}

func (ex *Executor) applyService(rows []mterm.Row, svc *ast.ServiceElement) ([]mterm.Row, error) {
	if ex.Service == nil {
		if svc.Silent {
			return rows, nil
		}
		return nil, fmt.Errorf("exec: SERVICE requires an injected ServiceExecutor")
	}
	if svc.Target.Kind != ast.TermIRI {
		if svc.Silent {
			return rows, nil
		}
		return nil, fmt.Errorf("exec: SERVICE requires a ground endpoint IRI")
	}
	endpoint, err := expr.ResolveTerm(svc.Target, ex.Prefixes)
	if err != nil {
		if svc.Silent {
			return rows, nil
		}
		return nil, err
	}
	remoteRows, vars, err := ex.Service.Execute(endpoint.Lexical, "")
	if err != nil {
		if svc.Silent {
			return rows, nil
		}
		return nil, err
	}

	materialized := remoteRows
	if len(remoteRows) >= IndexedThreshold {
		materialized, err = materializeServiceRows(remoteRows, vars)
		if err != nil {
			if svc.Silent {
				return rows, nil
			}
			return nil, fmt.Errorf("exec: materialize SERVICE result: %w", err)
		}
	}

	var out []mterm.Row
	for _, r := range rows {
		for _, rr := range materialized {
			if r.Compatible(rr) {
				out = append(out, r.Merge(rr))
			}
		}
	}
	return out, nil
}

// IndexedThreshold is the ServiceMaterializer's row-count cutover (§4.9
// SERVICE): below it, a SERVICE result is joined in memory as returned;
// at or above it, the result is first written into a pooled QuadStore
// and read back through QueryCurrent scans. Either way the rows are then
// joined with the outer rows by the same nested loop; the join itself
// does not use store scans.
const IndexedThreshold = 500

// servicePredicate names the synthetic predicate a materialized SERVICE
// row uses to carry one variable's binding: the IRI
// urn:x-mercury:service-var:{name}, paired with a _:row{N} blank-node
// subject per row.
func servicePredicate(name string) mterm.Term {
	return mterm.IRI("urn:x-mercury:service-var:" + name)
}

// materializeServiceRows encodes remoteRows as synthetic triples in a
// throwaway pooled store — one blank-node subject per row, one synthetic
// predicate per bound variable — then scans them back out through the
// store's normal indexed pattern path, reproducing exactly the rows
// remoteRows held (§4.9, testable property 8).
func materializeServiceRows(remoteRows []mterm.Row, vars []string) ([]mterm.Row, error) {
	dir, err := os.MkdirTemp("", "mercury-service-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	pool := mpool.New(dir, mlog.Nop{})
	defer pool.CloseAll()
	store, err := pool.Rent("materialized")
	if err != nil {
		return nil, err
	}

	if err := store.BeginBatch(); err != nil {
		return nil, err
	}
	for i, r := range remoteRows {
		subj := mterm.Blank(fmt.Sprintf("row%d", i))
		for _, name := range vars {
			v, ok := r.GetProjected(name)
			if !ok || !v.IsBound() {
				continue
			}
			term, ok := v.AsTerm()
			if !ok {
				continue
			}
			if err := store.AddBatched(subj, servicePredicate(name), term, serviceMaterializerGraph, 0, mterm.Forever); err != nil {
				store.RollbackBatch()
				return nil, err
			}
		}
	}
	if err := store.CommitBatch(); err != nil {
		return nil, err
	}

	const scanInstant = mterm.Forever - 1
	out := make([]mterm.Row, len(remoteRows))
	for i := range remoteRows {
		subj := mterm.Blank(fmt.Sprintf("row%d", i))
		row := mterm.EmptyRow
		for _, name := range vars {
			pat := mstore.TermPattern{S: subj, SBound: true, P: servicePredicate(name), PBound: true}
			err := store.QueryCurrent(pat, scanInstant, func(q mterm.Quad, _ mterm.Version) bool {
				obj, rerr := store.Atoms().Resolve(q.O)
				if rerr != nil {
					return true
				}
				row = row.Extend(name, mterm.TermValue(obj))
				return false
			})
			if err != nil {
				return nil, err
			}
		}
		out[i] = row
	}
	return out, nil
}

// serviceMaterializerGraph is the synthetic graph SERVICE materialization
// writes into; it never aliases a query's own default or named graphs
// since nothing in a query can reference this reserved IRI.
var serviceMaterializerGraph = mterm.IRI("urn:x-mercury:service-materializer-graph")

// joinTriple nested-loop joins rows against one triple pattern, scanning
// the store (or a property path closure) for each existing row with
// already-bound variable positions folded into the scan as constants.
func (ex *Executor) joinTriple(rows []mterm.Row, tp ast.TriplePattern, depth int, graph *mterm.Term) ([]mterm.Row, error) {
	var out []mterm.Row
	for _, r := range rows {
		s, sBoundVar := ex.resolvePos(tp.Subject, r, depth)
		o, oBoundVar := ex.resolvePos(tp.Object, r, depth)

		var g *mterm.Term
		switch {
		case graph != nil:
			g = graph
		case tp.Graph.Kind == ast.TermIRI || tp.Graph.Kind == ast.TermBlank:
			gt, err := expr.ResolveTerm(tp.Graph, ex.Prefixes)
			if err != nil {
				return nil, err
			}
			g = &gt
		}

		pairs, err := ex.evalPath(tp.Path, ptrOrNil(s), ptrOrNil(o), g)
		if err != nil {
			return nil, err
		}
		for _, pair := range pairs {
			nr := r
			ok := true
			if tp.Subject.Kind == ast.TermVar && !sBoundVar {
				nr = nr.Extend(tp.Subject.Name, mterm.TermValue(pair.S))
			}
			if tp.Object.Kind == ast.TermVar && !oBoundVar {
				if tp.Subject.Kind == ast.TermVar && tp.Subject.Name == tp.Object.Name {
					if termKey(pair.S) != termKey(pair.O) {
						ok = false
					}
				} else {
					nr = nr.Extend(tp.Object.Name, mterm.TermValue(pair.O))
				}
			}
			if ok {
				out = append(out, nr)
			}
		}
	}
	return out, nil
}

func ptrOrNil(t mterm.Term) *mterm.Term {
	if t.Kind == mterm.KindInvalid {
		return nil
	}
	return &t
}

// resolvePos resolves a subject/object position to a ground term if
// it's either already a literal/IRI/blank, or a variable already bound
// in r. The second return value reports whether it came from an
// existing row binding (so the caller knows not to re-Extend it).
func (ex *Executor) resolvePos(t ast.Term, r mterm.Row, depth int) (mterm.Term, bool) {
	if t.Kind == ast.TermVar {
		v, ok := r.Get(t.Name, depth)
		if !ok {
			return mterm.Term{}, false
		}
		term, ok := v.AsTerm()
		if !ok {
			return mterm.Term{}, false
		}
		return term, true
	}
	term, err := expr.ResolveTerm(t, ex.Prefixes)
	if err != nil {
		return mterm.Term{}, false
	}
	return term, true
}

// project applies a SELECT clause's projection list to rows, computing
// any "(expr AS ?alias)" expressions and dropping non-projected
// bindings, unless Star is set.
func (ex *Executor) project(rows []mterm.Row, q *ast.Query) ([]mterm.Row, error) {
	if q.Select == nil || q.Select.Star {
		return rows, nil
	}
	out := make([]mterm.Row, 0, len(rows))
	for _, r := range rows {
		pr := mterm.EmptyRow
		for _, pv := range q.Select.Vars {
			if pv.Expr == nil {
				v, ok := r.GetProjected(pv.Var)
				if ok {
					pr = pr.Extend(pv.Var, v)
				}
				continue
			}
			v, err := expr.Eval(*pv.Expr, expr.Context{Row: r, Depth: 0, Prefixes: ex.Prefixes, ExistsEval: ex.existsEval})
			if err != nil {
				v = mterm.UnboundValue
			}
			pr = pr.Extend(pv.Alias, v)
		}
		out = append(out, pr)
	}
	return out, nil
}

// ApplyModifier applies, in this order, GROUP BY with aggregation (or
// else the plain SELECT projection), HAVING, ORDER BY, DISTINCT, OFFSET
// and LIMIT to the solution rows produced by RunWhere. Because the
// projection comes first, ORDER BY sees only projected variables.
func (ex *Executor) ApplyModifier(rows []mterm.Row, q *ast.Query) ([]mterm.Row, error) {
	if len(q.Modifier.GroupBy) > 0 || hasAggregateProjection(q) {
		grouped, err := ex.groupAndAggregate(rows, q)
		if err != nil {
			return nil, err
		}
		rows = grouped
	} else {
		projected, err := ex.project(rows, q)
		if err != nil {
			return nil, err
		}
		rows = projected
	}

	for _, h := range q.Modifier.Having {
		rows = ex.applyFilter(rows, &ast.FilterElement{Expr: h, Depth: 0})
	}

	if len(q.Modifier.OrderBy) > 0 {
		ex.sortRows(rows, q.Modifier.OrderBy)
	}

	if q.Select != nil && q.Select.Distinct {
		rows = distinctRows(rows)
	}

	if q.Modifier.Offset > 0 && int64(len(rows)) > q.Modifier.Offset {
		rows = rows[q.Modifier.Offset:]
	} else if q.Modifier.Offset > 0 {
		rows = nil
	}
	if q.Modifier.Limit >= 0 && int64(len(rows)) > q.Modifier.Limit {
		rows = rows[:q.Modifier.Limit]
	}
	return rows, nil
}

func hasAggregateProjection(q *ast.Query) bool {
	if q.Select == nil {
		return false
	}
	for _, v := range q.Select.Vars {
		if v.Expr != nil && containsAggregateExpr(*v.Expr) {
			return true
		}
	}
	return false
}

func containsAggregateExpr(e ast.Expr) bool {
	if e.Kind == ast.ExprAggregate {
		return true
	}
	for _, a := range e.Args {
		if containsAggregateExpr(a) {
			return true
		}
	}
	return false
}

func (ex *Executor) sortRows(rows []mterm.Row, conds []ast.OrderCondition) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, c := range conds {
			vi, _ := expr.Eval(c.Expr, expr.Context{Row: rows[i], Depth: 0, Prefixes: ex.Prefixes, ExistsEval: ex.existsEval})
			vj, _ := expr.Eval(c.Expr, expr.Context{Row: rows[j], Depth: 0, Prefixes: ex.Prefixes, ExistsEval: ex.existsEval})
			cmp := mterm.Compare(vi, vj)
			if cmp == 0 {
				continue
			}
			if c.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func distinctRows(rows []mterm.Row) []mterm.Row {
	seen := map[string]bool{}
	out := make([]mterm.Row, 0, len(rows))
	for _, r := range rows {
		key := rowKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func rowKey(r mterm.Row) string {
	var b []byte
	for _, n := range r.Names() {
		v, _ := r.GetProjected(n)
		b = append(b, n...)
		b = append(b, 0)
		if t, ok := v.AsTerm(); ok {
			b = append(b, mterm.Encode(t)...)
		}
		b = append(b, 0)
	}
	return string(b)
}
