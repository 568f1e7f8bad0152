package exec

import (
	"fmt"

	"github.com/cuemby/mercury/pkg/merr"
	"github.com/cuemby/mercury/pkg/mstore"
	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/rdf/rdfio"
	"github.com/cuemby/mercury/pkg/sparql/ast"
	"github.com/cuemby/mercury/pkg/sparql/expr"
)

// defaultGraphTerm names the store's unnamed default graph as a concrete,
// well-known IRI so Add/Retract (which always intern a graph position)
// have a term to intern, the same way every named graph does.
var defaultGraphTerm = mterm.IRI("urn:x-mercury:default-graph")

// RdfLoader is the injected collaborator LOAD dispatches through (§6.4):
// fetch a remote or local RDF document and stream its triples/quads.
type RdfLoader interface {
	FetchAndParse(url string, emit rdfio.Sink) error
}

// RunUpdate executes every operation of req in order against ex.Store,
// stopping at the first non-SILENT error. Writes of INSERT DATA, the
// INSERT half of DELETE/INSERT, LOAD and COPY/MOVE/ADD go through one
// batch per operation (§4.4's add_batched/commit_batch); deletions and
// CLEAR/DROP retract quad by quad outside a batch.
func (ex *Executor) RunUpdate(req *ast.UpdateRequest, loader RdfLoader) error {
	for _, op := range req.Operations {
		if err := ex.runUpdateOp(op, loader); err != nil {
			if op.Silent {
				continue
			}
			return err
		}
	}
	return nil
}

func (ex *Executor) runUpdateOp(op ast.UpdateOperation, loader RdfLoader) error {
	switch op.Kind {
	case ast.UpdateInsertData:
		return ex.insertData(op.Data)
	case ast.UpdateDeleteData:
		return ex.deleteData(op.Data)
	case ast.UpdateDeleteWhere:
		return ex.deleteWhere(op)
	case ast.UpdateModify:
		return ex.modify(op)
	case ast.UpdateLoad:
		return ex.load(op, loader)
	case ast.UpdateClear:
		return ex.clearGraph(op.Source)
	case ast.UpdateCreate:
		return nil // no graph registry to populate; a later INSERT into it just works
	case ast.UpdateDrop:
		return ex.clearGraph(op.Source)
	case ast.UpdateCopy:
		if err := ex.clearGraph(op.Dest); err != nil {
			return err
		}
		return ex.copyGraph(op.Source, op.Dest)
	case ast.UpdateMove:
		if err := ex.clearGraph(op.Dest); err != nil {
			return err
		}
		if err := ex.copyGraph(op.Source, op.Dest); err != nil {
			return err
		}
		return ex.clearGraph(op.Source)
	case ast.UpdateAdd:
		return ex.copyGraph(op.Source, op.Dest)
	default:
		return fmt.Errorf("exec: unknown update operation")
	}
}

// graphTermFor resolves a TriplePattern's GRAPH annotation to a concrete
// term, defaulting to the unnamed default graph when none was given.
func (ex *Executor) graphTermFor(tp ast.TriplePattern) (mterm.Term, error) {
	if tp.Graph.Kind == ast.TermIRI || tp.Graph.Kind == ast.TermBlank {
		return expr.ResolveTerm(tp.Graph, ex.Prefixes)
	}
	return defaultGraphTerm, nil
}

// groundTerm resolves a template Term against row (if bound), failing if
// a variable has no binding — INSERT/DELETE DATA templates are required
// to be fully ground by the grammar, but Modify's templates may carry
// variables bound by the WHERE clause.
func (ex *Executor) groundTerm(t ast.Term, row mterm.Row) (mterm.Term, bool) {
	if t.Kind == ast.TermVar {
		v, ok := row.GetProjected(t.Name)
		if !ok {
			return mterm.Term{}, false
		}
		return v.AsTerm()
	}
	term, err := expr.ResolveTerm(t, ex.Prefixes)
	if err != nil {
		return mterm.Term{}, false
	}
	return term, true
}

func (ex *Executor) insertData(data []ast.TriplePattern) error {
	if err := ex.Store.BeginBatch(); err != nil {
		return err
	}
	for _, tp := range data {
		s, ok := ex.groundTerm(tp.Subject, mterm.EmptyRow)
		if !ok {
			ex.Store.RollbackBatch()
			return fmt.Errorf("exec: INSERT DATA requires a ground subject")
		}
		p, ok := ex.groundTerm(tp.Path.Pred, mterm.EmptyRow)
		if !ok {
			ex.Store.RollbackBatch()
			return fmt.Errorf("exec: INSERT DATA requires a ground predicate")
		}
		o, ok := ex.groundTerm(tp.Object, mterm.EmptyRow)
		if !ok {
			ex.Store.RollbackBatch()
			return fmt.Errorf("exec: INSERT DATA requires a ground object")
		}
		g, err := ex.graphTermFor(tp)
		if err != nil {
			ex.Store.RollbackBatch()
			return err
		}
		if err := ex.Store.AddBatched(s, p, o, g, ex.Now, mterm.Forever); err != nil {
			ex.Store.RollbackBatch()
			return err
		}
	}
	return ex.Store.CommitBatch()
}

func (ex *Executor) deleteData(data []ast.TriplePattern) error {
	for _, tp := range data {
		s, ok := ex.groundTerm(tp.Subject, mterm.EmptyRow)
		if !ok {
			return fmt.Errorf("exec: DELETE DATA requires a ground subject")
		}
		p, ok := ex.groundTerm(tp.Path.Pred, mterm.EmptyRow)
		if !ok {
			return fmt.Errorf("exec: DELETE DATA requires a ground predicate")
		}
		o, ok := ex.groundTerm(tp.Object, mterm.EmptyRow)
		if !ok {
			return fmt.Errorf("exec: DELETE DATA requires a ground object")
		}
		g, err := ex.graphTermFor(tp)
		if err != nil {
			return err
		}
		if err := ex.Store.Retract(s, p, o, g); err != nil {
			return err
		}
	}
	return nil
}

// deleteWhere retracts, for every solution of op.Where, the instantiation
// of its own triple patterns as a template (§4.6's "DELETE WHERE" form,
// where the WHERE-clause patterns double as the delete template).
func (ex *Executor) deleteWhere(op ast.UpdateOperation) error {
	rows, err := ex.RunWhere(op.Where)
	if err != nil {
		return err
	}
	return ex.retractTemplate(op.Data, rows)
}

// modify runs op.Where once, then retracts op.Delete's instantiation and
// adds op.Insert's instantiation per solution row (§4.6's "Modify" form).
func (ex *Executor) modify(op ast.UpdateOperation) error {
	rows, err := ex.RunWhere(op.Where)
	if err != nil {
		return err
	}
	if len(op.Delete) > 0 {
		if err := ex.retractTemplate(op.Delete, rows); err != nil {
			return err
		}
	}
	if len(op.Insert) == 0 {
		return nil
	}
	if err := ex.Store.BeginBatch(); err != nil {
		return err
	}
	for _, r := range rows {
		for _, tp := range op.Insert {
			s, ok := ex.groundTerm(tp.Subject, r)
			if !ok {
				continue
			}
			p, ok := ex.groundTerm(tp.Path.Pred, r)
			if !ok {
				continue
			}
			o, ok := ex.groundTerm(tp.Object, r)
			if !ok {
				continue
			}
			g, err := ex.graphTermFor(tp)
			if err != nil {
				ex.Store.RollbackBatch()
				return err
			}
			if err := ex.Store.AddBatched(s, p, o, g, ex.Now, mterm.Forever); err != nil {
				ex.Store.RollbackBatch()
				return err
			}
		}
	}
	return ex.Store.CommitBatch()
}

func (ex *Executor) retractTemplate(template []ast.TriplePattern, rows []mterm.Row) error {
	for _, r := range rows {
		for _, tp := range template {
			s, ok := ex.groundTerm(tp.Subject, r)
			if !ok {
				continue
			}
			p, ok := ex.groundTerm(tp.Path.Pred, r)
			if !ok {
				continue
			}
			o, ok := ex.groundTerm(tp.Object, r)
			if !ok {
				continue
			}
			g, err := ex.graphTermFor(tp)
			if err != nil {
				return err
			}
			if err := ex.Store.Retract(s, p, o, g); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ex *Executor) load(op ast.UpdateOperation, loader RdfLoader) error {
	if loader == nil {
		return fmt.Errorf("exec: LOAD requires an injected RdfLoader")
	}
	graph := defaultGraphTerm
	if op.Dest.IRI != "" {
		graph = mterm.IRI(op.Dest.IRI)
	}
	if err := ex.Store.BeginBatch(); err != nil {
		return err
	}
	err := loader.FetchAndParse(op.Source.IRI, func(q rdfio.Quad) error {
		g := graph
		if q.G.Kind != mterm.KindInvalid {
			g = q.G
		}
		return ex.Store.AddBatched(q.S, q.P, q.O, g, ex.Now, mterm.Forever)
	})
	if err != nil {
		ex.Store.RollbackBatch()
		return err
	}
	return ex.Store.CommitBatch()
}

// graphRefTerm resolves a GraphRef naming exactly one concrete graph
// (DEFAULT, or a specific IRI); ALL/NAMED are handled by the caller since
// they each span more than one graph.
func graphRefTerm(g ast.GraphRef) (mterm.Term, bool) {
	if g.Default {
		return defaultGraphTerm, true
	}
	if g.IRI != "" {
		return mterm.IRI(g.IRI), true
	}
	return mterm.Term{}, false
}

// clearGraph retracts every quad currently in the graph(s) g names.
func (ex *Executor) clearGraph(g ast.GraphRef) error {
	switch {
	case g.All:
		return ex.clearMatching(mstore.TermPattern{})
	case g.Named:
		return ex.clearNamedGraphs()
	default:
		term, ok := graphRefTerm(g)
		if !ok {
			return fmt.Errorf("exec: CLEAR/DROP requires a graph reference")
		}
		return ex.clearMatching(mstore.TermPattern{G: term, GBound: true})
	}
}

// clearNamedGraphs retracts every quad outside the default graph,
// leaving the unnamed default graph untouched (SPARQL 1.1 §3.2.3's
// "NAMED" keyword names every graph but the default one).
func (ex *Executor) clearNamedGraphs() error {
	defID, haveDef, err := ex.Store.Atoms().Lookup(defaultGraphTerm)
	if err != nil {
		return err
	}
	var targets []mterm.Quad
	err = ex.Store.QueryCurrent(mstore.TermPattern{}, ex.Now, func(q mterm.Quad, _ mterm.Version) bool {
		if q.G != mterm.DefaultGraph && (!haveDef || q.G != defID) {
			targets = append(targets, q)
		}
		return true
	})
	if err != nil {
		return err
	}
	return ex.retractQuads(targets)
}

func (ex *Executor) clearMatching(tp mstore.TermPattern) error {
	var targets []mterm.Quad
	err := ex.Store.QueryCurrent(tp, ex.Now, func(q mterm.Quad, _ mterm.Version) bool {
		targets = append(targets, q)
		return true
	})
	if err != nil {
		return err
	}
	return ex.retractQuads(targets)
}

func (ex *Executor) retractQuads(quads []mterm.Quad) error {
	atoms := ex.Store.Atoms()
	for _, q := range quads {
		s, err := atoms.Resolve(q.S)
		if err != nil {
			return err
		}
		p, err := atoms.Resolve(q.P)
		if err != nil {
			return err
		}
		o, err := atoms.Resolve(q.O)
		if err != nil {
			return err
		}
		g, err := atoms.Resolve(q.G)
		if err != nil {
			return err
		}
		if err := ex.Store.Retract(s, p, o, g); err != nil {
			return err
		}
	}
	return nil
}

// copyGraph adds every quad of src's current view into dst, leaving src
// untouched (COPY/ADD; MOVE layers a clearGraph(src) on top).
func (ex *Executor) copyGraph(src, dst ast.GraphRef) error {
	srcTerm, ok := graphRefTerm(src)
	if !ok {
		return fmt.Errorf("exec: COPY/MOVE/ADD requires a concrete source graph")
	}
	dstTerm, ok := graphRefTerm(dst)
	if !ok {
		return fmt.Errorf("exec: COPY/MOVE/ADD requires a concrete destination graph")
	}
	atoms := ex.Store.Atoms()
	var quads []mterm.Quad
	err := ex.Store.QueryCurrent(mstore.TermPattern{G: srcTerm, GBound: true}, ex.Now, func(q mterm.Quad, _ mterm.Version) bool {
		quads = append(quads, q)
		return true
	})
	if err != nil {
		return err
	}
	if err := ex.Store.BeginBatch(); err != nil {
		return err
	}
	for _, q := range quads {
		s, err1 := atoms.Resolve(q.S)
		p, err2 := atoms.Resolve(q.P)
		o, err3 := atoms.Resolve(q.O)
		if err1 != nil || err2 != nil || err3 != nil {
			ex.Store.RollbackBatch()
			return merr.ErrIndexCorrupted
		}
		if err := ex.Store.AddBatched(s, p, o, dstTerm, ex.Now, mterm.Forever); err != nil {
			ex.Store.RollbackBatch()
			return err
		}
	}
	return ex.Store.CommitBatch()
}
