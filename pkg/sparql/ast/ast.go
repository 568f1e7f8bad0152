// Package ast defines span-offset AST node types for SPARQL 1.1 queries
// and updates, plus Mercury's AS OF / DURING / ALL VERSIONS temporal
// extension (§4.8). Query, group-pattern, term, expression, prefix and
// update-operation nodes keep a (Start, End) byte span into the
// original query string rather than copying lexemes, so diagnostics and
// the query-result "via" debug surface can both point straight back at
// source text without a separate position table.
package ast

import "github.com/cuemby/mercury/pkg/mterm"

// Span is a half-open byte range into the source query text.
type Span struct{ Start, End int }

// Prologue holds BASE and PREFIX declarations shared by a query or
// update (up to 32 prefixes per §4.8's stated bound).
type Prologue struct {
	Base     string
	Prefixes []PrefixDecl
}

// PrefixDecl is one "PREFIX ex: <iri>" declaration.
type PrefixDecl struct {
	Name string // without trailing ':'
	IRI  string
	Span Span
}

// QueryForm distinguishes the four SPARQL query shapes.
type QueryForm uint8

const (
	Select QueryForm = iota
	Construct
	Describe
	Ask
)

// Query is a top-level SELECT/CONSTRUCT/DESCRIBE/ASK query.
type Query struct {
	Form      QueryForm
	Prologue  Prologue
	Select    *SelectClause // non-nil when Form == Select
	Construct []TriplePattern // CONSTRUCT template, non-nil when Form == Construct
	Describe  []Term          // DESCRIBE targets, non-nil when Form == Describe
	Dataset   []DatasetClause
	Where     *GroupGraphPattern
	Modifier  SolutionModifier
	Temporal  *TemporalClause // AS OF / DURING / ALL VERSIONS, nil for current-time
	Span      Span
}

// DatasetClause is one FROM or FROM NAMED clause.
type DatasetClause struct {
	IRI   string
	Named bool
}

// TemporalKind selects Mercury's non-standard time-travel query form.
type TemporalKind uint8

const (
	TemporalNone TemporalKind = iota
	AsOf
	During
	AllVersions
)

// TemporalClause carries AS OF <t> / DURING <t1> <t2> / ALL VERSIONS.
type TemporalClause struct {
	Kind TemporalKind
	T1   *Expr // AS OF timestamp, or DURING's start; nil for ALL VERSIONS
	T2   *Expr // DURING's end; nil otherwise
}

// SelectClause is "SELECT [DISTINCT|REDUCED] (var|expr AS var)* | *".
type SelectClause struct {
	Distinct bool
	Reduced  bool
	Star     bool
	Vars     []ProjectedVar
}

// ProjectedVar is one SELECT-list item: either a bare variable or an
// "(expr AS ?alias)" computed/aggregate projection (up to 8 aggregate
// expressions per the stated bound).
type ProjectedVar struct {
	Var   string
	Expr  *Expr // nil for a bare variable
	Alias string
}

// GroupGraphPattern is a "{ ... }" WHERE-clause body: up to 32 triple
// patterns, FILTER/BIND/OPTIONAL/MINUS/UNION/GRAPH/SERVICE/subquery/
// VALUES elements in source order, plus the current BIND-scope depth
// (§9) used to resolve the non-standard BIND visibility rule.
type GroupGraphPattern struct {
	Triples  []TriplePattern
	Elements []GroupElement
	Depth    int
	Span     Span
}

// GroupElement is one element of a group graph pattern's body, tagged
// by which field is populated.
type GroupElement struct {
	Filter   *FilterElement
	Bind     *BindElement
	Optional *GroupGraphPattern
	Minus    *GroupGraphPattern
	Union    []*GroupGraphPattern
	Graph    *GraphElement
	Service  *ServiceElement
	Sub      *Query // subquery
	Values   *ValuesElement
	Group    *GroupGraphPattern // bare nested "{ ... }" with no UNION
}

// FilterElement is "FILTER(expr)", recorded with the scope depth it was
// introduced at.
type FilterElement struct {
	Expr  Expr
	Depth int
}

// BindElement is "BIND(expr AS ?var)".
type BindElement struct {
	Expr  Expr
	Var   string
	Depth int
}

// GraphElement is "GRAPH (var|iri) { pattern }".
type GraphElement struct {
	Graph   Term
	Pattern *GroupGraphPattern
}

// ServiceElement is "SERVICE [SILENT] (var|iri) { pattern }".
type ServiceElement struct {
	Silent  bool
	Target  Term
	Pattern *GroupGraphPattern
}

// ValuesElement is an inline "VALUES (?v1 ?v2) { (v1 v2) ... }" table.
type ValuesElement struct {
	Vars []string
	Rows [][]Term // each Term may be the UNDEF sentinel (Kind == TermUndef)
}

// TriplePattern is one triple (subject, predicate-or-path, object) plus
// the GRAPH term it's scoped under (zero Term for the default/query
// graph) and whether it sits inside an OPTIONAL (the optional-flag
// bitmask the spec describes, modeled per-pattern instead of as a
// packed bitmask since Go slices make that the clearer representation).
type TriplePattern struct {
	Subject  Term
	Path     PropertyPath // Path.Kind == PathSimple for an ordinary predicate term
	Object   Term
	Graph    Term
	Optional bool
}

// TermKind distinguishes the lexical forms a Term node can take.
type TermKind uint8

const (
	TermVar TermKind = iota
	TermIRI
	TermBlank
	TermLiteral
	TermUndef
)

// Term is a parsed RDF-term-or-variable position. Literal carries the
// full mterm.Term for typed/lang literals; Name carries the variable
// name (without sigil) or the IRI/blank-node label.
type Term struct {
	Kind    TermKind
	Name    string
	Literal mterm.Term
	Span    Span
}

// PathKind classifies a property path expression (§4.8's property path
// grammar: ^p, p*, p+, p?, p1/p2, p1|p2, !(...), grouping).
type PathKind uint8

const (
	PathSimple PathKind = iota // a plain predicate IRI/var, no path operator
	PathInverse
	PathZeroOrMore
	PathOneOrMore
	PathZeroOrOne
	PathSequence
	PathAlternative
	PathNegated
	PathGroup
)

// PropertyPath is a (possibly trivial) property path expression tree.
type PropertyPath struct {
	Kind  PathKind
	Pred  Term           // PathSimple
	Sub   *PropertyPath  // PathInverse/*Zero*/*One*/PathGroup operand
	Left  *PropertyPath  // PathSequence/PathAlternative left operand
	Right *PropertyPath  // PathSequence/PathAlternative right operand
	Negated []Term       // PathNegated's disjunct predicate set
}

// SolutionModifier is the GROUP BY/HAVING/ORDER BY/LIMIT/OFFSET tail of
// a SELECT query.
type SolutionModifier struct {
	GroupBy []Expr
	Having  []Expr
	OrderBy []OrderCondition
	Limit   int64 // -1 means unset
	Offset  int64
}

// OrderCondition is one ORDER BY item.
type OrderCondition struct {
	Expr Expr
	Desc bool
}

// ExprKind distinguishes filter/bind expression node shapes.
type ExprKind uint8

const (
	ExprTerm ExprKind = iota
	ExprVar
	ExprUnary
	ExprBinary
	ExprCall
	ExprAggregate
	ExprExists
	ExprNotExists
)

// Expr is a SPARQL filter/bind expression node. Op carries the operator
// token text for ExprUnary/ExprBinary ("!", "-", "+", "&&", "||", "=",
// "!=", "<", ">", "<=", ">=", "+", "-", "*", "/"); Name carries the
// builtin/aggregate function name for ExprCall/ExprAggregate
// ("BOUND","IF","COALESCE","STR","STRLEN","UCASE","LCASE","REGEX",
// "COUNT","SUM","AVG","MIN","MAX","GROUP_CONCAT","SAMPLE", datatype
// constructor names, etc).
type Expr struct {
	Kind     ExprKind
	Term     Term
	Op       string
	Args     []Expr
	Name     string
	Distinct bool // aggregate DISTINCT
	Pattern  *GroupGraphPattern // EXISTS/NOT EXISTS
	Span     Span
}

// UpdateOpKind distinguishes the SPARQL 1.1 Update operation forms.
type UpdateOpKind uint8

const (
	UpdateInsertData UpdateOpKind = iota
	UpdateDeleteData
	UpdateDeleteWhere
	UpdateModify // DELETE/INSERT ... WHERE
	UpdateLoad
	UpdateClear
	UpdateCreate
	UpdateDrop
	UpdateCopy
	UpdateMove
	UpdateAdd
)

// GraphRef names a graph target for CLEAR/CREATE/DROP/COPY/MOVE/ADD:
// DEFAULT, NAMED, ALL, or a specific IRI.
type GraphRef struct {
	IRI     string
	Default bool
	Named   bool
	All     bool
}

// UpdateOperation is one SPARQL Update statement (a request is a
// semicolon-separated sequence of these).
type UpdateOperation struct {
	Kind      UpdateOpKind
	Prologue  Prologue
	Data      []TriplePattern // INSERT/DELETE DATA, DELETE WHERE template
	Delete    []TriplePattern // Modify's DELETE template
	Insert    []TriplePattern // Modify's INSERT template
	Where     *GroupGraphPattern
	Silent    bool
	Source    GraphRef // LOAD/CLEAR/CREATE/DROP/COPY/MOVE/ADD source-or-target
	Dest      GraphRef // COPY/MOVE/ADD destination
	Span      Span
}

// UpdateRequest is a full SPARQL Update request: a shared prologue plus
// an ordered sequence of operations.
type UpdateRequest struct {
	Prologue   Prologue
	Operations []UpdateOperation
}
