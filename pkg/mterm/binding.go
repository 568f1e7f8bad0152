package mterm

// binding is one named slot in a Row: a variable name, its Value, and the
// nesting depth at which it was introduced.
type binding struct {
	name  string
	value Value
	depth int
	bind  bool // true if introduced by BIND rather than a pattern/join
}

// Row is one SPARQL solution: an immutable set of variable bindings
// threaded through the operator tree (§3 BindingTable, §9).
//
// Depth tracks group nesting for the BIND scope-hiding rule in §9: a
// variable bound by BIND inside group G is visible to filters and
// operators evaluated AT or ABOVE G's depth, but hidden from operators
// nested STRICTLY DEEPER than G — the reverse of ordinary SPARQL scoping,
// where inner scopes see outer bindings. Pattern and join bindings carry
// bind=false and are always visible regardless of depth, since they are
// not subject to this rule.
type Row struct {
	entries []binding
}

// EmptyRow is the solution with no bindings, the identity element joins
// start folding from.
var EmptyRow = Row{}

// Extend returns a new Row with a pattern/join binding added or
// overwritten. Pattern bindings are always visible to every consumer
// regardless of depth.
func (r Row) Extend(name string, v Value) Row {
	return r.extend(name, v, 0, false)
}

// ExtendBind returns a new Row with a BIND-introduced binding added at the
// given nesting depth, subject to the §9 visibility rule.
func (r Row) ExtendBind(name string, v Value, depth int) Row {
	return r.extend(name, v, depth, true)
}

func (r Row) extend(name string, v Value, depth int, isBind bool) Row {
	next := make([]binding, 0, len(r.entries)+1)
	for _, e := range r.entries {
		if e.name == name {
			continue
		}
		next = append(next, e)
	}
	next = append(next, binding{name: name, value: v, depth: depth, bind: isBind})
	return Row{entries: next}
}

// Get looks up name as seen by a consumer evaluating at consumerDepth. A
// BIND binding introduced at depth d is visible only when consumerDepth <=
// d; pattern/join bindings are always visible.
func (r Row) Get(name string, consumerDepth int) (Value, bool) {
	for _, e := range r.entries {
		if e.name != name {
			continue
		}
		if e.bind && consumerDepth > e.depth {
			return UnboundValue, false
		}
		return e.value, true
	}
	return UnboundValue, false
}

// GetProjected looks up name ignoring depth visibility, the way final
// projection into a result row does — every binding that survived to the
// top of the operator tree is visible in the output regardless of which
// BIND depth introduced it.
func (r Row) GetProjected(name string) (Value, bool) {
	for _, e := range r.entries {
		if e.name == name {
			return e.value, true
		}
	}
	return UnboundValue, false
}

// Names returns the variable names bound in this row, in insertion order,
// ignoring depth visibility (used for projection and result serialization).
func (r Row) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Compatible reports whether r and other agree on every variable they both
// bind (join-compatibility, §4.8 joins/OPTIONAL/MINUS). Depth is ignored:
// compatibility is a join-time structural check over committed values, not
// a filter-visibility check.
func (r Row) Compatible(other Row) bool {
	for _, e := range r.entries {
		if ov, ok := other.GetProjected(e.name); ok {
			if !Equal(e.value, ov) {
				return false
			}
		}
	}
	return true
}

// Merge combines r with other, assuming Compatible(other) already holds.
// Bindings from other take precedence on name collision only when r has
// no value for that name; shared names are assumed equal per Compatible.
func (r Row) Merge(other Row) Row {
	out := r
	for _, e := range other.entries {
		if _, ok := out.GetProjected(e.name); !ok {
			out = out.extend(e.name, e.value, e.depth, e.bind)
		}
	}
	return out
}
