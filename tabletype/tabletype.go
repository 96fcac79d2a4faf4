// Package tabletype enumerates the lookup-table kinds that a node's context
// can declare a dependency on. It exists as its own leaf package purely to
// break the graph/lookup import cycle: both graph.ContextAux and lookup's
// witness aggregator need the same small enum, but graph must not import
// lookup, because lookup imports graph (it keys its witnesses by
// graph.NodeId).
package tabletype

// TableType identifies a family of lookup tables (range checks, activation
// shapes, and so on) that a LogUp batch proves membership against.
type TableType int

const (
	Range TableType = iota
	Pooling
	Sign
	Relu
)

func (t TableType) String() string {
	switch t {
	case Range:
		return "range"
	case Pooling:
		return "pooling"
	case Sign:
		return "sign"
	case Relu:
		return "relu"
	default:
		return "unknown"
	}
}

// Set is an unordered collection of table types, mirroring the ancestor's
// HashSet<TableType> used in a node's auxiliary context.
type Set map[TableType]struct{}

// NewSet builds a Set from the given table types, deduplicating.
func NewSet(types ...TableType) Set {
	s := make(Set, len(types))
	for _, tt := range types {
		s[tt] = struct{}{}
	}
	return s
}

// Add inserts t into the set.
func (s Set) Add(t TableType) { s[t] = struct{}{} }

// Contains reports whether t is present in the set.
func (s Set) Contains(t TableType) bool {
	_, ok := s[t]
	return ok
}
