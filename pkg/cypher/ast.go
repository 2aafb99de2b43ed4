package cypher

import "github.com/runedb/runedb/pkg/graph"

// The AST is a family of closed sums: Query, MatchPattern,
// CreatePattern, WhereClause, and ReturnClause each have a fixed set of
// variants, discriminated by unexported marker methods. Optional labels
// are represented by the empty string; identifiers cannot be empty, so
// there is no ambiguity.

// Query is a parsed statement: either a MatchQuery or a CreateQuery.
type Query interface{ isQuery() }

// MatchQuery is a MATCH statement. Where may be nil. HasLimit is always
// true after a successful Parse (LIMIT is mandatory for MATCH), but the
// compiler honors the flag rather than the parser's promise.
type MatchQuery struct {
	Pattern  MatchPattern
	Where    WhereClause
	Return   ReturnClause
	Limit    int
	HasLimit bool
}

// CreateQuery is a CREATE statement.
type CreateQuery struct {
	Pattern CreatePattern
}

func (MatchQuery) isQuery()  {}
func (CreateQuery) isQuery() {}

// MatchPattern is the pattern of a MATCH: one node or one relationship.
type MatchPattern interface{ isMatchPattern() }

// SingleNode matches `(var)` or `(var:Label)`.
type SingleNode struct {
	Variable string
	Label    string
}

// Relationship matches `(a)->[:E]->(b)` and its direction variants.
type Relationship struct {
	From NodePattern
	Edge EdgePattern
	To   NodePattern
}

func (SingleNode) isMatchPattern()   {}
func (Relationship) isMatchPattern() {}

// NodePattern is one endpoint of a relationship pattern.
type NodePattern struct {
	Variable string
	Label    string
}

// Direction is the orientation of a relationship pattern.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Bidirectional
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	default:
		return "bidirectional"
	}
}

// EdgePattern is the edge part of a relationship pattern.
type EdgePattern struct {
	Direction Direction
	Label     string
}

// CreatePattern is the pattern of a CREATE: a node or an edge.
type CreatePattern interface{ isCreatePattern() }

// CreateNodePattern is `(var)`, `(var:Label)`, or `(var:Label {0xHEX})`.
// Data holds the decoded hex payload when one was supplied.
type CreateNodePattern struct {
	Variable string
	Label    string
	Data     []byte
	HasData  bool
}

// CreateEdgePattern is `(endpoint)-[:Label]->(endpoint)`. An endpoint
// given as a literal integer sets FromID/ToID; one given as an
// identifier sets the NodePattern instead. The two forms are mutually
// exclusive per endpoint.
type CreateEdgePattern struct {
	From   NodePattern
	FromID *graph.ID
	Edge   EdgePattern
	To     NodePattern
	ToID   *graph.ID
}

func (CreateNodePattern) isCreatePattern() {}
func (CreateEdgePattern) isCreatePattern() {}

// WhereClause is the optional constraint of a MATCH. A nil WhereClause
// means no constraint.
type WhereClause interface{ isWhereClause() }

// WhereIDEquals is `WHERE var.id = <uint>`, a 128-bit equality
// constraint on a node ID.
type WhereIDEquals struct {
	Variable string
	Value    graph.ID
}

// WhereAttrEquals is `WHERE var.attr = 'value'`, an attribute-equality
// constraint.
type WhereAttrEquals struct {
	Variable string
	Attr     string
	Value    string
}

func (WhereIDEquals) isWhereClause()   {}
func (WhereAttrEquals) isWhereClause() {}

// ReturnClause selects what a MATCH reports.
type ReturnClause interface{ isReturnClause() }

// ReturnAll is `RETURN *`.
type ReturnAll struct{}

// ReturnNodeID is `RETURN var`.
type ReturnNodeID struct {
	Variable string
}

// ReturnNodeAttr is `RETURN var.attr`.
type ReturnNodeAttr struct {
	Variable string
	Attr     string
}

func (ReturnAll) isReturnClause()      {}
func (ReturnNodeID) isReturnClause()   {}
func (ReturnNodeAttr) isReturnClause() {}
