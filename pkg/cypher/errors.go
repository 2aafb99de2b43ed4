package cypher

import (
	"errors"
	"fmt"
)

// ParseErrorKind discriminates the parser's failure modes.
type ParseErrorKind int

const (
	// UnexpectedToken means a specific token was required and something
	// else (or end of input) was found.
	UnexpectedToken ParseErrorKind = iota
	// InvalidSyntax covers structural problems: unknown leading
	// keyword, malformed literals, leftover tokens.
	InvalidSyntax
	// MissingLimit means a MATCH query omitted its mandatory LIMIT
	// clause. The limit exists to bound traversal cost, so its absence
	// fails the query even when everything else is well-formed.
	MissingLimit
)

func (k ParseErrorKind) String() string {
	switch k {
	case UnexpectedToken:
		return "unexpected token"
	case InvalidSyntax:
		return "invalid syntax"
	case MissingLimit:
		return "missing LIMIT clause"
	default:
		return "parse error"
	}
}

// ParseError is the typed error returned by Parse. Callers can switch
// on Kind; Msg carries the human-readable detail.
type ParseError struct {
	Kind ParseErrorKind
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Msg == "" {
		return "cypher: " + e.Kind.String()
	}
	return fmt.Sprintf("cypher: %s: %s", e.Kind, e.Msg)
}

func unexpectedToken(format string, args ...any) *ParseError {
	return &ParseError{Kind: UnexpectedToken, Msg: fmt.Sprintf(format, args...)}
}

func invalidSyntax(format string, args ...any) *ParseError {
	return &ParseError{Kind: InvalidSyntax, Msg: fmt.Sprintf(format, args...)}
}

// ErrUnboundEndpoint is returned by Compile when an edge-creation
// pattern names an endpoint by variable instead of a literal node ID.
// Variable resolution for CREATE is not implemented.
var ErrUnboundEndpoint = errors.New("cypher: edge creation requires literal node ids on both endpoints")
