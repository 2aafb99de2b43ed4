// Package cypher implements the front half of the RuneDB query
// pipeline: a tokenizer and recursive-descent parser for the miniature
// Cypher-like query language, and the compiler that lowers a parsed
// query into the bytecode executed by pkg/vm.
//
// The grammar, informally:
//
//	statement   := match_stmt | create_stmt
//	match_stmt  := "MATCH" pattern ("WHERE" var "." field "=" value)?
//	               "RETURN" ret "LIMIT" uint
//	create_stmt := "CREATE" "(" (node_create | edge_create) ")"
//	pattern     := "(" var (":" Label)? ")"
//	             | "(" var (":" Label)? ")" "-" dir? "[" (":" Label)? "]"
//	               dir "(" var (":" Label)? ")"
//	ret         := "*" | var ("." field)?
//
// Keywords are case-insensitive; identifiers are case-sensitive.
package cypher

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/runedb/runedb/pkg/graph"
)

// Parse tokenizes and parses query text into a Query AST. Errors are
// always *ParseError values.
func Parse(query string) (Query, error) {
	p := &parser{tokens: Tokenize(strings.TrimSpace(query))}

	if len(p.tokens) == 0 {
		return nil, invalidSyntax("empty query")
	}

	switch strings.ToUpper(p.tokens[0]) {
	case "CREATE":
		pattern, err := p.parseCreate()
		if err != nil {
			return nil, err
		}
		if len(p.tokens) != 0 {
			return nil, invalidSyntax("unexpected tokens: %v", p.tokens)
		}
		return CreateQuery{Pattern: pattern}, nil

	case "MATCH":
		pattern, err := p.parseMatch()
		if err != nil {
			return nil, err
		}
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		ret, err := p.parseReturn()
		if err != nil {
			return nil, err
		}
		limit, hasLimit, err := p.parseLimit()
		if err != nil {
			return nil, err
		}
		if !hasLimit {
			return nil, &ParseError{Kind: MissingLimit}
		}
		if len(p.tokens) != 0 {
			return nil, invalidSyntax("unexpected tokens: %v", p.tokens)
		}
		return MatchQuery{
			Pattern:  pattern,
			Where:    where,
			Return:   ret,
			Limit:    limit,
			HasLimit: true,
		}, nil

	default:
		return nil, invalidSyntax("expected MATCH or CREATE, got %q", p.tokens[0])
	}
}

// parser consumes a token stream front to back.
type parser struct {
	tokens []string
}

// peek returns the next token without consuming it, or "" at the end.
func (p *parser) peek() string {
	if len(p.tokens) == 0 {
		return ""
	}
	return p.tokens[0]
}

// next consumes and returns the next token, or "" at the end.
func (p *parser) next() string {
	if len(p.tokens) == 0 {
		return ""
	}
	tok := p.tokens[0]
	p.tokens = p.tokens[1:]
	return tok
}

func (p *parser) expectKeyword(keyword string) error {
	if len(p.tokens) == 0 {
		return unexpectedToken("expected %q", keyword)
	}
	if !strings.EqualFold(p.tokens[0], keyword) {
		return unexpectedToken("expected %q, got %q", keyword, p.tokens[0])
	}
	p.next()
	return nil
}

func (p *parser) expectChar(ch string) error {
	if len(p.tokens) == 0 || p.tokens[0] != ch {
		return unexpectedToken("expected %q", ch)
	}
	p.next()
	return nil
}

func (p *parser) expectIdentifier() (string, error) {
	if len(p.tokens) == 0 {
		return "", unexpectedToken("expected identifier")
	}
	tok := p.next()
	if !isIdentifier(tok) {
		return "", unexpectedToken("expected identifier, got %q", tok)
	}
	return tok, nil
}

func (p *parser) expectNumber() (int, error) {
	if len(p.tokens) == 0 {
		return 0, unexpectedToken("expected number")
	}
	tok := p.next()
	n, err := strconv.Atoi(tok)
	if err != nil || n < 0 {
		return 0, invalidSyntax("expected non-negative number, got %q", tok)
	}
	return n, nil
}

func (p *parser) expectString() (string, error) {
	if len(p.tokens) == 0 {
		return "", unexpectedToken("expected string")
	}
	return p.next(), nil
}

// isIdentifier reports whether tok starts like an identifier. Only the
// first character is inspected; the tokenizer guarantees the rest.
func isIdentifier(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// isNumeric reports whether tok consists solely of ASCII digits.
func isNumeric(tok string) bool {
	if tok == "" {
		return false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return false
		}
	}
	return true
}

// hasArrow reports whether the remaining tokens contain a relationship
// marker, selecting the edge/relationship grammar over the node one.
func (p *parser) hasArrow() bool {
	for _, tok := range p.tokens {
		if tok == "-" || tok == "->" || tok == "<-" {
			return true
		}
	}
	return false
}

// parseOptionalLabel consumes `: Label` if present.
func (p *parser) parseOptionalLabel() (string, error) {
	if p.peek() != ":" {
		return "", nil
	}
	p.next()
	return p.expectIdentifier()
}

// --- CREATE ---

func (p *parser) parseCreate() (CreatePattern, error) {
	if err := p.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	if len(p.tokens) == 0 {
		return nil, invalidSyntax("expected pattern after CREATE")
	}
	if p.hasArrow() {
		return p.parseCreateEdge()
	}
	return p.parseCreateNode()
}

func (p *parser) parseCreateNode() (CreatePattern, error) {
	if err := p.expectChar("("); err != nil {
		return nil, err
	}

	variable, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	label, err := p.parseOptionalLabel()
	if err != nil {
		return nil, err
	}

	pattern := CreateNodePattern{Variable: variable, Label: label}

	// Optional payload in the form { 0xHEX }.
	if p.peek() == "{" {
		p.next()
		tok := p.peek()
		if !strings.HasPrefix(tok, "0x") && !strings.HasPrefix(tok, "0X") {
			return nil, invalidSyntax("expected hex payload starting with 0x")
		}
		p.next()
		data, err := decodeHexPayload(tok[2:])
		if err != nil {
			return nil, err
		}
		if err := p.expectChar("}"); err != nil {
			return nil, err
		}
		pattern.Data = data
		pattern.HasData = true
	}

	if err := p.expectChar(")"); err != nil {
		return nil, err
	}
	return pattern, nil
}

// decodeHexPayload decodes pairs of hex digits into bytes. An odd digit
// count is a syntax error, not something to round away.
func decodeHexPayload(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, invalidSyntax("hex payload must have an even number of digits")
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, invalidSyntax("invalid hex payload: %v", err)
	}
	return data, nil
}

// parseEndpoint parses one endpoint of an edge-creation pattern: either
// an identifier with an optional label, or a literal node ID. The
// closing ")" is consumed.
func (p *parser) parseEndpoint() (NodePattern, *graph.ID, error) {
	if len(p.tokens) == 0 {
		return NodePattern{}, nil, unexpectedToken("expected node identifier or id")
	}
	tok := p.next()

	switch {
	case isIdentifier(tok):
		label, err := p.parseOptionalLabel()
		if err != nil {
			return NodePattern{}, nil, err
		}
		if err := p.expectChar(")"); err != nil {
			return NodePattern{}, nil, err
		}
		return NodePattern{Variable: tok, Label: label}, nil, nil

	case isNumeric(tok):
		id, err := graph.ParseID(tok)
		if err != nil {
			return NodePattern{}, nil, invalidSyntax("invalid node id %q", tok)
		}
		if err := p.expectChar(")"); err != nil {
			return NodePattern{}, nil, err
		}
		return NodePattern{}, &id, nil

	default:
		return NodePattern{}, nil, invalidSyntax("expected node identifier or id, got %q", tok)
	}
}

func (p *parser) parseCreateEdge() (CreatePattern, error) {
	if err := p.expectChar("("); err != nil {
		return nil, err
	}
	from, fromID, err := p.parseEndpoint()
	if err != nil {
		return nil, err
	}

	if err := p.expectChar("-"); err != nil {
		return nil, err
	}

	// The direction marker may precede the bracketed label...
	direction := Bidirectional
	switch p.peek() {
	case "[":
		// Label first; direction decided after it.
	case ">":
		p.next()
		direction = Outgoing
	case "<":
		p.next()
		direction = Incoming
	}

	edgeLabel := ""
	if p.peek() == "[" {
		p.next()
		if p.peek() == ":" {
			p.next()
			if p.peek() != "]" {
				edgeLabel, err = p.expectIdentifier()
				if err != nil {
					return nil, err
				}
			}
		}
		if err := p.expectChar("]"); err != nil {
			return nil, err
		}
	}

	// ...or follow it; whichever position resolves last wins.
	switch p.peek() {
	case "-":
		p.next()
		switch p.peek() {
		case ">":
			p.next()
			direction = Outgoing
		case "<":
			p.next()
			direction = Incoming
		default:
			direction = Bidirectional
		}
	case ">":
		p.next()
		direction = Outgoing
	case "<":
		p.next()
		direction = Incoming
	}

	if err := p.expectChar("("); err != nil {
		return nil, err
	}
	to, toID, err := p.parseEndpoint()
	if err != nil {
		return nil, err
	}

	return CreateEdgePattern{
		From:   from,
		FromID: fromID,
		Edge:   EdgePattern{Direction: direction, Label: edgeLabel},
		To:     to,
		ToID:   toID,
	}, nil
}

// --- MATCH ---

func (p *parser) parseMatch() (MatchPattern, error) {
	if err := p.expectKeyword("MATCH"); err != nil {
		return nil, err
	}
	if len(p.tokens) == 0 {
		return nil, invalidSyntax("expected pattern after MATCH")
	}
	if p.hasArrow() {
		return p.parseRelationship()
	}
	return p.parseSingleNode()
}

func (p *parser) parseSingleNode() (MatchPattern, error) {
	if err := p.expectChar("("); err != nil {
		return nil, err
	}
	variable, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	label, err := p.parseOptionalLabel()
	if err != nil {
		return nil, err
	}
	if err := p.expectChar(")"); err != nil {
		return nil, err
	}
	return SingleNode{Variable: variable, Label: label}, nil
}

func (p *parser) parseNodePattern() (NodePattern, error) {
	if err := p.expectChar("("); err != nil {
		return NodePattern{}, err
	}
	variable, err := p.expectIdentifier()
	if err != nil {
		return NodePattern{}, err
	}
	label, err := p.parseOptionalLabel()
	if err != nil {
		return NodePattern{}, err
	}
	if err := p.expectChar(")"); err != nil {
		return NodePattern{}, err
	}
	return NodePattern{Variable: variable, Label: label}, nil
}

func (p *parser) parseRelationship() (MatchPattern, error) {
	from, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}

	if p.peek() != "-" {
		return nil, invalidSyntax("expected edge pattern")
	}
	p.next()

	direction := Bidirectional
	switch p.peek() {
	case ">":
		p.next()
		direction = Outgoing
	case "<":
		p.next()
		direction = Incoming
	}

	if err := p.expectChar("["); err != nil {
		return nil, err
	}
	edgeLabel := ""
	if p.peek() == ":" {
		p.next()
		if p.peek() != "]" {
			edgeLabel, err = p.expectIdentifier()
			if err != nil {
				return nil, err
			}
		}
	}
	if err := p.expectChar("]"); err != nil {
		return nil, err
	}

	// Consume only the closing tokens consistent with the direction
	// already decided; a missing or mismatched closing arrow is
	// tolerated.
	switch direction {
	case Outgoing:
		if p.peek() == "-" {
			p.next()
		}
		if p.peek() == ">" {
			p.next()
		}
	case Incoming:
		if p.peek() == "<" {
			p.next()
		}
		if p.peek() == "-" {
			p.next()
		}
	case Bidirectional:
		if p.peek() == "-" {
			p.next()
		}
	}

	to, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}

	return Relationship{
		From: from,
		Edge: EdgePattern{Direction: direction, Label: edgeLabel},
		To:   to,
	}, nil
}

// --- WHERE / RETURN / LIMIT ---

func (p *parser) parseWhere() (WhereClause, error) {
	if len(p.tokens) == 0 || !strings.EqualFold(p.tokens[0], "WHERE") {
		return nil, nil
	}
	p.next()

	variable, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if err := p.expectChar("."); err != nil {
		return nil, err
	}
	field, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if err := p.expectChar("="); err != nil {
		return nil, err
	}

	if field == "id" {
		if len(p.tokens) == 0 {
			return nil, unexpectedToken("expected node id")
		}
		tok := p.next()
		id, err := graph.ParseID(tok)
		if err != nil {
			return nil, invalidSyntax("expected node id, got %q", tok)
		}
		return WhereIDEquals{Variable: variable, Value: id}, nil
	}

	value, err := p.expectString()
	if err != nil {
		return nil, err
	}
	return WhereAttrEquals{Variable: variable, Attr: field, Value: value}, nil
}

func (p *parser) parseReturn() (ReturnClause, error) {
	if err := p.expectKeyword("RETURN"); err != nil {
		return nil, err
	}

	if p.peek() == "*" {
		p.next()
		return ReturnAll{}, nil
	}

	variable, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}

	if p.peek() == "." {
		p.next()
		attr, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		return ReturnNodeAttr{Variable: variable, Attr: attr}, nil
	}
	return ReturnNodeID{Variable: variable}, nil
}

func (p *parser) parseLimit() (int, bool, error) {
	if len(p.tokens) == 0 || !strings.EqualFold(p.tokens[0], "LIMIT") {
		return 0, false, nil
	}
	p.next()
	n, err := p.expectNumber()
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}
