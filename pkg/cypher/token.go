package cypher

import "strings"

// isPunct reports whether ch always stands alone as a token.
func isPunct(ch rune) bool {
	switch ch {
	case '(', ')', '[', ']', '-', '>', '<', ':', '=', ',', '{', '}', '.':
		return true
	}
	return false
}

// Tokenize splits query text into the flat token stream the parser
// consumes. The rules are deliberately simple:
//
//   - whitespace terminates the current token and is discarded;
//   - each punctuation character in isPunct is always its own token,
//     terminating any in-progress token first;
//   - a quote character (' or ") toggles string mode, in which every
//     character including whitespace and punctuation is accumulated
//     literally; the closing quote emits the accumulated token. There
//     is no escape-sequence support;
//   - anything else extends the current token, so identifiers,
//     keywords, numbers, and hex literals all arrive as single tokens.
//
// Tokenization never fails; malformed input surfaces as parse errors.
func Tokenize(input string) []string {
	var tokens []string
	var current strings.Builder
	inString := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, ch := range input {
		switch {
		case ch == '\'' || ch == '"':
			if inString {
				tokens = append(tokens, current.String())
				current.Reset()
				inString = false
			} else {
				inString = true
			}
		case inString:
			current.WriteRune(ch)
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			flush()
		case isPunct(ch):
			flush()
			tokens = append(tokens, string(ch))
		default:
			current.WriteRune(ch)
		}
	}
	flush()

	return tokens
}
