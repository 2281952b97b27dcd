package parser

import (
	"fmt"
	"strconv"

	"github.com/ecodercc5/carlae/pkg/ast"
)

// SyntaxError reports malformed program structure: unbalanced parentheses,
// an empty token stream, or an unparenthesized multi-token expression.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string {
	return "syntax error: " + e.Message
}

func newSyntaxError(format string, args ...any) *SyntaxError {
	return &SyntaxError{Message: fmt.Sprintf(format, args...)}
}

// maxNestingDepth bounds parser recursion so pathological inputs surface a
// SyntaxError instead of exhausting the goroutine stack.
const maxNestingDepth = 4096

// Parse builds a single expression from a token stream. The stream must hold
// exactly one atom or one balanced parenthesized form.
func Parse(tokens []Token) (ast.Expr, error) {
	return parseTokens(tokens, 0)
}

// ParseProgram builds the ordered sequence of top-level expressions from a
// token stream, allowing any mix of atoms and parenthesized forms.
func ParseProgram(tokens []Token) ([]ast.Expr, error) {
	if len(tokens) == 0 {
		return nil, newSyntaxError("empty program")
	}
	groups, err := groupTokens(tokens)
	if err != nil {
		return nil, err
	}
	exprs := make([]ast.Expr, 0, len(groups))
	for _, group := range groups {
		expr, err := parseTokens(group, 0)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	return exprs, nil
}

func parseTokens(tokens []Token, depth int) (ast.Expr, error) {
	if depth > maxNestingDepth {
		return nil, newSyntaxError("maximum nesting depth exceeded")
	}
	if len(tokens) == 0 {
		return nil, newSyntaxError("empty program")
	}
	if len(tokens) == 1 {
		return parseAtom(tokens[0])
	}
	if tokens[0] != tokenOpen || tokens[len(tokens)-1] != tokenClose {
		return nil, newSyntaxError("expression must be parenthesized")
	}
	groups, err := groupTokens(tokens[1 : len(tokens)-1])
	if err != nil {
		return nil, err
	}
	elements := make([]ast.Expr, 0, len(groups))
	for _, group := range groups {
		element, err := parseTokens(group, depth+1)
		if err != nil {
			return nil, err
		}
		elements = append(elements, element)
	}
	return ast.NewCombination(elements), nil
}

// parseAtom classifies a single token: integer first, then float, then
// symbol. Stray parentheses cannot stand alone.
func parseAtom(token Token) (ast.Expr, error) {
	if token == tokenOpen || token == tokenClose {
		return nil, newSyntaxError("unbalanced parenthesis %q", string(token))
	}
	text := string(token)
	if value, err := strconv.ParseInt(text, 10, 64); err == nil {
		return ast.NewIntegerLiteral(value), nil
	}
	if value, err := strconv.ParseFloat(text, 64); err == nil {
		return ast.NewFloatLiteral(value), nil
	}
	return ast.NewSymbol(text), nil
}

// groupTokens splits a token stream into consecutive complete expressions:
// each balanced parenthesized run is one group, each bare atom at depth zero
// is its own group.
func groupTokens(tokens []Token) ([][]Token, error) {
	var groups [][]Token
	depth := 0
	start := 0
	for i, token := range tokens {
		switch token {
		case tokenOpen:
			if depth == 0 {
				start = i
			}
			depth++
		case tokenClose:
			depth--
			if depth < 0 {
				return nil, newSyntaxError("unexpected ')'")
			}
			if depth == 0 {
				groups = append(groups, tokens[start:i+1])
			}
		default:
			if depth == 0 {
				groups = append(groups, tokens[i:i+1])
			}
		}
	}
	if depth > 0 {
		return nil, newSyntaxError("unclosed parenthesis")
	}
	return groups, nil
}
