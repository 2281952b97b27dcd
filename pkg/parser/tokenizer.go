package parser

import "github.com/ecodercc5/carlae/pkg/ast"

// Token is a single lexical unit: a parenthesis, a reserved keyword, or a
// delimiter-free atom. Tokens are classified by content at parse time.
type Token string

const (
	tokenOpen  Token = "("
	tokenClose Token = ")"
)

// Tokenize splits source text into tokens, stripping whitespace and line
// comments. It never fails; malformed structure is caught by Parse.
//
// Space, newline, and parentheses are delimiters: hitting one flushes the
// pending token buffer. A reserved keyword flushes as soon as the buffer
// matches it, so keywords need no trailing whitespace. Line comments start at
// '#' and run through the next newline.
func Tokenize(source string) []Token {
	var tokens []Token
	current := ""
	inComment := false

	flush := func() {
		if current != "" {
			tokens = append(tokens, Token(current))
			current = ""
		}
	}

	for _, ch := range source {
		if isDelimiter(ch) {
			flush()
		}
		if ch == ' ' || ch == '\n' {
			if ch == '\n' {
				inComment = false
			}
			continue
		}
		if inComment {
			continue
		}
		if ch == '(' || ch == ')' {
			tokens = append(tokens, Token(ch))
			continue
		}
		if ch == '#' {
			inComment = true
			continue
		}
		current += string(ch)
		if current == ast.KeywordAssign || current == ast.KeywordFunction {
			flush()
		}
	}
	flush()
	return tokens
}

func isDelimiter(ch rune) bool {
	switch ch {
	case '(', ')', ' ', '\n':
		return true
	default:
		return false
	}
}
