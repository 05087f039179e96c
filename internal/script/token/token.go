// Package token defines the operator token types and source positions shared
// by the script tree and the executor. Scripts are not lexed here; the loader
// maps operator spellings onto these types.
package token

import "fmt"

// TokenType identifies an operator in an expression tree.
type TokenType int

const (
	TOKEN_ILLEGAL TokenType = iota

	// ----- Arithmetic -----
	TOKEN_PLUS    // +
	TOKEN_MINUS   // -
	TOKEN_STAR    // *
	TOKEN_SLASH   // /
	TOKEN_PERCENT // %

	// ----- Comparison -----
	TOKEN_GT  // >
	TOKEN_LT  // <
	TOKEN_GTE // >=
	TOKEN_LTE // <=
	TOKEN_EQ  // ==
	TOKEN_NEQ // !=

	// ----- Logical -----
	TOKEN_AND // &&
	TOKEN_OR  // ||
	TOKEN_NOT // !
)

// Position records where a node was found in the script source.
type Position struct {
	File   string // script file, empty for trees built in code
	Line   int    // 1-based line number, 0 if unknown
	Column int    // 1-based column number
}

// String formats the position as file:line:column, omitting unknown parts.
func (p Position) String() string {
	switch {
	case p.Line == 0 && p.File == "":
		return "-"
	case p.Line == 0:
		return p.File
	case p.File == "":
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	default:
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
}

// IsValid reports whether the position carries a line number.
func (p Position) IsValid() bool { return p.Line > 0 }

// operators maps operator spellings to their token types.
var operators = map[string]TokenType{
	"+":  TOKEN_PLUS,
	"-":  TOKEN_MINUS,
	"*":  TOKEN_STAR,
	"/":  TOKEN_SLASH,
	"%":  TOKEN_PERCENT,
	">":  TOKEN_GT,
	"<":  TOKEN_LT,
	">=": TOKEN_GTE,
	"<=": TOKEN_LTE,
	"==": TOKEN_EQ,
	"!=": TOKEN_NEQ,
	"&&": TOKEN_AND,
	"||": TOKEN_OR,
	"!":  TOKEN_NOT,
}

// OperatorLookup returns the TokenType for an operator spelling, or
// TOKEN_ILLEGAL if the spelling is unknown.
func OperatorLookup(op string) TokenType {
	if tt, ok := operators[op]; ok {
		return tt
	}
	return TOKEN_ILLEGAL
}

// IsUnary reports whether the operator may be applied to a single operand.
func (t TokenType) IsUnary() bool {
	return t == TOKEN_NOT || t == TOKEN_MINUS
}

// tokenNames gives a human-readable name for each TokenType.
var tokenNames = map[TokenType]string{
	TOKEN_ILLEGAL: "ILLEGAL",

	TOKEN_PLUS:    "+",
	TOKEN_MINUS:   "-",
	TOKEN_STAR:    "*",
	TOKEN_SLASH:   "/",
	TOKEN_PERCENT: "%",

	TOKEN_GT:  ">",
	TOKEN_LT:  "<",
	TOKEN_GTE: ">=",
	TOKEN_LTE: "<=",
	TOKEN_EQ:  "==",
	TOKEN_NEQ: "!=",

	TOKEN_AND: "&&",
	TOKEN_OR:  "||",
	TOKEN_NOT: "!",
}

// String returns a human-readable name for the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}
