package token

import "fmt"

type TokenType string

const (
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"

	// Identifiers + literals
	IDENT  = "IDENT"  // add, foobar, x, y, ...
	NUMBER = "NUMBER" // 1343456
	STRING = "STRING" // "foobar"

	// Operators
	ASSIGN   = "="
	PLUS     = "+"
	MINUS    = "-"
	BANG     = "!"
	ASTERISK = "*"
	SLASH    = "/"

	LT    = "<"
	LT_EQ = "<="
	GT    = ">"
	GT_EQ = ">="

	EQ     = "=="
	NOT_EQ = "!="

	BITWISE_AND = "&"
	BITWISE_OR  = "|"
	LOGICAL_AND = "&&"
	LOGICAL_OR  = "||"

	// Delimiters
	COMMA     = ","
	SEMICOLON = ";"

	LPAREN   = "("
	RPAREN   = ")"
	LBRACE   = "{"
	RBRACE   = "}"
	LBRACKET = "["
	RBRACKET = "]"

	// Keywords
	FUNCTION = "FUNCTION"
	LET      = "LET"
	VAR      = "VAR"
	TRUE     = "TRUE"
	FALSE    = "FALSE"
	IF       = "IF"
	ELSE     = "ELSE"
	RETURN   = "RETURN"
	WHILE    = "WHILE"

	// Type keywords
	INT   = "INT"
	STR   = "STR"
	BOOL  = "BOOL"
	ARRAY = "ARRAY"
)

// Location tags a token with where it came from. It is only used for diagnostics.
type Location struct {
	Offset   int // byte offset of the first character
	Line     int
	Column   int
	Filename string
}

func (l Location) String() string {
	if l.Filename == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.Filename, l.Line, l.Column)
}

type Token struct {
	Type     TokenType
	Literal  string
	Location Location
}

func (t Token) String() string {
	if t.Type == EOF {
		return "end of input"
	}
	return fmt.Sprintf("'%s'", t.Literal)
}

var keywords = map[string]TokenType{
	// constants
	"true":  TRUE,
	"false": FALSE,

	// declarations
	"fn":  FUNCTION,
	"let": LET,
	"var": VAR,

	// flow control
	"if":    IF,
	"else":  ELSE,
	"ret":   RETURN,
	"while": WHILE,

	// types
	"int":   INT,
	"str":   STR,
	"bool":  BOOL,
	"array": ARRAY,
}

func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsTypeKeyword reports whether t names a declarable type.
func IsTypeKeyword(t TokenType) bool {
	switch t {
	case INT, STR, BOOL, ARRAY:
		return true
	}
	return false
}
