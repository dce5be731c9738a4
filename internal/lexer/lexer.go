package lexer

import (
	"bzr/internal/token"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Lexer struct {
	input        string
	filename     string
	position     int  // current byte position in input (points to start of current rune)
	readPosition int  // next byte position in input (start of next rune)
	ch           rune // current rune under examination; 0 means EOF
	line         int
	column       int
}

// Tokenizer is anything that can feed the parser a stream of tokens.
type Tokenizer interface {
	NextToken() token.Token
}

func New(input string, filename string) *Lexer {
	l := &Lexer{input: input, filename: filename, line: 1}
	l.readChar()
	return l
}

// NextToken scans one token. It never fails: malformed input comes back as an
// ILLEGAL token and every call past the end of input returns EOF.
func (l *Lexer) NextToken() token.Token {
	var tok token.Token

	l.skipWhitespace()

	loc := l.location()

	switch l.ch {
	case '=':
		tok = l.handleCompoundToken(token.ASSIGN, '=', token.EQ, loc)
	case '!':
		tok = l.handleCompoundToken(token.BANG, '=', token.NOT_EQ, loc)
	case '<':
		tok = l.handleCompoundToken(token.LT, '=', token.LT_EQ, loc)
	case '>':
		tok = l.handleCompoundToken(token.GT, '=', token.GT_EQ, loc)
	case '&':
		tok = l.handleCompoundToken(token.BITWISE_AND, '&', token.LOGICAL_AND, loc)
	case '|':
		tok = l.handleCompoundToken(token.BITWISE_OR, '|', token.LOGICAL_OR, loc)
	case '+':
		tok = newToken(token.PLUS, l.ch, loc)
	case '-':
		tok = newToken(token.MINUS, l.ch, loc)
	case '*':
		tok = newToken(token.ASTERISK, l.ch, loc)
	case '/':
		tok = newToken(token.SLASH, l.ch, loc)
	case ',':
		tok = newToken(token.COMMA, l.ch, loc)
	case ';':
		tok = newToken(token.SEMICOLON, l.ch, loc)
	case '(':
		tok = newToken(token.LPAREN, l.ch, loc)
	case ')':
		tok = newToken(token.RPAREN, l.ch, loc)
	case '{':
		tok = newToken(token.LBRACE, l.ch, loc)
	case '}':
		tok = newToken(token.RBRACE, l.ch, loc)
	case '[':
		tok = newToken(token.LBRACKET, l.ch, loc)
	case ']':
		tok = newToken(token.RBRACKET, l.ch, loc)
	case '"':
		return l.readString(loc)
	case 0:
		return token.Token{Type: token.EOF, Literal: "", Location: loc}
	default:
		if isLetter(l.ch) {
			literal := l.readIdentifier()
			return token.Token{Type: token.LookupIdent(literal), Literal: literal, Location: loc}
		} else if isDigit(l.ch) {
			literal, ok := l.readNumber()
			if !ok {
				return token.Token{Type: token.ILLEGAL, Literal: literal, Location: loc}
			}
			return token.Token{Type: token.NUMBER, Literal: literal, Location: loc}
		}
		tok = newToken(token.ILLEGAL, l.ch, loc)
	}

	l.readChar()
	return tok
}

func (l *Lexer) location() token.Location {
	return token.Location{
		Offset:   l.position,
		Line:     l.line,
		Column:   l.column,
		Filename: l.filename,
	}
}

func (l *Lexer) handleCompoundToken(
	t token.TokenType,
	ch1 rune,
	t1 token.TokenType,
	loc token.Location,
) token.Token {
	if l.peekChar() == ch1 {
		first := l.ch
		l.readChar()
		return token.Token{Type: t1, Literal: string(first) + string(l.ch), Location: loc}
	}
	return newToken(t, l.ch, loc)
}

func (l *Lexer) skipWhitespace() {
	for {
		switch l.ch {
		case ' ', '\t', '\r', '\n':
			l.readChar()
		case '#':
			l.skipToLineEnd()
		case '/':
			if l.peekChar() == '/' {
				l.skipToLineEnd()
			} else {
				return
			}
		default:
			return
		}
	}
}

func (l *Lexer) skipToLineEnd() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

// readChar advances by one UTF-8 rune, updating byte positions and the line/column counters
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = len(l.input)
		l.readPosition = len(l.input)
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += size
}

// peekChar returns the next rune without advancing; returns 0 at EOF
func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

// readNumber scans a digit run. The rune right after the run has to end the
// literal; if it does not, the whole malformed run is returned with ok=false.
func (l *Lexer) readNumber() (string, bool) {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if isTerminator(l.ch) {
		return l.input[start:l.position], true
	}
	for !isTerminator(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position], false
}

// readString is entered on the opening quote and leaves the lexer past the
// closing one. Input that ends before the closing quote is ILLEGAL.
func (l *Lexer) readString(loc token.Location) token.Token {
	var result strings.Builder

	l.readChar() // consume the opening "

	for {
		if l.ch == 0 {
			return token.Token{Type: token.ILLEGAL, Literal: `"` + result.String(), Location: loc}
		}

		if l.ch == '"' {
			l.readChar() // consume the closing "
			break
		}

		if l.ch == '\\' {
			l.readChar() // move to the escaped character
			switch l.ch {
			case 'n':
				result.WriteRune('\n')
			case 't':
				result.WriteRune('\t')
			case 'r':
				result.WriteRune('\r')
			case '\\':
				result.WriteRune('\\')
			case '"':
				result.WriteRune('"')
			case 0:
				continue
			default:
				result.WriteRune('\\')
				result.WriteRune(l.ch)
			}
		} else {
			result.WriteRune(l.ch)
		}

		l.readChar()
	}

	return token.Token{Type: token.STRING, Literal: result.String(), Location: loc}
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

// isTerminator reports whether ch may directly follow a number literal.
func isTerminator(ch rune) bool {
	switch ch {
	case 0, ' ', '\t', '\r', '\n',
		'=', '+', '-', '*', '/', '!', '<', '>', '&', '|', '#',
		',', ';', '(', ')', '{', '}', '[', ']':
		return true
	}
	return false
}

func newToken(tokenType token.TokenType, ch rune, loc token.Location) token.Token {
	return token.Token{Type: tokenType, Literal: string(ch), Location: loc}
}
