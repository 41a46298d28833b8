package sqlscan

import (
	"strings"
	"unicode"
)

// lexer tokenizes one SQL candidate string.
type lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

func newLexer(input string) *lexer {
	l := &lexer{input: input}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next character without advancing.
func (l *lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// next returns the next token.
func (l *lexer) next() Token {
	l.skipWhitespaceAndComments()

	var tok Token
	switch l.ch {
	case 0:
		tok = Token{Type: EOF}
		return tok
	case ';':
		tok = Token{Type: SEMI, Literal: ";"}
	case ',':
		tok = Token{Type: COMMA, Literal: ","}
	case '.':
		tok = Token{Type: DOT, Literal: "."}
	case '(':
		tok = Token{Type: LPAREN, Literal: "("}
	case ')':
		tok = Token{Type: RPAREN, Literal: ")"}
	case '*':
		tok = Token{Type: STAR, Literal: "*"}
	case '=':
		tok = Token{Type: EQ, Literal: "="}
	case '?':
		tok = Token{Type: PARAM, Literal: "?"}
	case ':', '@':
		return l.readNamedParam()
	case '$':
		return l.readDollarParam()
	case '\'':
		return Token{Type: STRING, Literal: l.readString()}
	case '"':
		// Quoted identifier (ANSI style)
		return Token{Type: IDENT, Literal: l.readQuoted('"')}
	case '`':
		// Quoted identifier (MySQL style)
		return Token{Type: IDENT, Literal: l.readQuoted('`')}
	case '[':
		// Quoted identifier (SQL Server style)
		return Token{Type: IDENT, Literal: l.readBracketed()}
	default:
		switch {
		case isLetter(l.ch) || l.ch == '_':
			lit := l.readIdentifier()
			return Token{Type: lookupIdent(lit), Literal: lit}
		case isDigit(l.ch):
			return Token{Type: NUMBER, Literal: l.readNumber()}
		default:
			tok = Token{Type: OP, Literal: string(l.ch)}
		}
	}

	l.readChar()
	return tok
}

// skipWhitespaceAndComments skips whitespace, -- line comments and /* */
// block comments.
func (l *lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar()
			l.readChar()
			for l.ch != 0 {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
			continue
		}
		break
	}
}

// readString reads a single-quoted string literal.
// Handles doubled single quotes as escape: 'it''s' -> it's
func (l *lexer) readString() string {
	l.readChar() // skip opening quote

	var result strings.Builder
	for l.ch != 0 {
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				result.WriteByte('\'')
				l.readChar()
				l.readChar()
			} else {
				l.readChar() // skip closing quote
				break
			}
		} else {
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
	return result.String()
}

// readQuoted reads an identifier quoted with the given character.
// Doubled quote characters are treated as an escape.
func (l *lexer) readQuoted(quote byte) string {
	l.readChar() // skip opening quote

	var result strings.Builder
	for l.ch != 0 {
		if l.ch == quote {
			if l.peekChar() == quote {
				result.WriteByte(quote)
				l.readChar()
				l.readChar()
			} else {
				l.readChar() // skip closing quote
				break
			}
		} else {
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
	return result.String()
}

// readBracketed reads a [bracketed] identifier.
func (l *lexer) readBracketed() string {
	l.readChar() // skip '['
	start := l.pos
	for l.ch != ']' && l.ch != 0 {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	if l.ch == ']' {
		l.readChar()
	}
	return lit
}

// readIdentifier reads an unquoted identifier.
func (l *lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '$' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal.
func (l *lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

// readNamedParam reads a :name or @name placeholder.
func (l *lexer) readNamedParam() Token {
	start := l.pos
	l.readChar() // skip sigil
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return Token{Type: PARAM, Literal: l.input[start:l.pos]}
}

// readDollarParam reads a $1 style placeholder. A bare '$' followed by a
// letter is an interpolation remnant; lex it as a placeholder too so the
// parser can skip it.
func (l *lexer) readDollarParam() Token {
	start := l.pos
	l.readChar() // skip '$'
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return Token{Type: PARAM, Literal: l.input[start:l.pos]}
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
