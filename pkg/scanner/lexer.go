package scanner

import (
	"strings"

	"github.com/leapstack-labs/crudmap/pkg/symtab"
)

// tokKind identifies a source token class.
type tokKind int

const (
	tkEOF tokKind = iota
	tkIdent
	tkVar    // $name
	tkString // literal or interpolated string; carries terms
	tkNumber
	tkAssign   // =
	tkAppend   // .= or +=
	tkOpAssign // -= *= /= %= : target becomes unresolved
	tkConcat   // . or +
	tkLParen
	tkRParen
	tkLBrace
	tkRBrace
	tkSemi
	tkComma
	tkArrow // -> or ::
	tkKeyword
	tkOp // everything else
)

// tok is one source token. String tokens carry their interpolation terms.
type tok struct {
	kind  tokKind
	lit   string
	terms []symtab.Term
}

// controlKeywords start conditional or looping constructs.
var controlKeywords = map[string]bool{
	"if":      true,
	"else":    true,
	"elseif":  true,
	"elsif":   true,
	"while":   true,
	"for":     true,
	"foreach": true,
	"switch":  true,
	"case":    true,
	"unless":  true,
}

// srcKeywords are words with structural meaning to the walker.
var srcKeywords = map[string]bool{
	"function": true,
	"sub":      true,
	"const":    true,
	"return":   true,
	"global":   true,
}

// srcLexer tokenizes one legacy source unit.
type srcLexer struct {
	input   string
	pos     int
	readPos int
	ch      byte
}

func newSrcLexer(input string) *srcLexer {
	l := &srcLexer{input: input}
	l.readChar()
	return l
}

func (l *srcLexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *srcLexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// lexAll tokenizes the whole input.
func lexAll(input string) []tok {
	l := newSrcLexer(input)
	var toks []tok
	for {
		t := l.next()
		toks = append(toks, t)
		if t.kind == tkEOF {
			break
		}
	}
	return toks
}

func (l *srcLexer) next() tok {
	l.skipWhitespaceAndComments()

	switch l.ch {
	case 0:
		return tok{kind: tkEOF}
	case '$':
		if isIdentStart(l.peekChar()) {
			return l.readVariable()
		}
		l.readChar()
		return tok{kind: tkOp, lit: "$"}
	case '\'':
		return l.readSingleQuoted()
	case '"':
		return l.readDoubleQuoted()
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			if l.ch == '=' {
				l.readChar()
			}
			return tok{kind: tkOp, lit: "=="}
		}
		l.readChar()
		return tok{kind: tkAssign, lit: "="}
	case '.':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return tok{kind: tkAppend, lit: ".="}
		}
		l.readChar()
		return tok{kind: tkConcat, lit: "."}
	case '+':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return tok{kind: tkAppend, lit: "+="}
		}
		l.readChar()
		return tok{kind: tkConcat, lit: "+"}
	case '-':
		switch l.peekChar() {
		case '>':
			l.readChar()
			l.readChar()
			return tok{kind: tkArrow, lit: "->"}
		case '=':
			l.readChar()
			l.readChar()
			return tok{kind: tkOpAssign, lit: "-="}
		}
		l.readChar()
		return tok{kind: tkOp, lit: "-"}
	case '*', '/', '%':
		op := l.ch
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return tok{kind: tkOpAssign, lit: string(op) + "="}
		}
		l.readChar()
		return tok{kind: tkOp, lit: string(op)}
	case ':':
		if l.peekChar() == ':' {
			l.readChar()
			l.readChar()
			return tok{kind: tkArrow, lit: "::"}
		}
		l.readChar()
		return tok{kind: tkOp, lit: ":"}
	case '(':
		l.readChar()
		return tok{kind: tkLParen, lit: "("}
	case ')':
		l.readChar()
		return tok{kind: tkRParen, lit: ")"}
	case '{':
		l.readChar()
		return tok{kind: tkLBrace, lit: "{"}
	case '}':
		l.readChar()
		return tok{kind: tkRBrace, lit: "}"}
	case ';':
		l.readChar()
		return tok{kind: tkSemi, lit: ";"}
	case ',':
		l.readChar()
		return tok{kind: tkComma, lit: ","}
	default:
		switch {
		case isIdentStart(l.ch):
			lit := l.readIdentifier()
			lower := strings.ToLower(lit)
			if controlKeywords[lower] || srcKeywords[lower] {
				return tok{kind: tkKeyword, lit: lower}
			}
			return tok{kind: tkIdent, lit: lit}
		case isSrcDigit(l.ch):
			return tok{kind: tkNumber, lit: l.readNumber()}
		default:
			op := string(l.ch)
			l.readChar()
			return tok{kind: tkOp, lit: op}
		}
	}
}

// skipWhitespaceAndComments skips whitespace plus #, // and /* */ comments.
func (l *srcLexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		if l.ch == '/' && l.peekChar() == '/' {
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

// readVariable reads $name.
func (l *srcLexer) readVariable() tok {
	l.readChar() // skip '$'
	name := l.readIdentifier()
	return tok{kind: tkVar, lit: name}
}

// readSingleQuoted reads a non-interpolating string literal.
// Escapes: \' and \\ only, everything else is literal.
func (l *srcLexer) readSingleQuoted() tok {
	l.readChar() // skip opening quote
	var b strings.Builder
	for l.ch != 0 && l.ch != '\'' {
		if l.ch == '\\' && (l.peekChar() == '\'' || l.peekChar() == '\\') {
			l.readChar()
		}
		b.WriteByte(l.ch)
		l.readChar()
	}
	if l.ch == '\'' {
		l.readChar()
	}
	s := b.String()
	return tok{kind: tkString, lit: s, terms: []symtab.Term{symtab.Lit(s)}}
}

// readDoubleQuoted reads an interpolating string literal and splits it into
// literal and variable-reference terms. Supported forms: $name and {$name}.
func (l *srcLexer) readDoubleQuoted() tok {
	l.readChar() // skip opening quote
	var terms []symtab.Term
	var b strings.Builder
	var raw strings.Builder

	flush := func() {
		if b.Len() > 0 {
			terms = append(terms, symtab.Lit(b.String()))
			b.Reset()
		}
	}

	for l.ch != 0 && l.ch != '"' {
		switch {
		case l.ch == '\\':
			next := l.peekChar()
			l.readChar()
			switch next {
			case 'n':
				b.WriteByte('\n')
				raw.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
				raw.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
				raw.WriteByte('\r')
			case 0:
			default:
				b.WriteByte(next)
				raw.WriteByte(next)
			}
			if l.ch != 0 {
				l.readChar()
			}
		case l.ch == '$' && isIdentStart(l.peekChar()):
			l.readChar() // skip '$'
			name := l.readIdentifier()
			flush()
			terms = append(terms, symtab.Ref(name))
			raw.WriteString("$" + name)
		case l.ch == '{' && l.peekChar() == '$':
			l.readChar() // skip '{'
			l.readChar() // skip '$'
			name := l.readIdentifier()
			if l.ch == '}' {
				l.readChar()
			}
			flush()
			terms = append(terms, symtab.Ref(name))
			raw.WriteString("${" + name + "}")
		default:
			b.WriteByte(l.ch)
			raw.WriteByte(l.ch)
			l.readChar()
		}
	}
	if l.ch == '"' {
		l.readChar()
	}
	flush()
	if len(terms) == 0 {
		terms = []symtab.Term{symtab.Lit("")}
	}
	return tok{kind: tkString, lit: raw.String(), terms: terms}
}

func (l *srcLexer) readIdentifier() string {
	start := l.pos
	for isIdentStart(l.ch) || isSrcDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *srcLexer) readNumber() string {
	start := l.pos
	for isSrcDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isSrcDigit(l.peekChar()) {
		l.readChar()
		for isSrcDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isSrcDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
