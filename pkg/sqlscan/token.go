package sqlscan

import "strings"

// TokenType identifies a lexical token class.
type TokenType int

// Token types. Keywords are restricted to the statement shapes the
// classifier recognizes; everything else lexes as IDENT.
const (
	EOF TokenType = iota
	ILLEGAL

	IDENT
	NUMBER
	STRING
	PARAM // ?, :name, $1, @name placeholders

	// Punctuation and operators
	SEMI
	COMMA
	DOT
	LPAREN
	RPAREN
	STAR
	EQ
	OP // any other operator

	// Keywords
	kwStart
	SELECT
	INSERT
	UPDATE
	DELETE
	MERGE
	CREATE
	DROP
	TRUNCATE
	WITH
	RECURSIVE
	INTO
	FROM
	SET
	VALUES
	TABLE
	VIEW
	TEMP
	TEMPORARY
	AS
	ON
	USING
	JOIN
	LEFT
	RIGHT
	INNER
	OUTER
	FULL
	CROSS
	NATURAL
	LATERAL
	WHERE
	GROUP
	ORDER
	BY
	HAVING
	LIMIT
	OFFSET
	UNION
	INTERSECT
	EXCEPT
	ALL
	DISTINCT
	EXISTS
	NOT
	AND
	OR
	IN
	IF
	CASE
	WHEN
	THEN
	ELSE
	END
	MATCHED
	RETURNING
	kwEnd
)

var keywords = map[string]TokenType{
	"select":    SELECT,
	"insert":    INSERT,
	"update":    UPDATE,
	"delete":    DELETE,
	"merge":     MERGE,
	"create":    CREATE,
	"drop":      DROP,
	"truncate":  TRUNCATE,
	"with":      WITH,
	"recursive": RECURSIVE,
	"into":      INTO,
	"from":      FROM,
	"set":       SET,
	"values":    VALUES,
	"table":     TABLE,
	"view":      VIEW,
	"temp":      TEMP,
	"temporary": TEMPORARY,
	"as":        AS,
	"on":        ON,
	"using":     USING,
	"join":      JOIN,
	"left":      LEFT,
	"right":     RIGHT,
	"inner":     INNER,
	"outer":     OUTER,
	"full":      FULL,
	"cross":     CROSS,
	"natural":   NATURAL,
	"lateral":   LATERAL,
	"where":     WHERE,
	"group":     GROUP,
	"order":     ORDER,
	"by":        BY,
	"having":    HAVING,
	"limit":     LIMIT,
	"offset":    OFFSET,
	"union":     UNION,
	"intersect": INTERSECT,
	"except":    EXCEPT,
	"all":       ALL,
	"distinct":  DISTINCT,
	"exists":    EXISTS,
	"not":       NOT,
	"and":       AND,
	"or":        OR,
	"in":        IN,
	"if":        IF,
	"case":      CASE,
	"when":      WHEN,
	"then":      THEN,
	"else":      ELSE,
	"end":       END,
	"matched":   MATCHED,
	"returning": RETURNING,
}

// Token is a lexical token with its literal text.
type Token struct {
	Type    TokenType
	Literal string
}

// lookupIdent maps an identifier to its keyword token, or IDENT.
func lookupIdent(ident string) TokenType {
	if t, ok := keywords[strings.ToLower(ident)]; ok {
		return t
	}
	return IDENT
}

// statementHeads are the keywords that can begin a classifiable statement.
var statementHeads = map[TokenType]bool{
	SELECT:   true,
	INSERT:   true,
	UPDATE:   true,
	DELETE:   true,
	CREATE:   true,
	WITH:     true,
	DROP:     true,
	TRUNCATE: true,
	MERGE:    true,
}

// HasStatementHead reports whether s begins (after whitespace, comments and
// an optional opening parenthesis) with a recognizable SQL statement keyword.
// Used by the extractor to pick SQL candidates out of arbitrary string values
// and by the evaluator's partial-literal policy.
func HasStatementHead(s string) bool {
	l := newLexer(s)
	tok := l.next()
	for tok.Type == LPAREN {
		tok = l.next()
	}
	return statementHeads[tok.Type]
}
