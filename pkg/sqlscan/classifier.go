// Package sqlscan classifies SQL text into per-table CRUD findings.
//
// Classification is layered: a statement-shape recursive-descent parse runs
// first, and a permissive keyword-pattern fallback runs only when the
// structured parse fails or finds nothing. The classifier is total: a
// statement too malformed for either strategy yields an empty set and a
// diagnostic, never an error.
package sqlscan

import (
	"strings"

	"github.com/leapstack-labs/crudmap/pkg/crud"
)

// DefaultStatementBudget is the per-statement byte cap. Statements over the
// budget are dropped as classification failures.
const DefaultStatementBudget = 64 * 1024

// Classifier turns SQL candidate text into table findings.
type Classifier struct {
	views  map[string]struct{}
	budget int
}

// NewClassifier creates a classifier. viewNames is the externally supplied
// view list; matching tables get the View annotation.
func NewClassifier(viewNames []string) *Classifier {
	c := &Classifier{
		views:  make(map[string]struct{}, len(viewNames)),
		budget: DefaultStatementBudget,
	}
	for _, v := range viewNames {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			c.views[v] = struct{}{}
		}
	}
	return c
}

// SetStatementBudget overrides the per-candidate byte cap. Zero or negative
// restores the default.
func (c *Classifier) SetStatementBudget(n int) {
	if n <= 0 {
		n = DefaultStatementBudget
	}
	c.budget = n
}

// Classify parses candidate text, which may hold several ';'-separated
// statements, and returns the merged findings. Statements are split off
// before any limit applies, so an oversized or malformed statement never
// takes its siblings down with it. unit names the source unit for
// diagnostics.
func (c *Classifier) Classify(unit, candidate string, sink *crud.Sink) *crud.Set {
	out := crud.NewSet()
	if strings.TrimSpace(candidate) == "" {
		return out
	}
	skipped := false
	for _, stmt := range splitStatements(candidate) {
		if c.classifyStatement(unit, stmt, sink, out) {
			skipped = true
		}
	}
	if out.Len() == 0 && !skipped && sink != nil {
		sink.Infof(unit, "candidate yielded no findings")
	}
	return out
}

// classifyStatement handles one statement's worth of text, reporting whether
// it was skipped for exceeding the budget.
func (c *Classifier) classifyStatement(unit, stmt string, sink *crud.Sink, out *crud.Set) bool {
	if strings.TrimSpace(stmt) == "" {
		return false
	}
	if len(stmt) > c.budget {
		if sink != nil {
			sink.Warnf(unit, "statement budget exceeded (%d bytes > %d), statement skipped", len(stmt), c.budget)
		}
		return true
	}

	local := crud.NewSet()
	p := &stmtParser{c: c, lex: newLexer(stmt), out: local, ctes: make(map[string]bool)}
	p.next()
	p.next()
	for p.tok.Type != EOF {
		if p.tok.Type == SEMI {
			p.next()
			continue
		}
		p.parseStatement()
		// Re-sync on anything the statement parse left behind.
		for p.tok.Type != SEMI && p.tok.Type != EOF {
			p.failed = true
			p.next()
		}
	}

	if local.Len() == 0 || p.failed {
		fb := c.fallback(unit, stmt)
		if fb.Len() > 0 {
			grew := local.Len() == 0 || !containsAll(local, fb)
			local.Merge(fb)
			if grew && sink != nil {
				sink.Warnf(unit, "structured SQL parse incomplete, pattern fallback used")
			}
		}
	}
	out.Merge(local)
	return false
}

// splitStatements cuts candidate text at top-level semicolons. Semicolons
// inside quoted strings do not split.
func splitStatements(s string) []string {
	var out []string
	start := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == '\\' && i+1 < len(s) {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case ';':
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// containsAll reports whether every finding of sub is already in s.
func containsAll(s, sub *crud.Set) bool {
	for _, op := range sub.All() {
		have, ok := s.Get(op.Table)
		if !ok || !have.Ops.Has(op.Ops) {
			return false
		}
	}
	return true
}

// isView reports whether name (possibly schema-qualified) is in the view list.
func (c *Classifier) isView(name string) bool {
	n := strings.ToLower(name)
	if _, ok := c.views[n]; ok {
		return true
	}
	if i := strings.LastIndexByte(n, '.'); i >= 0 {
		_, ok := c.views[n[i+1:]]
		return ok
	}
	return false
}

// stmtParser is a statement-shape parser. It does not build an AST; it
// records findings directly while walking the token stream.
type stmtParser struct {
	c      *Classifier
	lex    *lexer
	tok    Token
	peek   Token
	out    *crud.Set
	ctes   map[string]bool
	failed bool
}

func (p *stmtParser) next() {
	p.tok = p.peek
	p.peek = p.lex.next()
}

func (p *stmtParser) match(t TokenType) bool {
	if p.tok.Type == t {
		p.next()
		return true
	}
	return false
}

// record adds a finding, applying the view annotation unless the name is a
// CTE introduced by the current candidate.
func (p *stmtParser) record(table string, ops crud.OpSet, ann crud.Annotation) {
	if table == "" {
		return
	}
	if !p.ctes[strings.ToLower(table)] && p.c.isView(table) {
		ann |= crud.AnnView
	}
	p.out.Record(table, ops, ann)
}

// parseStatement dispatches on the statement head. Unknown heads mark the
// parse as failed and are skipped by the caller's re-sync loop.
func (p *stmtParser) parseStatement() {
	switch p.tok.Type {
	case WITH:
		p.parseWith()
	case SELECT:
		p.next()
		p.parseSelect()
	case INSERT:
		p.parseInsert()
	case UPDATE:
		p.parseUpdate()
	case DELETE:
		p.parseDelete()
	case CREATE:
		p.parseCreate()
	case DROP:
		p.parseDrop()
	case TRUNCATE:
		p.parseTruncate()
	case MERGE:
		p.parseMerge()
	case LPAREN:
		// Parenthesized statement: ( SELECT ... )
		if statementHeads[p.peek.Type] {
			p.next()
			p.parseStatement()
			p.match(RPAREN)
			return
		}
		p.failed = true
	default:
		p.failed = true
	}
}

// parseWith handles WITH [RECURSIVE] name AS (...) [, ...] <statement>.
// Each CTE is an ephemeral relation: created by the WITH clause and readable
// by the outer statement.
func (p *stmtParser) parseWith() {
	p.next() // WITH
	p.match(RECURSIVE)

	for p.tok.Type == IDENT {
		name := p.tok.Literal
		p.next()
		p.ctes[strings.ToLower(name)] = true
		p.record(name, crud.OpCreate|crud.OpRead, crud.AnnCte)

		// Optional column list
		if p.tok.Type == LPAREN && p.peek.Type == IDENT {
			p.skipParens()
		}
		if !p.match(AS) {
			p.failed = true
			return
		}
		if p.tok.Type != LPAREN {
			p.failed = true
			return
		}
		p.next() // (
		p.parseStatement()
		p.match(RPAREN)

		if !p.match(COMMA) {
			break
		}
	}

	// Main statement following the CTE list.
	p.parseStatement()
}

// parseSelect handles the clauses after a consumed SELECT keyword, including
// SELECT ... INTO [TEMP] t and trailing set operations.
func (p *stmtParser) parseSelect() {
	p.scanExpr(FROM, INTO)

	if p.match(INTO) {
		var ann crud.Annotation
		if p.match(TEMP) || p.match(TEMPORARY) {
			ann |= crud.AnnTemp
		}
		p.match(TABLE)
		if name := p.qualifiedName(); name != "" {
			p.record(name, crud.OpCreate, ann)
		}
	}

	if p.match(FROM) {
		p.parseFromItems()
	}

	p.scanExpr(UNION, INTERSECT, EXCEPT)

	if p.match(UNION) || p.match(INTERSECT) || p.match(EXCEPT) {
		p.match(ALL)
		p.parseStatement()
	}
}

// parseFromItems handles a FROM/USING source list with joins.
func (p *stmtParser) parseFromItems() {
	p.parseTableRef()
	for {
		switch {
		case p.tok.Type == COMMA:
			p.next()
			p.parseTableRef()
		case p.isJoinStart():
			p.parseJoin()
		default:
			return
		}
	}
}

func (p *stmtParser) isJoinStart() bool {
	switch p.tok.Type {
	case JOIN, LEFT, RIGHT, INNER, OUTER, FULL, CROSS, NATURAL:
		return true
	}
	return false
}

// parseJoin consumes join modifiers, the joined source, and its ON/USING
// condition.
func (p *stmtParser) parseJoin() {
	for p.match(NATURAL) || p.match(LEFT) || p.match(RIGHT) || p.match(INNER) ||
		p.match(OUTER) || p.match(FULL) || p.match(CROSS) {
	}
	if !p.match(JOIN) {
		p.failed = true
		return
	}
	p.match(LATERAL)
	p.parseTableRef()

	if p.match(ON) {
		p.scanExpr(WHERE, GROUP, ORDER, UNION, INTERSECT, EXCEPT, JOIN, LEFT, RIGHT, INNER, OUTER, FULL, CROSS, NATURAL, COMMA)
	} else if p.tok.Type == USING && p.peek.Type == LPAREN {
		p.next()
		p.skipParens()
	}
}

// parseTableRef handles one source: a named table, a table function
// (skipped), or a parenthesized subquery whose inner tables are classified
// recursively. Aliases are consumed and never reported.
func (p *stmtParser) parseTableRef() {
	switch p.tok.Type {
	case LPAREN:
		if statementHeads[p.peek.Type] {
			p.next()
			p.parseStatement()
			p.match(RPAREN)
		} else {
			// Parenthesized join tree.
			p.next()
			p.parseFromItems()
			p.match(RPAREN)
		}
		p.consumeAlias()
	case IDENT:
		name := p.qualifiedName()
		if p.tok.Type == LPAREN {
			// Table function: arguments are not table references.
			p.skipParens()
			p.consumeAlias()
			return
		}
		p.record(name, crud.OpRead, 0)
		p.consumeAlias()
	default:
		p.failed = true
	}
}

// consumeAlias eats an optional [AS] alias.
func (p *stmtParser) consumeAlias() {
	if p.match(AS) {
		if p.tok.Type == IDENT {
			p.next()
		}
		return
	}
	if p.tok.Type == IDENT {
		p.next()
	}
}

// parseInsert handles INSERT [INTO] t [(cols)] VALUES (...) | SELECT ...
func (p *stmtParser) parseInsert() {
	p.next() // INSERT
	p.match(INTO)
	name := p.qualifiedName()
	if name == "" {
		p.failed = true
		return
	}
	p.record(name, crud.OpCreate, 0)

	if p.tok.Type == LPAREN && !statementHeads[p.peek.Type] {
		p.skipParens()
	}

	switch p.tok.Type {
	case VALUES:
		p.next()
		p.scanExpr()
	case SELECT:
		p.next()
		p.parseSelect()
	case WITH, LPAREN:
		p.parseStatement()
	default:
		p.scanExpr()
	}
}

// parseUpdate handles UPDATE t SET ... [FROM sources] [WHERE ...]. Extra
// sources named in FROM are marked Read; a parenthesized subquery source
// only contributes its inner tables.
func (p *stmtParser) parseUpdate() {
	p.next() // UPDATE
	name := p.qualifiedName()
	if name == "" {
		p.failed = true
		return
	}
	p.record(name, crud.OpUpdate, 0)
	p.consumeAlias()

	if p.match(SET) {
		p.scanExpr(FROM, WHERE)
	}
	if p.match(FROM) {
		p.parseFromItems()
	}
	p.scanExpr()
}

// parseDelete handles DELETE FROM t [USING sources] [WHERE ...].
func (p *stmtParser) parseDelete() {
	p.next() // DELETE
	if !p.match(FROM) {
		// MySQL-style DELETE t FROM ...; tolerate a bare name first.
		if p.tok.Type == IDENT {
			p.next()
			p.match(FROM)
		}
	}
	name := p.qualifiedName()
	if name == "" {
		p.failed = true
		return
	}
	p.record(name, crud.OpDelete, 0)
	p.consumeAlias()

	if p.match(USING) {
		p.parseFromItems()
	}
	for p.isJoinStart() {
		p.parseJoin()
	}
	p.scanExpr()
}

// parseCreate handles CREATE [TEMP] TABLE and CREATE VIEW. Other CREATE
// statements (indexes, triggers) carry no table-level CRUD effect and are
// skipped without failing the parse.
func (p *stmtParser) parseCreate() {
	p.next() // CREATE

	var ann crud.Annotation
	if p.match(TEMP) || p.match(TEMPORARY) {
		ann |= crud.AnnTemp
	}
	// CREATE OR REPLACE ...
	if p.tok.Type == OR || (p.tok.Type == IDENT && strings.EqualFold(p.tok.Literal, "replace")) {
		p.next()
		if p.tok.Type == IDENT && strings.EqualFold(p.tok.Literal, "replace") {
			p.next()
		}
	}

	switch p.tok.Type {
	case TABLE:
		p.next()
		p.skipIfNotExists()
		name := p.qualifiedName()
		if name == "" {
			p.failed = true
			return
		}
		p.record(name, crud.OpCreate, ann)
		if p.tok.Type == LPAREN && !statementHeads[p.peek.Type] {
			p.skipParens()
		}
		if p.match(AS) {
			p.parseStatement()
		}
	case VIEW:
		p.next()
		p.skipIfNotExists()
		name := p.qualifiedName()
		if name == "" {
			p.failed = true
			return
		}
		p.record(name, crud.OpCreate, crud.AnnView)
		if p.match(AS) {
			p.parseStatement()
		}
	default:
		p.scanExpr()
	}
}

// skipIfNotExists eats an optional IF NOT EXISTS.
func (p *stmtParser) skipIfNotExists() {
	if p.tok.Type == IF {
		p.next()
		p.match(NOT)
		p.match(EXISTS)
	}
}

// skipIfExists eats an optional IF EXISTS.
func (p *stmtParser) skipIfExists() {
	if p.tok.Type == IF {
		p.next()
		p.match(EXISTS)
	}
}

// parseDrop handles DROP TABLE/VIEW with a name list.
func (p *stmtParser) parseDrop() {
	p.next() // DROP
	isView := p.tok.Type == VIEW
	if !p.match(TABLE) && !p.match(VIEW) {
		p.scanExpr()
		return
	}
	p.skipIfExists()
	for {
		name := p.qualifiedName()
		if name == "" {
			p.failed = true
			return
		}
		var ann crud.Annotation
		if isView {
			ann |= crud.AnnView
		}
		p.record(name, crud.OpDelete, ann)
		if !p.match(COMMA) {
			break
		}
	}
	p.scanExpr()
}

// parseTruncate handles TRUNCATE [TABLE] with a name list.
func (p *stmtParser) parseTruncate() {
	p.next() // TRUNCATE
	p.match(TABLE)
	for {
		name := p.qualifiedName()
		if name == "" {
			p.failed = true
			return
		}
		p.record(name, crud.OpDelete, 0)
		if !p.match(COMMA) {
			break
		}
	}
	p.scanExpr()
}

// parseMerge handles MERGE INTO t USING src ON ...; the target can gain
// rows and update existing ones, so it carries both Create and Update.
func (p *stmtParser) parseMerge() {
	p.next() // MERGE
	p.match(INTO)
	name := p.qualifiedName()
	if name == "" {
		p.failed = true
		return
	}
	p.record(name, crud.OpCreate|crud.OpUpdate, 0)
	p.consumeAlias()

	if p.match(USING) {
		p.parseTableRef()
	}
	p.scanExpr()
}

// qualifiedName reads schema-qualified identifiers joined with dots.
// Returns "" when the current token cannot start a name.
func (p *stmtParser) qualifiedName() string {
	if p.tok.Type != IDENT {
		return ""
	}
	parts := []string{p.tok.Literal}
	p.next()
	for p.tok.Type == DOT {
		p.next()
		if p.tok.Type != IDENT {
			break
		}
		parts = append(parts, p.tok.Literal)
		p.next()
	}
	return strings.Join(parts, ".")
}

// skipParens consumes a balanced parenthesized group, classifying any
// subquery found within.
func (p *stmtParser) skipParens() {
	if p.tok.Type != LPAREN {
		return
	}
	p.next()
	depth := 1
	for depth > 0 && p.tok.Type != EOF {
		switch p.tok.Type {
		case LPAREN:
			if statementHeads[p.peek.Type] {
				p.next()
				p.parseStatement()
				p.match(RPAREN)
				continue
			}
			depth++
			p.next()
		case RPAREN:
			depth--
			p.next()
		default:
			p.next()
		}
	}
}

// scanExpr walks tokens until one of the stop types at depth zero, a
// statement boundary, or an unbalanced RPAREN (left for the caller).
// Parenthesized subqueries encountered on the way are classified.
func (p *stmtParser) scanExpr(stops ...TokenType) {
	stopSet := make(map[TokenType]bool, len(stops))
	for _, s := range stops {
		stopSet[s] = true
	}
	for {
		switch p.tok.Type {
		case EOF, SEMI:
			return
		case RPAREN:
			return
		case LPAREN:
			if statementHeads[p.peek.Type] {
				p.next()
				p.parseStatement()
				p.match(RPAREN)
				continue
			}
			p.skipParens()
		default:
			if stopSet[p.tok.Type] {
				return
			}
			p.next()
		}
	}
}
