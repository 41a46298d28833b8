package sqlscan

import (
	"strings"

	"github.com/leapstack-labs/crudmap/pkg/crud"
)

// fallbackTokenCap bounds the fallback scan on adversarial input.
const fallbackTokenCap = 16384

// fallback is the permissive second tier: a single linear pass over the
// token stream matching keyword/name adjacencies. It trades precision for
// recall on text the structured parser could not handle (interpolation
// remnants, vendor syntax, truncated statements).
func (c *Classifier) fallback(_ string, candidate string) *crud.Set {
	out := crud.NewSet()
	lex := newLexer(candidate)

	var toks []Token
	for len(toks) < fallbackTokenCap {
		t := lex.next()
		toks = append(toks, t)
		if t.Type == EOF {
			break
		}
	}

	record := func(name string, ops crud.OpSet, ann crud.Annotation) {
		if name == "" {
			return
		}
		if c.isView(name) {
			ann |= crud.AnnView
		}
		out.Record(name, ops, ann)
	}

	// name reads a dotted identifier starting at i; returns the joined name
	// and the index after it.
	name := func(i int) (string, int) {
		if i >= len(toks) || toks[i].Type != IDENT {
			return "", i
		}
		parts := []string{toks[i].Literal}
		i++
		for i+1 < len(toks) && toks[i].Type == DOT && toks[i+1].Type == IDENT {
			parts = append(parts, toks[i+1].Literal)
			i += 2
		}
		return strings.Join(parts, "."), i
	}

	for i := 0; i < len(toks); i++ {
		switch toks[i].Type {
		case INSERT:
			j := i + 1
			if j < len(toks) && toks[j].Type == INTO {
				j++
			}
			if n, _ := name(j); n != "" {
				record(n, crud.OpCreate, 0)
			}
		case UPDATE:
			if n, _ := name(i + 1); n != "" {
				record(n, crud.OpUpdate, 0)
			}
		case DELETE:
			if i+1 < len(toks) && toks[i+1].Type == FROM {
				if n, _ := name(i + 2); n != "" {
					record(n, crud.OpDelete, 0)
				}
				i++ // FROM consumed by the delete pattern
			}
		case FROM, JOIN, USING:
			if n, _ := name(i + 1); n != "" {
				record(n, crud.OpRead, 0)
			}
		case MERGE:
			j := i + 1
			if j < len(toks) && toks[j].Type == INTO {
				j++
			}
			if n, _ := name(j); n != "" {
				record(n, crud.OpCreate|crud.OpUpdate, 0)
			}
		case TRUNCATE:
			j := i + 1
			if j < len(toks) && toks[j].Type == TABLE {
				j++
			}
			if n, _ := name(j); n != "" {
				record(n, crud.OpDelete, 0)
			}
		case DROP:
			j := i + 1
			if j < len(toks) && (toks[j].Type == TABLE || toks[j].Type == VIEW) {
				j++
				if j+1 < len(toks) && toks[j].Type == IF && toks[j+1].Type == EXISTS {
					j += 2
				}
				if n, _ := name(j); n != "" {
					record(n, crud.OpDelete, 0)
				}
			}
		case CREATE:
			j := i + 1
			var ann crud.Annotation
			if j < len(toks) && (toks[j].Type == TEMP || toks[j].Type == TEMPORARY) {
				ann |= crud.AnnTemp
				j++
			}
			if j < len(toks) && (toks[j].Type == TABLE || toks[j].Type == VIEW) {
				if toks[j].Type == VIEW {
					ann |= crud.AnnView
				}
				j++
				if j+2 < len(toks) && toks[j].Type == IF && toks[j+1].Type == NOT && toks[j+2].Type == EXISTS {
					j += 3
				}
				if n, _ := name(j); n != "" {
					record(n, crud.OpCreate, ann)
				}
			}
		case INTO:
			// SELECT ... INTO [TEMP] t. INSERT INTO is handled above, so a
			// stray INTO here is the select-into form.
			if i > 0 && toks[i-1].Type == INSERT {
				continue
			}
			j := i + 1
			var ann crud.Annotation
			if j < len(toks) && (toks[j].Type == TEMP || toks[j].Type == TEMPORARY) {
				ann |= crud.AnnTemp
				j++
			}
			if n, _ := name(j); n != "" {
				record(n, crud.OpCreate, ann)
			}
		case WITH:
			j := i + 1
			if j < len(toks) && toks[j].Type == RECURSIVE {
				j++
			}
			if n, next := name(j); n != "" && next < len(toks) && toks[next].Type == AS {
				record(n, crud.OpCreate|crud.OpRead, crud.AnnCte)
			}
		}
	}
	return out
}
