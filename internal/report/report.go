// Package report renders audit results for human and machine consumption:
// a terminal table, CSV for spreadsheet import, and JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/crudmap/pkg/crud"
)

// Row is one flattened finding, the unit all formats render.
type Row struct {
	File        string   `json:"file"`
	Table       string   `json:"table"`
	Create      bool     `json:"create"`
	Read        bool     `json:"read"`
	Update      bool     `json:"update"`
	Delete      bool     `json:"delete"`
	Annotations []string `json:"annotations,omitempty"`
}

// Flatten turns file reports into rows, preserving per-file first-seen
// table order.
func Flatten(files []crud.FileReport) []Row {
	var rows []Row
	for _, f := range files {
		for _, op := range f.Tables.All() {
			rows = append(rows, Row{
				File:        f.Path,
				Table:       op.Table,
				Create:      op.Ops.Has(crud.OpCreate),
				Read:        op.Ops.Has(crud.OpRead),
				Update:      op.Ops.Has(crud.OpUpdate),
				Delete:      op.Ops.Has(crud.OpDelete),
				Annotations: op.Ann.Names(),
			})
		}
	}
	return rows
}

// Render writes the reports in the requested format: "csv", "json" or
// "table" (the default).
func Render(w io.Writer, files []crud.FileReport, format string) error {
	rows := Flatten(files)
	switch format {
	case "json":
		return renderJSON(w, rows)
	case "csv":
		return renderCSV(w, rows)
	case "", "table":
		return renderTable(w, rows)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderTable(w io.Writer, rows []Row) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(no findings)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Table", "CRUD", "Annotations"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.File, r.Table, crudFlags(r), strings.Join(r.Annotations, ",")})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d findings)\n", len(rows))
	return nil
}

func renderCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"file", "table", "create", "read", "update", "delete", "annotations"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.File, r.Table,
			boolMark(r.Create), boolMark(r.Read), boolMark(r.Update), boolMark(r.Delete),
			strings.Join(r.Annotations, ";"),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderJSON(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if rows == nil {
		rows = []Row{}
	}
	return enc.Encode(rows)
}

// crudFlags formats the operation flags as the compact "CR-D" form.
func crudFlags(r Row) string {
	var b [4]byte
	flags := []struct {
		on bool
		ch byte
	}{{r.Create, 'C'}, {r.Read, 'R'}, {r.Update, 'U'}, {r.Delete, 'D'}}
	for i, f := range flags {
		if f.on {
			b[i] = f.ch
		} else {
			b[i] = '-'
		}
	}
	return string(b[:])
}

func boolMark(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
