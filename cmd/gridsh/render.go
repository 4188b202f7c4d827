package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tuannm99/novagrid/gridstore"
)

// renderRowSet drains rs into a table and closes it. cols names the
// columns of container rows.
func renderRowSet(w io.Writer, rs gridstore.RowSet, cols []gridstore.ColumnInfo) error {
	defer func() { _ = rs.Close() }()

	var (
		header table.Row
		rows   []table.Row
	)
	switch cur := rs.(type) {
	case *gridstore.RowCursor:
		for _, c := range cols {
			header = append(header, c.Name)
		}
		for cur.HasNext() {
			fields, err := cur.Next()
			if err != nil {
				return err
			}
			row := make(table.Row, len(fields))
			for i, f := range fields {
				row[i] = formatValue(f)
			}
			rows = append(rows, row)
		}

	case *gridstore.AggregationCursor:
		header = table.Row{"result"}
		for cur.HasNext() {
			agg, err := cur.Next()
			if err != nil {
				return err
			}
			rows = append(rows, table.Row{formatValue(aggregationValue(agg))})
		}

	case *gridstore.AnalysisCursor:
		header = table.Row{"id", "depth", "type", "value_type", "value", "statement"}
		for cur.HasNext() {
			e, err := cur.Next()
			if err != nil {
				return err
			}
			rows = append(rows, table.Row{e.ID, e.Depth, e.Type, e.ValueType, e.Value, e.Statement})
		}

	default:
		return fmt.Errorf("unsupported row set %T", rs)
	}

	renderTable(w, header, rows)
	return nil
}

func renderTable(w io.Writer, header table.Row, rows []table.Row) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	t.AppendRows(rows)
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
}

// aggregationValue picks the most specific assigned reading: a timestamp,
// then a long when it is exact, then a double.
func aggregationValue(agg *gridstore.AggregationResult) any {
	if ts, err := agg.Get(gridstore.TypeTimestamp); err == nil {
		return ts
	}
	d, derr := agg.Get(gridstore.TypeDouble)
	l, lerr := agg.Get(gridstore.TypeLong)
	switch {
	case lerr == nil && (derr != nil || float64(l.(int64)) == d.(float64)):
		return l
	case derr == nil:
		return d
	}
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.UTC().Format("2006-01-02T15:04:05.000Z")
	case []byte:
		return fmt.Sprintf("0x%x", x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func renderSchema(w io.Writer, info *gridstore.ContainerInfo) {
	_, _ = fmt.Fprintf(w, "%s (%s)\n", info.Name(), info.Type())
	rows := make([]table.Row, 0, len(info.Columns()))
	for i, c := range info.Columns() {
		key := ""
		if i == 0 && info.RowKey() {
			key = "KEY"
		}
		index := ""
		if c.IndexFlags > 0 {
			index = c.IndexFlags.String()
		}
		rows = append(rows, table.Row{c.Name, c.Type, key, index})
	}
	renderTable(w, table.Row{"column", "type", "key", "index"}, rows)
	if exp := info.Expiration(); exp != nil {
		_, _ = fmt.Fprintf(w, "expiration: %d %v, %d divisions\n", exp.Time, exp.Unit, exp.DivisionCount)
	}
}
