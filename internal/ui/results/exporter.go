package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/sadopc/dbviewer/internal/adapter"
	appmsg "github.com/sadopc/dbviewer/internal/msg"
)

func columnNames(res appmsg.DisplayQueryResultsMsg) []string {
	names := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		names[i] = c.Name
	}
	return names
}

// cellText is the display form of a value: NULL for nil.
func cellText(v *string) string {
	if v == nil {
		return adapter.NullText
	}
	return *v
}

// WriteCSV writes a header row and one record per row. NULL is written as
// an empty field.
func WriteCSV(w io.Writer, res appmsg.DisplayQueryResultsMsg) error {
	cw := csv.NewWriter(w)
	names := columnNames(res)
	if err := cw.Write(names); err != nil {
		return err
	}
	line := make([]string, len(names))
	for _, row := range res.Rows {
		for j, name := range names {
			line[j] = ""
			if v, _ := row.Get(name); v != nil {
				line[j] = *v
			}
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the rows as a JSON array of objects in column order,
// with NULL as null.
func WriteJSON(w io.Writer, res appmsg.DisplayQueryResultsMsg) error {
	rows := res.Rows
	if rows == nil {
		rows = []appmsg.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteTable writes an aligned plain-text table, capping each column at
// maxColW display cells.
func WriteTable(w io.Writer, res appmsg.DisplayQueryResultsMsg, maxColW int) error {
	if maxColW <= 0 {
		maxColW = DefaultMaxColumnWidth
	}
	names := columnNames(res)
	widths := make([]int, len(names))
	for j, name := range names {
		widths[j] = runewidth.StringWidth(name)
		for _, row := range res.Rows {
			v, _ := row.Get(name)
			widths[j] = max(widths[j], runewidth.StringWidth(cellText(v)))
		}
		widths[j] = min(widths[j], maxColW)
	}

	line := func(cells []string) string {
		out := make([]string, len(cells))
		for j, c := range cells {
			out[j] = fit(c, widths[j])
		}
		return strings.TrimRight(strings.Join(out, "  "), " ")
	}

	rules := make([]string, len(names))
	for j := range names {
		rules[j] = strings.Repeat("-", widths[j])
	}
	var b strings.Builder
	b.WriteString(line(names) + "\n")
	b.WriteString(line(rules) + "\n")
	cells := make([]string, len(names))
	for _, row := range res.Rows {
		for j, name := range names {
			v, _ := row.Get(name)
			cells[j] = cellText(v)
		}
		b.WriteString(line(cells) + "\n")
	}
	fmt.Fprintf(&b, "(%d rows)\n", len(res.Rows))
	_, err := io.WriteString(w, b.String())
	return err
}

// ExportCSV writes res to a CSV file at path and returns the row count.
func ExportCSV(path string, res appmsg.DisplayQueryResultsMsg) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if err := WriteCSV(f, res); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return int64(len(res.Rows)), nil
}

// ExportJSON writes res to a JSON file at path and returns the row count.
func ExportJSON(path string, res appmsg.DisplayQueryResultsMsg) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if err := WriteJSON(f, res); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return int64(len(res.Rows)), nil
}
