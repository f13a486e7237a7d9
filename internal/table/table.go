package table

import (
	"fmt"
	"strings"
)

// RawTable is one imported sheet or CSV: an ordered grid of string cells that
// still contains whichever row will be chosen as the header. Rows may be ragged.
type RawTable struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Grid [][]string `json:"grid"`
}

// Cell returns grid[row][col], or "" when either index is out of range.
func (t RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Grid) {
		return ""
	}
	r := t.Grid[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// Width is the length of the longest row.
func (t RawTable) Width() int {
	w := 0
	for _, r := range t.Grid {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Row is one normalized record keyed by header name. Values stay raw strings.
type Row map[string]string

// NormalizedTable is a RawTable resolved against a header row.
type NormalizedTable struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// Normalize resolves raw against the header at headerIndex. Every row after the
// header becomes one Row; cells missing from a short row normalize to "".
// A header index past the end of the grid yields an empty table.
func Normalize(raw RawTable, headerIndex int) NormalizedTable {
	if headerIndex < 0 {
		headerIndex = 0
	}
	if headerIndex >= len(raw.Grid) {
		return NormalizedTable{Headers: []string{}, Rows: []Row{}}
	}
	headers := resolveHeaders(raw.Grid[headerIndex])
	body := raw.Grid[headerIndex+1:]
	rows := make([]Row, 0, len(body))
	for _, cells := range body {
		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(cells) {
				row[h] = cells[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return NormalizedTable{Headers: headers, Rows: rows}
}

// PlaceholderHeader names a blank header cell at 0-based position i.
func PlaceholderHeader(i int) string { return fmt.Sprintf("Column_%d", i) }

// resolveHeaders trims header cells, names blanks positionally and suffixes
// repeats (_2, _3, ...) so that the result holds no duplicates.
func resolveHeaders(cells []string) []string {
	out := make([]string, len(cells))
	used := make(map[string]struct{}, len(cells))
	for i, c := range cells {
		name := strings.TrimSpace(c)
		if name == "" {
			name = PlaceholderHeader(i)
		}
		if _, dup := used[name]; dup {
			base := name
			for n := 2; ; n++ {
				name = fmt.Sprintf("%s_%d", base, n)
				if _, taken := used[name]; !taken {
					break
				}
			}
		}
		used[name] = struct{}{}
		out[i] = name
	}
	return out
}
