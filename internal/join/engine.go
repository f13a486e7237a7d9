// Package join folds an ordered list of join specs over normalized tables into
// one merged row set with table-qualified column names.
package join

import (
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/table"
)

// TableRef is one normalized input table with the identity of the RawTable it
// was derived from.
type TableRef struct {
	ID    string
	Name  string
	Table table.NormalizedTable
}

// Row is one merged record keyed by qualified column name. A column that an
// outer join could not fill holds a null Value.
type Row map[string]table.Value

// MergedRowSet is the result of a join fold.
type MergedRowSet struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// HasColumn reports whether name is one of the merged columns.
func (m MergedRowSet) HasColumn(name string) bool {
	for _, c := range m.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// StepStats describes what one join step did to the accumulated rows.
type StepStats struct {
	SpecID         string `json:"specId"`
	Kind           Kind   `json:"type"`
	LeftKey        string `json:"leftKey,omitempty"`
	RightKey       string `json:"rightKey,omitempty"`
	RowsIn         int    `json:"rowsIn"`
	RowsOut        int    `json:"rowsOut"`
	Matched        int    `json:"matched"`
	UnmatchedLeft  int    `json:"unmatchedLeft"`
	UnmatchedRight int    `json:"unmatchedRight"`
	Skipped        string `json:"skipped,omitempty"`
}

// Join folds specs left to right over tables, starting from tables[0] as the
// base. It never fails: an incomplete spec degrades to a pass-through step.
func Join(tables []TableRef, specs []Spec) MergedRowSet {
	merged, _ := JoinTrace(tables, specs)
	return merged
}

// JoinTrace is Join plus one StepStats per spec.
func JoinTrace(tables []TableRef, specs []Spec) (MergedRowSet, []StepStats) {
	if len(tables) == 0 {
		return MergedRowSet{Columns: []string{}, Rows: []Row{}}, nil
	}
	byID := make(map[string]TableRef, len(tables))
	for _, t := range tables {
		if _, dup := byID[t.ID]; !dup {
			byID[t.ID] = t
		}
	}

	base := tables[0]
	acc := MergedRowSet{Columns: qualifiedColumns(base), Rows: qualifiedRows(base)}
	stats := make([]StepStats, 0, len(specs))
	for _, s := range specs {
		var st StepStats
		acc, st = apply(acc, byID, s)
		stats = append(stats, st)
	}
	return acc, stats
}

func apply(acc MergedRowSet, byID map[string]TableRef, s Spec) (MergedRowSet, StepStats) {
	kind := ParseKind(string(s.Kind))
	st := StepStats{SpecID: s.ID, Kind: kind, RowsIn: len(acc.Rows)}

	right, ok := byID[s.RightTableID]
	if !ok {
		st.Skipped = "right table not found"
		st.RowsOut = len(acc.Rows)
		return acc, st
	}
	rightCols := qualifiedColumns(right)
	columns := union(acc.Columns, rightCols)

	left, leftOK := byID[s.LeftTableID]
	switch {
	case !leftOK:
		st.Skipped = "left table not found"
	case strings.TrimSpace(s.LeftKey) == "" || strings.TrimSpace(s.RightKey) == "":
		st.Skipped = "join key not set"
	}
	if st.Skipped != "" {
		rows := make([]Row, 0, len(acc.Rows))
		for _, l := range acc.Rows {
			rows = append(rows, merge(l, nullRow(rightCols)))
		}
		st.RowsOut = len(rows)
		return MergedRowSet{Columns: columns, Rows: rows}, st
	}

	leftKey := ResolveLeftKey(left.Name, s.LeftKey)
	rightKey := Qualify(right.Name, s.RightKey)
	st.LeftKey, st.RightKey = leftKey, rightKey

	// Build: bucket right rows by stringified key, keeping source order per bucket.
	rightRows := qualifiedRows(right)
	lookup := make(map[string][]int, len(rightRows))
	for i, r := range rightRows {
		v := r[rightKey]
		if v.IsNull() {
			continue
		}
		k := v.String()
		lookup[k] = append(lookup[k], i)
	}

	// Probe.
	matched := make([]bool, len(rightRows))
	out := make([]Row, 0, len(acc.Rows))
	for _, l := range acc.Rows {
		var hits []int
		if v, ok := l[leftKey]; ok && !v.IsNull() {
			hits = lookup[v.String()]
		}
		if len(hits) == 0 {
			st.UnmatchedLeft++
			if kind.keepsLeft() {
				out = append(out, merge(l, nullRow(rightCols)))
			}
			continue
		}
		for _, idx := range hits {
			out = append(out, merge(l, rightRows[idx]))
			matched[idx] = true
			st.Matched++
		}
	}

	for i, r := range rightRows {
		if matched[i] {
			continue
		}
		st.UnmatchedRight++
		if kind.keepsRight() {
			out = append(out, merge(nullRow(acc.Columns), r))
		}
	}

	st.RowsOut = len(out)
	return MergedRowSet{Columns: columns, Rows: out}, st
}

func qualifiedColumns(t TableRef) []string {
	cols := make([]string, len(t.Table.Headers))
	for i, h := range t.Table.Headers {
		cols[i] = Qualify(t.Name, h)
	}
	return cols
}

func qualifiedRows(t TableRef) []Row {
	rows := make([]Row, len(t.Table.Rows))
	for i, r := range t.Table.Rows {
		row := make(Row, len(r))
		for k, v := range r {
			row[Qualify(t.Name, k)] = table.Text(v)
		}
		rows[i] = row
	}
	return rows
}

func nullRow(cols []string) Row {
	r := make(Row, len(cols))
	for _, c := range cols {
		r[c] = table.Null()
	}
	return r
}

// merge returns a new row holding a's fields overlaid with b's.
func merge(a, b Row) Row {
	r := make(Row, len(a)+len(b))
	for k, v := range a {
		r[k] = v
	}
	for k, v := range b {
		r[k] = v
	}
	return r
}

// union appends the names in extra that prior does not already hold.
func union(prior, extra []string) []string {
	out := make([]string, len(prior), len(prior)+len(extra))
	copy(out, prior)
	seen := make(map[string]struct{}, len(prior)+len(extra))
	for _, c := range prior {
		seen[c] = struct{}{}
	}
	for _, c := range extra {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
