// Package model turns a merged row set into the typed dataset charts are built
// from: every selected column is classified numeric or categorical and every
// row is coerced to match.
package model

import (
	"errors"

	"github.com/KaramelBytes/dashloom-cli/internal/join"
	"github.com/KaramelBytes/dashloom-cli/internal/table"
)

// ErrEmptySelection is returned when none of the selected columns exist in the
// merged data.
var ErrEmptySelection = errors.New("select at least one column")

const (
	// SampleSize bounds how many leading rows are inspected per column.
	SampleSize = 100
	// NumericThreshold is the share of sampled values that must parse as
	// numbers, exclusive, for a column to be numeric.
	NumericThreshold = 0.8
)

// ColumnType is the inferred type of a selected column.
type ColumnType string

const (
	Numeric     ColumnType = "numeric"
	Categorical ColumnType = "categorical"
)

// TypedRow maps each selected column to a Number (numeric columns) or a Text
// value (categorical columns). It never holds nulls.
type TypedRow map[string]table.Value

// DataModel is the finalized, typed dataset.
type DataModel struct {
	Name               string     `json:"name"`
	Rows               []TypedRow `json:"rows"`
	Columns            []string   `json:"columns"`
	NumericColumns     []string   `json:"numericColumns"`
	CategoricalColumns []string   `json:"categoricalColumns"`
}

// TypeAndCoerce builds a DataModel from merged restricted to selected. Selected
// columns missing from merged are dropped; if none remain ErrEmptySelection is
// returned.
func TypeAndCoerce(merged join.MergedRowSet, selected []string) (DataModel, error) {
	columns := make([]string, 0, len(selected))
	seen := make(map[string]struct{}, len(selected))
	for _, c := range selected {
		if _, dup := seen[c]; dup || !merged.HasColumn(c) {
			continue
		}
		seen[c] = struct{}{}
		columns = append(columns, c)
	}
	if len(columns) == 0 {
		return DataModel{}, ErrEmptySelection
	}

	dm := DataModel{
		Columns:            columns,
		NumericColumns:     []string{},
		CategoricalColumns: []string{},
	}
	for _, c := range columns {
		if Classify(merged.Rows, c) == Numeric {
			dm.NumericColumns = append(dm.NumericColumns, c)
		} else {
			dm.CategoricalColumns = append(dm.CategoricalColumns, c)
		}
	}
	dm.Rows = coerceRows(merged.Rows, dm)
	return dm, nil
}

// Refresh re-derives prev against freshly merged rows, keeping prev's columns
// and type partition. Columns that no longer exist coerce to 0 or "".
func Refresh(merged join.MergedRowSet, prev DataModel) DataModel {
	dm := DataModel{
		Name:               prev.Name,
		Columns:            append([]string(nil), prev.Columns...),
		NumericColumns:     append([]string(nil), prev.NumericColumns...),
		CategoricalColumns: append([]string(nil), prev.CategoricalColumns...),
	}
	dm.Rows = coerceRows(merged.Rows, dm)
	return dm
}

// Classify samples the first SampleSize rows of col. Blank values count
// against the numeric ratio.
func Classify(rows []join.Row, col string) ColumnType {
	n := len(rows)
	if n > SampleSize {
		n = SampleSize
	}
	if n == 0 {
		return Categorical
	}
	numeric := 0
	for _, r := range rows[:n] {
		v := r[col]
		if v.IsBlank() {
			continue
		}
		if _, ok := v.Float(); ok {
			numeric++
		}
	}
	if float64(numeric)/float64(n) > NumericThreshold {
		return Numeric
	}
	return Categorical
}

func coerceRows(rows []join.Row, dm DataModel) []TypedRow {
	numeric := make(map[string]bool, len(dm.NumericColumns))
	for _, c := range dm.NumericColumns {
		numeric[c] = true
	}
	out := make([]TypedRow, len(rows))
	for i, r := range rows {
		tr := make(TypedRow, len(dm.Columns))
		for _, c := range dm.Columns {
			if numeric[c] {
				tr[c] = coerceNumber(r[c])
			} else {
				tr[c] = table.Text(r[c].String())
			}
		}
		out[i] = tr
	}
	return out
}

// coerceNumber maps blanks and unparseable text to 0.
func coerceNumber(v table.Value) table.Value {
	return table.Number(v.FloatOrZero())
}

// Type reports the inferred type of col and whether col is part of the model.
func (dm DataModel) Type(col string) (ColumnType, bool) {
	for _, c := range dm.NumericColumns {
		if c == col {
			return Numeric, true
		}
	}
	for _, c := range dm.CategoricalColumns {
		if c == col {
			return Categorical, true
		}
	}
	return "", false
}

// Head returns up to the first n rows.
func (dm DataModel) Head(n int) []TypedRow {
	if n < 0 {
		n = 0
	}
	if n > len(dm.Rows) {
		n = len(dm.Rows)
	}
	return dm.Rows[:n]
}
