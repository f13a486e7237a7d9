// Package chart turns a typed dataset and a chart spec into the points a
// renderer plots.
package chart

import (
	"github.com/shopspring/decimal"

	"github.com/KaramelBytes/dashloom-cli/internal/model"
	"github.com/KaramelBytes/dashloom-cli/internal/table"
)

const (
	// TrendLimit caps raw LINE and AREA series.
	TrendLimit = 2000
	// CategoryLimit caps raw BAR and PIE series.
	CategoryLimit = 50
	// UnknownKey labels rows whose dimension value is missing.
	UnknownKey = "Unknown"
)

// Point is one plotted record keyed by the spec's column names, or by
// "value"/"label" for a KPI.
type Point map[string]table.Value

// Series pairs a spec with its computed points.
type Series struct {
	Spec   Spec    `json:"chart"`
	Points []Point `json:"points"`
}

// Aggregate computes the points for spec over rows.
func Aggregate(rows []model.TypedRow, spec Spec) []Point {
	if spec.Kind == KPI {
		return []Point{kpi(rows, spec)}
	}
	if spec.Aggregation == None {
		limit := CategoryLimit
		if spec.Kind == Line || spec.Kind == Area {
			limit = TrendLimit
		}
		return raw(rows, spec, limit)
	}
	return grouped(rows, spec)
}

// RenderAll aggregates every spec over the same rows.
func RenderAll(rows []model.TypedRow, specs []Spec) []Series {
	out := make([]Series, 0, len(specs))
	for _, s := range specs {
		out = append(out, Series{Spec: s, Points: Aggregate(rows, s)})
	}
	return out
}

func kpi(rows []model.TypedRow, spec Spec) Point {
	label := table.Text(spec.Title)
	if spec.Aggregation == Count {
		return Point{"value": table.Number(float64(len(rows))), "label": label}
	}
	var total float64
	for _, r := range rows {
		total += r[spec.MetricColumn].FloatOrZero()
	}
	if spec.Aggregation == Average {
		if len(rows) == 0 {
			total = 0
		} else {
			total /= float64(len(rows))
		}
	}
	return Point{"value": table.Number(round2(total)), "label": label}
}

// raw returns the first limit rows reduced to the dimension and metric fields.
func raw(rows []model.TypedRow, spec Spec, limit int) []Point {
	if len(rows) < limit {
		limit = len(rows)
	}
	out := make([]Point, 0, limit)
	for _, r := range rows[:limit] {
		p := make(Point, 2)
		p[spec.DimensionColumn] = fieldOr(r, spec.DimensionColumn, table.Text(""))
		p[spec.MetricColumn] = fieldOr(r, spec.MetricColumn, table.Number(0))
		out = append(out, p)
	}
	return out
}

func fieldOr(r model.TypedRow, col string, def table.Value) table.Value {
	if v, ok := r[col]; ok && !v.IsNull() {
		return v
	}
	return def
}

type bucket struct {
	count int
	sum   float64
}

// grouped buckets rows by dimension value in first-seen order.
func grouped(rows []model.TypedRow, spec Spec) []Point {
	order := make([]string, 0)
	buckets := make(map[string]*bucket)
	for _, r := range rows {
		key := UnknownKey
		if v, ok := r[spec.DimensionColumn]; ok && !v.IsNull() {
			key = v.String()
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			order = append(order, key)
		}
		b.count++
		b.sum += r[spec.MetricColumn].FloatOrZero()
	}

	out := make([]Point, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		var v float64
		switch spec.Aggregation {
		case Count:
			v = float64(b.count)
		case Sum:
			v = b.sum
		case Average:
			v = b.sum / float64(b.count)
		}
		out = append(out, Point{
			spec.DimensionColumn: table.Text(key),
			spec.MetricColumn:    table.Number(round2(v)),
		})
	}
	return out
}

func round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}
