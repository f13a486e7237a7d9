package chart

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/model"
	"github.com/KaramelBytes/dashloom-cli/internal/table"
)

func salesRows() []model.TypedRow {
	return []model.TypedRow{
		{"region": table.Text("east"), "sales": table.Number(10)},
		{"region": table.Text("east"), "sales": table.Number(5)},
		{"region": table.Text("west"), "sales": table.Number(7)},
	}
}

func TestAggregateSumFirstSeenOrder(t *testing.T) {
	pts := Aggregate(salesRows(), Spec{Kind: Bar, DimensionColumn: "region", MetricColumn: "sales", Aggregation: Sum})
	assert.Equal(t, []Point{
		{"region": table.Text("east"), "sales": table.Number(15)},
		{"region": table.Text("west"), "sales": table.Number(7)},
	}, pts)
}

func TestAggregateCountAndAverage(t *testing.T) {
	spec := Spec{Kind: Pie, DimensionColumn: "region", MetricColumn: "sales", Aggregation: Count}
	pts := Aggregate(salesRows(), spec)
	assert.Equal(t, table.Number(2), pts[0]["sales"])

	spec.Aggregation = Average
	pts = Aggregate(salesRows(), spec)
	assert.Equal(t, table.Number(7.5), pts[0]["sales"])
	assert.Equal(t, table.Number(7), pts[1]["sales"])
}

func TestAggregateRoundsToTwoDecimals(t *testing.T) {
	rows := []model.TypedRow{
		{"g": table.Text("a"), "m": table.Number(1)},
		{"g": table.Text("a"), "m": table.Number(1)},
		{"g": table.Text("a"), "m": table.Number(2)},
	}
	pts := Aggregate(rows, Spec{Kind: Bar, DimensionColumn: "g", MetricColumn: "m", Aggregation: Average})
	assert.Equal(t, table.Number(1.33), pts[0]["m"])
}

func TestAggregateKPI(t *testing.T) {
	rows := []model.TypedRow{{"sales": table.Number(10)}, {"sales": table.Number(20)}, {"sales": table.Number(30)}}
	pts := Aggregate(rows, Spec{Title: "Avg sales", Kind: KPI, MetricColumn: "sales", Aggregation: Average})
	require.Len(t, pts, 1)
	assert.Equal(t, Point{"value": table.Number(20), "label": table.Text("Avg sales")}, pts[0])

	pts = Aggregate(rows, Spec{Title: "Rows", Kind: KPI, Aggregation: Count})
	assert.Equal(t, table.Number(3), pts[0]["value"])

	pts = Aggregate(rows, Spec{Title: "Total", Kind: KPI, MetricColumn: "sales", Aggregation: Sum})
	assert.Equal(t, table.Number(60), pts[0]["value"])

	pts = Aggregate(nil, Spec{Title: "Empty", Kind: KPI, MetricColumn: "sales", Aggregation: Average})
	assert.Equal(t, table.Number(0), pts[0]["value"])
}

func TestAggregateNoneCaps(t *testing.T) {
	rows := make([]model.TypedRow, 5000)
	for i := range rows {
		rows[i] = model.TypedRow{"day": table.Text(strconv.Itoa(i)), "v": table.Number(float64(i)), "extra": table.Text("x")}
	}
	line := Aggregate(rows, Spec{Kind: Line, DimensionColumn: "day", MetricColumn: "v", Aggregation: None})
	assert.Len(t, line, TrendLimit)
	assert.Len(t, Aggregate(rows, Spec{Kind: Area, DimensionColumn: "day", MetricColumn: "v", Aggregation: None}), TrendLimit)
	bar := Aggregate(rows, Spec{Kind: Bar, DimensionColumn: "day", MetricColumn: "v", Aggregation: None})
	assert.Len(t, bar, CategoryLimit)

	assert.Equal(t, Point{"day": table.Text("0"), "v": table.Number(0)}, line[0])
	assert.Len(t, Aggregate(rows[:3], Spec{Kind: Pie, DimensionColumn: "day", MetricColumn: "v", Aggregation: None}), 3)
}

func TestAggregateUnknownGroup(t *testing.T) {
	rows := []model.TypedRow{
		{"region": table.Null(), "sales": table.Number(1)},
		{"sales": table.Number(2)},
		{"region": table.Text("east"), "sales": table.Text("oops")},
	}
	pts := Aggregate(rows, Spec{Kind: Bar, DimensionColumn: "region", MetricColumn: "sales", Aggregation: Sum})
	assert.Equal(t, []Point{
		{"region": table.Text(UnknownKey), "sales": table.Number(3)},
		{"region": table.Text("east"), "sales": table.Number(0)},
	}, pts)
}

func TestAggregateMissingColumnsTolerated(t *testing.T) {
	pts := Aggregate(salesRows(), Spec{Kind: Bar, DimensionColumn: "nope", MetricColumn: "also_nope", Aggregation: Count})
	assert.Equal(t, []Point{{"nope": table.Text(UnknownKey), "also_nope": table.Number(3)}}, pts)

	raw := Aggregate(salesRows(), Spec{Kind: Line, DimensionColumn: "nope", MetricColumn: "sales", Aggregation: None})
	assert.Equal(t, table.Text(""), raw[0]["nope"])
}

func TestRenderAll(t *testing.T) {
	specs := []Spec{
		{ID: "a", Kind: KPI, Aggregation: Count},
		{ID: "b", Kind: Bar, DimensionColumn: "region", MetricColumn: "sales", Aggregation: Sum},
	}
	series := RenderAll(salesRows(), specs)
	require.Len(t, series, 2)
	assert.Equal(t, "b", series[1].Spec.ID)
	assert.Len(t, series[1].Points, 2)
}

func TestSpecUnmarshalWireNames(t *testing.T) {
	var s Spec
	require.NoError(t, json.Unmarshal([]byte(`{"id":"c1","title":"Sales","type":"bar","xAxisKey":"r","dataKey":"s","aggregation":"avg"}`), &s))
	assert.Equal(t, Bar, s.Kind)
	assert.Equal(t, "r", s.DimensionColumn)
	assert.Equal(t, "s", s.MetricColumn)
	assert.Equal(t, Average, s.Aggregation)
	assert.NoError(t, Validate(s))

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"dimensionColumn":"r"`)
}

func TestValidate(t *testing.T) {
	ok := Spec{Title: "x", Kind: Line, Aggregation: None, Color: "#4f46e5"}
	assert.NoError(t, Validate(ok))

	bad := ok
	bad.Kind = "SCATTER"
	assert.ErrorContains(t, Validate(bad), "invalid kind")

	bad = ok
	bad.Aggregation = "MEDIAN"
	assert.ErrorContains(t, Validate(bad), "invalid aggregation")

	bad = ok
	bad.Color = "blue"
	assert.Error(t, Validate(bad))
}
