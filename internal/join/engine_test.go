package join

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/table"
)

func ref(id, name string, grid [][]string) TableRef {
	return TableRef{ID: id, Name: name, Table: table.Normalize(table.RawTable{ID: id, Name: name, Grid: grid}, 0)}
}

func fixture() []TableRef {
	a := ref("a", "A", [][]string{{"k"}, {"1"}, {"2"}})
	b := ref("b", "B", [][]string{{"k", "v"}, {"1", "x"}, {"1", "y"}, {"3", "z"}})
	return []TableRef{a, b}
}

func spec(kind Kind) Spec {
	return Spec{ID: "j1", LeftTableID: "a", RightTableID: "b", LeftKey: "k", RightKey: "k", Kind: kind}
}

func TestJoinNoSpecsQualifiesBase(t *testing.T) {
	m := Join(fixture(), nil)
	assert.Equal(t, []string{"A.k"}, m.Columns)
	require.Len(t, m.Rows, 2)
	assert.Equal(t, table.Text("1"), m.Rows[0]["A.k"])
}

func TestJoinEmptyInput(t *testing.T) {
	m := Join(nil, []Spec{spec(Inner)})
	assert.Empty(t, m.Columns)
	assert.Empty(t, m.Rows)
}

func TestJoinInner(t *testing.T) {
	m := Join(fixture(), []Spec{spec(Inner)})
	assert.Equal(t, []string{"A.k", "B.k", "B.v"}, m.Columns)
	require.Len(t, m.Rows, 2)
	assert.Equal(t, table.Text("x"), m.Rows[0]["B.v"])
	assert.Equal(t, table.Text("y"), m.Rows[1]["B.v"])
}

func TestJoinLeftNullFills(t *testing.T) {
	m := Join(fixture(), []Spec{spec(Left)})
	require.Len(t, m.Rows, 3)
	last := m.Rows[2]
	assert.Equal(t, table.Text("2"), last["A.k"])
	assert.True(t, last["B.k"].IsNull())
	assert.True(t, last["B.v"].IsNull())
}

func TestJoinRightAppendsUnmatchedRight(t *testing.T) {
	m := Join(fixture(), []Spec{spec(Right)})
	require.Len(t, m.Rows, 3)
	last := m.Rows[2]
	assert.True(t, last["A.k"].IsNull())
	assert.Equal(t, table.Text("z"), last["B.v"])
}

func TestJoinFullIsSuperset(t *testing.T) {
	tables := fixture()
	full := Join(tables, []Spec{spec(Full)})
	left := Join(tables, []Spec{spec(Left)})
	right := Join(tables, []Spec{spec(Right)})
	assert.Len(t, full.Rows, 4)
	assert.GreaterOrEqual(t, len(full.Rows), len(left.Rows))
	assert.GreaterOrEqual(t, len(full.Rows), len(right.Rows))

	// left-row-major, bucket order, then unmatched right rows
	var order []string
	for _, r := range full.Rows {
		order = append(order, r["A.k"].String()+"/"+r["B.v"].String())
	}
	assert.Equal(t, []string{"1/x", "1/y", "2/", "/z"}, order)
}

func TestJoinTraceStats(t *testing.T) {
	_, stats := JoinTrace(fixture(), []Spec{spec(Full)})
	require.Len(t, stats, 1)
	st := stats[0]
	assert.Equal(t, "A.k", st.LeftKey)
	assert.Equal(t, "B.k", st.RightKey)
	assert.Equal(t, 2, st.RowsIn)
	assert.Equal(t, 4, st.RowsOut)
	assert.Equal(t, 2, st.Matched)
	assert.Equal(t, 1, st.UnmatchedLeft)
	assert.Equal(t, 1, st.UnmatchedRight)
	assert.Empty(t, st.Skipped)
}

func TestJoinNumericAndTextKeysMatch(t *testing.T) {
	left := Row{"A.k": table.Number(5)}
	acc := MergedRowSet{Columns: []string{"A.k"}, Rows: []Row{left}}
	b := ref("b", "B", [][]string{{"k"}, {"5"}})
	out, st := apply(acc, map[string]TableRef{"a": {ID: "a", Name: "A"}, "b": b}, spec(Inner))
	assert.Equal(t, 1, st.Matched)
	assert.Len(t, out.Rows, 1)
}

func TestJoinNullKeysNeverMatch(t *testing.T) {
	c := ref("c", "C", [][]string{{"v", "w"}, {"x", "1"}})
	tables := append(fixture(), c)
	specs := []Spec{
		spec(Left),
		// B.v is null for the unmatched A row and must not pair with anything
		{ID: "j2", LeftTableID: "b", RightTableID: "c", LeftKey: "v", RightKey: "v", Kind: Left},
	}
	m := Join(tables, specs)
	require.Len(t, m.Rows, 3)
	assert.Equal(t, table.Text("1"), m.Rows[0]["C.w"])
	assert.True(t, m.Rows[1]["C.w"].IsNull())
	assert.True(t, m.Rows[2]["C.w"].IsNull())
}

func TestJoinQualifiedLeftKeyUsedVerbatim(t *testing.T) {
	m := Join(fixture(), []Spec{{LeftTableID: "b", RightTableID: "b", LeftKey: "A.k", RightKey: "k", Kind: Inner}})
	require.Len(t, m.Rows, 2)
}

func TestJoinDegradesOnIncompleteSpec(t *testing.T) {
	tables := fixture()
	cases := map[string]Spec{
		"missing left table": {LeftTableID: "nope", RightTableID: "b", LeftKey: "k", RightKey: "k"},
		"empty left key":     {LeftTableID: "a", RightTableID: "b", RightKey: "k", Kind: Full},
		"empty right key":    {LeftTableID: "a", RightTableID: "b", LeftKey: "k"},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			m, stats := JoinTrace(tables, []Spec{s})
			assert.Equal(t, []string{"A.k", "B.k", "B.v"}, m.Columns)
			require.Len(t, m.Rows, 2)
			for _, r := range m.Rows {
				assert.True(t, r["B.v"].IsNull())
			}
			assert.NotEmpty(t, stats[0].Skipped)
		})
	}

	m, stats := JoinTrace(tables, []Spec{{LeftTableID: "a", RightTableID: "gone", LeftKey: "k", RightKey: "k"}})
	assert.Equal(t, []string{"A.k"}, m.Columns)
	assert.Len(t, m.Rows, 2)
	assert.Equal(t, "right table not found", stats[0].Skipped)
}

func TestJoinColumnsMonotonic(t *testing.T) {
	c := ref("c", "C", [][]string{{"k", "w"}, {"9", "q"}})
	tables := append(fixture(), c)
	specs := []Spec{
		spec(Inner),
		{LeftTableID: "a", RightTableID: "c", LeftKey: "k", RightKey: "k", Kind: Inner},
		{LeftTableID: "a", RightTableID: "b", LeftKey: "k", RightKey: "k", Kind: Left},
	}
	prev := len(Join(tables, nil).Columns)
	for i := range specs {
		n := len(Join(tables, specs[:i+1]).Columns)
		assert.GreaterOrEqual(t, n, prev, "step %d", i)
		prev = n
	}
	m := Join(tables, specs[:2])
	assert.Empty(t, m.Rows)
	assert.Equal(t, []string{"A.k", "B.k", "B.v", "C.k", "C.w"}, m.Columns)
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, Left, ParseKind("left"))
	assert.Equal(t, Full, ParseKind("outer"))
	assert.Equal(t, Right, ParseKind(" RIGHT "))
	assert.Equal(t, Inner, ParseKind("cross"))
}
