package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/chart"
	"github.com/KaramelBytes/dashloom-cli/internal/model"
)

const tablesJSON = `"tables":[
	{"id":"a","name":"orders","grid":[["id","cust","total"],["1","c1","10"],["2","c2","5"],["3","c9","1"]]},
	{"id":"b","name":"customers","grid":[["cid","region"],["c1","east"],["c2","west"]]}
]`

type stubSuggester struct {
	specs []chart.Spec
	err   error
	got   string
}

func (s *stubSuggester) Suggest(_ context.Context, dm model.DataModel) ([]chart.Spec, error) {
	s.got = dm.Name
	return s.specs, s.err
}

func (s *stubSuggester) Custom(_ context.Context, _ model.DataModel, request string) (chart.Spec, error) {
	s.got = request
	if s.err != nil {
		return chart.Spec{}, s.err
	}
	return s.specs[0], nil
}

func do(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHealthz(t *testing.T) {
	h := New(nil, nil, nil).Routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestPreview(t *testing.T) {
	h := New(nil, nil, nil).Routes()
	rec, out := do(t, h, "/api/preview", `{`+tablesJSON+`,
		"joins":[{"id":"j","leftTableId":"a","rightTableId":"b","leftKey":"cust","rightKey":"cid","type":"left"}],
		"limit":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{"orders.id", "orders.cust", "orders.total", "customers.cid", "customers.region"}, out["columns"])
	assert.Len(t, out["rows"], 2)
	assert.EqualValues(t, 3, out["total"])
	steps := out["steps"].([]any)
	require.Len(t, steps, 1)
	assert.EqualValues(t, 2, steps[0].(map[string]any)["matched"])
}

func TestPreviewBadRequests(t *testing.T) {
	h := New(nil, nil, nil).Routes()
	rec, _ := do(t, h, "/api/preview", `{"tables":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out := do(t, h, "/api/preview", `{"tables":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", out["code"])
}

func TestFinalize(t *testing.T) {
	h := New(nil, nil, nil).Routes()
	rec, out := do(t, h, "/api/finalize", `{`+tablesJSON+`,
		"joins":[{"leftTableId":"a","rightTableId":"b","leftKey":"cust","rightKey":"cid","type":"INNER"}],
		"selection":["customers.region","orders.total"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "orders + customers", out["name"])
	assert.Equal(t, []any{"orders.total"}, out["numericColumns"])
	assert.Equal(t, []any{"customers.region"}, out["categoricalColumns"])
	assert.Len(t, out["rows"], 2)
}

func TestFinalizeEmptySelection(t *testing.T) {
	h := New(nil, nil, nil).Routes()
	rec, out := do(t, h, "/api/finalize", `{`+tablesJSON+`,"selection":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "select at least one column", out["error"])
}

func TestAggregate(t *testing.T) {
	h := New(nil, nil, nil).Routes()
	rows := `"rows":[{"r":"east","v":10},{"r":"west","v":7},{"r":"east","v":5}]`
	rec, out := do(t, h, "/api/aggregate", `{`+rows+`,"chart":{"title":"t","type":"BAR","xAxisKey":"r","dataKey":"v","aggregation":"SUM"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pts := out["points"].([]any)
	require.Len(t, pts, 2)
	assert.Equal(t, map[string]any{"r": "east", "v": 15.0}, pts[0])

	rec, out = do(t, h, "/api/aggregate", `{`+rows+`,"charts":[{"title":"n","type":"KPI","aggregation":"COUNT"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, out["series"], 1)

	rec, _ = do(t, h, "/api/aggregate", `{`+rows+`,"chart":{"title":"t","type":"BAR","aggregation":"MEDIAN"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, "/api/aggregate", `{`+rows+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggest(t *testing.T) {
	dm := `{"dataModel":{"name":"sales","columns":["r","v"],"numericColumns":["v"],"categoricalColumns":["r"],"rows":[]}`

	rec, _ := do(t, New(nil, nil, nil).Routes(), "/api/suggest", dm+`}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	stub := &stubSuggester{specs: []chart.Spec{{ID: "s1", Title: "Rev", Kind: chart.Bar, DimensionColumn: "r", MetricColumn: "v", Aggregation: chart.Sum}}}
	h := New(nil, stub, nil).Routes()
	rec, out := do(t, h, "/api/suggest", dm+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sales", stub.got)
	assert.Len(t, out["charts"], 1)

	rec, _ = do(t, h, "/api/suggest", dm+`,"prompt":"revenue by r"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "revenue by r", stub.got)

	failing := New(nil, &stubSuggester{err: errors.New("rate limited")}, func(error) string { return "wait" }).Routes()
	rec, out = do(t, failing, "/api/suggest", dm+`}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "wait", out["hint"])
}

func TestImport(t *testing.T) {
	h := New(nil, nil, nil).Routes()
	upload := func(name, content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, _ = fw.Write([]byte(content))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("sales.csv", "region,amount\neast,10\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Tables []struct {
			Name string     `json:"name"`
			Grid [][]string `json:"grid"`
		} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Tables, 1)
	assert.Equal(t, "sales", out.Tables[0].Name)
	assert.Equal(t, [][]string{{"region", "amount"}, {"east", "10"}}, out.Tables[0].Grid)

	rec = upload("notes.pdf", "x")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
