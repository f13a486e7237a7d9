package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/chart"
	"github.com/KaramelBytes/dashloom-cli/internal/model"
	"github.com/KaramelBytes/dashloom-cli/internal/table"
)

type fakeRuntime struct {
	reply string
	err   error
	last  GenerateRequest
}

func (f *fakeRuntime) Generate(_ context.Context, req GenerateRequest) (*GenerateResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: f.reply}}}}, nil
}

func sampleModel() model.DataModel {
	return model.DataModel{
		Name:               "sales + regions",
		Columns:            []string{"sales.region", "sales.amount"},
		NumericColumns:     []string{"sales.amount"},
		CategoricalColumns: []string{"sales.region"},
		Rows: []model.TypedRow{
			{"sales.region": table.Text("east"), "sales.amount": table.Number(10)},
			{"sales.region": table.Text("west"), "sales.amount": table.Number(7)},
			{"sales.region": table.Text("east"), "sales.amount": table.Number(5)},
			{"sales.region": table.Text("north"), "sales.amount": table.Number(1)},
		},
	}
}

func TestBuildSuggestPrompt(t *testing.T) {
	p := BuildSuggestPrompt(sampleModel())
	assert.Contains(t, p, `"sales + regions"`)
	assert.Contains(t, p, "Numeric columns: sales.amount.")
	assert.Contains(t, p, "Categorical columns: sales.region.")
	assert.Contains(t, p, `"sales.region":"west"`)
	assert.NotContains(t, p, "north", "only the first three rows are sampled")
	assert.Contains(t, p, "4 to 6")
}

func TestBuildChartPrompt(t *testing.T) {
	p := BuildChartPrompt(sampleModel(), "  revenue by region ")
	assert.Contains(t, p, `User request: "revenue by region"`)
	assert.Contains(t, p, "single chart")
}

func TestParseSuggestions(t *testing.T) {
	text := "```json\n" + `{"suggestions":[
		{"title":"Revenue by region","type":"BAR","xAxisKey":"sales.region","dataKey":"sales.amount","aggregation":"SUM","description":"d"},
		{"title":"Orders","type":"kpi","xAxisKey":"","dataKey":"sales.amount","aggregation":"COUNT"},
		{"title":"Bogus","type":"SCATTER","xAxisKey":"a","dataKey":"b","aggregation":"SUM"}
	]}` + "\n```"
	specs, dropped, err := ParseSuggestions(text)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Len(t, dropped, 1)

	assert.Equal(t, chart.Bar, specs[0].Kind)
	assert.Equal(t, "sales.region", specs[0].DimensionColumn)
	assert.Equal(t, SuggestColor, specs[0].Color)
	assert.True(t, strings.HasPrefix(specs[0].ID, "suggested-0-"))
	assert.Equal(t, chart.KPI, specs[1].Kind)
	assert.True(t, strings.HasPrefix(specs[1].ID, "suggested-1-"))
}

func TestParseSuggestionsBareArrayAndGarbage(t *testing.T) {
	specs, _, err := ParseSuggestions(`Sure! [{"title":"t","type":"LINE","xAxisKey":"a","dataKey":"b","aggregation":"NONE"}] Enjoy.`)
	require.NoError(t, err)
	require.Len(t, specs, 1)

	_, _, err = ParseSuggestions("I cannot help with that")
	assert.Error(t, err)
}

func TestParseChart(t *testing.T) {
	s, err := ParseChart(`{"title":"Avg","type":"PIE","xAxisKey":"r","dataKey":"m","aggregation":"AVERAGE"}`)
	require.NoError(t, err)
	assert.Equal(t, CustomColor, s.Color)
	assert.True(t, strings.HasPrefix(s.ID, "custom-"))

	_, err = ParseChart(`{"title":"Avg","type":"PIE","aggregation":"MEDIAN"}`)
	assert.Error(t, err)
}

func TestSuggesterSuggest(t *testing.T) {
	rt := &fakeRuntime{reply: `{"suggestions":[{"title":"Rev","type":"BAR","xAxisKey":"sales.region","dataKey":"sales.amount","aggregation":"SUM"}]}`}
	s := &Suggester{Runtime: rt, Model: "m", MaxTokens: 500}
	specs, err := s.Suggest(context.Background(), sampleModel())
	require.NoError(t, err)
	require.Len(t, specs, 1)

	assert.True(t, rt.last.JSONMode)
	require.Len(t, rt.last.Messages, 2)
	assert.Equal(t, "system", rt.last.Messages[0].Role)
	assert.Equal(t, 500, rt.last.MaxTokens)

	pts := chart.Aggregate(sampleModel().Rows, specs[0])
	assert.Len(t, pts, 3)
}

func TestSuggesterErrors(t *testing.T) {
	boom := errors.New("boom")
	s := &Suggester{Runtime: &fakeRuntime{err: boom}, Model: "m"}
	_, err := s.Suggest(context.Background(), sampleModel())
	assert.ErrorIs(t, err, boom)

	s = &Suggester{Runtime: &fakeRuntime{reply: "  "}, Model: "m"}
	_, err = s.Custom(context.Background(), sampleModel(), "x")
	assert.Error(t, err)

	_, err = s.Custom(context.Background(), sampleModel(), " ")
	assert.Error(t, err)

	_, err = (&Suggester{}).Suggest(context.Background(), sampleModel())
	assert.Error(t, err)
}

func TestGeminiGenerate(t *testing.T) {
	var got geminiRequest
	var path, key string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{
				map[string]any{"text": `{"suggestions":`},
				map[string]any{"text": `[]}`},
			}}}},
			"usageMetadata": map[string]any{"promptTokenCount": 4, "candidatesTokenCount": 2, "totalTokenCount": 6},
		})
	}))
	defer srv.Close()

	c := NewGeminiClient("gk", 2*time.Second, 1, 0, 0).WithBaseURL(srv.URL + "/v1beta/models")
	resp, err := c.Generate(context.Background(), GenerateRequest{
		Model:    "gemini-2.5-flash",
		Messages: []Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "hi"}},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", path)
	assert.Equal(t, "gk", key)
	assert.Equal(t, `{"suggestions":[]}`, resp.Text())
	assert.Equal(t, 6, resp.Usage.TotalTokens)
	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "sys", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMIMEType)
}

func TestNewRuntimeUnknownProvider(t *testing.T) {
	_, err := NewRuntime("nope", RuntimeConfig{})
	assert.ErrorContains(t, err, "ollama")
	rt, err := NewRuntime("Gemini", RuntimeConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, rt)
}
