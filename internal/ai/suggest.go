package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/KaramelBytes/dashloom-cli/internal/chart"
	"github.com/KaramelBytes/dashloom-cli/internal/model"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
)

const (
	SuggestColor = "#4f46e5"
	CustomColor  = "#10b981"

	// sampleRows is how many typed rows are shown to the model as context.
	sampleRows = 3
	// sampleTokenLimit caps the sample block for very wide tables.
	sampleTokenLimit = 1500
)

// SystemInstruction frames every chart request.
const SystemInstruction = `You are an expert data analyst and dashboard designer.
Your goal is to analyze dataset schemas and suggest meaningful visualizations (charts or KPIs).
Output must be strictly JSON.`

const chartShape = `Each chart object has the fields:
  "title": short title,
  "description": why the insight is useful,
  "type": one of BAR, LINE, AREA, PIE, KPI,
  "xAxisKey": the categorical column for the dimension (exact column name),
  "dataKey": the numeric column for the metric (exact column name),
  "aggregation": one of SUM, COUNT, AVERAGE, NONE.`

// BuildSuggestPrompt asks for 4 to 6 dashboard charts for dm.
func BuildSuggestPrompt(dm model.DataModel) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I have a dataset named %q.\n", dm.Name)
	writeSchema(&b, dm)
	b.WriteString("\nHere are the first rows of data for context:\n")
	b.WriteString(sampleJSON(dm))
	b.WriteString("\n\nPlease suggest 4 to 6 meaningful Key Performance Indicators (KPIs) and charts that would make a great executive dashboard.\n\n")
	b.WriteString(chartShape)
	b.WriteString("\nRespond with a JSON object of the form {\"suggestions\": [ ... ]}.")
	return b.String()
}

// BuildChartPrompt asks for a single chart answering request.
func BuildChartPrompt(dm model.DataModel, request string) string {
	var b strings.Builder
	b.WriteString("Dataset context:\n")
	writeSchema(&b, dm)
	fmt.Fprintf(&b, "\nUser request: %q\n\n", strings.TrimSpace(request))
	b.WriteString("Create a single chart configuration that best satisfies the user request.\n\n")
	b.WriteString(chartShape)
	b.WriteString("\nRespond with one JSON object.")
	return b.String()
}

func writeSchema(b *strings.Builder, dm model.DataModel) {
	fmt.Fprintf(b, "Columns: %s.\n", strings.Join(dm.Columns, ", "))
	fmt.Fprintf(b, "Numeric columns: %s.\n", strings.Join(dm.NumericColumns, ", "))
	fmt.Fprintf(b, "Categorical columns: %s.\n", strings.Join(dm.CategoricalColumns, ", "))
}

func sampleJSON(dm model.DataModel) string {
	raw, err := json.Marshal(dm.Head(sampleRows))
	if err != nil {
		return "[]"
	}
	return utils.TruncateToTokenLimit(string(raw), sampleTokenLimit)
}

// stripFences removes a markdown code fence and any prose around the JSON body.
func stripFences(s string) []byte {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimLeft(s, "`")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	if start := strings.IndexAny(s, "{["); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndexAny(s, "}]"); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}
	return []byte(s)
}

// ParseSuggestions reads a {"suggestions":[...]} object or a bare array of
// charts. Entries that fail validation are skipped and reported in dropped.
func ParseSuggestions(text string) (specs []chart.Spec, dropped []error, err error) {
	body := stripFences(text)
	var items []json.RawMessage
	var wrapped struct {
		Suggestions []json.RawMessage `json:"suggestions"`
	}
	if werr := json.Unmarshal(body, &wrapped); werr == nil && wrapped.Suggestions != nil {
		items = wrapped.Suggestions
	} else if aerr := json.Unmarshal(body, &items); aerr != nil {
		return nil, nil, fmt.Errorf("parse suggestions: %w (response: %.200s)", aerr, body)
	}

	suffix := uuid.NewString()[:8]
	for i, item := range items {
		var s chart.Spec
		if err := json.Unmarshal(item, &s); err != nil {
			dropped = append(dropped, fmt.Errorf("suggestion %d: %w", i, err))
			continue
		}
		s.ID = fmt.Sprintf("suggested-%d-%s", i, suffix)
		if s.Color == "" {
			s.Color = SuggestColor
		}
		if err := chart.Validate(s); err != nil {
			dropped = append(dropped, err)
			continue
		}
		specs = append(specs, s)
	}
	return specs, dropped, nil
}

// ParseChart reads a single chart object.
func ParseChart(text string) (chart.Spec, error) {
	body := stripFences(text)
	if bytes.HasPrefix(body, []byte("[")) {
		var arr []chart.Spec
		if err := json.Unmarshal(body, &arr); err != nil {
			return chart.Spec{}, fmt.Errorf("parse chart: %w", err)
		}
		if len(arr) == 0 {
			return chart.Spec{}, errors.New("parse chart: empty response")
		}
		return finishCustom(arr[0])
	}
	var s chart.Spec
	if err := json.Unmarshal(body, &s); err != nil {
		return chart.Spec{}, fmt.Errorf("parse chart: %w (response: %.200s)", err, body)
	}
	return finishCustom(s)
}

func finishCustom(s chart.Spec) (chart.Spec, error) {
	s.ID = "custom-" + uuid.NewString()[:8]
	if s.Color == "" {
		s.Color = CustomColor
	}
	if err := chart.Validate(s); err != nil {
		return chart.Spec{}, err
	}
	return s, nil
}

// Suggester asks a Runtime for chart specs describing a DataModel.
type Suggester struct {
	Runtime     Runtime
	Model       string
	MaxTokens   int
	Temperature float64
	Logger      *slog.Logger
}

func (s *Suggester) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Suggest returns the valid charts the model proposes for dm.
func (s *Suggester) Suggest(ctx context.Context, dm model.DataModel) ([]chart.Spec, error) {
	text, err := s.generate(ctx, BuildSuggestPrompt(dm))
	if err != nil {
		return nil, err
	}
	specs, dropped, err := ParseSuggestions(text)
	if err != nil {
		return nil, err
	}
	for _, d := range dropped {
		s.logger().Warn("dropped suggestion", "err", d)
	}
	for _, sp := range specs {
		s.warnUnknownColumns(dm, sp)
	}
	return specs, nil
}

// Custom returns one chart answering a free-form request.
func (s *Suggester) Custom(ctx context.Context, dm model.DataModel, request string) (chart.Spec, error) {
	if strings.TrimSpace(request) == "" {
		return chart.Spec{}, errors.New("chart request cannot be empty")
	}
	text, err := s.generate(ctx, BuildChartPrompt(dm, request))
	if err != nil {
		return chart.Spec{}, err
	}
	sp, err := ParseChart(text)
	if err != nil {
		return chart.Spec{}, err
	}
	s.warnUnknownColumns(dm, sp)
	return sp, nil
}

func (s *Suggester) generate(ctx context.Context, prompt string) (string, error) {
	if s.Runtime == nil {
		return "", errors.New("no AI runtime configured")
	}
	s.logger().Debug("requesting charts", "model", s.Model, "prompt_tokens_est", utils.CountTokens(SystemInstruction+prompt))
	resp, err := s.Runtime.Generate(ctx, GenerateRequest{
		Model: s.Model,
		Messages: []Message{
			{Role: "system", Content: SystemInstruction},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("model returned an empty response")
	}
	s.logger().Debug("charts received", "request_id", resp.RequestID, "completion_tokens", resp.Usage.CompletionTokens)
	return text, nil
}

// warnUnknownColumns logs columns the model invented; aggregation tolerates them.
func (s *Suggester) warnUnknownColumns(dm model.DataModel, sp chart.Spec) {
	for _, col := range []string{sp.DimensionColumn, sp.MetricColumn} {
		if col == "" {
			continue
		}
		if _, ok := dm.Type(col); !ok {
			s.logger().Warn("chart references unknown column", "chart", sp.Title, "column", col)
		}
	}
}
