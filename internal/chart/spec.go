package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind is the visual form of a chart.
type Kind string

const (
	Bar  Kind = "BAR"
	Line Kind = "LINE"
	Area Kind = "AREA"
	Pie  Kind = "PIE"
	KPI  Kind = "KPI"
)

// Aggregation is how metric values are combined per dimension group.
type Aggregation string

const (
	Sum     Aggregation = "SUM"
	Count   Aggregation = "COUNT"
	Average Aggregation = "AVERAGE"
	None    Aggregation = "NONE"
)

// Spec declares one chart. Column names address DataModel columns but are not
// required to exist; missing values aggregate as empty or zero.
type Spec struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	Kind            Kind        `json:"kind" validate:"required,oneof=BAR LINE AREA PIE KPI"`
	DimensionColumn string      `json:"dimensionColumn"`
	MetricColumn    string      `json:"metricColumn"`
	Aggregation     Aggregation `json:"aggregation" validate:"required,oneof=SUM COUNT AVERAGE NONE"`
	Color           string      `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// UnmarshalJSON accepts both the canonical field names and the short wire
// names (type, xAxisKey, dataKey). Enum values are case-insensitive.
func (s *Spec) UnmarshalJSON(b []byte) error {
	var w struct {
		ID              string `json:"id"`
		Title           string `json:"title"`
		Description     string `json:"description"`
		Kind            string `json:"kind"`
		Type            string `json:"type"`
		DimensionColumn string `json:"dimensionColumn"`
		XAxisKey        string `json:"xAxisKey"`
		MetricColumn    string `json:"metricColumn"`
		DataKey         string `json:"dataKey"`
		Aggregation     string `json:"aggregation"`
		Color           string `json:"color"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = Spec{
		ID:              w.ID,
		Title:           w.Title,
		Description:     w.Description,
		Kind:            Kind(strings.ToUpper(strings.TrimSpace(first(w.Kind, w.Type)))),
		DimensionColumn: first(w.DimensionColumn, w.XAxisKey),
		MetricColumn:    first(w.MetricColumn, w.DataKey),
		Aggregation:     ParseAggregation(w.Aggregation),
		Color:           w.Color,
	}
	return nil
}

// ParseAggregation normalizes case and the AVG/MEAN spellings.
func ParseAggregation(s string) Aggregation {
	switch a := strings.ToUpper(strings.TrimSpace(s)); a {
	case "AVG", "MEAN":
		return Average
	default:
		return Aggregation(a)
	}
}

func first(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the enum fields of s.
func Validate(s Spec) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("chart %q: invalid %s %q", s.Title, strings.ToLower(fe.Field()), fmt.Sprint(fe.Value()))
	}
	return fmt.Errorf("chart %q: %w", s.Title, err)
}
