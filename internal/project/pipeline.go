package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/dashloom-cli/internal/chart"
	"github.com/KaramelBytes/dashloom-cli/internal/join"
	"github.com/KaramelBytes/dashloom-cli/internal/model"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
)

var (
	// ErrNotFinalized is returned by operations that need a finalized model.
	ErrNotFinalized = errors.New("project has no finalized data model; run finalize first")
	ErrJoinNotFound = errors.New("join not found")
	ErrChartMissing = errors.New("chart not found")
)

// AddJoin appends a join step. Table references may be IDs or names; empty
// ones default to the first and second table, and an empty kind to INNER.
func (p *Project) AddJoin(s join.Spec) (join.Spec, error) {
	if len(p.Tables) < 2 {
		return join.Spec{}, errors.New("a join needs at least two tables")
	}
	if s.LeftTableID == "" {
		s.LeftTableID = p.Tables[0].ID
	}
	if s.RightTableID == "" {
		s.RightTableID = p.Tables[1].ID
	}
	if err := p.resolveJoinTables(&s); err != nil {
		return join.Spec{}, err
	}
	if s.Kind == "" {
		s.Kind = join.Inner
	}
	s.ID = "join-" + uuid.NewString()
	p.Joins = append(p.Joins, s)
	p.touch()
	return s, nil
}

// UpdateJoin applies fn to the join with the given ID.
func (p *Project) UpdateJoin(id string, fn func(*join.Spec)) (join.Spec, error) {
	for i := range p.Joins {
		if p.Joins[i].ID != id {
			continue
		}
		s := p.Joins[i]
		fn(&s)
		s.ID = id
		if err := p.resolveJoinTables(&s); err != nil {
			return join.Spec{}, err
		}
		p.Joins[i] = s
		p.touch()
		return s, nil
	}
	return join.Spec{}, fmt.Errorf("%q: %w", id, ErrJoinNotFound)
}

// RemoveJoin deletes the join with the given ID.
func (p *Project) RemoveJoin(id string) error {
	for i, s := range p.Joins {
		if s.ID == id {
			p.Joins = append(p.Joins[:i], p.Joins[i+1:]...)
			p.touch()
			return nil
		}
	}
	return fmt.Errorf("%q: %w", id, ErrJoinNotFound)
}

func (p *Project) resolveJoinTables(s *join.Spec) error {
	l, err := p.Table(s.LeftTableID)
	if err != nil {
		return fmt.Errorf("left table: %w", err)
	}
	r, err := p.Table(s.RightTableID)
	if err != nil {
		return fmt.Errorf("right table: %w", err)
	}
	s.LeftTableID, s.RightTableID = l.ID, r.ID
	return nil
}

// SetSelection stores the explicit column choice. A nil slice selects every
// merged column.
func (p *Project) SetSelection(cols []string) {
	if cols != nil {
		cols = append([]string{}, cols...)
	}
	p.Selection = cols
	p.touch()
}

// Merge normalizes every table and folds the joins over them.
func (p *Project) Merge() (join.MergedRowSet, []join.StepStats, error) {
	refs, err := p.Inputs()
	if err != nil {
		return join.MergedRowSet{}, nil, err
	}
	merged, stats := join.JoinTrace(refs, p.Joins)
	return merged, stats, nil
}

// EffectiveSelection is the selection a preview shows: the stored selection
// restricted to merged, or all merged columns when nothing survives.
func (p *Project) EffectiveSelection(merged join.MergedRowSet) []string {
	var out []string
	for _, c := range p.Selection {
		if merged.HasColumn(c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return append([]string{}, merged.Columns...)
	}
	return out
}

// Preview is a bounded look at the merged rows.
type Preview struct {
	Columns  []string         `json:"columns"`
	Selected []string         `json:"selected"`
	Rows     []join.Row       `json:"rows"`
	Total    int              `json:"total"`
	Steps    []join.StepStats `json:"steps"`
}

// Preview merges the tables and returns at most limit rows.
func (p *Project) Preview(limit int) (Preview, error) {
	merged, stats, err := p.Merge()
	if err != nil {
		return Preview{}, err
	}
	rows := merged.Rows
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return Preview{
		Columns:  merged.Columns,
		Selected: p.EffectiveSelection(merged),
		Rows:     rows,
		Total:    len(merged.Rows),
		Steps:    stats,
	}, nil
}

// DefaultModelName joins the table names with " + ".
func (p *Project) DefaultModelName() string {
	names := make([]string, 0, len(p.Tables))
	for _, t := range p.Tables {
		names = append(names, t.Name)
	}
	return strings.Join(names, " + ")
}

// Finalize types the merged rows restricted to the selection and persists the
// result as model.json.
func (p *Project) Finalize(title string) (model.DataModel, error) {
	merged, _, err := p.Merge()
	if err != nil {
		return model.DataModel{}, err
	}
	sel := p.Selection
	if sel == nil {
		sel = merged.Columns
	}
	dm, err := model.TypeAndCoerce(merged, sel)
	if err != nil {
		return model.DataModel{}, err
	}
	dm.Name = strings.TrimSpace(title)
	if dm.Name == "" {
		dm.Name = p.DefaultModelName()
	}
	if err := p.writeModel(dm); err != nil {
		return model.DataModel{}, err
	}
	now := time.Now()
	p.FinalizedAt = &now
	p.touch()
	slog.Info("model finalized", "project", p.Name, "rows", len(dm.Rows), "columns", len(dm.Columns))
	return dm, nil
}

// Model loads the finalized model.
func (p *Project) Model() (model.DataModel, error) {
	b, err := os.ReadFile(filepath.Join(p.rootDir, modelFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.DataModel{}, ErrNotFinalized
		}
		return model.DataModel{}, fmt.Errorf("read model: %w", err)
	}
	var dm model.DataModel
	if err := json.Unmarshal(b, &dm); err != nil {
		return model.DataModel{}, fmt.Errorf("parse model: %w", err)
	}
	return dm, nil
}

// RefreshModel re-runs the pipeline against the current grids, keeping the
// finalized columns and their types.
func (p *Project) RefreshModel() (model.DataModel, error) {
	prev, err := p.Model()
	if err != nil {
		return model.DataModel{}, err
	}
	merged, _, err := p.Merge()
	if err != nil {
		return model.DataModel{}, err
	}
	dm := model.Refresh(merged, prev)
	if err := p.writeModel(dm); err != nil {
		return model.DataModel{}, err
	}
	p.touch()
	return dm, nil
}

func (p *Project) writeModel(dm model.DataModel) error {
	if p.rootDir == "" {
		return errors.New("project root directory not set")
	}
	b, err := json.Marshal(dm)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	if err := utils.EnsureProjectDir(p.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	return utils.SafeWriteFile(filepath.Join(p.rootDir, modelFileName), b)
}

// AddCharts validates and appends specs, assigning IDs where missing.
func (p *Project) AddCharts(specs ...chart.Spec) ([]chart.Spec, error) {
	for i := range specs {
		if err := chart.Validate(specs[i]); err != nil {
			return nil, err
		}
		if specs[i].ID == "" {
			specs[i].ID = "chart-" + uuid.NewString()[:8]
		}
	}
	p.Charts = append(p.Charts, specs...)
	p.touch()
	return specs, nil
}

// RemoveChart deletes the chart with the given ID.
func (p *Project) RemoveChart(id string) error {
	for i, c := range p.Charts {
		if c.ID == id {
			p.Charts = append(p.Charts[:i], p.Charts[i+1:]...)
			p.touch()
			return nil
		}
	}
	return fmt.Errorf("%q: %w", id, ErrChartMissing)
}

// Render aggregates every chart against the finalized model.
func (p *Project) Render() ([]chart.Series, error) {
	dm, err := p.Model()
	if err != nil {
		return nil, err
	}
	return chart.RenderAll(dm.Rows, p.Charts), nil
}
