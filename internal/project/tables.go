package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/join"
	"github.com/KaramelBytes/dashloom-cli/internal/table"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
)

// SourceKind tells where a table's grid came from.
type SourceKind string

const (
	SourceFile  SourceKind = "file"
	SourceSheet SourceKind = "gsheet"
)

// Source records how to re-import a table.
type Source struct {
	Kind          SourceKind `json:"kind"`
	Path          string     `json:"path,omitempty"`
	SpreadsheetID string     `json:"spreadsheet_id,omitempty"`
	Sheet         string     `json:"sheet,omitempty"`
	Range         string     `json:"range,omitempty"`
}

// TableEntry is the metadata of one imported table. Its grid lives in
// tables/<id>.json.
type TableEntry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Source     Source    `json:"source"`
	Rows       int       `json:"rows"`
	Width      int       `json:"width"`
	ImportedAt time.Time `json:"imported_at"`
}

// ErrTableNotFound is returned when a table reference matches nothing.
var ErrTableNotFound = errors.New("table not found")

// AddTables stores raws and registers them after the existing tables. A raw
// whose ID is already present replaces that table's grid in place, keeping
// its name, position and header row. New names that clash with another table
// get a numeric suffix so qualified column names stay unambiguous.
func (p *Project) AddTables(src Source, raws ...table.RawTable) ([]*TableEntry, error) {
	out := make([]*TableEntry, 0, len(raws))
	for _, raw := range raws {
		if existing := p.tableByID(raw.ID); existing != nil {
			raw.Name = existing.Name
			if err := p.writeGrid(raw); err != nil {
				return nil, err
			}
			existing.Rows, existing.Width = len(raw.Grid), raw.Width()
			existing.ImportedAt = time.Now()
			out = append(out, existing)
			slog.Info("table replaced", "table", existing.Name, "rows", existing.Rows)
			continue
		}
		e := &TableEntry{
			ID:         raw.ID,
			Source:     src,
			Rows:       len(raw.Grid),
			Width:      raw.Width(),
			ImportedAt: time.Now(),
		}
		// Source.Sheet keeps the name the source knows the table by.
		e.Source.Sheet = raw.Name
		raw.Name = p.uniqueName(raw.Name)
		e.Name = raw.Name
		if err := p.writeGrid(raw); err != nil {
			return nil, err
		}
		p.Tables = append(p.Tables, e)
		p.HeaderIndices[e.ID] = 0
		out = append(out, e)
		slog.Info("table added", "table", e.Name, "rows", e.Rows)
	}
	p.touch()
	return out, nil
}

// RemoveTable drops a table, its grid, header row and every join touching it.
func (p *Project) RemoveTable(ref string) error {
	e, err := p.Table(ref)
	if err != nil {
		return err
	}
	kept := p.Tables[:0]
	for _, t := range p.Tables {
		if t.ID != e.ID {
			kept = append(kept, t)
		}
	}
	p.Tables = kept
	delete(p.HeaderIndices, e.ID)
	delete(p.grids, e.ID)
	joins := p.Joins[:0]
	for _, j := range p.Joins {
		if j.LeftTableID != e.ID && j.RightTableID != e.ID {
			joins = append(joins, j)
		}
	}
	p.Joins = joins
	if err := os.Remove(p.gridPath(e.ID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove table data: %w", err)
	}
	p.touch()
	return nil
}

// Table resolves ref as a table ID first, then as a table name.
func (p *Project) Table(ref string) (*TableEntry, error) {
	if e := p.tableByID(ref); e != nil {
		return e, nil
	}
	for _, t := range p.Tables {
		if t.Name == ref {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", ref, ErrTableNotFound)
}

func (p *Project) tableByID(id string) *TableEntry {
	for _, t := range p.Tables {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// SetHeaderIndex chooses which grid row of ref is the header.
func (p *Project) SetHeaderIndex(ref string, idx int) error {
	if idx < 0 {
		return fmt.Errorf("header row must be >= 0, got %d", idx)
	}
	e, err := p.Table(ref)
	if err != nil {
		return err
	}
	if idx >= e.Rows && e.Rows > 0 {
		slog.Warn("header row is past the end of the table; it will normalize to an empty table", "table", e.Name, "rows", e.Rows, "index", idx)
	}
	p.HeaderIndices[e.ID] = idx
	p.touch()
	return nil
}

// Raw returns the stored grid of table id.
func (p *Project) Raw(id string) (table.RawTable, error) {
	if raw, ok := p.grids[id]; ok {
		return raw, nil
	}
	b, err := os.ReadFile(p.gridPath(id))
	if err != nil {
		return table.RawTable{}, fmt.Errorf("read table %s: %w", id, err)
	}
	var raw table.RawTable
	if err := json.Unmarshal(b, &raw); err != nil {
		return table.RawTable{}, fmt.Errorf("parse table %s: %w", id, err)
	}
	if p.grids == nil {
		p.grids = map[string]table.RawTable{}
	}
	p.grids[id] = raw
	return raw, nil
}

// Inputs normalizes every table against its header row, in table order.
func (p *Project) Inputs() ([]join.TableRef, error) {
	refs := make([]join.TableRef, 0, len(p.Tables))
	for _, e := range p.Tables {
		raw, err := p.Raw(e.ID)
		if err != nil {
			return nil, err
		}
		refs = append(refs, join.TableRef{
			ID:    e.ID,
			Name:  e.Name,
			Table: table.Normalize(raw, p.HeaderIndices[e.ID]),
		})
	}
	return refs, nil
}

// LiveTables returns the tables imported from Google Sheets.
func (p *Project) LiveTables() []*TableEntry {
	var out []*TableEntry
	for _, t := range p.Tables {
		if t.Source.Kind == SourceSheet {
			out = append(out, t)
		}
	}
	return out
}

// TableLoader re-reads the tables of one source.
type TableLoader func(ctx context.Context, src Source) ([]table.RawTable, error)

// RefreshTables re-reads every table through load and replaces its grid,
// keeping IDs, names and header rows. Tables whose source fails are left as
// they were; their errors are joined into the result.
func (p *Project) RefreshTables(ctx context.Context, only SourceKind, load TableLoader) (int, error) {
	var errs []error
	n := 0
	for _, e := range p.Tables {
		if only != "" && e.Source.Kind != only {
			continue
		}
		raws, err := load(ctx, e.Source)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
			continue
		}
		raw, ok := pickSource(raws, e.Source.Sheet)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %q no longer present in source", e.Name, e.Source.Sheet))
			continue
		}
		raw.ID = e.ID
		if _, err := p.AddTables(e.Source, raw); err != nil {
			return n, err
		}
		n++
	}
	return n, errors.Join(errs...)
}

func pickSource(raws []table.RawTable, name string) (table.RawTable, bool) {
	for _, r := range raws {
		if r.Name == name {
			return r, true
		}
	}
	if len(raws) == 1 {
		return raws[0], true
	}
	return table.RawTable{}, false
}

func (p *Project) writeGrid(raw table.RawTable) error {
	if p.rootDir == "" {
		return errors.New("project root directory not set")
	}
	dir := filepath.Join(p.rootDir, tablesDirName)
	if err := utils.EnsureProjectDir(dir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal table: %w", err)
	}
	if err := utils.SafeWriteFile(p.gridPath(raw.ID), b); err != nil {
		return err
	}
	if p.grids == nil {
		p.grids = map[string]table.RawTable{}
	}
	p.grids[raw.ID] = raw
	return nil
}

func (p *Project) gridPath(id string) string {
	return filepath.Join(p.rootDir, tablesDirName, utils.SafeFileName(id)+".json")
}

func (p *Project) uniqueName(name string) string {
	if name == "" {
		name = "table"
	}
	taken := func(n string) bool {
		for _, t := range p.Tables {
			if t.Name == n {
				return true
			}
		}
		return false
	}
	if !taken(name) {
		return name
	}
	for i := 2; ; i++ {
		c := fmt.Sprintf("%s_%d", name, i)
		if !taken(c) {
			return c
		}
	}
}
