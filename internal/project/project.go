// Package project persists a dashboard session: imported tables, header rows,
// joins, column selection, charts and the finalized data model. It runs the
// table pipeline on demand; nothing derived is cached between calls except
// the finalized model.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/chart"
	"github.com/KaramelBytes/dashloom-cli/internal/join"
	"github.com/KaramelBytes/dashloom-cli/internal/table"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
)

const (
	projectFileName = "project.json"
	modelFileName   = "model.json"
	tablesDirName   = "tables"
)

// Project represents a dashboard session persisted on disk.
type Project struct {
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Tables        []*TableEntry  `json:"tables"`
	HeaderIndices map[string]int `json:"header_indices"`
	Joins         []join.Spec    `json:"joins"`
	// Selection is the explicit column choice; nil means every merged column.
	Selection   []string       `json:"selection"`
	Charts      []chart.Spec   `json:"charts"`
	Config      *ProjectConfig `json:"config"`
	FinalizedAt *time.Time     `json:"finalized_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// Not serialized: on-disk location of the project.json
	rootDir string
	grids   map[string]table.RawTable
}

// ProjectConfig overrides global AI settings for this project.
type ProjectConfig struct {
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// NewProject constructs an in-memory project. Call Save() to persist.
func NewProject(name, description, rootDir string) *Project {
	now := time.Now()
	return &Project{
		Name:          name,
		Description:   description,
		Tables:        []*TableEntry{},
		HeaderIndices: map[string]int{},
		Joins:         []join.Spec{},
		Charts:        []chart.Spec{},
		Config:        &ProjectConfig{},
		CreatedAt:     now,
		UpdatedAt:     now,
		rootDir:       rootDir,
		grids:         map[string]table.RawTable{},
	}
}

// LoadProject loads a project.json from the provided directory.
func LoadProject(dir string) (*Project, error) {
	path := filepath.Join(dir, projectFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("project not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read project: %w", err)
	}
	var p Project
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}
	p.rootDir = dir
	p.grids = map[string]table.RawTable{}
	if p.HeaderIndices == nil {
		p.HeaderIndices = map[string]int{}
	}
	if p.Config == nil {
		p.Config = &ProjectConfig{}
	}
	return &p, nil
}

// RootDir returns the on-disk project directory path.
func (p *Project) RootDir() string { return p.rootDir }

// Save writes project.json using atomic write. Table grids are written when
// they are added, not here.
func (p *Project) Save() error {
	if p.rootDir == "" {
		return errors.New("project root directory not set")
	}
	if err := utils.EnsureProjectDir(p.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	p.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(p)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(filepath.Join(p.rootDir, projectFileName), data); err != nil {
		return err
	}
	slog.Debug("project saved", "project", p.Name, "dir", p.rootDir)
	return nil
}

func (p *Project) touch() { p.UpdatedAt = time.Now() }
