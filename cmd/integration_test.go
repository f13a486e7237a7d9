package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/chart"
	"github.com/KaramelBytes/dashloom-cli/internal/project"
)

// resetFlags restores defaults on every command, since cobra keeps flag
// values and Changed state between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(fl *pflag.Flag) {
			if sv, ok := fl.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = fl.Value.Set(fl.DefValue)
			}
			fl.Changed = false
		})
	}
	reset(c.Flags())
	reset(c.PersistentFlags())
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func runCmd(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func mustRun(t *testing.T, args ...string) {
	t.Helper()
	require.NoError(t, runCmd(t, args...), "command %v", args)
}

func isolatedHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DASHLOOM_PROJECTS_DIR", "")
	return home
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCLI_ImportJoinFinalizeChart(t *testing.T) {
	home := isolatedHome(t)
	sales := writeFile(t, home, "sales.csv", "region_id,amount\n1,10\n2,7\n1,5\n3,2\n")
	regions := writeFile(t, home, "regions.csv", "exported 2024\nid,region\n1,east\n2,west\n")

	mustRun(t, "init", "shop", "-d", "regional sales")
	mustRun(t, "import", "-p", "shop", sales)
	mustRun(t, "import", "-p", "shop", regions)
	mustRun(t, "header", "-p", "shop", "regions", "1")
	mustRun(t, "join", "add", "-p", "shop", "--left", "sales", "--right", "regions",
		"--left-key", "region_id", "--right-key", "id", "--type", "left")
	mustRun(t, "preview", "-p", "shop", "--limit", "2")
	mustRun(t, "select", "-p", "shop", "regions.region", "sales.amount")
	mustRun(t, "finalize", "-p", "shop", "--title", "Sales by region")
	mustRun(t, "chart", "add", "-p", "shop", "--title", "Revenue", "--x", "regions.region", "--y", "sales.amount")
	mustRun(t, "chart", "render", "-p", "shop")
	mustRun(t, "refresh", "-p", "shop")

	p, err := project.LoadProject(filepath.Join(home, ".dashloom", "projects", "shop"))
	require.NoError(t, err)
	require.Len(t, p.Tables, 2)
	require.Len(t, p.Joins, 1)
	assert.Equal(t, 1, p.HeaderIndices[p.Joins[0].RightTableID])

	dm, err := p.Model()
	require.NoError(t, err)
	assert.Equal(t, "Sales by region", dm.Name)
	assert.Len(t, dm.Rows, 4)
	assert.Equal(t, []string{"sales.amount"}, dm.NumericColumns)
	assert.Equal(t, []string{"regions.region"}, dm.CategoricalColumns)

	require.Len(t, p.Charts, 1)
	assert.Equal(t, chart.Bar, p.Charts[0].Kind)
	assert.Equal(t, chart.Sum, p.Charts[0].Aggregation)

	series, err := p.Render()
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Len(t, series[0].Points, 3)
}

func TestCLI_FinalizeEmptySelection(t *testing.T) {
	home := isolatedHome(t)
	sales := writeFile(t, home, "sales.csv", "region_id,amount\n1,10\n")

	mustRun(t, "init", "empty")
	mustRun(t, "import", "-p", "empty", sales)
	mustRun(t, "select", "-p", "empty", "nope")
	err := runCmd(t, "finalize", "-p", "empty")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dashloom select")
}

func TestCLI_InitRefusesExistingProject(t *testing.T) {
	isolatedHome(t)
	mustRun(t, "init", "dup")
	assert.Error(t, runCmd(t, "init", "dup"))
}

func TestCLI_ProjectSetModel(t *testing.T) {
	home := isolatedHome(t)
	mustRun(t, "init", "ai")
	mustRun(t, "project", "set-model", "-p", "ai", "llama3.1", "--provider", "local", "--max-tokens", "512")

	p, err := project.LoadProject(filepath.Join(home, ".dashloom", "projects", "ai"))
	require.NoError(t, err)
	require.NotNil(t, p.Config)
	assert.Equal(t, "llama3.1", p.Config.Model)
	assert.Equal(t, "ollama", p.Config.Provider)
	assert.Equal(t, 512, p.Config.MaxTokens)

	mustRun(t, "project", "set-model", "-p", "ai", "--clear")
	p, err = project.LoadProject(filepath.Join(home, ".dashloom", "projects", "ai"))
	require.NoError(t, err)
	assert.Equal(t, &project.ProjectConfig{}, p.Config)
}

func TestCLI_ConfigSet(t *testing.T) {
	home := isolatedHome(t)
	mustRun(t, "config", "set", "preview_rows", "5")
	assert.Error(t, runCmd(t, "config", "set", "log_level", "loud"))
	assert.Error(t, runCmd(t, "config", "set", "nope", "1"))

	b, err := os.ReadFile(filepath.Join(home, ".dashloom", "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "preview_rows: 5")
}

func TestCLI_SuggestDryRunNeedsFinalizedModel(t *testing.T) {
	home := isolatedHome(t)
	sales := writeFile(t, home, "sales.csv", "region,amount\neast,10\nwest,4\n")
	mustRun(t, "init", "dry")
	mustRun(t, "import", "-p", "dry", sales)
	assert.ErrorIs(t, runCmd(t, "suggest", "-p", "dry", "--dry-run"), project.ErrNotFinalized)

	mustRun(t, "finalize", "-p", "dry")
	mustRun(t, "suggest", "-p", "dry", "--dry-run")
}
