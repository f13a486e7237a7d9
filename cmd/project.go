package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/dashloom-cli/internal/project"
)

var (
	pmProject     string
	pmClear       bool
	pmProvider    string
	pmMaxTokens   int
	pmTemperature float64
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage per-project settings",
}

var projectSetModelCmd = &cobra.Command{
	Use:   "set-model [model]",
	Short: "Set or clear a project's AI provider, model and generation settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pmProject == "" {
			return fmt.Errorf("--project is required")
		}
		p, err := loadProject(pmProject)
		if err != nil {
			return err
		}
		if pmClear {
			p.Config = &project.ProjectConfig{}
			if err := p.Save(); err != nil {
				return err
			}
			fmt.Printf("✓ Cleared AI settings for %s\n", pmProject)
			return nil
		}

		f := cmd.Flags()
		if len(args) == 0 && !anyChanged(f, "provider", "max-tokens", "temperature") {
			return fmt.Errorf("model is required unless --clear or a setting flag is given")
		}
		if p.Config == nil {
			p.Config = &project.ProjectConfig{}
		}
		if len(args) == 1 {
			p.Config.Model = strings.TrimSpace(args[0])
		}
		if f.Changed("provider") {
			p.Config.Provider = resolveProvider(nil, nil, pmProvider)
		}
		if f.Changed("max-tokens") {
			p.Config.MaxTokens = pmMaxTokens
		}
		if f.Changed("temperature") {
			p.Config.Temperature = pmTemperature
		}
		if err := p.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Project %s uses %s (%s)\n", pmProject, orDefault(p.Config.Model, "default model"), orDefault(p.Config.Provider, "default provider"))
		return nil
	},
}

func anyChanged(fs *pflag.FlagSet, names ...string) bool {
	for _, n := range names {
		if fs.Changed(n) {
			return true
		}
	}
	return false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectSetModelCmd)

	f := projectSetModelCmd.Flags()
	f.StringVarP(&pmProject, "project", "p", "", "project name")
	f.BoolVar(&pmClear, "clear", false, "clear the project's AI overrides")
	f.StringVar(&pmProvider, "provider", "", "provider: openrouter, gemini, ollama")
	f.IntVar(&pmMaxTokens, "max-tokens", 0, "max tokens for suggestions")
	f.Float64Var(&pmTemperature, "temperature", 0, "sampling temperature for suggestions")
}
