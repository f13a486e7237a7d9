package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/ai"
	"github.com/KaramelBytes/dashloom-cli/internal/chart"
)

var (
	sugProject     string
	sugPrompt      string
	sugProvider    string
	sugModel       string
	sugMaxTokens   int
	sugTemperature float64
	sugOllamaHost  string
	sugDryRun      bool
	sugTimeout     time.Duration
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Ask an AI model for dashboard charts over the finalized data model",
	Long: `Without --prompt, asks for 4 to 6 charts and KPIs that suit the data model.
With --prompt, asks for one chart answering the request. Valid charts are added
to the project; existing charts are kept when the request fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(sugProject)
		if err != nil {
			return err
		}
		dm, err := p.Model()
		if err != nil {
			return err
		}
		if sugDryRun {
			if sugPrompt != "" {
				fmt.Println(ai.BuildChartPrompt(dm, sugPrompt))
			} else {
				fmt.Println(ai.BuildSuggestPrompt(dm))
			}
			return nil
		}

		f := cmd.Flags()
		s, providerName, err := buildSuggester(p, cfg, suggesterOptions{
			runtimeOptions: runtimeOptions{ProviderFlag: sugProvider, OllamaHost: sugOllamaHost},
			Model:          sugModel,
			MaxTokens:      sugMaxTokens,
			Temperature:    sugTemperature,
			MaxTokensSet:   f.Changed("max-tokens"),
			TemperatureSet: f.Changed("temperature"),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Asking %s (%s)...\n", providerName, s.Model)

		ctx, cancel := context.WithTimeout(contextOr(cmd), sugTimeout)
		defer cancel()
		var specs []chart.Spec
		if sugPrompt != "" {
			var sp chart.Spec
			sp, err = s.Custom(ctx, dm, sugPrompt)
			specs = []chart.Spec{sp}
		} else {
			specs, err = s.Suggest(ctx, dm)
		}
		if err != nil {
			return describeAIError(err)
		}
		if len(specs) == 0 {
			fmt.Println("⚠ The model returned no usable charts.")
			return nil
		}
		added, err := p.AddCharts(specs...)
		if err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		for _, c := range added {
			fmt.Printf("✓ %s: %s [%s %s of %s by %s]\n", c.ID, c.Title, c.Kind, c.Aggregation, c.MetricColumn, c.DimensionColumn)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	f := suggestCmd.Flags()
	f.StringVarP(&sugProject, "project", "p", "", "project name")
	f.StringVar(&sugPrompt, "prompt", "", "describe one chart to create instead of asking for a set")
	f.StringVar(&sugProvider, "provider", "", "AI provider: openrouter, gemini, ollama (default from project/config)")
	f.StringVar(&sugModel, "model", "", "model to use (default from project/config)")
	f.IntVar(&sugMaxTokens, "max-tokens", 0, "max tokens in the response")
	f.Float64Var(&sugTemperature, "temperature", 0.2, "sampling temperature")
	f.StringVar(&sugOllamaHost, "ollama-host", "", "Ollama base URL (default from config)")
	f.BoolVar(&sugDryRun, "dry-run", false, "print the prompt without calling the model")
	f.DurationVar(&sugTimeout, "timeout", 2*time.Minute, "overall request timeout")
}
