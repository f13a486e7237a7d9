package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/chart"
	"github.com/KaramelBytes/dashloom-cli/internal/join"
)

var (
	chartProject string
	chartTitle   string
	chartDesc    string
	chartType    string
	chartDim     string
	chartMetric  string
	chartAgg     string
	chartColor   string
	chartJSON    bool
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Manage dashboard charts",
}

var chartAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a chart over the finalized data model",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(chartProject)
		if err != nil {
			return err
		}
		spec := chart.Spec{
			Title:           chartTitle,
			Description:     chartDesc,
			Kind:            chart.Kind(strings.ToUpper(chartType)),
			DimensionColumn: chartDim,
			MetricColumn:    chartMetric,
			Aggregation:     chart.ParseAggregation(chartAgg),
			Color:           chartColor,
		}
		if dm, err := p.Model(); err == nil {
			for _, c := range []string{spec.DimensionColumn, spec.MetricColumn} {
				if _, ok := dm.Type(c); c != "" && !ok {
					fmt.Printf("⚠ %s is not a column of the data model; it will aggregate as empty\n", c)
				}
			}
		}
		added, err := p.AddCharts(spec)
		if err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Chart added: %s (%s)\n", added[0].ID, added[0].Title)
		return nil
	},
}

var chartRmCmd = &cobra.Command{
	Use:   "rm <chart-id>",
	Short: "Remove a chart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(chartProject)
		if err != nil {
			return err
		}
		if err := p.RemoveChart(args[0]); err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Chart removed: %s\n", args[0])
		return nil
	},
}

var chartLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List charts",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(chartProject)
		if err != nil {
			return err
		}
		if len(p.Charts) == 0 {
			fmt.Println("(no charts)")
			return nil
		}
		for _, c := range p.Charts {
			fmt.Printf("- %s: %s [%s %s of %s by %s]\n", c.ID, c.Title, c.Kind, c.Aggregation, c.MetricColumn, c.DimensionColumn)
		}
		return nil
	},
}

var chartRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Aggregate every chart and print its points",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(chartProject)
		if err != nil {
			return err
		}
		series, err := p.Render()
		if err != nil {
			return err
		}
		if chartJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(series)
		}
		for _, s := range series {
			fmt.Printf("== %s (%s, %s) ==\n", s.Spec.Title, s.Spec.Kind, s.Spec.Aggregation)
			if s.Spec.Kind == chart.KPI {
				fmt.Printf("%s\n\n", s.Points[0]["value"])
				continue
			}
			cols := []string{s.Spec.DimensionColumn, s.Spec.MetricColumn}
			rows := make([]join.Row, len(s.Points))
			for i, pt := range s.Points {
				rows[i] = join.Row(pt)
			}
			writeRows(os.Stdout, cols, rows)
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.PersistentFlags().StringVarP(&chartProject, "project", "p", "", "project name")
	chartCmd.AddCommand(chartAddCmd, chartRmCmd, chartLsCmd, chartRenderCmd)

	f := chartAddCmd.Flags()
	f.StringVar(&chartTitle, "title", "", "chart title")
	f.StringVar(&chartDesc, "desc", "", "chart description")
	f.StringVar(&chartType, "type", "BAR", "chart type: BAR, LINE, AREA, PIE, KPI")
	f.StringVar(&chartDim, "x", "", "dimension (categorical) column")
	f.StringVar(&chartMetric, "y", "", "metric (numeric) column")
	f.StringVar(&chartAgg, "agg", "SUM", "aggregation: SUM, COUNT, AVERAGE, NONE")
	f.StringVar(&chartColor, "color", "", "hex colour, e.g. #4f46e5")
	chartRenderCmd.Flags().BoolVar(&chartJSON, "json", false, "print series as JSON")
}
