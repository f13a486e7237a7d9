package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/join"
	"github.com/KaramelBytes/dashloom-cli/internal/model"
)

var (
	pipeProject string
	selectAll   bool
	previewRows int
	previewJSON bool
	finalTitle  string
)

var selectCmd = &cobra.Command{
	Use:   "select [columns...]",
	Short: "Choose the merged columns that go into the data model",
	Long: `With column names, stores them as the selection. With --all, clears the
selection so every merged column is used. With neither, lists the merged
columns and marks the selected ones.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(pipeProject)
		if err != nil {
			return err
		}
		merged, _, err := p.Merge()
		if err != nil {
			return err
		}
		switch {
		case selectAll:
			p.SetSelection(nil)
		case len(args) > 0:
			for _, c := range args {
				if !merged.HasColumn(c) {
					fmt.Printf("⚠ %s is not a merged column right now; it will be ignored until it exists\n", c)
				}
			}
			p.SetSelection(args)
		default:
			sel := map[string]bool{}
			for _, c := range p.EffectiveSelection(merged) {
				sel[c] = true
			}
			for _, c := range merged.Columns {
				mark := " "
				if sel[c] {
					mark = "x"
				}
				fmt.Printf("[%s] %s\n", mark, c)
			}
			return nil
		}
		if err := p.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Selected %d column(s)\n", len(p.EffectiveSelection(merged)))
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the first merged rows and what each join step did",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(pipeProject)
		if err != nil {
			return err
		}
		limit := previewRows
		if !cmd.Flags().Changed("limit") && cfg != nil && cfg.PreviewRows > 0 {
			limit = cfg.PreviewRows
		}
		pv, err := p.Preview(limit)
		if err != nil {
			return err
		}
		if previewJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(pv)
		}
		for i, st := range pv.Steps {
			printStep(os.Stdout, i, st)
		}
		writeRows(os.Stdout, pv.Selected, pv.Rows)
		fmt.Printf("(%d of %d rows)\n", len(pv.Rows), pv.Total)
		return nil
	},
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Type the selected columns and save the data model",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(pipeProject)
		if err != nil {
			return err
		}
		dm, err := p.Finalize(finalTitle)
		if errors.Is(err, model.ErrEmptySelection) {
			return fmt.Errorf("%w: run 'dashloom select' with columns that exist in the preview", err)
		}
		if err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Data model finalized: %s (%d rows)\n", dm.Name, len(dm.Rows))
		fmt.Printf("  numeric: %s\n", strings.Join(dm.NumericColumns, ", "))
		fmt.Printf("  categorical: %s\n", strings.Join(dm.CategoricalColumns, ", "))
		return nil
	},
}

func printStep(w io.Writer, i int, st join.StepStats) {
	if st.Skipped != "" {
		fmt.Fprintf(w, "join %d (%s): skipped, %s\n", i+1, st.Kind, st.Skipped)
		return
	}
	fmt.Fprintf(w, "join %d (%s %s = %s): %d -> %d rows, %d matched, %d/%d unmatched left/right\n",
		i+1, st.Kind, st.LeftKey, st.RightKey, st.RowsIn, st.RowsOut, st.Matched, st.UnmatchedLeft, st.UnmatchedRight)
}

func writeRows(w io.Writer, cols []string, rows []join.Row) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, r := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			v := r[c]
			if v.IsNull() {
				cells[i] = "∅"
			} else {
				cells[i] = v.String()
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

func init() {
	for _, c := range []*cobra.Command{selectCmd, previewCmd, finalizeCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringVarP(&pipeProject, "project", "p", "", "project name")
	}
	selectCmd.Flags().BoolVar(&selectAll, "all", false, "select every merged column")
	previewCmd.Flags().IntVar(&previewRows, "limit", 20, "rows to show")
	previewCmd.Flags().BoolVar(&previewJSON, "json", false, "print the preview as JSON")
	finalizeCmd.Flags().StringVar(&finalTitle, "title", "", "data model name (default: table names joined with ' + ')")
}
