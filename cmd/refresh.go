package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/parser"
	"github.com/KaramelBytes/dashloom-cli/internal/project"
	"github.com/KaramelBytes/dashloom-cli/internal/table"
)

var (
	refreshProject   string
	refreshLiveOnly  bool
	refreshModelOnly bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-read table sources and re-derive the finalized data model",
	Long: `Re-reads every imported table from its source (file path or Google Sheet),
keeping table names, header rows and joins, then rebuilds the finalized data
model with the same columns and types.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(refreshProject)
		if err != nil {
			return err
		}
		if !refreshModelOnly {
			only := project.SourceKind("")
			if refreshLiveOnly {
				only = project.SourceSheet
			}
			n, rerr := p.RefreshTables(contextOr(cmd), only, loadSource)
			if rerr != nil {
				fmt.Printf("⚠ Some tables were not refreshed:\n  %v\n", rerr)
			}
			fmt.Printf("✓ Refreshed %d table(s)\n", n)
		}
		dm, err := p.RefreshModel()
		switch {
		case errors.Is(err, project.ErrNotFinalized):
			fmt.Println("(no finalized model yet; run finalize to build one)")
		case err != nil:
			return err
		default:
			fmt.Printf("✓ Model refreshed: %s (%d rows)\n", dm.Name, len(dm.Rows))
		}
		return p.Save()
	},
}

// loadSource re-reads one table source. Files are parsed whole; sheets are
// fetched one tab at a time.
func loadSource(ctx context.Context, src project.Source) ([]table.RawTable, error) {
	switch src.Kind {
	case project.SourceFile:
		return parser.ParseFile(src.Path)
	case project.SourceSheet:
		client, err := sheetsClient(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := client.Fetch(ctx, src.SpreadsheetID, src.Sheet, sheetRange(src.Range))
		if err != nil {
			return nil, err
		}
		return []table.RawTable{raw}, nil
	}
	return nil, fmt.Errorf("unknown source kind %q", src.Kind)
}

func contextOr(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().StringVarP(&refreshProject, "project", "p", "", "project name")
	refreshCmd.Flags().BoolVar(&refreshLiveOnly, "live", false, "only re-fetch Google Sheets tables")
	refreshCmd.Flags().BoolVar(&refreshModelOnly, "model-only", false, "skip re-reading sources; only rebuild the model from stored tables")
}
