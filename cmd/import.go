package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/gsheets"
	"github.com/KaramelBytes/dashloom-cli/internal/parser"
	"github.com/KaramelBytes/dashloom-cli/internal/project"
	"github.com/KaramelBytes/dashloom-cli/internal/table"
)

var (
	importProject  string
	importSheetURL string
	importSheets   []string
	importRange    string
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a CSV/XLSX file or a Google Sheet into a project",
	Long: `Import tables into a project.

  dashloom import -p sales orders.csv
  dashloom import -p sales book.xlsx              (one table per non-empty sheet)
  dashloom import -p sales --sheet-url <url>      (every tab)
  dashloom import -p sales --sheet-url <url> --sheet Orders --sheet Customers`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 1) == (importSheetURL != "") {
			return errors.New("give either a file or --sheet-url")
		}
		p, err := loadProject(importProject)
		if err != nil {
			return err
		}

		var (
			raws []table.RawTable
			src  project.Source
		)
		if importSheetURL != "" {
			raws, src, err = fetchSheets(contextOr(cmd), importSheetURL, importSheets, importRange)
		} else {
			path, aerr := filepath.Abs(args[0])
			if aerr != nil {
				return aerr
			}
			src = project.Source{Kind: project.SourceFile, Path: path}
			raws, err = parser.ParseFile(path)
		}
		if err != nil {
			return err
		}
		if len(raws) == 0 {
			return errors.New("no non-empty tables found")
		}

		added, err := p.AddTables(src, raws...)
		if err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		for _, e := range added {
			fmt.Printf("✓ Table imported: %s (%d rows x %d columns)\n", e.Name, e.Rows, e.Width)
		}
		return nil
	},
}

// sheetsClient builds a Sheets client from config credentials.
func sheetsClient(ctx context.Context) (*gsheets.Client, error) {
	opts := gsheets.Options{}
	if cfg != nil {
		opts.CredentialsFile = cfg.GoogleCredentialsFile
		opts.APIKey = cfg.GoogleAPIKey
	}
	copts, err := opts.ClientOptions()
	if err != nil {
		return nil, err
	}
	return gsheets.NewClient(ctx, slog.Default(), copts...)
}

func sheetRange(flag string) string {
	if flag != "" {
		return flag
	}
	if cfg != nil && cfg.SheetRange != "" {
		return cfg.SheetRange
	}
	return gsheets.DefaultRange
}

func fetchSheets(ctx context.Context, url string, names []string, rng string) ([]table.RawTable, project.Source, error) {
	id, err := gsheets.ExtractSpreadsheetID(url)
	if err != nil {
		return nil, project.Source{}, err
	}
	client, err := sheetsClient(ctx)
	if err != nil {
		return nil, project.Source{}, err
	}
	if len(names) == 0 {
		md, err := client.Metadata(ctx, id)
		if err != nil {
			return nil, project.Source{}, err
		}
		fmt.Printf("Spreadsheet: %s (%d sheets)\n", md.Title, len(md.Sheets))
		names = md.Sheets
	}
	rng = sheetRange(rng)
	raws, err := client.FetchAll(ctx, id, names, rng)
	if err != nil {
		return nil, project.Source{}, err
	}
	// Drop empty tabs, as file import does.
	kept := raws[:0]
	for _, r := range raws {
		if len(r.Grid) > 0 {
			kept = append(kept, r)
		}
	}
	return kept, project.Source{Kind: project.SourceSheet, SpreadsheetID: id, Range: rng}, nil
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importProject, "project", "p", "", "project name")
	importCmd.Flags().StringVar(&importSheetURL, "sheet-url", "", "Google Sheets URL or spreadsheet ID")
	importCmd.Flags().StringArrayVar(&importSheets, "sheet", nil, "sheet (tab) to import; repeatable, default all")
	importCmd.Flags().StringVar(&importRange, "range", "", "A1 range to read (default from config sheet_range)")
}
