package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	listProjects bool
	listTables   bool
	listProjName string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects or the tables of a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listProjects == listTables { // either both true or both false
			return fmt.Errorf("specify exactly one of --projects or --tables")
		}
		if listProjects {
			return listAllProjects()
		}
		p, err := loadProject(listProjName)
		if err != nil {
			return err
		}
		if len(p.Tables) == 0 {
			fmt.Println("(no tables)")
			return nil
		}
		for _, t := range p.Tables {
			src := t.Source.Path
			if t.Source.SpreadsheetID != "" {
				src = "sheet " + t.Source.SpreadsheetID
			}
			fmt.Printf("- %s: %s (%d rows, header row %d, %s)\n", t.ID, t.Name, t.Rows, p.HeaderIndices[t.ID], src)
		}
		return nil
	},
}

func listAllProjects() error {
	root, err := defaultProjectsDir()
	if err != nil {
		return err
	}
	dirs, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	found := false
	for _, e := range dirs {
		if !e.IsDir() {
			continue
		}
		pj := filepath.Join(root, e.Name(), "project.json")
		if _, err := os.Stat(pj); err == nil {
			fmt.Printf("- %s\n", e.Name())
			found = true
		}
	}
	if !found {
		fmt.Println("(no projects)")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listProjects, "projects", false, "list projects")
	listCmd.Flags().BoolVar(&listTables, "tables", false, "list tables in a project")
	listCmd.Flags().StringVarP(&listProjName, "project", "p", "", "project name for --tables")
}
