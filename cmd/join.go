package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/join"
)

var (
	joinProject  string
	joinLeft     string
	joinRight    string
	joinLeftKey  string
	joinRightKey string
	joinType     string
)

var headerCmd = &cobra.Command{
	Use:   "header <table> <row>",
	Short: "Choose which row of a table holds the column names (0-based)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("row must be an integer: %w", err)
		}
		p, err := loadProject(joinProject)
		if err != nil {
			return err
		}
		if err := p.SetHeaderIndex(args[0], idx); err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Header row of %s set to %d\n", args[0], idx)
		return nil
	},
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Manage the ordered join steps of a project",
}

var joinAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append a join step (defaults: first two tables, INNER)",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(joinProject)
		if err != nil {
			return err
		}
		s, err := p.AddJoin(join.Spec{
			LeftTableID:  joinLeft,
			RightTableID: joinRight,
			LeftKey:      joinLeftKey,
			RightKey:     joinRightKey,
			Kind:         join.ParseKind(joinType),
		})
		if err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Join added: %s\n", s.ID)
		if s.LeftKey == "" || s.RightKey == "" {
			fmt.Println("⚠ Join keys are not set; the step adds the right table's columns with empty values until you run 'join update'.")
		}
		return nil
	},
}

var joinUpdateCmd = &cobra.Command{
	Use:   "update <join-id>",
	Short: "Change fields of a join step; only given flags are applied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(joinProject)
		if err != nil {
			return err
		}
		f := cmd.Flags()
		s, err := p.UpdateJoin(args[0], func(s *join.Spec) {
			if f.Changed("left") {
				s.LeftTableID = joinLeft
			}
			if f.Changed("right") {
				s.RightTableID = joinRight
			}
			if f.Changed("left-key") {
				s.LeftKey = joinLeftKey
			}
			if f.Changed("right-key") {
				s.RightKey = joinRightKey
			}
			if f.Changed("type") {
				s.Kind = join.ParseKind(joinType)
			}
		})
		if err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Join updated: %s (%s %s = %s)\n", s.ID, s.Kind, s.LeftKey, s.RightKey)
		return nil
	},
}

var joinRmCmd = &cobra.Command{
	Use:   "rm <join-id>",
	Short: "Remove a join step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(joinProject)
		if err != nil {
			return err
		}
		if err := p.RemoveJoin(args[0]); err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Join removed: %s\n", args[0])
		return nil
	},
}

var joinLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List join steps in fold order",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(joinProject)
		if err != nil {
			return err
		}
		if len(p.Joins) == 0 {
			fmt.Println("(no joins)")
			return nil
		}
		name := func(id string) string {
			if t, err := p.Table(id); err == nil {
				return t.Name
			}
			return id + " (missing)"
		}
		for i, s := range p.Joins {
			fmt.Printf("%d. %s: %s %s JOIN %s ON %s = %s\n", i+1, s.ID, name(s.LeftTableID), s.Kind, name(s.RightTableID), s.LeftKey, s.RightKey)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(headerCmd)
	headerCmd.Flags().StringVarP(&joinProject, "project", "p", "", "project name")

	rootCmd.AddCommand(joinCmd)
	joinCmd.PersistentFlags().StringVarP(&joinProject, "project", "p", "", "project name")
	joinCmd.AddCommand(joinAddCmd, joinUpdateCmd, joinRmCmd, joinLsCmd)
	for _, c := range []*cobra.Command{joinAddCmd, joinUpdateCmd} {
		c.Flags().StringVar(&joinLeft, "left", "", "left table name or ID")
		c.Flags().StringVar(&joinRight, "right", "", "right table name or ID")
		c.Flags().StringVar(&joinLeftKey, "left-key", "", "left key column (bare, or table.column for an earlier table)")
		c.Flags().StringVar(&joinRightKey, "right-key", "", "right key column")
		c.Flags().StringVar(&joinType, "type", "inner", "join type: inner, left, right, full")
	}
}
