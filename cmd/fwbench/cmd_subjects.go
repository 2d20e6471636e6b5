package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fwbench/cmd/fwbench/ui"
	"fwbench/internal/subject"
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "List the registered benchmark subjects",
	RunE: func(cmd *cobra.Command, args []string) error {
		subjects, err := subject.LoadSubjects(cfg.SubjectsFile)
		if err != nil {
			return err
		}

		styles := ui.DefaultStyles()
		table := ui.NewTable(
			fmt.Sprintf("Subjects (%s)", cfg.SubjectsFile),
			"ID", "Name", "Directory", "Build", "Static",
		)
		for _, s := range subjects {
			static := ""
			if s.IsStaticallyServed {
				static = "yes"
			}
			table.AddRow(s.ID, s.Name(), s.Directory, s.BuildCommand, static)
		}
		fmt.Println(table.View(styles))
		return nil
	},
}
