package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newTemplatesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List configured trigger templates and check the voice configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cmd, opts)
			if err != nil {
				return err
			}

			templates := app.config.TriggerTemplates()
			if len(templates) == 0 {
				return writeLine(cmd.OutOrStdout(), "No trigger templates configured.")
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("TRIGGER", "NAME", "CAPACITY", "FIRST")
			for _, template := range templates {
				t.Row(
					string(template.TriggerChannelID),
					template.DisplayName,
					strconv.Itoa(template.MemberCapacity),
					template.ChannelName(template.Sequence),
				)
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), t.Render()); err != nil {
				return err
			}

			return app.config.Validate()
		},
	}
}
