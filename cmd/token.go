package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored Discord bot token",
	}

	cmd.AddCommand(newTokenSetCmd(opts), newTokenRemoveCmd(opts))

	return cmd
}

func newTokenSetCmd(opts *rootOptions) *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the bot token (reads stdin when --value is omitted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cmd, opts)
			if err != nil {
				return err
			}

			if value == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token from stdin: %w", err)
				}
				value = strings.TrimSpace(line)
			}

			if err := app.tokens.SetToken(cmd.Context(), value); err != nil {
				return err
			}

			return writeLine(cmd.OutOrStdout(), "bot token stored")
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "Bot token")

	return cmd
}

func newTokenRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Delete the stored bot token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cmd, opts)
			if err != nil {
				return err
			}

			if err := app.tokens.RemoveToken(cmd.Context()); err != nil {
				return err
			}

			return writeLine(cmd.OutOrStdout(), "bot token removed")
		},
	}
}
