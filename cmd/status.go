package cmd

import (
	"encoding/json"
	"fmt"

	statusadapter "github.com/bnema/tempvc/internal/adapters/render/status"
	"github.com/bnema/tempvc/internal/application"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show templates and the temporary channels recorded in the state file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cmd, opts)
			if err != nil {
				return err
			}

			svc, err := application.NewStatusService(app.stateRepo, app.config.TriggerTemplates())
			if err != nil {
				return err
			}
			snapshot, err := svc.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			return writeSnapshotOutput(cmd, app, snapshot, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of the rendered view")

	return cmd
}

func writeSnapshotOutput(cmd *cobra.Command, app *app, snapshot application.Snapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}

	rendered, err := app.statusRenderer(snapshot, statusadapter.RenderOptions{Now: app.now()})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
