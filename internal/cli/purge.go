package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPurgeCommand(app *App) *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete the data of pending deletion reservations once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := app.Connect(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			purged, err := svc.Purger.RunOnce(ctx, batch)
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d reservations\n", purged)
			return err
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 20, "Maximum reservations to purge")
	return cmd
}
