package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"example.com/activitytimer/internal/backup"
	"example.com/activitytimer/internal/bootstrap"
)

func newExportCommand(app *App) *cobra.Command {
	var (
		owner   string
		out     string
		archive bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an owner's activities and records as a backup document",
		Long: `Exports every activity and record of an owner.

Examples:
  timerctl export --owner 7f3c... --out backup.json
  timerctl export --owner 7f3c... --archive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := app.Connect(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			doc, err := backup.Export(ctx, svc.Repo, owner, time.Now())
			if err != nil {
				return err
			}

			if archive {
				if svc.Archive == nil {
					return bootstrap.ErrNoArchive
				}
				key, err := svc.Archive.Save(ctx, owner, doc, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "archived %d activities and %d records to %s\n", len(doc.Activities), len(doc.Records), key)
				return nil
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return backup.Encode(w, doc)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner id to export")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "Output file, - for stdout")
	cmd.Flags().BoolVar(&archive, "archive", false, "Store the backup in the configured archive bucket instead")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
