package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"example.com/activitytimer/internal/backup"
	"example.com/activitytimer/internal/bootstrap"
	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/merge"
)

func newImportCommand(app *App) *cobra.Command {
	var (
		owner  string
		file   string
		latest bool
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Merge a backup document into an owner's data",
		Long: `Merges a backup into an owner's current activities and records.
Questions are asked on stdin unless answered by flags.

Examples:
  timerctl import --owner 7f3c... --file backup.json
  timerctl import --owner 7f3c... --latest --yes --merge-collisions=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (file == "") == !latest {
				return errors.New("exactly one of --file or --latest is required")
			}
			ctx := cmd.Context()
			svc, err := app.Connect(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			var doc backup.Document
			if latest {
				if svc.Archive == nil {
					return bootstrap.ErrNoArchive
				}
				key, err := svc.Archive.Latest(ctx, owner)
				if err != nil {
					return err
				}
				if doc, err = svc.Archive.Load(ctx, key); err != nil {
					return err
				}
			} else {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open %s: %w", file, err)
				}
				defer f.Close()
				if doc, err = backup.Decode(f); err != nil {
					return err
				}
			}

			prompter := newLinePrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			prompter.assumeYes = yes
			if cmd.Flags().Changed("merge-collisions") {
				v, _ := cmd.Flags().GetBool("merge-collisions")
				prompter.mergeCollisions = &v
			}

			outcome, err := svc.Importer.Import(ctx, domain.Session{OwnerID: owner}, prompter, doc)
			printOutcome(cmd, outcome)
			return err
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner id to import into")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Backup file to import")
	cmd.Flags().BoolVar(&latest, "latest", false, "Import the owner's most recent archived backup")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the merge without asking")
	cmd.Flags().Bool("merge-collisions", true, "Merge activities present on both sides instead of asking")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func printOutcome(cmd *cobra.Command, o merge.Outcome) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "status: %s\n", o.Status)
	if o.Policy != "" {
		fmt.Fprintf(w, "collision policy: %s\n", o.Policy)
	}
	if o.Result == nil {
		return
	}
	r := o.Result
	fmt.Fprintf(w, "activities added: %d\nrecords added: %d\nmemos updated: %d\nskipped: %d\n",
		r.ActivitiesAdded, r.RecordsAdded, r.MemosUpdated, r.Skipped)
	for from, to := range r.Renamed {
		fmt.Fprintf(w, "renamed: %s -> %s\n", from, to)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "memo conflict: %s at %s (%gs)\n", warn.ActivityName, warn.RecordedAt, warn.ElapsedSeconds)
	}
}
