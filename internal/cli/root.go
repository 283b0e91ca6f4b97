// Package cli implements timerctl, the operator command line for backups and reservation purges.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"example.com/activitytimer/internal/bootstrap"
	"example.com/activitytimer/internal/config"
	"example.com/activitytimer/internal/logger"
)

// App holds what the commands share. Connect is called lazily by the commands that need the
// backends.
type App struct {
	In      io.Reader
	Out     io.Writer
	Connect func(ctx context.Context) (*bootstrap.Services, error)
}

// DefaultApp connects with the environment configuration and logs to stderr.
func DefaultApp() *App {
	return &App{
		In:  os.Stdin,
		Out: os.Stdout,
		Connect: func(ctx context.Context) (*bootstrap.Services, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			lg := logger.New(logger.Options{Level: cfg.LogLevel, Format: "console", Service: "timerctl", Writer: os.Stderr})
			return bootstrap.New(ctx, cfg, lg)
		},
	}
}

// NewRootCommand builds the timerctl command tree over app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "timerctl",
		Short: "Operate on activity timer accounts",
		Long: `timerctl exports and imports account backups through the same merge engine
the api uses, and runs deletion-reservation purges by hand.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(app.In)
	root.SetOut(app.Out)

	root.AddCommand(newExportCommand(app))
	root.AddCommand(newImportCommand(app))
	root.AddCommand(newPurgeCommand(app))
	return root
}

// Execute runs timerctl with the default app.
func Execute() error {
	return NewRootCommand(DefaultApp()).Execute()
}

