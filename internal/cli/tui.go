package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swagtest/internal/ui"
	"swagtest/internal/watch"
)

func tuiCmd(ctx context.Context, a *app) *cobra.Command {
	var watchFile bool
	cmd := &cobra.Command{
		Use:         "tui [swagger-location]",
		Short:       "Start the terminal console",
		Example:     `swagtest tui ./swagger.json --embedded --watch`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{fileLogOnly: "true"},
		RunE: func(_ *cobra.Command, args []string) error {
			loc, err := a.location(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			app := ui.NewApp(a.service(), loc, a.cfg.Console.DownloadDir, a.logger)
			if watchFile {
				if path, ok := watch.LocalPath(loc); ok {
					go func() {
						if err := watch.New(path, app.Reload, a.logger).Run(ctx); err != nil {
							a.logger.Error("failed to watch swagger file", zap.Error(err))
						}
					}()
				} else {
					a.logger.Warn("--watch only follows local files", zap.String("location", loc))
				}
			}
			return app.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&watchFile, "watch", false, "Extract again whenever the local swagger file changes")
	cmd.Flags().String("download-dir", "", "Directory the CSV download is written to")
	consoleFlags(cmd)
	return cmd
}
