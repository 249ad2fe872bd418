package cli

import (
	"context"

	"github.com/spf13/cobra"

	"swagtest/internal/server"
	"swagtest/internal/web"
)

func serveCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the browser console",
		Example: `swagtest serve --addr :8080 --service-url http://127.0.0.1:5000`,
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			h, err := web.New(a.service(), web.Options{
				MaxSessions: a.cfg.Console.MaxSessions,
				Location:    a.cfg.Console.Location,
			}, a.logger)
			if err != nil {
				return err
			}
			return server.Serve(ctx, "console", a.cfg.Console.Addr, h, a.logger)
		},
	}
	cmd.Flags().String("addr", "", "Listen address of the console")
	cmd.Flags().Int("max-sessions", 0, "Open browser pages kept before the oldest is dropped")
	cmd.Flags().String("location", "", "Swagger location prefilled on the page")
	consoleFlags(cmd)
	return cmd
}
