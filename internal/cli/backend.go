package cli

import (
	"context"

	"github.com/spf13/cobra"

	"swagtest/internal/backend"
	"swagtest/internal/server"
)

func backendCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "backend",
		Short:   "Start the collaborator service that extracts, generates, executes and exports",
		Example: `swagtest backend --addr :5000 --base-url https://petstore.swagger.io/v2`,
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			h := backend.NewHandler(backend.NewCore(a.backendOptions(), a.logger), a.logger)
			return server.Serve(ctx, "backend", a.cfg.Backend.Addr, h, a.logger)
		},
	}
	cmd.Flags().String("addr", "", "Listen address of the service")
	backendFlags(cmd)
	return cmd
}
