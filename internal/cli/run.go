package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swagtest/internal/console"
	"swagtest/internal/report"
	"swagtest/internal/session"
)

var ErrFailed = errors.New("one or more test cases did not pass")

func runCmd(ctx context.Context, a *app) *cobra.Command {
	var filter, out string
	cmd := &cobra.Command{
		Use:   "run [swagger-location]",
		Short: "Extract, generate and execute every endpoint, then print the results",
		Example: `swagtest run ./swagger.json --embedded --filter /pet
swagtest run https://petstore.swagger.io/v2/swagger.json --out ./reports`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{fileLogOnly: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := a.location(args)
			if err != nil {
				return err
			}
			return Headless(ctx, a.service(), cmd.OutOrStdout(), Job{
				Location: loc,
				Filter:   filter,
				OutDir:   out,
			}, a.logger)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Only run endpoints whose path contains this text")
	cmd.Flags().StringVar(&out, "out", "", "Also save the test cases as CSV in this directory")
	consoleFlags(cmd)
	return cmd
}

type Job struct {
	Location string
	Filter   string
	// OutDir receives the CSV export when set.
	OutDir string
}

// Headless drives the console without a screen: progress lines and the
// final tables go to w. It returns ErrFailed when any case did not pass.
func Headless(ctx context.Context, svc console.Service, w io.Writer, job Job, logger *zap.Logger) error {
	p := report.New(w, job.OutDir, logger)
	ctrl := console.New(svc, session.New(), p, logger)

	if err := ctrl.Extract(ctx, job.Location); err != nil {
		return err
	}

	if job.Filter == "" {
		if err := ctrl.ExecuteAll(ctx); err != nil {
			return err
		}
	} else {
		eps := console.Filter(ctrl.State().Endpoints(), job.Filter)
		if len(eps) == 0 {
			return fmt.Errorf("no endpoint path contains %q", job.Filter)
		}
		var errs []error
		for _, ep := range eps {
			if err := ctrl.GenerateOne(ctx, ep.Path, ep.Method); err != nil {
				errs = append(errs, err)
				continue
			}
			if err := ctrl.ExecuteOne(ctx, ep.Path, ep.Method); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			p.Render(w)
			return err
		}
	}

	if job.OutDir != "" {
		if err := ctrl.DownloadAll(ctx); err != nil {
			return err
		}
	}

	p.Render(w)
	if p.Failed() {
		return ErrFailed
	}
	return nil
}
