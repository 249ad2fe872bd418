package cli

import (
	"time"

	"github.com/spf13/cobra"

	"swagtest/internal/config"
)

func consoleFlags(cmd *cobra.Command) {
	cmd.Flags().String("service-url", "", "Collaborator service URL")
	cmd.Flags().Bool("embedded", false, "Run the collaborator service in process instead of calling --service-url")
	cmd.Flags().Duration("timeout", 0, "Timeout of each collaborator call (0 leaves it to the network stack)")
	backendFlags(cmd)
}

// backendFlags configure test execution, by the backend command or by an
// embedded collaborator.
func backendFlags(cmd *cobra.Command) {
	cmd.Flags().String("base-url", "", "Base URL of the API under test")
	cmd.Flags().Int("concurrency", 0, "Test cases executed at once")
	cmd.Flags().Duration("request-timeout", 0, "Timeout of each request to the API under test")
}

// applyFlags copies the flags the user set over cfg. Flags a command does
// not define are never changed, so one table serves every command.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	fs := cmd.Flags()

	addr := &cfg.Console.Addr
	if cmd.Name() == "backend" {
		addr = &cfg.Backend.Addr
	}
	steps := []error{
		set(cmd, "log-level", &cfg.Log.Level, fs.GetString),
		set(cmd, "log-file", &cfg.Log.File, fs.GetString),
		set(cmd, "addr", addr, fs.GetString),
		set(cmd, "service-url", &cfg.Console.ServiceURL, fs.GetString),
		set(cmd, "embedded", &cfg.Console.Embedded, fs.GetBool),
		set[time.Duration](cmd, "timeout", &cfg.Console.Timeout, fs.GetDuration),
		set(cmd, "max-sessions", &cfg.Console.MaxSessions, fs.GetInt),
		set(cmd, "location", &cfg.Console.Location, fs.GetString),
		set(cmd, "download-dir", &cfg.Console.DownloadDir, fs.GetString),
		set(cmd, "base-url", &cfg.Backend.BaseURL, fs.GetString),
		set(cmd, "concurrency", &cfg.Backend.Concurrency, fs.GetInt),
		set[time.Duration](cmd, "request-timeout", &cfg.Backend.Timeout, fs.GetDuration),
	}
	for _, err := range steps {
		if err != nil {
			return err
		}
	}
	return nil
}

func set[T any](cmd *cobra.Command, name string, dst *T, get func(string) (T, error)) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
