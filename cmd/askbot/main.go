// askbot - chat backend with web search and image generation.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/askbot/internal/infra/config"
	"github.com/matiasleandrokruk/askbot/internal/infra/logging"
	"github.com/matiasleandrokruk/askbot/internal/server"
	"github.com/matiasleandrokruk/askbot/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// runError marks a failure after argument parsing succeeded.
type runError struct{ err error }

func (e runError) Error() string { return e.err.Error() }

// run returns 0 on success, 1 when a command fails and 2 on bad usage.
func run(args []string, out io.Writer) int {
	root := newRootCmd(out)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(out, "Error:", err) //nolint:errcheck
		var re runError
		if errors.As(err, &re) {
			return 1
		}
		return 2
	}
	return 0
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "askbot",
		Short:         "Chat backend with web search and image generation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String()) //nolint:errcheck
		},
	}
}

type serveOptions struct {
	configPath string
	host       string
	port       int
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := serve(cmd, opts); err != nil {
				return runError{err: err}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "YAML config file (keys as env var names)")
	cmd.Flags().StringVar(&opts.host, "host", "", "listen host, overrides HOST")
	cmd.Flags().IntVar(&opts.port, "port", 0, "listen port, overrides PORT")
	return cmd
}

func serve(cmd *cobra.Command, opts serveOptions) error {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = opts.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = opts.port
	}

	if _, err := logging.Setup(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr()); err != nil {
		return err
	}
	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return err
	}
	deps, err := server.Wire(cfg, policy, version.Version)
	if err != nil {
		return err
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Host
	srvCfg.Port = cfg.Port

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.NewServer(deps, srvCfg).Run(ctx)
}
