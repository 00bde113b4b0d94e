// Command deepresearch runs research sessions from the command line and
// serves them over HTTP, MCP and the researcher JSON-RPC transport.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/deepresearch/internal/config"
	"github.com/dusk-indust/deepresearch/internal/logging"
)

// version is set by goreleaser at build time.
var version = "dev"

// rootOptions are the flags shared by every command.
type rootOptions struct {
	Dir         string
	Verbose     bool
	Provider    string
	Backend     string
	Researchers []string
	SingleAgent bool

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "deepresearch",
		Short: "Multi-stage research assistant",
		Long: `deepresearch turns a conversation into a research report.

A session moves through four stages: clarify (optionally asking the user one
question), brief, supervise (planning topics and researching them in
parallel) and reduce (writing the final report). Sessions are checkpointed at
every stage boundary, so a paused session can be answered from another
process with 'deepresearch reply'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.Dir, "dir", ".", "directory holding deepresearch.yml and .env")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&opts.Provider, "model", "", "model provider override (static | gemini)")
	pf.StringVar(&opts.Backend, "checkpoint", "", "checkpoint backend override (memory | file | sqlite | postgres | kuzu)")
	pf.StringSliceVar(&opts.Researchers, "researchers", nil, "comma-separated researcher endpoint URLs")
	pf.BoolVar(&opts.SingleAgent, "single-agent", false, "research in-process even when researchers are configured")

	root.AddCommand(
		newRunCmd(opts),
		newReplyCmd(opts),
		newStatusCmd(opts),
		newExportCmd(opts),
		newServeCmd(opts),
		newServeMCPCmd(opts),
		newResearcherCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration, applies flag overrides and builds the
// logger.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.Dir)
	if err != nil {
		return err
	}
	if o.Provider != "" {
		cfg.Model.Provider = o.Provider
	}
	if o.Backend != "" {
		cfg.Checkpoint.Backend = o.Backend
	}
	if len(o.Researchers) > 0 {
		cfg.Research.Researchers = o.Researchers
	}
	if o.SingleAgent {
		cfg.Research.SingleAgent = true
	}
	o.cfg = cfg

	logger, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Verbose: o.Verbose,
	})
	if err != nil {
		return err
	}
	o.logger = logger.With(zap.String("cmd", cmd.Name()))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
