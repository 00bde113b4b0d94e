package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/config"
	"github.com/dusk-indust/deepresearch/internal/status"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [session-id]",
		Short: "Show the stage table of one session or all sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := checkpoint.Open(cmd.Context(), storeConfig(root))
			if err != nil {
				return err
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			if len(args) == 1 {
				cp, err := store.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(w, status.Format(status.FromCheckpoint(cp)))
				return nil
			}

			cps, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(cps) == 0 {
				fmt.Fprintln(w, "No sessions found.")
				fmt.Fprintln(w, "Run 'deepresearch run <query>' to start one.")
				return nil
			}
			for i, st := range status.Summaries(cps) {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprint(w, status.Format(st))
			}
			return nil
		},
	}
}

// storeConfig is the checkpoint configuration with paths resolved against
// --dir. Read-only commands open the store without the rest of the app.
func storeConfig(root *rootOptions) config.CheckpointConfig {
	cfg := root.cfg.Checkpoint
	cfg.Path = resolve(root.Dir, cfg.Path)
	return cfg
}
