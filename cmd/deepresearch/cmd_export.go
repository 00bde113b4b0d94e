package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/export"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		format  string
		publish bool
	)
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a session as JSON, Markdown or a Mermaid diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := checkpoint.Open(ctx, storeConfig(root))
			if err != nil {
				return err
			}
			defer store.Close()

			cp, err := store.Load(ctx, args[0])
			if err != nil {
				return err
			}

			if publish {
				artCfg := root.cfg.Artifacts
				artCfg.Dir = resolve(root.Dir, artCfg.Dir)
				if artCfg.Sink == "" || artCfg.Sink == "none" {
					artCfg.Sink = "file"
				}
				sink, err := export.NewSink(artCfg)
				if err != nil {
					return err
				}
				locations, err := export.Publish(ctx, sink, cp)
				if err != nil {
					return err
				}
				for _, loc := range locations {
					fmt.Fprintln(cmd.OutOrStdout(), loc)
				}
				return nil
			}

			w := cmd.OutOrStdout()
			switch format {
			case "json":
				return export.WriteJSON(w, export.ExportSession(cp, time.Now()))
			case "markdown", "md":
				md, err := export.Markdown(cp)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(w, md)
				return err
			case "mermaid":
				_, err := fmt.Fprint(w, export.GenerateMermaid(cp))
				return err
			default:
				return fmt.Errorf("unknown format %q (json | markdown | mermaid)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format (json | markdown | mermaid)")
	cmd.Flags().BoolVar(&publish, "publish", false, "write all artifacts to the configured sink (file sink when none is set)")
	return cmd
}
