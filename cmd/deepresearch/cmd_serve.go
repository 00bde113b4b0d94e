package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/deepresearch/internal/httpapi"
	"github.com/dusk-indust/deepresearch/internal/mcptools"
	"github.com/dusk-indust/deepresearch/internal/model"
	"github.com/dusk-indust/deepresearch/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and the progress event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.HTTPAddr
			}
			srv := httpapi.NewServer(a.pipeline, a.logger)
			if err := srv.Start(ctx, addr); err != nil {
				return err
			}
			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Stop(stopCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.httpAddr)")
	return cmd
}

func newServeMCPCmd(root *rootOptions) *cobra.Command {
	var (
		useHTTP bool
		addr    string
	)
	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the research tools over MCP (stdio by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.Close()

			server := mcptools.NewMCPServer(mcptools.NewResearchService(a.pipeline, a.logger))
			if !useHTTP {
				return mcptools.RunStdio(ctx, server)
			}
			if addr == "" {
				addr = a.cfg.Server.MCPAddr
			}
			a.logger.Info("mcp listening", zap.String("addr", addr))
			return mcptools.RunHTTP(ctx, server, addr)
		},
	}
	cmd.Flags().BoolVar(&useHTTP, "http", false, "serve streamable HTTP instead of stdio")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address for --http (default: server.mcpAddr)")
	return cmd
}

func newResearcherCmd(root *rootOptions) *cobra.Command {
	var (
		addr string
		name string
	)
	cmd := &cobra.Command{
		Use:   "researcher",
		Short: "Serve a researcher that other processes can delegate topics to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := root.cfg
			m, err := model.New(ctx, cfg.Model.Provider, cfg.Model.Name, cfg.Model.APIKey)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.ResearcherAddr
			}

			card := worker.Card{
				Name:        name,
				Description: "Researches one topic of a research brief",
				Version:     version,
				Model:       cfg.Model.Provider,
				Skills:      []string{"research"},
			}
			r := worker.NewResearcher(card, worker.NewModelResearcher(m, name), root.logger)
			if err := r.Start(ctx, addr); err != nil {
				return err
			}
			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return r.Stop(stopCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.researcherAddr)")
	cmd.Flags().StringVar(&name, "name", "researcher", "name reported in the card and on contributions")
	return cmd
}
