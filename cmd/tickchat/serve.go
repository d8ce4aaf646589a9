package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmedigital/tickchat/pkg/audit"
	"github.com/getmedigital/tickchat/pkg/chat"
	"github.com/getmedigital/tickchat/pkg/config"
	"github.com/getmedigital/tickchat/pkg/history"
	"github.com/getmedigital/tickchat/pkg/ledger"
	"github.com/getmedigital/tickchat/pkg/openai"
	"github.com/getmedigital/tickchat/pkg/server"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			l := ledger.Open(cfg.UsageFile())
			defer func() { _ = l.Close() }()

			h := history.Open(cfg.HistoryFile())
			defer func() { _ = h.Close() }()

			var auditor *audit.Logger
			if cfg.Audit.Enabled {
				auditor, err = audit.New(cfg.Audit)
				if err != nil {
					return fmt.Errorf("init audit log: %w", err)
				}
				defer func() { _ = auditor.Close() }()
			}

			client := openai.New(cfg.Upstream.URL, cfg.Upstream.APIKey, cfg.Upstream.Model, time.Duration(cfg.Upstream.Timeout))
			svc := chat.New(cfg, l, h, client)
			srv := server.New(cfg, svc, l, h, auditor)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Printf("starting tickchat with config: %s", configPath)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "tickchat.yaml", "path to config file")
	return cmd
}
