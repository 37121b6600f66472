package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beego/beego/v2/server/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aihub/persona-assistant/app/bootstrap"
	"github.com/aihub/persona-assistant/app/router"
	"github.com/aihub/persona-assistant/internal/logger"
)

var configFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "assistant",
		Short: "Persona chat assistant backed by a folder of PDFs",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				return os.Setenv("CONFIG_FILE", configFile)
			}
			return nil
		},
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./config.yaml if present)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Build the index and serve the chat window",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "index",
		Short: "Build the index once and print statistics",
		RunE:  runIndex,
	})
	return root
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Init(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Shutdown()

	if err := router.Init(nil, router.Deps{
		Title:   app.Config.Persona.Name,
		Window:  app.Window,
		Index:   app.Index,
		Metrics: app.Metrics,
		Logger:  logger.Named("http"),
	}); err != nil {
		return fmt.Errorf("router: %w", err)
	}

	// 配置Beego全局设置
	web.BConfig.AppName = "Persona Assistant"
	web.BConfig.RunMode = web.PROD
	if app.Config.Server.Env == "development" {
		web.BConfig.RunMode = web.DEV
	}
	web.BConfig.CopyRequestBody = true
	web.BConfig.Listen.HTTPPort = app.Config.Server.Port
	web.BConfig.WebConfig.AutoRender = false

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := web.BeeApp.Server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown", zap.Error(err))
		}
	}()

	logger.Info("🚀 Starting Persona Assistant",
		zap.Int("port", web.BConfig.Listen.HTTPPort),
		zap.String("persona", app.Config.Persona.Name))
	web.Run()
	return nil
}

type indexStats struct {
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Dimensions int    `json:"dimensions"`
	Folder     string `json:"folder"`
	Elapsed    string `json:"elapsed"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	app, err := bootstrap.Init(cmd.Context())
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Shutdown()

	b, _ := json.MarshalIndent(indexStats{
		Documents:  app.Documents,
		Chunks:     app.Index.Len(),
		Dimensions: app.Index.Dimensions(),
		Folder:     app.Config.Knowledge.DocumentsDir,
		Elapsed:    time.Since(start).Round(time.Millisecond).String(),
	}, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
