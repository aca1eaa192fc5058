package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/zhaomh1998/vscode-copilot-chat/dispatch"
	"github.com/zhaomh1998/vscode-copilot-chat/internal/websocket"
	"github.com/zhaomh1998/vscode-copilot-chat/ws"
)

const stopTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var cfgFile string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge server until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "path to config file (TOML)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listening port (overrides config)")

	return cmd
}

func runServe(cfg Config) error {
	logger := newLogger(cfg.Log)
	websocket.SetLogger(logger)

	dispatcher := &dispatch.ExecDispatcher{
		OpenChatArgv:     cfg.Commands.OpenChat,
		ClearHistoryArgv: cfg.Commands.ClearHistory,
		Logger:           logger,
	}

	rateLimit := ws.NoRateLimit()
	if cfg.RateLimit.Enabled {
		rateLimit = &ws.RateLimitConfig{
			MessagesPerSecond: rate.Limit(cfg.RateLimit.MessagesPerSecond),
			Burst:             cfg.RateLimit.Burst,
			Enabled:           true,
		}
	}

	var registerer prometheus.Registerer
	if cfg.Metrics.Enabled {
		registerer = prometheus.DefaultRegisterer
	}

	server := ws.New(&websocket.ServerConfig{
		Port:            cfg.Server.Port,
		Dispatcher:      dispatcher,
		RateLimitConfig: rateLimit,
		CheckOrigin:     ws.AllOrigins(),
		Metrics:         registerer,
	})

	ctx := context.Background()
	if err := server.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return server.Stop(stopCtx)
}

func newLogger(cfg LogConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}
