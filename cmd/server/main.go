package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/dataquery/analysis"
	"github.com/isdmx/dataquery/config"
	"github.com/isdmx/dataquery/generator"
	"github.com/isdmx/dataquery/history"
	"github.com/isdmx/dataquery/logger"
	"github.com/isdmx/dataquery/mcpserver"
	"github.com/isdmx/dataquery/sandbox"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Sandbox executor based on config
			sandbox.NewExecutor,

			// Script generator for the configured endpoint
			generator.NewFromConfig,

			// Run history, a no-op store when disabled
			history.NewFromConfig,

			// Analysis service
			analysis.NewFromConfig,

			// MCP Server
			mcpserver.New,
		),

		// Close the history store on shutdown
		fx.Invoke(
			func(lc fx.Lifecycle, store history.Store) {
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						return store.Close()
					},
				})
			},
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(cfg *config.Config, server *mcpserver.MCPServer) {
				switch cfg.Server.Transport {
				case "stdio":
					// Use fx to run this as a background task
					go func() {
						if err := server.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case "http":
					go func() {
						if err := server.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}
