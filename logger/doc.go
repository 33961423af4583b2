// Package logger provides structured logging capabilities.
//
// The logger package configures zap for the application. Logs always go to
// stderr unless other outputs are configured, since stdout carries analysis
// answers and the MCP stdio protocol.
//
// Usage:
//
//	log, err := logger.New("production", "info")
//	if err != nil {
//	    panic(err)
//	}
//	runLog := logger.ForExecution(log, executionID)
//	runLog.Info("script finished", zap.String("outcome", "success"))
package logger
