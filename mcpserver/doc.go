// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The server exposes three tools backed by analysis.Service:
// run_analysis_script executes a caller-supplied script, ask_dataset answers a
// natural-language question, and describe_dataset returns the schema. Datasets
// travel inline as CSV text.
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, service)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
