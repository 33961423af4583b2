// Package config provides application configuration management.
//
// The config package loads and validates configuration from a YAML file,
// defaults and DATAQUERY_* environment variables. It covers the MCP server,
// sandbox execution limits, logging, the script generator endpoint and run
// history storage.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Script budget: %s\n", cfg.GetTimeout())
package config
