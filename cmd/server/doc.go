// Package main is the entry point for the dataquery MCP server.
//
// The server answers questions about CSV datasets. Questions are turned into
// JavaScript by an OpenAI-compatible model and executed in an in-process
// sandbox that can only read the dataset and print. The server supports both
// stdio and HTTP transports.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
