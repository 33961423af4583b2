// Package main is the dataquery command line client.
//
// It loads a CSV file, asks an OpenAI-compatible model for a script that
// answers a question, shows the script and runs it in the sandbox:
//
//	dataquery ask sales.csv "Which region sold the most units?"
//	dataquery run sales.csv analysis.js
//	dataquery describe sales.csv
//	dataquery history --limit 10
//
// Reports print as text or, with --output yaml, as YAML documents.
package main
