package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/dataquery/analysis"
	"github.com/isdmx/dataquery/dataset"
	"github.com/isdmx/dataquery/history"
	"github.com/isdmx/dataquery/sandbox"
)

var (
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	scriptStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func (c *cli) printReport(report *analysis.Report) error {
	if c.output == outputYAML {
		if err := c.printYAML(report); err != nil {
			return err
		}
	} else {
		if report.Column != "" {
			fmt.Fprintf(c.stdout, "%s %s\n", labelStyle.Render("Relevant column:"), report.Column)
		}
		if report.Question != "" {
			fmt.Fprintf(c.stdout, "\n%s\n%s\n", labelStyle.Render("Generated script:"), scriptStyle.Render(report.Script))
		}
		fmt.Fprintf(c.stdout, "\n%s\n%s\n", labelStyle.Render("Result:"), renderOutcome(report.Outcome))
	}

	if report.Outcome.Failed() {
		return errAnalysisFailed
	}
	return nil
}

func renderOutcome(outcome sandbox.Outcome) string {
	if outcome.Failed() {
		return failureStyle.Render(outcome.Message())
	}
	return strings.TrimRight(outcome.Output, "\n")
}

func (c *cli) printSchema(schema dataset.Schema) error {
	if c.output == outputYAML {
		return c.printYAML(schema)
	}

	fmt.Fprintf(c.stdout, "%s %d\n", labelStyle.Render("Rows:"), schema.Rows)
	fmt.Fprintf(c.stdout, "%s\n", labelStyle.Render("Columns:"))
	width := 0
	for _, col := range schema.Columns {
		width = max(width, len(col.Name))
	}
	for _, col := range schema.Columns {
		fmt.Fprintf(c.stdout, "  %-*s  %s\n", width, col.Name, dimStyle.Render(col.Type.String()))
	}
	return nil
}

func (c *cli) printHistory(entries []history.Entry) error {
	if c.output == outputYAML {
		return c.printYAML(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.stdout, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(c.stdout, "%-10s %-22s %-20s %s\n", "ID", "KIND", "CREATED", "QUESTION")
	fmt.Fprintln(c.stdout, strings.Repeat("─", 80))
	for _, e := range entries {
		question := e.Question
		if question == "" {
			question = dimStyle.Render("(script)")
		}
		fmt.Fprintf(c.stdout, "%-10s %-22s %-20s %s\n",
			shortID(e.ID), e.Outcome.Kind, e.CreatedAt.Local().Format(time.DateTime), truncate(question, 40))
	}
	return nil
}

func (c *cli) printEntry(entry *history.Entry) error {
	if c.output == outputYAML {
		return c.printYAML(entry)
	}

	fmt.Fprintf(c.stdout, "%s %s\n", labelStyle.Render("Run:"), entry.ID)
	fmt.Fprintf(c.stdout, "%s %s\n", labelStyle.Render("Created:"), entry.CreatedAt.Format(time.RFC3339))
	if entry.Question != "" {
		fmt.Fprintf(c.stdout, "%s %s\n", labelStyle.Render("Question:"), entry.Question)
		fmt.Fprintf(c.stdout, "%s %s\n", labelStyle.Render("Column:"), entry.Column)
	}
	fmt.Fprintf(c.stdout, "\n%s\n%s\n", labelStyle.Render("Script:"), scriptStyle.Render(entry.Script))
	fmt.Fprintf(c.stdout, "\n%s\n%s\n", labelStyle.Render("Result:"), renderOutcome(entry.Outcome))
	return nil
}

func (c *cli) printYAML(v any) error {
	enc := yaml.NewEncoder(c.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-2] + ".."
}
