package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/isdmx/dataquery/dataset"
)

func (c *cli) askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <csv-file> <question>",
		Short: "Answer a question about a CSV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := c.load(args[0])
			if err != nil {
				return err
			}
			service, err := c.service()
			if err != nil {
				return err
			}

			report, err := service.Ask(cmd.Context(), args[1], frame)
			if err != nil {
				return err
			}
			return c.printReport(report)
		},
	}
}

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <csv-file> <script-file|->",
		Short: "Run an analysis script against a CSV file",
		Long:  "Run an analysis script against a CSV file. Use - to read the script from stdin.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := c.load(args[0])
			if err != nil {
				return err
			}
			script, err := c.readScript(args[1])
			if err != nil {
				return err
			}
			service, err := c.service()
			if err != nil {
				return err
			}

			return c.printReport(service.Run(cmd.Context(), script, frame))
		},
	}
}

func (c *cli) describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <csv-file>",
		Short: "Show the columns and types of a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			frame, err := c.load(args[0])
			if err != nil {
				return err
			}
			return c.printSchema(frame.Schema())
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := c.service()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				entry, err := service.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.printEntry(entry)
			}

			entries, err := service.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return c.printHistory(entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Max runs to show")
	return cmd
}

func (c *cli) load(path string) (*dataset.Frame, error) {
	frame, err := dataset.LoadCSV(path)
	if err != nil {
		return nil, err
	}
	rows, cols := frame.Shape()
	c.logger.Debug("Dataset loaded",
		zap.String("path", path),
		zap.Int("rows", rows),
		zap.Int("columns", cols))
	if c.output == outputText {
		fmt.Fprintf(c.stdout, "%s %s (%d rows, %d columns)\n", labelStyle.Render("Loaded"), path, rows, cols)
	}
	return frame, nil
}

func (c *cli) readScript(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(c.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(data), nil
}
