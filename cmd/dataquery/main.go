package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/isdmx/dataquery/analysis"
	"github.com/isdmx/dataquery/config"
	"github.com/isdmx/dataquery/generator"
	"github.com/isdmx/dataquery/history"
	"github.com/isdmx/dataquery/logger"
	"github.com/isdmx/dataquery/sandbox"
)

// Output formats
const (
	outputText = "text"
	outputYAML = "yaml"
)

// errAnalysisFailed makes the process exit non-zero after a failed run has been printed
var errAnalysisFailed = errors.New("analysis did not produce an answer")

// cli holds the state shared by all subcommands
type cli struct {
	configPath string
	output     string

	cfg    *config.Config
	logger *zap.Logger
	store  history.Store
	stdin  io.Reader
	stdout io.Writer

	// newCompleter is replaced in tests
	newCompleter func(*config.Config) generator.Completer
}

func newCLI(stdin io.Reader, stdout io.Writer) *cli {
	return &cli{
		stdin:  stdin,
		stdout: stdout,
		newCompleter: func(cfg *config.Config) generator.Completer {
			return generator.NewOpenAICompleter(
				cfg.Generator.BaseURL,
				cfg.Generator.APIKey,
				cfg.Generator.Model,
				cfg.Generator.Temperature,
				cfg.GetGeneratorTimeout(),
			)
		},
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dataquery",
		Short: "Ask questions about CSV data",
		Long: `dataquery answers natural-language questions about a CSV file.

A model writes a small JavaScript program against the dataset, and the
program runs in a sandbox that can only read the data and print.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.SetOut(c.stdout)
	root.SetIn(c.stdin)

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to config file (default: ./config.yaml or ./config/config.yaml)")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", outputText, "Output format: text or yaml")

	root.AddCommand(
		c.askCmd(),
		c.runCmd(),
		c.describeCmd(),
		c.historyCmd(),
	)
	return root
}

func (c *cli) setup(*cobra.Command, []string) error {
	if c.output != outputText && c.output != outputYAML {
		return fmt.Errorf("invalid output format: %s, must be 'text' or 'yaml'", c.output)
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	c.cfg = cfg

	if c.logger, err = logger.NewFromConfig(cfg); err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	if c.store, err = history.NewFromConfig(cfg); err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	return nil
}

// run executes the command line and releases what setup opened, also on failure
func (c *cli) run(args []string) error {
	root := c.rootCmd()
	root.SetArgs(args)
	defer c.close()
	return root.Execute()
}

func (c *cli) close() {
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Warn("Failed to close history store", zap.Error(err))
		}
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// service builds the analysis service from the loaded configuration
func (c *cli) service() (*analysis.Service, error) {
	executor, err := sandbox.NewExecutor(c.logger, c.cfg)
	if err != nil {
		return nil, err
	}
	gen := generator.New(c.logger, c.newCompleter(c.cfg))
	return analysis.NewService(c.logger, gen, executor,
		analysis.WithTimeout(c.cfg.GetTimeout()),
		analysis.WithHistory(c.store)), nil
}

func main() {
	if err := newCLI(os.Stdin, os.Stdout).run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
