package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/isdmx/dataquery/config"
	"github.com/isdmx/dataquery/dataset"
	"github.com/isdmx/dataquery/sandbox"
)

// Sentinel errors for answers the generator cannot use
var (
	ErrUnknownColumn = errors.New("model returned a column that is not in the dataset")
	ErrEmptyScript   = errors.New("model returned an empty script")
	ErrNoColumns     = errors.New("dataset has no columns")
)

const (
	columnSystemPrompt = "You are a helpful assistant that helps with data analysis."
	scriptSystemPrompt = "You are a helpful assistant that writes JavaScript for data analysis."
)

// Generator produces analysis scripts for questions about a dataset
type Generator struct {
	logger    *zap.Logger
	completer Completer
}

// New creates a Generator backed by the given completer
func New(logger *zap.Logger, completer Completer) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger, completer: completer}
}

// NewFromConfig creates a Generator talking to the configured endpoint
func NewFromConfig(cfg *config.Config, logger *zap.Logger) *Generator {
	completer := NewOpenAICompleter(
		cfg.Generator.BaseURL,
		cfg.Generator.APIKey,
		cfg.Generator.Model,
		cfg.Generator.Temperature,
		cfg.GetGeneratorTimeout(),
	)
	return New(logger, completer)
}

// RelevantColumn asks which column best answers the question. The answer
// must name one of columns; a case-insensitive match is accepted.
func (g *Generator) RelevantColumn(ctx context.Context, question string, columns []string) (string, error) {
	if len(columns) == 0 {
		return "", ErrNoColumns
	}

	prompt := fmt.Sprintf(`Given the user's question: %q
And the list of available columns: %s

Which column is the most relevant to answer the question?
Return only the name of the column, and nothing else.`, question, quoteList(columns))

	answer, err := g.completer.Complete(ctx, columnSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to select relevant column: %w", err)
	}

	column := strings.Trim(strings.TrimSpace(answer), "\"'`")
	for _, name := range columns {
		if name == column {
			return name, nil
		}
	}
	for _, name := range columns {
		if strings.EqualFold(name, column) {
			return name, nil
		}
	}

	g.logger.Warn("Model answered with an unknown column",
		zap.String("answer", column),
		zap.Strings("columns", columns))
	return "", fmt.Errorf("%w: %q", ErrUnknownColumn, column)
}

// GenerateScript asks for a script answering the question against df
func (g *Generator) GenerateScript(ctx context.Context, question string, schema dataset.Schema, column string) (string, error) {
	answer, err := g.completer.Complete(ctx, scriptSystemPrompt, ScriptPrompt(question, schema, column))
	if err != nil {
		return "", fmt.Errorf("failed to generate script: %w", err)
	}

	script := StripCodeFence(answer)
	if script == "" {
		return "", ErrEmptyScript
	}

	g.logger.Debug("Generated script", zap.Int("script_bytes", len(script)))
	return script, nil
}

// ScriptPrompt describes the question, the dataset schema and the script API
func ScriptPrompt(question string, schema dataset.Schema, column string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a data analyst. Write a JavaScript script that answers a question about a dataset.\n")
	fmt.Fprintf(&b, "The dataset is bound to the global `%s`.\n\n", sandbox.DatasetName)
	fmt.Fprintf(&b, "User's question: %q\n\n", question)
	fmt.Fprintf(&b, "The most relevant column for this question is: %q\n\n", column)
	fmt.Fprintf(&b, "Dataset information:\n")
	fmt.Fprintf(&b, "- Rows: %d\n", schema.Rows)
	fmt.Fprintf(&b, "- Columns: %s\n", quoteList(schema.Names()))
	fmt.Fprintf(&b, "- Data types:\n")
	for _, col := range schema.Columns {
		fmt.Fprintf(&b, "  - %s: %s\n", col.Name, col.Type)
	}
	b.WriteString(`
Dataset API:
- df.shape, df.columns, df.dtypes
- df['name'] or df.col('name') returns a series
- df.row(i), df.rows(), df.head(n), df.tail(n)
- df.filter((row, i) => bool), df.sortBy('name', ascending)
- df.groupBy('name').size(), df.groupBy('name').agg('other', 'sum'|'mean'|'median'|'min'|'max'|'std'|'count'|'nunique')
- df.describe()
- series: name, dtype, length, values(), at(i), sum(), mean(), median(), min(), max(), std(),
  count(), nunique(), unique(), valueCounts(), head(n), map(fn), filter(fn)
- stats.sum/mean/median/min/max/std(array), stats.round(x, digits)
- print(...values) writes a line of output; console.log is an alias

Important:
- The data is already loaded. Do not load files, import modules or use require.
- Only these globals exist: `)
	b.WriteString(strings.Join(sandbox.CapabilityNames(), ", "))
	b.WriteString(`.
- Print the result in a user-friendly format.
- Return only the JavaScript code, without explanations or markdown formatting.
`)
	return b.String()
}

// StripCodeFence returns the body of the first fenced block in text, with
// any info string dropped. A block opened and closed on one line has no info
// string. Text without a fence is returned trimmed.
func StripCodeFence(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")

	open := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			open = i
			break
		}
	}
	if open < 0 {
		return strings.TrimSpace(text)
	}

	// ```print(1)``` keeps the whole block on the opening line
	opening := strings.TrimPrefix(strings.TrimSpace(lines[open]), "```")
	if body, _, closed := strings.Cut(opening, "```"); closed {
		return strings.TrimSpace(body)
	}

	end := len(lines)
	for i := open + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}

	return strings.TrimSpace(strings.Join(lines[open+1:end], "\n"))
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = "'" + name + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
