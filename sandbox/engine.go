package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/dataquery/dataset"
	"github.com/isdmx/dataquery/logger"
)

// scriptName labels positions in syntax and stack traces
const scriptName = "script.js"

// GojaExecutor implements SandboxExecutor with an in-process goja runtime.
// Every call gets a fresh runtime and capability context, so calls share no
// state and may run concurrently.
type GojaExecutor struct {
	logger *zap.Logger
	config Config
	newID  func() string
}

// GojaExecutorOption defines a functional option for GojaExecutor
type GojaExecutorOption func(*GojaExecutor)

// WithIDGenerator sets the function that names executions in logs
func WithIDGenerator(newID func() string) GojaExecutorOption {
	return func(g *GojaExecutor) {
		g.newID = newID
	}
}

// NewGojaExecutor creates a new GojaExecutor. Zero limits in config fall
// back to DefaultConfig.
func NewGojaExecutor(logger *zap.Logger, config Config, opts ...GojaExecutorOption) *GojaExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	executor := &GojaExecutor{
		logger: logger,
		config: config.withDefaults(),
		newID:  uuid.NewString,
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Run executes a script once with default limits and the given budget
func Run(ctx context.Context, logger *zap.Logger, script string, frame *dataset.Frame, budget time.Duration) Outcome {
	return NewGojaExecutor(logger, DefaultConfig()).Execute(ctx, ExecuteRequest{
		Script:  script,
		Dataset: frame,
		Timeout: budget,
	})
}

// Execute runs the script against the request's dataset. It always returns
// within the budget plus the grace period.
func (g *GojaExecutor) Execute(ctx context.Context, req ExecuteRequest) Outcome {
	start := time.Now()
	log := logger.ForExecution(g.logger, g.newID())

	budget := req.Timeout
	if budget <= 0 {
		budget = g.config.Timeout
	}
	log.Debug("Executing script",
		zap.Duration("budget", budget),
		zap.Int("script_bytes", len(req.Script)))

	outcome := g.execute(ctx, log, req, budget)
	outcome.Duration = time.Since(start)
	report(log, outcome)

	return outcome
}

func (g *GojaExecutor) execute(ctx context.Context, log *zap.Logger, req ExecuteRequest, budget time.Duration) Outcome {
	if req.Dataset == nil {
		return EngineError("no dataset bound to the execution")
	}
	if err := ctx.Err(); err != nil {
		return Timeout(timeoutDetail(err))
	}

	program, err := goja.Compile(scriptName, req.Script, false)
	if err != nil {
		return compileFailure(err)
	}

	ec, err := g.prepare(req.Dataset)
	if err != nil {
		log.Error("Failed to build execution context", zap.Error(err))
		return EngineError(err.Error())
	}

	done := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Recovered panic during execution", zap.Any("panic", r), zap.Stack("stack"))
				done <- EngineError(fmt.Sprintf("internal failure: %v", r))
			}
		}()
		_, runErr := ec.vm.RunProgram(program)
		done <- classify(runErr, ec.out)
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	var cause error
	select {
	case outcome := <-done:
		return outcome
	case <-timer.C:
		cause = budgetExceeded{budget: budget}
	case <-ctx.Done():
		cause = ctx.Err()
	}

	// Partial output is dropped whether or not the runtime stops in time
	ec.vm.Interrupt(cause)
	grace := time.NewTimer(g.config.Grace)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		log.Warn("Script ignored interrupt; abandoning runtime", zap.Duration("grace", g.config.Grace))
	}

	return Timeout(timeoutDetail(cause))
}

// prepare builds the capability context, containing binding panics
func (g *GojaExecutor) prepare(frame *dataset.Frame) (ec *execContext, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to bind capabilities: %v", r)
		}
	}()
	return newExecContext(frame, g.config)
}

func report(log *zap.Logger, outcome Outcome) {
	fields := []zap.Field{
		zap.Stringer("kind", outcome.Kind),
		zap.Duration("duration", outcome.Duration),
	}

	switch outcome.Kind {
	case KindSuccess:
		log.Info("Script executed", append(fields, zap.Int("output_bytes", len(outcome.Output)))...)
	case KindTimeout:
		log.Warn("Script timed out", append(fields, zap.String("detail", outcome.Detail))...)
	case KindEngineError:
		log.Error("Sandbox failure", append(fields,
			zap.String("detail", outcome.Detail),
			zap.Bool("sandbox_fault", true))...)
	default:
		log.Info("Script failed", append(fields,
			zap.String("error_kind", outcome.ErrorKind),
			zap.String("detail", outcome.Detail),
			zap.String("column", outcome.Column))...)
	}
}
