package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/dataquery/config"
	"github.com/isdmx/dataquery/dataset"
	"github.com/isdmx/dataquery/generator"
	"github.com/isdmx/dataquery/history"
	"github.com/isdmx/dataquery/sandbox"
)

// ErrNoDataset is returned when a question is asked without a dataset
var ErrNoDataset = errors.New("no dataset loaded")

// ScriptGenerator produces scripts for questions
type ScriptGenerator interface {
	RelevantColumn(ctx context.Context, question string, columns []string) (string, error)
	GenerateScript(ctx context.Context, question string, schema dataset.Schema, column string) (string, error)
}

// Report is the result of one analysis run
type Report struct {
	ID        string          `json:"id" yaml:"id"`
	Question  string          `json:"question,omitempty" yaml:"question,omitempty"`
	Column    string          `json:"column,omitempty" yaml:"column,omitempty"`
	Script    string          `json:"script" yaml:"script"`
	Outcome   sandbox.Outcome `json:"outcome" yaml:"outcome"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
}

// Message is the text shown to the user: the output or the failure message
func (r *Report) Message() string {
	return r.Outcome.Message()
}

func (r *Report) entry() history.Entry {
	return history.Entry{
		ID:        r.ID,
		Question:  r.Question,
		Column:    r.Column,
		Script:    r.Script,
		Outcome:   r.Outcome,
		CreatedAt: r.CreatedAt,
	}
}

// Service runs analysis requests
type Service struct {
	logger    *zap.Logger
	generator ScriptGenerator
	executor  sandbox.SandboxExecutor
	store     history.Store
	timeout   time.Duration
	newID     func() string
	now       func() time.Time
}

// ServiceOption defines a functional option for Service
type ServiceOption func(*Service)

// WithHistory records every run in store
func WithHistory(store history.Store) ServiceOption {
	return func(s *Service) {
		s.store = store
	}
}

// WithTimeout sets the per-run budget; zero keeps the executor default
func WithTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		s.timeout = timeout
	}
}

// WithIDGenerator sets the function that assigns report ids
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) {
		s.newID = newID
	}
}

// WithClock sets the time source for report timestamps
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new Service
func NewService(logger *zap.Logger, generator ScriptGenerator, executor sandbox.SandboxExecutor, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &Service{
		logger:    logger,
		generator: generator,
		executor:  executor,
		store:     history.NopStore{},
		newID:     uuid.NewString,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// NewFromConfig creates a Service with the configured budget and history store
func NewFromConfig(cfg *config.Config, logger *zap.Logger, gen *generator.Generator, executor sandbox.SandboxExecutor, store history.Store) *Service {
	return NewService(logger, gen, executor,
		WithTimeout(cfg.GetTimeout()),
		WithHistory(store))
}

// Ask generates a script for the question and runs it against frame
func (s *Service) Ask(ctx context.Context, question string, frame *dataset.Frame) (*Report, error) {
	if frame == nil {
		return nil, ErrNoDataset
	}
	if s.generator == nil {
		return nil, errors.New("no script generator configured")
	}

	schema := frame.Schema()
	column, err := s.generator.RelevantColumn(ctx, question, schema.Names())
	if err != nil {
		return nil, fmt.Errorf("failed to identify relevant column: %w", err)
	}
	s.logger.Info("Identified relevant column", zap.String("column", column))

	script, err := s.generator.GenerateScript(ctx, question, schema, column)
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis script: %w", err)
	}

	return s.execute(ctx, question, column, script, frame), nil
}

// Run executes a caller-supplied script against frame
func (s *Service) Run(ctx context.Context, script string, frame *dataset.Frame) *Report {
	return s.execute(ctx, "", "", script, frame)
}

// History returns the most recent recorded runs
func (s *Service) History(ctx context.Context, limit int) ([]history.Entry, error) {
	entries, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}

// Lookup returns one recorded run
func (s *Service) Lookup(ctx context.Context, id string) (*history.Entry, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) execute(ctx context.Context, question, column, script string, frame *dataset.Frame) *Report {
	report := &Report{
		ID:        s.newID(),
		Question:  question,
		Column:    column,
		Script:    script,
		CreatedAt: s.now(),
	}

	report.Outcome = s.executor.Execute(ctx, sandbox.ExecuteRequest{
		Script:  script,
		Dataset: frame,
		Timeout: s.timeout,
	})

	s.logger.Info("Analysis completed",
		zap.String("report_id", report.ID),
		zap.Stringer("kind", report.Outcome.Kind),
		zap.Duration("duration", report.Outcome.Duration))

	// Recorded even when the caller has cancelled
	if err := s.store.Record(context.WithoutCancel(ctx), report.entry()); err != nil {
		s.logger.Warn("Failed to record run", zap.String("report_id", report.ID), zap.Error(err))
	}

	return report
}
