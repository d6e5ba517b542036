// =============================================================================
// Package queryflow — One-Line Pipeline Construction
// =============================================================================
// Provides a convenience entry point for assembling the full question-answering
// pipeline (registry, engine, orchestrator) with minimal boilerplate. Intended
// for embedding QueryFlow as a library; the queryflow binary wires the same
// components by hand in cmd/queryflow.
//
// Usage:
//
//	import "github.com/BaSui01/queryflow"
//
//	qf, err := queryflow.New(
//		queryflow.WithProvider(myProvider),
//		queryflow.WithDatabase(executor, schema),
//	)
//	result, err := qf.Process(ctx, "", "How many users signed up last week?")
//
// =============================================================================
package queryflow

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/conversation"
	"github.com/BaSui01/queryflow/database"
	"github.com/BaSui01/queryflow/flows"
	"github.com/BaSui01/queryflow/llm"
	"github.com/BaSui01/queryflow/orchestrator"
	"github.com/BaSui01/queryflow/workflow"
)

// Option configures the pipeline created by New.
type Option func(*options)

type options struct {
	provider llm.Provider
	executor database.Executor
	schema   database.SchemaProvider
	approver flows.Approver
	store    conversation.Store
	logger   *zap.Logger

	maxSteps                int
	sqlRetryLimit           int
	tableApprovalRetryLimit int
}

// WithProvider sets the LLM completion provider. Required.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithDatabase sets the SQL executor and schema provider. Without a database
// only the general-QA flow works end to end.
func WithDatabase(executor database.Executor, schema database.SchemaProvider) Option {
	return func(o *options) {
		o.executor = executor
		o.schema = schema
	}
}

// WithApprover sets the table approval gate. Defaults to auto-approve.
func WithApprover(a flows.Approver) Option {
	return func(o *options) { o.approver = a }
}

// WithStore sets the conversation store. Defaults to an in-memory store
// keeping 50 messages per session.
func WithStore(s conversation.Store) Option {
	return func(o *options) { o.store = s }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMaxSteps sets the per-run step budget of the engine.
func WithMaxSteps(n int) Option {
	return func(o *options) { o.maxSteps = n }
}

// WithRetryLimits sets the SQL regeneration and table re-identification bounds.
func WithRetryLimits(sqlRetries, approvalRetries int) Option {
	return func(o *options) {
		o.sqlRetryLimit = sqlRetries
		o.tableApprovalRetryLimit = approvalRetries
	}
}

// New assembles a ready-to-use Orchestrator with both built-in flows
// registered.
func New(opts ...Option) (*orchestrator.Orchestrator, error) {
	o := &options{
		maxSteps:                workflow.DefaultMaxSteps,
		sqlRetryLimit:           3,
		tableApprovalRetryLimit: 2,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.provider == nil {
		return nil, fmt.Errorf("provider is required: use WithProvider")
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.store == nil {
		o.store = conversation.NewMemoryStore(50)
	}

	registry := workflow.NewRegistry()
	if err := flows.RegisterAll(registry, flows.Deps{
		LLM:                     o.provider,
		DB:                      o.executor,
		Schema:                  o.schema,
		Approver:                o.approver,
		Logger:                  o.logger,
		SQLRetryLimit:           o.sqlRetryLimit,
		TableApprovalRetryLimit: o.tableApprovalRetryLimit,
	}); err != nil {
		return nil, fmt.Errorf("register flows: %w", err)
	}

	engine := workflow.NewEngine(o.logger, workflow.WithMaxSteps(o.maxSteps))

	return orchestrator.New(registry, engine, o.provider, o.store, o.logger), nil
}
