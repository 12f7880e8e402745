// Package driver wires the IR adapter, call-graph collector, primitive
// recognizer, and fact engine into one analysis run, and maps its outcome
// onto a process exit code.
//
// The run is structured as a short pipeline of stages that each mutate a
// shared Context and continue even after a non-fatal stage failure, so that
// whatever diagnostics did get produced are still reported - the same
// "keep going and collect everything" idiom as the teacher's
// internal/pipeline.Pipeline.
package driver

import (
	"github.com/google/uuid"

	"github.com/Radbuglet/autoken-go/internal/collector"
	"github.com/Radbuglet/autoken-go/internal/config"
	"github.com/Radbuglet/autoken-go/internal/diagnostic"
	"github.com/Radbuglet/autoken-go/internal/facts"
	"github.com/Radbuglet/autoken-go/internal/ir"
	"github.com/Radbuglet/autoken-go/internal/primitives"
)

// Context threads state through the run's stages. Err records the first
// fatal error encountered; a program with no entry function gets an empty
// Report up front. Later stages no-op once Err or Report is set.
type Context struct {
	RunID  string
	Config *config.File
	Adapter ir.Adapter

	Entry ir.Instance
	Prims *primitives.Table
	Graph *collector.Result
	Table *facts.Table
	Emitter *diagnostic.Emitter
	Report *diagnostic.Report

	Err error
}

// Stage is one step of the run.
type Stage interface {
	Run(ctx *Context)
}

// Pipeline runs a fixed sequence of stages against one Context.
type Pipeline struct {
	stages []Stage
}

func NewPipeline(stages ...Stage) *Pipeline { return &Pipeline{stages: stages} }

func (p *Pipeline) Run(ctx *Context) *Context {
	for _, s := range p.stages {
		s.Run(ctx)
	}
	return ctx
}

type resolveEntryStage struct{}

func (resolveEntryStage) Run(ctx *Context) {
	entry, ok := ctx.Adapter.EntryFunction()
	if !ok {
		// Nothing to analyze: finish with an empty report, not an error.
		ctx.Report = &diagnostic.Report{}
		return
	}
	ctx.Entry = entry
	ctx.Prims = primitives.NewTable(ctx.Config)
}

type collectStage struct{}

func (collectStage) Run(ctx *Context) {
	if ctx.Err != nil || ctx.Report != nil {
		return
	}
	ctx.Graph = collector.Collect(ctx.Adapter, ctx.Prims, ctx.Entry)
}

type analyzeStage struct{}

func (analyzeStage) Run(ctx *Context) {
	if ctx.Err != nil || ctx.Report != nil {
		return
	}
	if ctx.Table == nil {
		ctx.Table = facts.NewTable()
	}
	ctx.Emitter = diagnostic.NewEmitter(ctx.Config.WarnOnly)
	engine := facts.NewEngine(ctx.Adapter, ctx.Graph, ctx.Prims, ctx.Table, ctx.Emitter)
	engine.Analyze(ctx.Entry)
	if err := engine.Err(); err != nil {
		ctx.Err = err
		return
	}
	ctx.Report = ctx.Emitter.Report()
}

// DefaultPipeline is the stage sequence every Run call uses: resolve the
// entry point, build the call graph, then run the fact engine over it.
func DefaultPipeline() *Pipeline {
	return NewPipeline(resolveEntryStage{}, collectStage{}, analyzeStage{})
}

// Run performs one complete analysis of adapter's program under cfg,
// returning a run ID (for correlating with an external fact cache or wire
// export) and the resulting diagnostic report. Run never returns a FatalError
// through Report - a fatal condition is returned as an error instead, since
// at that point no meaningful partial report exists.
func Run(adapter ir.Adapter, cfg *config.File) (runID string, report *diagnostic.Report, err error) {
	if cfg == nil {
		cfg = &config.File{}
	}
	runID = uuid.NewString()
	ctx := &Context{RunID: runID, Config: cfg, Adapter: adapter}
	DefaultPipeline().Run(ctx)
	if ctx.Err != nil {
		return runID, nil, ctx.Err
	}
	return runID, ctx.Report, nil
}

// RunSession behaves like Run but returns the full Context rather than just
// its outcome, for callers (cmd/autoken's cache wiring) that need the
// committed fact table afterwards to persist it. If table is non-nil it
// pre-seeds the engine, so subjects the cache already knows about are
// skipped rather than reanalyzed.
func RunSession(adapter ir.Adapter, cfg *config.File, table *facts.Table) *Context {
	if cfg == nil {
		cfg = &config.File{}
	}
	ctx := &Context{RunID: uuid.NewString(), Config: cfg, Adapter: adapter, Table: table}
	DefaultPipeline().Run(ctx)
	return ctx
}

// ExitCode maps a Run outcome onto the process exit codes in package
// config.
func ExitCode(report *diagnostic.Report, err error) int {
	if err != nil {
		return config.ExitFatal
	}
	if report.HasErrors() {
		return config.ExitDiagnostics
	}
	return config.ExitClean
}
