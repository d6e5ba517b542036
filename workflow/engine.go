package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/types"
)

// DefaultMaxSteps 是单次运行的缺省步数预算，用于兜底防御畸形循环图。
const DefaultMaxSteps = 50

// Observer 接收引擎执行指标。由 internal/metrics 实现；nil 表示不采集。
type Observer interface {
	// RecordStep 在每个步骤完成后调用
	RecordStep(flow, step, status string, duration time.Duration)
	// RecordRun 在整次运行结束后调用
	RecordRun(flow, status string, steps int, duration time.Duration)
}

// Engine 驱动工作流图的执行：循环执行当前步骤并按边路由到下一步，
// 直到到达 End 或发生不可恢复错误。同一次运行内严格串行。
type Engine struct {
	logger   *zap.Logger
	tracer   trace.Tracer
	observer Observer
	maxSteps int
}

// EngineOption 配置引擎。
type EngineOption func(*Engine)

// WithMaxSteps 覆盖步数预算。
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithObserver 挂接指标采集器。
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// NewEngine 创建执行引擎。
func NewEngine(logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		logger:   logger.With(zap.String("component", "engine")),
		tracer:   otel.Tracer("queryflow/workflow"),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run 在给定状态上执行图，返回最终状态。
//
// 步骤返回的能力故障会记录到 State.Err，Run 本身返回 nil error——
// 调用方总能拿到一个结构完整的最终状态用于优雅降级展示。
// 只有定义错误（未知步骤、不可路由决策、步数预算耗尽）作为 error 返回。
func (e *Engine) Run(ctx context.Context, g *Graph, state *State) (*State, error) {
	if g == nil {
		return state, types.NewError(types.ErrInvalidGraph, "nil graph")
	}
	start := time.Now()
	logger := e.logger.With(
		zap.String("flow", g.Name()),
		zap.String("run_id", state.RunID),
	)
	logger.Info("starting workflow run", zap.String("entry", g.Entry()))

	current := g.Entry()
	steps := 0
	for current != End {
		// 上下文取消视为运行级故障，不再推进
		select {
		case <-ctx.Done():
			state.Fail(ctx.Err().Error())
			e.finish(g, state, steps, start, "canceled")
			return state, nil
		default:
		}

		if _, ok := g.node(current); !ok {
			// 对已校验的图不应出现，纯防御
			err := types.NewError(types.ErrUnknownStep, fmt.Sprintf("no executor for step %q", current))
			logger.Error("unknown step", zap.String("step", current))
			e.finish(g, state, steps, start, "defect")
			return state, err
		}

		stepStart := time.Now()
		stepCtx, span := e.tracer.Start(ctx, "workflow.step",
			trace.WithAttributes(
				attribute.String("workflow.name", g.Name()),
				attribute.String("workflow.step", current),
				attribute.String("workflow.run_id", state.RunID),
			))
		next, advanceErr := e.advance(stepCtx, g, current, state, logger)
		stepDur := time.Since(stepStart)

		status := "ok"
		switch {
		case advanceErr != nil:
			status = "defect"
			span.SetStatus(codes.Error, advanceErr.Error())
		case state.Failed():
			status = "failed"
			span.SetStatus(codes.Error, state.Err)
		}
		span.End()
		if e.observer != nil {
			e.observer.RecordStep(g.Name(), current, status, stepDur)
		}

		if advanceErr != nil {
			e.finish(g, state, steps, start, "defect")
			return state, advanceErr
		}
		if state.Failed() {
			logger.Warn("run stopped on recorded failure",
				zap.String("step", current),
				zap.String("error", state.Err),
			)
			e.finish(g, state, steps, start, "failed")
			return state, nil
		}

		steps++
		if steps > e.maxSteps {
			err := types.NewError(types.ErrStepBudgetExceeded,
				fmt.Sprintf("run exceeded step budget of %d, graph %s is likely cyclic", e.maxSteps, g.Name()))
			logger.Error("step budget exceeded", zap.Int("steps", steps))
			e.finish(g, state, steps, start, "defect")
			return state, err
		}
		current = next
	}

	e.finish(g, state, steps, start, "ok")
	logger.Info("workflow run completed",
		zap.Int("steps", steps),
		zap.String("last_step", state.CurrentStep),
		zap.Duration("duration", time.Since(start)),
	)
	return state, nil
}

// advance 执行单个步骤并求出下一步节点名。
func (e *Engine) advance(ctx context.Context, g *Graph, current string, state *State, logger *zap.Logger) (string, error) {
	fn, _ := g.node(current)

	logger.Debug("executing step", zap.String("step", current))
	updated, err := fn(ctx, state)
	if updated != nil {
		*state = *updated
	}
	state.CurrentStep = current
	if err != nil {
		// 能力故障：记录为软失败，由调用方取回完整状态
		logger.Warn("step reported capability fault",
			zap.String("step", current),
			zap.Error(err),
		)
		state.Fail(err.Error())
		return "", nil
	}
	if state.Failed() {
		return "", nil
	}

	ed, ok := g.edges[current]
	if !ok {
		return "", types.NewError(types.ErrUnknownStep, fmt.Sprintf("step %q has no outgoing edge", current))
	}
	if ed.decide == nil {
		return ed.fixed, nil
	}

	// 条件边在步骤之后对更新过的状态求值，路由因此能看到步骤的输出
	key := ed.decide(ctx, state)
	next, ok := ed.table[key]
	if !ok {
		// 决策键不在表中是工作流定义缺陷，必须区别于数据错误上抛
		return "", types.NewError(types.ErrUnroutableDecision,
			fmt.Sprintf("graph %s: step %q produced decision %q with no mapping", g.Name(), current, key))
	}
	logger.Debug("routing decision",
		zap.String("step", current),
		zap.String("decision", key),
		zap.String("next", next),
	)
	return next, nil
}

func (e *Engine) finish(g *Graph, state *State, steps int, start time.Time, status string) {
	if e.observer != nil {
		e.observer.RecordRun(g.Name(), status, steps, time.Since(start))
	}
}
