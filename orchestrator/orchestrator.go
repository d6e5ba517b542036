package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/conversation"
	"github.com/BaSui01/queryflow/flows"
	"github.com/BaSui01/queryflow/llm"
	"github.com/BaSui01/queryflow/types"
	"github.com/BaSui01/queryflow/workflow"
)

// Result 一次请求处理的结果
type Result struct {
	// SessionID 本次请求归属的会话（调用方未提供时自动生成）
	SessionID string `json:"session_id"`
	// RunID 本次运行的唯一标识
	RunID string `json:"run_id"`
	// FlowName 实际执行的工作流
	FlowName string `json:"flow_name"`
	// Response 最终的助手回复
	Response string `json:"response"`
	// Trace 各步骤的推理轨迹
	Trace []string `json:"trace,omitempty"`
	// Error 运行以故障结束时的描述；Response 仍然是格式良好的失败提示
	Error string `json:"error,omitempty"`
}

// Orchestrator 把流程选择、会话管理与引擎执行串起来
type Orchestrator struct {
	registry   *workflow.Registry
	engine     *workflow.Engine
	provider   llm.Provider
	store      conversation.Store
	window     *conversation.ContextWindow
	logger     *zap.Logger
	runTimeout time.Duration
}

// Option 编排器选项
type Option func(*Orchestrator)

// WithRunTimeout 设置单次运行的超时；0 表示不限制
func WithRunTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.runTimeout = d }
}

// WithContextWindow 设置历史裁剪窗口
func WithContextWindow(w *conversation.ContextWindow) Option {
	return func(o *Orchestrator) { o.window = w }
}

// New 创建编排器
func New(registry *workflow.Registry, engine *workflow.Engine, provider llm.Provider,
	store conversation.Store, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		registry: registry,
		engine:   engine,
		provider: provider,
		store:    store,
		logger:   logger.With(zap.String("component", "orchestrator")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SelectFlow 用一次补全调用选出最匹配的工作流。
// 回答经小写、去空白与子串包含归一化；落不到已注册名称时
// 回退 general_qa。
func (o *Orchestrator) SelectFlow(ctx context.Context, request string, history []types.Message) string {
	infos := o.registry.List()

	var flowsContext strings.Builder
	for _, info := range infos {
		fmt.Fprintf(&flowsContext, "**%s**: %s\n", info.Name, info.Description)
	}

	var historyText strings.Builder
	for _, m := range history {
		fmt.Fprintf(&historyText, "%s: %s\n", m.Role, m.Content)
	}

	raw, err := o.provider.Complete(ctx, &llm.CompletionRequest{
		Messages: []types.Message{
			types.NewUserMessage(flows.SelectFlowPrompt(flowsContext.String(), historyText.String(), request)),
		},
		Temperature: 0.3,
	})
	if err != nil {
		o.logger.Warn("flow selection failed, falling back to general_qa", zap.Error(err))
		return flows.GeneralQAName
	}

	answer := strings.ToLower(strings.TrimSpace(raw.Content))
	if o.registry.Has(answer) {
		return answer
	}
	// 精确匹配失败后退化为子串包含
	for _, info := range infos {
		if strings.Contains(answer, strings.ToLower(info.Name)) {
			return info.Name
		}
	}
	return flows.GeneralQAName
}

// Process 处理一条用户消息：选流程、跑图、落会话。
// 运行以故障结束时 Result.Error 记录原因，不作为 error 返回；
// 只有定义错误与存储错误才作为 error 逃逸。
func (o *Orchestrator) Process(ctx context.Context, sessionID, message string) (*Result, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history, err := o.store.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if o.window != nil {
		history = o.window.Fit(history)
	}

	flowName := o.SelectFlow(ctx, message, history)
	return o.Run(ctx, sessionID, flowName, message, history)
}

// ProcessFlow 在调用方指定的工作流上处理一条用户消息，跳过自动选择
func (o *Orchestrator) ProcessFlow(ctx context.Context, sessionID, flowName, message string) (*Result, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history, err := o.store.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if o.window != nil {
		history = o.window.Fit(history)
	}
	return o.Run(ctx, sessionID, flowName, message, history)
}

// Run 在指定工作流上处理一条用户消息，跳过流程选择
func (o *Orchestrator) Run(ctx context.Context, sessionID, flowName, message string, history []types.Message) (*Result, error) {
	graph, err := o.registry.Get(flowName)
	if err != nil {
		return nil, err
	}

	userMessage := types.NewUserMessage(message)
	state := workflow.NewState(sessionID, append(history, userMessage))
	state.FlowName = flowName

	runCtx := ctx
	if o.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.runTimeout)
		defer cancel()
	}

	start := time.Now()
	final, err := o.engine.Run(runCtx, graph, state)
	if err != nil {
		return nil, err
	}

	o.logger.Info("run finished",
		zap.String("session_id", sessionID),
		zap.String("flow", flowName),
		zap.String("run_id", final.RunID),
		zap.Bool("failed", final.Failed()),
		zap.Duration("duration", time.Since(start)))

	result := &Result{
		SessionID: sessionID,
		RunID:     final.RunID,
		FlowName:  flowName,
		Trace:     final.Trace,
		Error:     final.Err,
	}

	if response := final.LastAssistantMessage(); response != "" && !final.Failed() {
		result.Response = response
	} else if final.Failed() {
		result.Response = "Sorry, I ran into a problem processing this request. Please try again."
	} else {
		result.Response = "I could not produce a response for this request."
	}

	// 持久化本轮消息；存储故障只降级告警，不吞掉已经算出的结果
	toPersist := []types.Message{userMessage, types.NewAssistantMessage(result.Response)}
	if err := o.store.Append(ctx, sessionID, toPersist...); err != nil {
		o.logger.Warn("failed to persist conversation turn",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	return result, nil
}
