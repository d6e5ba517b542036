package flows

import (
	"context"

	"github.com/BaSui01/queryflow/types"
	"github.com/BaSui01/queryflow/workflow"
)

// 问答流写入 State.Values 的键
const (
	qaAnalysisKey = "question_analysis"
	qaResponseKey = "generated_response"
)

// NewGeneralQA 构建无分支的三步问答图: analyze → respond → finalize
func NewGeneralQA(deps Deps) *workflow.Graph {
	d := deps.normalized()
	f := &generalQAFlow{deps: d}

	return workflow.NewGraph(GeneralQAName).
		AddNode("analyze", f.analyze).
		AddNode("respond", f.respond).
		AddNode("finalize", f.finalize).
		SetEntry("analyze").
		AddEdge("analyze", "respond").
		AddEdge("respond", "finalize").
		AddEdge("finalize", workflow.End)
}

type generalQAFlow struct {
	deps Deps
}

// analyze 分析问题类型与主题，结果仅作为后续回答的上下文
func (f *generalQAFlow) analyze(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	question := state.LastUserMessage()

	analysis, err := f.deps.complete(ctx, 0.7,
		types.NewSystemMessage(generalQASystemPrompt),
		types.NewUserMessage(analyzeQuestionPrompt(question)))
	if err != nil {
		return state, err
	}

	state.SetValue(qaAnalysisKey, analysis)
	state.AppendTrace("analyzed question intent")
	return state, nil
}

// respond 基于分析结果生成回答
func (f *generalQAFlow) respond(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	question := state.LastUserMessage()
	analysis, _ := state.Value(qaAnalysisKey)
	analysisText, _ := analysis.(string)

	response, err := f.deps.complete(ctx, 0.7,
		types.NewSystemMessage(generalQASystemPrompt),
		types.NewUserMessage(respondPrompt(question, analysisText)))
	if err != nil {
		return state, err
	}

	state.SetValue(qaResponseKey, response)
	state.AppendTrace("generated answer")
	return state, nil
}

// finalize 把回答追加到对话
func (f *generalQAFlow) finalize(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	response, _ := state.Value(qaResponseKey)
	text, _ := response.(string)
	if text == "" {
		text = "I could not produce an answer for this question."
	}
	state.AddAssistantMessage(text)
	return state, nil
}
