package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/conversation"
	"github.com/BaSui01/queryflow/flows"
	"github.com/BaSui01/queryflow/llm"
	"github.com/BaSui01/queryflow/types"
	"github.com/BaSui01/queryflow/workflow"
)

// fakeProvider 固定应答的补全端口替身；selection 控制流程选择的回答
type fakeProvider struct {
	selection string
	err       error
}

func (p *fakeProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	prompt := req.Messages[len(req.Messages)-1].Content
	if strings.Contains(prompt, "workflow orchestrator") {
		return &llm.CompletionResponse{Content: p.selection}, nil
	}
	if strings.Contains(prompt, "Classify the following user request") {
		return &llm.CompletionResponse{Content: "general"}, nil
	}
	return &llm.CompletionResponse{Content: "Paris is the capital of France."}, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

func fixture(t *testing.T, provider llm.Provider) (*Orchestrator, conversation.Store) {
	t.Helper()
	reg := workflow.NewRegistry()
	require.NoError(t, flows.RegisterAll(reg, flows.Deps{LLM: provider, Logger: zap.NewNop()}))

	store := conversation.NewMemoryStore(50)
	engine := workflow.NewEngine(zap.NewNop())
	return New(reg, engine, provider, store, zap.NewNop()), store
}

func TestSelectFlowExactMatch(t *testing.T) {
	o, _ := fixture(t, &fakeProvider{selection: "text_to_sql"})
	name := o.SelectFlow(context.Background(), "show all users", nil)
	assert.Equal(t, flows.TextToSQLName, name)
}

func TestSelectFlowNormalizesAnswer(t *testing.T) {
	o, _ := fixture(t, &fakeProvider{selection: "  Text_To_SQL \n"})
	name := o.SelectFlow(context.Background(), "show all users", nil)
	assert.Equal(t, flows.TextToSQLName, name)
}

func TestSelectFlowSubstringContainment(t *testing.T) {
	o, _ := fixture(t, &fakeProvider{selection: "I would use the text_to_sql workflow for this."})
	name := o.SelectFlow(context.Background(), "show all users", nil)
	assert.Equal(t, flows.TextToSQLName, name)
}

func TestSelectFlowUnknownFallsBack(t *testing.T) {
	o, _ := fixture(t, &fakeProvider{selection: "spreadsheet_wizard"})
	name := o.SelectFlow(context.Background(), "anything", nil)
	assert.Equal(t, flows.GeneralQAName, name)
}

func TestSelectFlowProviderFailureFallsBack(t *testing.T) {
	o, _ := fixture(t, &fakeProvider{err: types.NewError(types.ErrCompletionUnavailable, "down")})
	name := o.SelectFlow(context.Background(), "anything", nil)
	assert.Equal(t, flows.GeneralQAName, name)
}

func TestProcessRunsSelectedFlowAndPersists(t *testing.T) {
	o, store := fixture(t, &fakeProvider{selection: "general_qa"})

	result, err := o.Process(context.Background(), "s1", "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, "s1", result.SessionID)
	assert.Equal(t, flows.GeneralQAName, result.FlowName)
	assert.Contains(t, result.Response, "Paris")
	assert.Empty(t, result.Error)
	assert.NotEmpty(t, result.RunID)
	assert.NotEmpty(t, result.Trace)

	history, err := store.History(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, types.RoleUser, history[0].Role)
	assert.Equal(t, types.RoleAssistant, history[1].Role)
}

func TestProcessGeneratesSessionID(t *testing.T) {
	o, _ := fixture(t, &fakeProvider{selection: "general_qa"})

	result, err := o.Process(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
}

func TestRunUnknownFlowIsError(t *testing.T) {
	o, _ := fixture(t, &fakeProvider{selection: "general_qa"})

	_, err := o.Run(context.Background(), "s1", "missing_flow", "hello", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrUnknownWorkflow, types.GetErrorCode(err))
}

func TestProcessFailedRunReturnsGracefulResult(t *testing.T) {
	// 流程选择成功，之后的补全全部失败
	provider := &fakeProvider{selection: "general_qa"}
	o, _ := fixture(t, provider)
	provider.err = types.NewError(types.ErrCompletionUnavailable, "provider down")

	result, err := o.Run(context.Background(), "s1", flows.GeneralQAName, "hello", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Error)
	assert.Contains(t, result.Response, "Sorry")
}
