package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/conversation"
	"github.com/BaSui01/queryflow/orchestrator"
	"github.com/BaSui01/queryflow/types"
	"github.com/BaSui01/queryflow/workflow"
)

// fakeProcessor 可编程的编排端口替身
type fakeProcessor struct {
	lastFlow string
	result   *orchestrator.Result
	err      error
}

func (p *fakeProcessor) Process(ctx context.Context, sessionID, message string) (*orchestrator.Result, error) {
	p.lastFlow = ""
	return p.result, p.err
}

func (p *fakeProcessor) ProcessFlow(ctx context.Context, sessionID, flowName, message string) (*orchestrator.Result, error) {
	p.lastFlow = flowName
	return p.result, p.err
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleChat(t *testing.T) {
	proc := &fakeProcessor{result: &orchestrator.Result{
		SessionID: "s1",
		RunID:     "r1",
		FlowName:  "general_qa",
		Response:  "Paris",
	}}
	h := NewChatHandler(proc, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"session_id":"s1","message":"capital of France?"}`))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
	assert.Contains(t, rec.Body.String(), `"flow_name":"general_qa"`)
	assert.Contains(t, rec.Body.String(), "Paris")
}

func TestHandleChatExplicitFlow(t *testing.T) {
	proc := &fakeProcessor{result: &orchestrator.Result{SessionID: "s1", FlowName: "text_to_sql"}}
	h := NewChatHandler(proc, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"message":"show users","flow":"text_to_sql"}`))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text_to_sql", proc.lastFlow)
}

func TestHandleChatEmptyMessage(t *testing.T) {
	h := NewChatHandler(&fakeProcessor{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"message":"   "}`))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, string(types.ErrInvalidRequest), resp.Error.Code)
}

func TestHandleChatMalformedBody(t *testing.T) {
	h := NewChatHandler(&fakeProcessor{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"unknown_field":1}`))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatUnknownFlow(t *testing.T) {
	proc := &fakeProcessor{err: types.NewError(types.ErrUnknownWorkflow, "no such workflow")}
	h := NewChatHandler(proc, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"message":"hi","flow":"missing"}`))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleChatProviderUnavailable(t *testing.T) {
	proc := &fakeProcessor{err: types.NewError(types.ErrCompletionUnavailable, "down").WithRetryable(true)}
	h := NewChatHandler(proc, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Error.Retryable)
}

func TestConversationHandlers(t *testing.T) {
	store := conversation.NewMemoryStore(10)
	require.NoError(t, store.Append(context.Background(), "s1",
		types.NewUserMessage("hello"), types.NewAssistantMessage("hi")))
	h := NewConversationHandler(store, zap.NewNop())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/conversations/{session}", h.HandleHistory)
	mux.HandleFunc("DELETE /api/v1/conversations/{session}", h.HandleClear)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/conversations/s1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/conversations/s1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	history, err := store.History(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHealthHandlers(t *testing.T) {
	h := NewHealthHandler("1.0.0", zap.NewNop())
	h.RegisterCheck(CheckFunc{CheckName: "always_ok", Fn: func(ctx context.Context) error { return nil }})

	rec := httptest.NewRecorder()
	h.HandleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "always_ok")

	h.RegisterCheck(CheckFunc{CheckName: "always_fail", Fn: func(ctx context.Context) error {
		return types.NewError(types.ErrStoreUnavailable, "redis down")
	}})
	rec = httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestFlowsHandlerList(t *testing.T) {
	reg := workflow.NewRegistry()
	g := workflow.NewGraph("demo").
		AddNode("only", func(ctx context.Context, s *workflow.State) (*workflow.State, error) { return s, nil }).
		SetEntry("only").
		AddEdge("only", workflow.End)
	require.NoError(t, reg.Register("demo", "a demo workflow", g))

	h := NewFlowsHandler(reg, zap.NewNop())
	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/api/v1/flows", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"demo"`)
	assert.Contains(t, rec.Body.String(), "a demo workflow")
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[types.ErrorCode]int{
		types.ErrInvalidRequest:        http.StatusBadRequest,
		types.ErrUnknownWorkflow:       http.StatusNotFound,
		types.ErrDuplicateWorkflow:     http.StatusConflict,
		types.ErrRateLimited:           http.StatusTooManyRequests,
		types.ErrCompletionUnavailable: http.StatusServiceUnavailable,
		types.ErrStepBudgetExceeded:    http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, httpStatusFor(code), "code %s", code)
	}
}
