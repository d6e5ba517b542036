package workflow

import (
	"testing"

	"github.com/BaSui01/queryflow/types"
)

func TestStateMessages(t *testing.T) {
	s := NewState("s1", []types.Message{types.NewUserMessage("show all users")})
	before := len(s.Messages)

	s.AddAssistantMessage("here you go")
	if len(s.Messages) != before+1 {
		t.Fatalf("expected %d messages, got %d", before+1, len(s.Messages))
	}
	if s.LastUserMessage() != "show all users" {
		t.Errorf("unexpected last user message: %q", s.LastUserMessage())
	}
	if s.LastAssistantMessage() != "here you go" {
		t.Errorf("unexpected last assistant message: %q", s.LastAssistantMessage())
	}
}

func TestStateValues(t *testing.T) {
	s := NewState("s1", nil)

	if _, ok := s.Value("absent"); ok {
		t.Error("absent keys must read as missing, never error")
	}
	s.SetValue("k", 42)
	v, ok := s.Value("k")
	if !ok || v.(int) != 42 {
		t.Errorf("unexpected value: %v", v)
	}
}

func TestStateClear(t *testing.T) {
	s := NewState("s1", []types.Message{types.NewUserMessage("hi")})
	s.SetValue("k", "v")
	s.AppendTrace("step")
	s.EnsureSQL().CandidateSQL = "SELECT 1"
	s.Fail("boom")

	s.Clear()
	if _, ok := s.Value("k"); ok {
		t.Error("clear must reset scratch values")
	}
	if len(s.Trace) != 0 || s.SQL != nil || s.Failed() || s.CurrentStep != "" {
		t.Error("clear must reset trace, sql context, error and current step")
	}
	// 消息历史不受 Clear 影响
	if len(s.Messages) != 1 {
		t.Error("clear must not touch message history")
	}
}

func TestEnsureSQL(t *testing.T) {
	s := NewState("s1", nil)
	sql := s.EnsureSQL()
	sql.Retry.Attempts = 2
	if s.EnsureSQL().Retry.Attempts != 2 {
		t.Error("EnsureSQL must return the same context")
	}
}
