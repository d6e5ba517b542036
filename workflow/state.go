package workflow

import (
	"github.com/google/uuid"

	"github.com/BaSui01/queryflow/types"
)

// RetryContext 记录 SQL 子图的有界重试状态。
// Attempts 在一次运行内单调不减，是重试上限判定的唯一输入。
type RetryContext struct {
	// Attempts 是已触发的重新生成次数，从 0 开始
	Attempts int `json:"attempts"`
	// LastError 是最近一次失败的描述（校验失败或查询执行错误）
	LastError string `json:"last_error,omitempty"`
	// LastSQL 是被重试步骤最近一次产出的候选，供纠错提示词引用
	LastSQL string `json:"last_sql,omitempty"`
	// EmptyResult 标记最近一次查询成功但没有返回任何行
	EmptyResult bool `json:"empty_result,omitempty"`
}

// SQLContext 是执行状态中文本转 SQL 子图专用的类型化区域。
// 字段缺省即为"尚未产生"，步骤只读写自己拥有的字段。
type SQLContext struct {
	// Classification 是 classify 步骤归一化后的分类标签（general / sql）
	Classification string `json:"classification,omitempty"`
	// RewrittenRequest 是 rewrite 步骤扩写后的生成指令
	RewrittenRequest string `json:"rewritten_request,omitempty"`
	// Tables 是 identify_tables 识别出的相关表
	Tables []types.TableRef `json:"tables,omitempty"`
	// Schema 是批准表经列裁剪后的模式文本，供生成步骤使用
	Schema string `json:"schema,omitempty"`
	// CandidateSQL 是当前候选 SQL（已去除 markdown 围栏）
	CandidateSQL string `json:"candidate_sql,omitempty"`
	// Valid 是 validate_sql 步骤最近一次的判定结果
	Valid bool `json:"valid"`
	// Result 是查询执行成功时记录的行集
	Result *types.ResultSet `json:"result,omitempty"`
	// ApprovalRejections 统计 approve_tables 被拒次数（该回环同样有界）
	ApprovalRejections int `json:"approval_rejections,omitempty"`
	// Retry 是 generate/validate/execute 回环的重试上下文
	Retry RetryContext `json:"retry"`
}

// State 是贯穿一次工作流运行的可变执行状态。
// 由调用方在运行前构造，运行期间仅被步骤执行器修改。
type State struct {
	// RunID 唯一标识一次运行
	RunID string `json:"run_id"`
	// SessionID 标识会话，用于对话存储
	SessionID string `json:"session_id"`
	// FlowName 是本次运行选中的工作流名称
	FlowName string `json:"flow_name,omitempty"`
	// Messages 是按对话顺序排列的消息序列，运行内只增不减
	Messages []types.Message `json:"messages"`
	// Values 是步骤自由读写的草稿区；键不存在视为缺省值，绝不报错
	Values map[string]any `json:"values,omitempty"`
	// Trace 是各步骤追加的人类可读推理轨迹，仅用于可观测性
	Trace []string `json:"trace,omitempty"`
	// CurrentStep 是最近执行的节点名，由引擎在每步之后设置
	CurrentStep string `json:"current_step,omitempty"`
	// Err 非空表示运行已终止于不可恢复故障；一旦置位引擎停止推进
	Err string `json:"error,omitempty"`
	// SQL 是文本转 SQL 子图的类型化上下文，懒初始化
	SQL *SQLContext `json:"sql,omitempty"`
}

// NewState 创建一个新的执行状态。
func NewState(sessionID string, messages []types.Message) *State {
	return &State{
		RunID:     uuid.NewString(),
		SessionID: sessionID,
		Messages:  messages,
		Values:    make(map[string]any),
	}
}

// AddUserMessage 追加一条用户消息。
func (s *State) AddUserMessage(content string) {
	s.Messages = append(s.Messages, types.NewUserMessage(content))
}

// AddAssistantMessage 追加一条助手消息。
func (s *State) AddAssistantMessage(content string) {
	s.Messages = append(s.Messages, types.NewAssistantMessage(content))
}

// LastUserMessage 返回最近一条用户消息的内容，不存在时返回空串。
func (s *State) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == types.RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// LastAssistantMessage 返回最近一条助手消息的内容，不存在时返回空串。
func (s *State) LastAssistantMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == types.RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// AppendTrace 追加一条推理轨迹。轨迹只影响可观测性，不参与路由。
func (s *State) AppendTrace(entry string) {
	s.Trace = append(s.Trace, entry)
}

// Value 读取草稿区的键；键缺失返回 (nil, false)，调用方按缺省值处理。
func (s *State) Value(key string) (any, bool) {
	if s.Values == nil {
		return nil, false
	}
	v, ok := s.Values[key]
	return v, ok
}

// SetValue 写入草稿区。
func (s *State) SetValue(key string, value any) {
	if s.Values == nil {
		s.Values = make(map[string]any)
	}
	s.Values[key] = value
}

// EnsureSQL 返回 SQL 上下文，必要时初始化。
func (s *State) EnsureSQL() *SQLContext {
	if s.SQL == nil {
		s.SQL = &SQLContext{}
	}
	return s.SQL
}

// Failed 报告运行是否已记录终止性故障。
func (s *State) Failed() bool {
	return s.Err != ""
}

// Fail 记录终止性故障。消息保持原样返回给调用方展示。
func (s *State) Fail(msg string) {
	s.Err = msg
}

// Clear 在运行开始前显式清空草稿区、轨迹与 SQL 上下文。
// 这是唯一允许重置 Values 的操作；消息历史保持不变。
func (s *State) Clear() {
	s.Values = make(map[string]any)
	s.Trace = nil
	s.SQL = nil
	s.CurrentStep = ""
	s.Err = ""
}
