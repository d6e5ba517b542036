package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/types"
	"github.com/BaSui01/queryflow/workflow"
)

// 路由决策标签（闭合枚举，归一化保证每个输入都落入已知标签）
const (
	decisionGeneral   = "general"
	decisionSQL       = "sql"
	decisionApproved  = "approved"
	decisionRejected  = "rejected"
	decisionValid     = "valid"
	decisionInvalid   = "invalid"
	decisionSuccess   = "success"
	decisionRetry     = "retry"
	decisionExhausted = "exhausted"
)

// NewTextToSQL 构建文本转 SQL 工作流图。
//
// 拓扑:
//
//	classify ──general──▶ respond_general ──▶ finalize
//	    │sql
//	    ▼
//	rewrite ──▶ identify_tables ──▶ approve_tables ──rejected──▶ identify_tables
//	                                     │approved
//	                                     ▼
//	trim_columns ──▶ generate_sql ──▶ validate_sql ──invalid──▶ generate_sql
//	                                     │valid
//	                                     ▼
//	                               execute_sql ──retry──▶ generate_sql
//	                                     │success / exhausted
//	                                     ▼
//	                                  finalize
//
// 两个回环都有界：审批驳回环由 TableApprovalRetryLimit 限制，
// 生成/校验/执行环由 SQLRetryLimit 限制，耗尽后强制进入 finalize
// 并把最后一次失败作为可见结果带出。
func NewTextToSQL(deps Deps) *workflow.Graph {
	d := deps.normalized()
	f := &textToSQLFlow{deps: d}

	return workflow.NewGraph(TextToSQLName).
		AddNode("classify", f.classify).
		AddNode("respond_general", f.respondGeneral).
		AddNode("rewrite", f.rewrite).
		AddNode("identify_tables", f.identifyTables).
		AddNode("approve_tables", f.approveTables).
		AddNode("trim_columns", f.trimColumns).
		AddNode("generate_sql", f.generateSQL).
		AddNode("validate_sql", f.validateSQL).
		AddNode("execute_sql", f.executeSQL).
		AddNode("finalize", f.finalize).
		SetEntry("classify").
		AddConditionalEdge("classify", f.routeAfterClassify, map[string]string{
			decisionGeneral: "respond_general",
			decisionSQL:     "rewrite",
		}).
		AddEdge("respond_general", "finalize").
		AddEdge("rewrite", "identify_tables").
		AddEdge("identify_tables", "approve_tables").
		AddConditionalEdge("approve_tables", f.routeAfterApproval, map[string]string{
			decisionApproved: "trim_columns",
			decisionRejected: "identify_tables",
		}).
		AddEdge("trim_columns", "generate_sql").
		AddEdge("generate_sql", "validate_sql").
		AddConditionalEdge("validate_sql", f.routeAfterValidation, map[string]string{
			decisionValid:     "execute_sql",
			decisionInvalid:   "generate_sql",
			decisionExhausted: "finalize",
		}).
		AddConditionalEdge("execute_sql", f.routeAfterExecution, map[string]string{
			decisionSuccess:   "finalize",
			decisionRetry:     "generate_sql",
			decisionExhausted: "finalize",
		}).
		AddEdge("finalize", workflow.End)
}

type textToSQLFlow struct {
	deps Deps
}

// request 返回用于 SQL 生成的请求文本，优先使用改写结果
func (f *textToSQLFlow) request(state *workflow.State) string {
	if sql := state.SQL; sql != nil && sql.RewrittenRequest != "" {
		return sql.RewrittenRequest
	}
	return state.LastUserMessage()
}

// ---------------------------------------------------------------------------
// classify
// ---------------------------------------------------------------------------

// classify 判定请求走数据库路径还是普通问答路径
func (f *textToSQLFlow) classify(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	raw, err := f.deps.complete(ctx, 0.3,
		types.NewUserMessage(classifyPrompt(state.LastUserMessage())))
	if err != nil {
		return state, err
	}

	label := normalizeClassification(raw)
	state.EnsureSQL().Classification = label
	state.AppendTrace("classified request as " + label)
	return state, nil
}

// normalizeClassification 把补全输出归一化为已知标签。
// 仅去空白、转小写后恰好等于 sql 才走 SQL 路径；其余输出
// （包括提到 sql 的自由文本）一律落到 general，绝不默认进入
// SQL 路径。
func normalizeClassification(raw string) string {
	if strings.ToLower(strings.TrimSpace(raw)) == decisionSQL {
		return decisionSQL
	}
	return decisionGeneral
}

func (f *textToSQLFlow) routeAfterClassify(ctx context.Context, state *workflow.State) string {
	if state.SQL != nil && state.SQL.Classification == decisionSQL {
		return decisionSQL
	}
	return decisionGeneral
}

// ---------------------------------------------------------------------------
// respond_general
// ---------------------------------------------------------------------------

// respondGeneral 直接用补全端口回答非 SQL 请求
func (f *textToSQLFlow) respondGeneral(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	response, err := f.deps.complete(ctx, 0.7,
		types.NewSystemMessage(generalQASystemPrompt),
		types.NewUserMessage(state.LastUserMessage()))
	if err != nil {
		return state, err
	}

	state.SetValue(qaResponseKey, response)
	state.AppendTrace("answered without database access")
	return state, nil
}

// ---------------------------------------------------------------------------
// rewrite
// ---------------------------------------------------------------------------

// rewrite 把用户请求扩写为更明确的 SQL 生成指令
func (f *textToSQLFlow) rewrite(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	rewritten, err := f.deps.complete(ctx, 0.3,
		types.NewSystemMessage(rewriteSystemPrompt),
		types.NewUserMessage(rewritePrompt(state.LastUserMessage())))
	if err != nil {
		return state, err
	}

	state.EnsureSQL().RewrittenRequest = strings.TrimSpace(rewritten)
	state.AppendTrace("rewrote request for SQL generation")
	return state, nil
}

// ---------------------------------------------------------------------------
// identify_tables
// ---------------------------------------------------------------------------

// tableListPayload 是 identify_tables 要求的结构化输出
type tableListPayload struct {
	Tables []types.TableRef `json:"tables"`
}

// identifyTables 询问哪些表与请求相关，解析失败退化为空表列表
func (f *textToSQLFlow) identifyTables(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	schema, err := f.deps.Schema.ConciseSchema(ctx)
	if err != nil {
		return state, err
	}

	raw, err := f.deps.complete(ctx, 0.3,
		types.NewUserMessage(identifyTablesPrompt(f.request(state), schema)))
	if err != nil {
		return state, err
	}

	sql := state.EnsureSQL()
	sql.Tables = parseTableList(raw)
	if len(sql.Tables) == 0 {
		f.deps.Logger.Debug("table identification yielded no parseable tables",
			zap.String("run_id", state.RunID))
		state.AppendTrace("no tables identified, continuing with empty selection")
	} else {
		names := make([]string, 0, len(sql.Tables))
		for _, t := range sql.Tables {
			names = append(names, t.Name)
		}
		state.AppendTrace("identified tables: " + strings.Join(names, ", "))
	}
	return state, nil
}

// parseTableList 从补全输出中提取表列表。
// 容忍围栏包裹与前后杂文本；解析失败返回空列表而不是失败整次运行。
func parseTableList(raw string) []types.TableRef {
	cleaned := StripSQLFences(raw)
	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end <= start {
		return nil
	}

	var payload tableListPayload
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &payload); err != nil {
		return nil
	}

	tables := make([]types.TableRef, 0, len(payload.Tables))
	for _, t := range payload.Tables {
		if strings.TrimSpace(t.Name) == "" {
			continue
		}
		tables = append(tables, t)
	}
	return tables
}

// ---------------------------------------------------------------------------
// approve_tables
// ---------------------------------------------------------------------------

// approveTables 表选择的人工审批门。
// 审批端口缺省自动通过；驳回环有界，耗尽后视为通过并留痕。
func (f *textToSQLFlow) approveTables(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	sql := state.EnsureSQL()

	approved, err := f.deps.Approver.ApproveTables(ctx, f.request(state), sql.Tables)
	if err != nil {
		// 审批通道故障按缺省策略处理：放行
		f.deps.Logger.Warn("approver unavailable, falling back to auto-approve",
			zap.String("run_id", state.RunID), zap.Error(err))
		approved = true
	}

	if !approved {
		sql.ApprovalRejections++
		if sql.ApprovalRejections <= f.deps.TableApprovalRetryLimit {
			state.AppendTrace(fmt.Sprintf("table selection rejected (%d/%d), re-identifying",
				sql.ApprovalRejections, f.deps.TableApprovalRetryLimit))
			state.SetValue(approvalDecisionKey, decisionRejected)
			return state, nil
		}
		// 驳回次数耗尽，放行以保证运行终止
		state.AppendTrace("approval retries exhausted, proceeding with current selection")
	} else {
		state.AppendTrace("table selection approved")
	}

	// 批准后把全库模式收窄到所选表
	narrowed, err := f.deps.Schema.SchemaFor(ctx, sql.Tables)
	if err != nil {
		return state, err
	}
	if narrowed == "" {
		// 没有任何表命中时退回全库模式，让生成步骤自行判断
		narrowed, err = f.deps.Schema.ConciseSchema(ctx)
		if err != nil {
			return state, err
		}
	}
	sql.Schema = narrowed
	state.SetValue(approvalDecisionKey, decisionApproved)
	return state, nil
}

// approvalDecisionKey 记录审批步骤产出的路由决策
const approvalDecisionKey = "approval_decision"

func (f *textToSQLFlow) routeAfterApproval(ctx context.Context, state *workflow.State) string {
	if v, ok := state.Value(approvalDecisionKey); ok {
		if s, ok := v.(string); ok && s == decisionRejected {
			return decisionRejected
		}
	}
	return decisionApproved
}

// ---------------------------------------------------------------------------
// trim_columns
// ---------------------------------------------------------------------------

// trimColumns 请求补全端口在已选表内剔除无关列。
// 输出为空或明显不可用时保留原模式。
func (f *textToSQLFlow) trimColumns(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	sql := state.EnsureSQL()

	trimmed, err := f.deps.complete(ctx, 0.3,
		types.NewUserMessage(trimColumnsPrompt(f.request(state), sql.Schema)))
	if err != nil {
		return state, err
	}

	trimmed = StripSQLFences(trimmed)
	if trimmed == "" {
		state.AppendTrace("column trimming returned nothing, keeping full schema")
	} else {
		sql.Schema = trimmed
		state.AppendTrace("narrowed schema to relevant columns")
	}
	return state, nil
}

// ---------------------------------------------------------------------------
// generate_sql
// ---------------------------------------------------------------------------

// generateSQL 产出候选 SQL。
// 首次尝试从裁剪后的模式全新生成；重试时带上上一候选与失败原因。
func (f *textToSQLFlow) generateSQL(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	sql := state.EnsureSQL()

	var prompt string
	retrying := sql.Retry.Attempts > 0 || sql.Retry.LastError != "" || sql.Retry.EmptyResult
	if retrying {
		prompt = fixSQLPrompt(f.request(state), sql.Schema,
			sql.Retry.LastSQL, sql.Retry.LastError, sql.Retry.EmptyResult)
	} else {
		prompt = generateSQLPrompt(f.request(state), sql.Schema)
	}

	raw, err := f.deps.complete(ctx, 0.3,
		types.NewSystemMessage(rewriteSystemPrompt),
		types.NewUserMessage(prompt))
	if err != nil {
		return state, err
	}

	sql.CandidateSQL = StripSQLFences(raw)
	sql.Retry.LastSQL = sql.CandidateSQL
	if retrying {
		state.AppendTrace(fmt.Sprintf("regenerated SQL (attempt %d)", sql.Retry.Attempts))
	} else {
		state.AppendTrace("generated candidate SQL")
	}
	return state, nil
}

// StripSQLFences 去除 markdown 代码围栏与首尾空白。
// 确定性且幂等：已清理的文本再次处理保持不变。
func StripSQLFences(s string) string {
	out := strings.TrimSpace(s)
	for {
		inner, changed := stripOneFence(out)
		if !changed {
			return inner
		}
		out = inner
	}
}

func stripOneFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return s, false
	}
	rest := s[3:]
	// 去掉围栏后的语言标记（```sql 等）
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		lang := strings.TrimSpace(rest[:idx])
		if lang == "" || isFenceLanguage(lang) {
			rest = rest[idx+1:]
		}
	} else {
		rest = strings.TrimSpace(rest)
		rest = strings.TrimSuffix(rest, "```")
		return strings.TrimSpace(rest), true
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, "```")
	return strings.TrimSpace(rest), true
}

func isFenceLanguage(lang string) bool {
	switch strings.ToLower(lang) {
	case "sql", "mysql", "postgres", "postgresql", "sqlite", "json":
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// validate_sql
// ---------------------------------------------------------------------------

// validateSQL 请求补全端口对候选做二元校验。
// 只有大小写无关的精确 VALID 才算通过，其余一律视为 INVALID。
func (f *textToSQLFlow) validateSQL(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	sql := state.EnsureSQL()

	raw, err := f.deps.complete(ctx, 0.3,
		types.NewUserMessage(validateSQLPrompt(f.request(state), sql.CandidateSQL, sql.Schema)))
	if err != nil {
		return state, err
	}

	sql.Valid = strings.EqualFold(strings.TrimSpace(raw), "VALID")
	if sql.Valid {
		state.AppendTrace("candidate SQL validated")
		return state, nil
	}

	sql.Retry.Attempts++
	sql.Retry.LastError = "validation rejected the candidate SQL"
	state.AppendTrace(fmt.Sprintf("candidate SQL rejected by validation (attempt %d/%d)",
		sql.Retry.Attempts, f.deps.SQLRetryLimit))
	return state, nil
}

func (f *textToSQLFlow) routeAfterValidation(ctx context.Context, state *workflow.State) string {
	sql := state.EnsureSQL()
	if sql.Valid {
		return decisionValid
	}
	if sql.Retry.Attempts >= f.deps.SQLRetryLimit {
		return decisionExhausted
	}
	return decisionInvalid
}

// ---------------------------------------------------------------------------
// execute_sql
// ---------------------------------------------------------------------------

// executeSQL 通过查询端口执行候选 SQL。
// 成功时记录行集并清空重试错误；失败与空结果都计入重试。
func (f *textToSQLFlow) executeSQL(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	sql := state.EnsureSQL()

	result, err := f.deps.DB.Query(ctx, sql.CandidateSQL)
	if err != nil {
		sql.Retry.Attempts++
		sql.Retry.LastError = err.Error()
		sql.Retry.EmptyResult = false
		state.AppendTrace(fmt.Sprintf("query failed (attempt %d/%d): %s",
			sql.Retry.Attempts, f.deps.SQLRetryLimit, err.Error()))
		return state, nil
	}

	if result.Empty() {
		sql.Retry.Attempts++
		sql.Retry.LastError = ""
		sql.Retry.EmptyResult = true
		sql.Result = result
		state.AppendTrace(fmt.Sprintf("query returned no rows (attempt %d/%d)",
			sql.Retry.Attempts, f.deps.SQLRetryLimit))
		return state, nil
	}

	sql.Result = result
	sql.Retry.LastError = ""
	sql.Retry.EmptyResult = false
	state.AppendTrace(fmt.Sprintf("query succeeded with %d rows", len(result.Rows)))
	return state, nil
}

func (f *textToSQLFlow) routeAfterExecution(ctx context.Context, state *workflow.State) string {
	sql := state.EnsureSQL()
	if sql.Retry.LastError == "" && !sql.Retry.EmptyResult && sql.Result != nil {
		return decisionSuccess
	}
	if sql.Retry.Attempts >= f.deps.SQLRetryLimit {
		return decisionExhausted
	}
	return decisionRetry
}

// ---------------------------------------------------------------------------
// finalize
// ---------------------------------------------------------------------------

// finalize 组装用户可见的最终消息并追加到对话。
// 重试耗尽时把最后一次失败作为可见结果带出，而不是抛错。
func (f *textToSQLFlow) finalize(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	// general 分支：直接带出问答结果
	if state.SQL == nil || state.SQL.Classification != decisionSQL {
		response, _ := state.Value(qaResponseKey)
		text, _ := response.(string)
		if text == "" {
			text = "I could not produce an answer for this question."
		}
		state.AddAssistantMessage(text)
		return state, nil
	}

	sql := state.SQL
	var b strings.Builder

	switch {
	case sql.Retry.LastError != "":
		b.WriteString("I could not complete this query.\n\n")
		fmt.Fprintf(&b, "Last error: %s\n", sql.Retry.LastError)
		if sql.CandidateSQL != "" {
			b.WriteString("\nLast attempted SQL:\n```sql\n")
			b.WriteString(sql.CandidateSQL)
			b.WriteString("\n```\n")
		}
	case sql.Retry.EmptyResult:
		b.WriteString("Here's the SQL query for your request:\n\n```sql\n")
		b.WriteString(sql.CandidateSQL)
		b.WriteString("\n```\n\nThe query executed successfully but returned no rows.\n")
	default:
		b.WriteString("Here's the SQL query for your request:\n\n```sql\n")
		b.WriteString(sql.CandidateSQL)
		b.WriteString("\n```\n")
		if sql.Result != nil && !sql.Result.Empty() {
			fmt.Fprintf(&b, "\n**Results** (%d rows):\n", len(sql.Result.Rows))
			if rows, err := json.MarshalIndent(sql.Result.Rows, "", "  "); err == nil {
				b.WriteString("```json\n")
				b.Write(rows)
				b.WriteString("\n```\n")
			}
			if sql.Result.Truncated {
				b.WriteString("\n(result truncated to the row limit)\n")
			}
		}
	}

	if len(sql.Tables) > 0 {
		b.WriteString("\n**Tables used:**\n")
		for _, t := range sql.Tables {
			if t.Reasoning != "" {
				fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Reasoning)
			} else {
				fmt.Fprintf(&b, "- %s\n", t.Name)
			}
		}
	}

	state.AddAssistantMessage(b.String())
	return state, nil
}
