package flows

import (
	"fmt"
	"strings"
)

// 各步骤的系统提示词
const (
	rewriteSystemPrompt = `You are a SQL expert assistant. Your role is to help users convert natural language queries into accurate SQL statements.

When given a natural language query, you should:
1. Understand the user's intent and requirements
2. Identify the relevant database tables and columns
3. Generate syntactically correct SQL queries

Key principles:
- Always generate valid SQL syntax
- Use appropriate JOINs when multiple tables are involved
- Include WHERE clauses for filtering when specified
- Use appropriate aggregate functions (COUNT, SUM, AVG, etc.) when needed`

	generalQASystemPrompt = `You are a helpful AI assistant. Your role is to provide accurate, informative, and helpful responses to user questions.

When answering questions:
1. Be accurate and factual
2. Provide comprehensive explanations
3. Acknowledge limitations when you don't have specific information
4. Be conversational and helpful`
)

// classifyPrompt 请求分类提示词，输出必须是两个已知标签之一
func classifyPrompt(request string) string {
	return fmt.Sprintf(`Classify the following user request.

User request: %s

Determine if this request:
1. "sql" - needs data from a database (querying, counting, listing records)
2. "general" - is a general question answerable without database access

Return only one word: sql or general`, request)
}

// rewritePrompt 把用户请求改写为更明确的 SQL 生成指令
func rewritePrompt(request string) string {
	return fmt.Sprintf(`Original user request: %s

Please rewrite this request to be more specific for SQL generation,
including any clarifying details that would help generate accurate SQL.
Return only the rewritten request.`, request)
}

// identifyTablesPrompt 识别相关表，要求 JSON 输出
func identifyTablesPrompt(request, schema string) string {
	return fmt.Sprintf(`Based on the user request, identify the relevant database tables needed.

User request: %s
Available schema: %s

For each table, provide the table name and the reasoning for why it's needed.

Return in JSON format:
{
    "tables": [
        {"name": "table_name", "reasoning": "why this table is needed"}
    ]
}`, request, schema)
}

// trimColumnsPrompt 在已选表内筛掉无关列
func trimColumnsPrompt(request, schema string) string {
	return fmt.Sprintf(`Based on the user request, identify only the relevant columns from the schema.

User request: %s
Available schema: %s

Return the schema narrowed down to only the columns needed for this request,
keeping the same one-table-per-line format. Return only the narrowed schema.`, request, schema)
}

// generateSQLPrompt 首次生成候选 SQL
func generateSQLPrompt(request, schema string) string {
	return fmt.Sprintf(`Generate a SQL query based on the user request.

User request: %s
Available schema: %s

Ensure the query is syntactically correct and follows SQL best practices.
Return only the SQL query, no additional text or explanations.`, request, schema)
}

// fixSQLPrompt 带上一次候选与失败原因的修正提示词
func fixSQLPrompt(request, schema, previousSQL, lastError string, emptyResult bool) string {
	var context strings.Builder
	if lastError != "" {
		fmt.Fprintf(&context, "Error: %s\n", lastError)
	}
	if emptyResult {
		context.WriteString("Previous query returned no results.\n")
	}
	if previousSQL != "" {
		fmt.Fprintf(&context, "Previous SQL: %s\n", previousSQL)
	}

	return fmt.Sprintf(`Fix the SQL query based on the error or user feedback.

User request: %s
Available schema: %s
%s
Return only the corrected SQL query, no additional text.`, request, schema, context.String())
}

// validateSQLPrompt 二元校验提示词，输出限定为 VALID / INVALID
func validateSQLPrompt(request, sql, schema string) string {
	return fmt.Sprintf(`Validate the SQL query for correctness and relevance to the user request.

User request: %s
Generated SQL: %s
Available schema: %s

Check for:
1. Syntax correctness
2. Relevance to user request
3. Proper table and column usage

Return only: VALID or INVALID`, request, sql, schema)
}

// analyzeQuestionPrompt 问答流的问题分析提示词
func analyzeQuestionPrompt(question string) string {
	return fmt.Sprintf(`Analyze the following user question and determine:
1. The type of question (factual, opinion, how-to, etc.)
2. The main topic or domain
3. Any specific requirements or constraints

User question: %s

Provide a brief analysis.`, question)
}

// respondPrompt 基于分析结果生成回答
func respondPrompt(question, analysis string) string {
	return fmt.Sprintf(`Based on the following analysis and user question, provide a comprehensive and helpful response.

Question analysis: %s
User question: %s

Provide a detailed, accurate, and helpful response. If the question requires specific
information that you don't have access to, acknowledge this and suggest alternative approaches.`, analysis, question)
}

// SelectFlowPrompt 编排器的流程选择提示词
func SelectFlowPrompt(flowsContext, history, request string) string {
	return fmt.Sprintf(`You are an intelligent workflow orchestrator. Your job is to determine which workflow
is most appropriate for handling a user's request.

Available workflows:
%s

Conversation history:
%s

Current user request: %s

Return only the workflow name that best matches the request. If no specific
workflow is needed, return "general_qa" for general questions.`, flowsContext, history, request)
}
