package flows

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/database"
	"github.com/BaSui01/queryflow/llm"
	"github.com/BaSui01/queryflow/types"
	"github.com/BaSui01/queryflow/workflow"
)

// 内置工作流名称
const (
	GeneralQAName = "general_qa"
	TextToSQLName = "text_to_sql"
)

// 内置工作流的注册描述，供编排器做流程选择
const (
	generalQADescription = "Answer general questions and provide helpful information"
	textToSQLDescription = "Convert natural language to SQL queries with validation and human-in-the-loop steps"
)

// Approver 表选择审批端口。
// 默认实现自动通过；接入真实审批通道时替换此实现即可，图结构不变。
type Approver interface {
	// ApproveTables 审批表选择；返回 false 表示驳回并重新识别
	ApproveTables(ctx context.Context, request string, tables []types.TableRef) (bool, error)
}

// AutoApprover 无外部审批通道时的默认策略：一律通过
type AutoApprover struct{}

// ApproveTables 总是返回通过
func (AutoApprover) ApproveTables(ctx context.Context, request string, tables []types.TableRef) (bool, error) {
	return true, nil
}

// Deps 工作流步骤依赖的全部能力端口
type Deps struct {
	// LLM 文本补全端口
	LLM llm.Provider
	// DB 查询执行端口
	DB database.Executor
	// Schema 表结构内省端口
	Schema database.SchemaProvider
	// Approver 表选择审批端口，nil 时使用 AutoApprover
	Approver Approver
	// Logger 结构化日志
	Logger *zap.Logger

	// SQLRetryLimit 生成/校验/执行环路的重试上限
	SQLRetryLimit int
	// TableApprovalRetryLimit 表审批驳回环路的重试上限。
	// 零值是合法配置：首次驳回即强制通过，不回到 identify_tables。
	// 因此这里不像 SQLRetryLimit 那样把零值补成缺省；想要缺省上限
	// 的调用方应显式传 config.WorkflowConfig 里的值（缺省 2）。
	TableApprovalRetryLimit int
}

// normalized 补齐缺省依赖
func (d Deps) normalized() Deps {
	if d.Approver == nil {
		d.Approver = AutoApprover{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.SQLRetryLimit <= 0 {
		d.SQLRetryLimit = 3
	}
	// TableApprovalRetryLimit 的零值有语义（首次驳回即强制通过），
	// 只把负值夹回零，不补缺省。
	if d.TableApprovalRetryLimit < 0 {
		d.TableApprovalRetryLimit = 0
	}
	return d
}

// complete 调用补全端口并返回去除首尾空白的文本
func (d Deps) complete(ctx context.Context, temperature float64, messages ...types.Message) (string, error) {
	resp, err := d.LLM.Complete(ctx, &llm.CompletionRequest{
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// RegisterAll 把内置工作流注册到注册表
func RegisterAll(reg *workflow.Registry, deps Deps) error {
	if err := reg.Register(GeneralQAName, generalQADescription, NewGeneralQA(deps)); err != nil {
		return err
	}
	return reg.Register(TextToSQLName, textToSQLDescription, NewTextToSQL(deps))
}
