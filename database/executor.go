package database

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/queryflow/types"
)

// Executor 只读查询端口，供工作流执行候选 SQL
type Executor interface {
	// Query 执行查询并返回结果集；传输或语法错误映射为 QUERY_FAILED
	Query(ctx context.Context, sql string) (*types.ResultSet, error)
}

// GormExecutor 基于 gorm 的查询执行器，结果行数截断到 maxRows
type GormExecutor struct {
	db      *gorm.DB
	maxRows int
	logger  *zap.Logger
}

// NewGormExecutor 创建查询执行器；maxRows <= 0 时不截断
func NewGormExecutor(db *gorm.DB, maxRows int, logger *zap.Logger) *GormExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormExecutor{
		db:      db,
		maxRows: maxRows,
		logger:  logger.With(zap.String("component", "db_executor")),
	}
}

// Query 执行查询并把行扫描为列名到值的映射
func (e *GormExecutor) Query(ctx context.Context, sql string) (*types.ResultSet, error) {
	start := time.Now()

	rows, err := e.db.WithContext(ctx).Raw(sql).Rows()
	if err != nil {
		e.logger.Warn("query failed", zap.Error(err))
		return nil, types.NewError(types.ErrQueryFailed, "query execution failed").WithCause(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, types.NewError(types.ErrQueryFailed, "failed to read result columns").WithCause(err)
	}

	result := &types.ResultSet{Columns: columns}
	values := make([]any, len(columns))
	scanTargets := make([]any, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if e.maxRows > 0 && len(result.Rows) >= e.maxRows {
			result.Truncated = true
			break
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, types.NewError(types.ErrQueryFailed, "failed to scan result row").WithCause(err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewError(types.ErrQueryFailed, "result iteration failed").WithCause(err)
	}

	e.logger.Debug("query executed",
		zap.Int("rows", len(result.Rows)),
		zap.Bool("truncated", result.Truncated),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// normalizeValue 把驱动返回的字节值转成字符串，便于 JSON 序列化
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
