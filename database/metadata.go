package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/BaSui01/queryflow/types"
)

// TableSchema 单表结构描述
type TableSchema struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column 单列描述
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
	Nullable   bool   `json:"nullable,omitempty"`
}

// SchemaProvider 表结构内省端口
type SchemaProvider interface {
	// TableNames 返回业务库中的全部表名（排序后）
	TableNames(ctx context.Context) ([]string, error)

	// ConciseSchema 返回全库的紧凑结构描述，用于提示词拼接
	ConciseSchema(ctx context.Context) (string, error)

	// SchemaFor 返回指定表的紧凑结构描述；未知表名被忽略
	SchemaFor(ctx context.Context, tables []types.TableRef) (string, error)
}

// Metadata 带 TTL 缓存的表结构管理器。
// 并发的缓存刷新通过 singleflight 合并为一次内省。
type Metadata struct {
	db     *gorm.DB
	ttl    time.Duration
	logger *zap.Logger

	mu        sync.RWMutex
	schemas   []TableSchema
	fetchedAt time.Time

	group singleflight.Group
}

// NewMetadata 创建表结构管理器
func NewMetadata(db *gorm.DB, ttl time.Duration, logger *zap.Logger) *Metadata {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Metadata{
		db:     db,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "db_metadata")),
	}
}

// snapshot 返回缓存的表结构，过期或为空时触发内省
func (m *Metadata) snapshot(ctx context.Context) ([]TableSchema, error) {
	m.mu.RLock()
	fresh := m.schemas != nil && time.Since(m.fetchedAt) < m.ttl
	cached := m.schemas
	m.mu.RUnlock()
	if fresh {
		return cached, nil
	}

	v, err, _ := m.group.Do("introspect", func() (any, error) {
		schemas, err := m.introspect(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.schemas = schemas
		m.fetchedAt = time.Now()
		m.mu.Unlock()
		return schemas, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]TableSchema), nil
}

// introspect 通过 gorm Migrator 读取表与列定义
func (m *Metadata) introspect(ctx context.Context) ([]TableSchema, error) {
	start := time.Now()
	migrator := m.db.WithContext(ctx).Migrator()

	tables, err := migrator.GetTables()
	if err != nil {
		return nil, types.NewError(types.ErrQueryFailed, "failed to list tables").WithCause(err)
	}
	sort.Strings(tables)

	schemas := make([]TableSchema, 0, len(tables))
	for _, table := range tables {
		columnTypes, err := migrator.ColumnTypes(table)
		if err != nil {
			return nil, types.NewError(types.ErrQueryFailed, fmt.Sprintf("failed to inspect table %s", table)).WithCause(err)
		}
		schema := TableSchema{Name: table}
		for _, ct := range columnTypes {
			col := Column{Name: ct.Name()}
			if dbType := ct.DatabaseTypeName(); dbType != "" {
				col.Type = strings.ToLower(dbType)
			}
			if pk, ok := ct.PrimaryKey(); ok {
				col.PrimaryKey = pk
			}
			if nullable, ok := ct.Nullable(); ok {
				col.Nullable = nullable
			}
			schema.Columns = append(schema.Columns, col)
		}
		schemas = append(schemas, schema)
	}

	m.logger.Debug("schema introspected",
		zap.Int("tables", len(schemas)),
		zap.Duration("duration", time.Since(start)))

	return schemas, nil
}

// Invalidate 主动失效缓存（DDL 变更后调用）
func (m *Metadata) Invalidate() {
	m.mu.Lock()
	m.schemas = nil
	m.mu.Unlock()
}

// TableNames 返回业务库中的全部表名
func (m *Metadata) TableNames(ctx context.Context) ([]string, error) {
	schemas, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		names = append(names, s.Name)
	}
	return names, nil
}

// ConciseSchema 返回全库的紧凑结构描述
func (m *Metadata) ConciseSchema(ctx context.Context) (string, error) {
	schemas, err := m.snapshot(ctx)
	if err != nil {
		return "", err
	}
	return renderSchemas(schemas), nil
}

// SchemaFor 返回指定表的紧凑结构描述，表名匹配不区分大小写
func (m *Metadata) SchemaFor(ctx context.Context, tables []types.TableRef) (string, error) {
	schemas, err := m.snapshot(ctx)
	if err != nil {
		return "", err
	}

	wanted := make(map[string]bool, len(tables))
	for _, t := range tables {
		wanted[strings.ToLower(strings.TrimSpace(t.Name))] = true
	}

	selected := make([]TableSchema, 0, len(tables))
	for _, s := range schemas {
		if wanted[strings.ToLower(s.Name)] {
			selected = append(selected, s)
		}
	}
	return renderSchemas(selected), nil
}

// renderSchemas 把表结构渲染为每表一行的紧凑形式:
//
//	users(id integer pk, name text, email text nullable)
func renderSchemas(schemas []TableSchema) string {
	var b strings.Builder
	for i, s := range schemas {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s.Name)
		b.WriteByte('(')
		for j, c := range s.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.Name)
			if c.Type != "" {
				b.WriteByte(' ')
				b.WriteString(c.Type)
			}
			if c.PrimaryKey {
				b.WriteString(" pk")
			}
			if c.Nullable {
				b.WriteString(" nullable")
			}
		}
		b.WriteByte(')')
	}
	return b.String()
}
