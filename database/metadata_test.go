package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/config"
	"github.com/BaSui01/queryflow/types"
)

func metadataFixture(t *testing.T) *Metadata {
	t.Helper()
	db, err := Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL, total REAL)`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return NewMetadata(db, time.Minute, zap.NewNop())
}

func TestMetadataTableNames(t *testing.T) {
	m := metadataFixture(t)
	names, err := m.TableNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, names)
}

func TestMetadataConciseSchema(t *testing.T) {
	m := metadataFixture(t)
	schema, err := m.ConciseSchema(context.Background())
	require.NoError(t, err)

	assert.Contains(t, schema, "users(")
	assert.Contains(t, schema, "orders(")
	assert.Contains(t, schema, "name text")
}

func TestMetadataSchemaFor(t *testing.T) {
	m := metadataFixture(t)
	schema, err := m.SchemaFor(context.Background(), []types.TableRef{
		{Name: "Users"},
		{Name: "nonexistent"},
	})
	require.NoError(t, err)

	assert.Contains(t, schema, "users(")
	assert.NotContains(t, schema, "orders(")
}

func TestMetadataCachesUntilInvalidated(t *testing.T) {
	m := metadataFixture(t)
	ctx := context.Background()

	first, err := m.TableNames(ctx)
	require.NoError(t, err)

	// 新建表后命中缓存，看不到变更
	require.NoError(t, m.db.Exec(`CREATE TABLE tags (id INTEGER PRIMARY KEY)`).Error)
	cached, err := m.TableNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	m.Invalidate()
	refreshed, err := m.TableNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, refreshed, "tags")
}

func TestMetadataConcurrentAccess(t *testing.T) {
	m := metadataFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.ConciseSchema(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
