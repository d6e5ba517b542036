package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/workflow"
)

var collectorNamespaceSeq uint64

// promauto 注册到全局 registry，每个测试用独立命名空间避免冲突
func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.flowRunsTotal)
	assert.NotNil(t, collector.stepTotal)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.dbQueriesTotal)
}

func TestCollectorImplementsObserver(t *testing.T) {
	var _ workflow.Observer = NewCollector(nextTestNamespace(), zap.NewNop())
}

func TestCollectorRecordRun(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordRun("text_to_sql", "ok", 9, 2*time.Second)
	collector.RecordRun("text_to_sql", "failed", 3, time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.flowRunsTotal))
	assert.Greater(t, testutil.CollectAndCount(collector.flowRunDuration), 0)
}

func TestCollectorRecordStep(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordStep("text_to_sql", "generate_sql", "ok", 500*time.Millisecond)
	collector.RecordStep("text_to_sql", "execute_sql", "failed", 100*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.stepTotal))
}

func TestCollectorRecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("POST", "/api/v1/chat", 200, 100*time.Millisecond)
	collector.RecordHTTPRequest("POST", "/api/v1/chat", 503, 50*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.httpRequestsTotal))
}

func TestCollectorRecordLLMRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordLLMRequest("openai-compatible", "gpt-4o-mini", "ok", time.Second, 100, 50)

	assert.Greater(t, testutil.CollectAndCount(collector.llmTokensUsed), 0)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(200))
	assert.Equal(t, "3xx", statusCode(302))
	assert.Equal(t, "4xx", statusCode(404))
	assert.Equal(t, "5xx", statusCode(503))
	assert.Equal(t, "unknown", statusCode(99))
}
