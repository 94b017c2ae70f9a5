package metrics

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ObserveOperation("open", time.Millisecond, nil)
	c.AddBytesRead(10)
	c.AddBytesWritten(10)
}

func TestCollectorExposesMetrics(t *testing.T) {
	c := NewCollector("testns")
	c.ObserveOperation("create", 5*time.Millisecond, nil)
	c.ObserveOperation("create", 5*time.Millisecond, fmt.Errorf("boom"))
	c.AddBytesRead(100)
	c.AddBytesWritten(200)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `testns_operations_total{operation="create"} 2`)
	assert.Contains(t, body, `testns_operation_errors_total{operation="create"} 1`)
	assert.Contains(t, body, "testns_bytes_read_total 100")
	assert.Contains(t, body, "testns_bytes_written_total 200")
}
