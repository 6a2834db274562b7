package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCollector(t *testing.T) {
	m := NewMetricsCollector(prometheus.NewRegistry())

	m.RecordHTTPRequest("GET", "/posts", 200, time.Millisecond)
	m.RecordHTTPRequest("GET", "/posts", 201, time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/posts", "2xx")))

	m.RecordMutation("post", "create", nil)
	m.RecordMutation("post", "create", errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutationsTotal.WithLabelValues("post", "create", "error")))

	m.AddSubscriptions(2)
	m.AddSubscriptions(-1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSubscriptions))

	m.RecordCacheOperation("profile", true)
	m.RecordCacheOperation("profile", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMissesTotal.WithLabelValues("profile")))
}

func TestGetGlobalCollectorIsSingleton(t *testing.T) {
	assert.Same(t, GetGlobalCollector(), GetGlobalCollector())
}
