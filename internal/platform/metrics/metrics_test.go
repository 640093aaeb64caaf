package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.ObserveRequest("GET", "/api/products/{id}", 200, time.Now())
	m.ObserveRequest("GET", "", 404, time.Now())

	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestDuration))
}
