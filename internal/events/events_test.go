package events

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ovacore/photonic/internal/metrics"
)

func TestNewWiresBusDropsIntoMetrics(t *testing.T) {
	buses := New(nil)

	before := testutil.ToFloat64(metrics.BusDropsTotal.WithLabelValues("medium_item_created"))

	sub := buses.Created.Subscribe()
	defer sub.Close()
	for i := 0; i < 12; i++ {
		buses.Created.Publish(MediumItemCreated{})
	}

	after := testutil.ToFloat64(metrics.BusDropsTotal.WithLabelValues("medium_item_created"))
	assert.Equal(t, before+4, after)
}
