package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordInteraction("add_to_cart", "ok")
	m.RecordInteraction("add_to_cart", "ok")
	m.RecordOrderTransition("Delivered")
	m.SetPendingOrders(3)
	m.RecordGatewayRequest("dm", "ok", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.interactionTotal.WithLabelValues("add_to_cart", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orderTransitionTotal.WithLabelValues("Delivered")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.pendingOrders))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gatewayRequestTotal.WithLabelValues("dm", "ok")))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordInteraction("x", "y")
		m.SetActiveDialogues(1)
		m.RecordReconcile("published")
		m.RecordHTTPRequest("GET", "/", "200", time.Millisecond)
	})
}

func TestTracer_Disabled(t *testing.T) {
	tr, err := NewTracer(&TracerConfig{ServiceName: "storefront"})
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "op")
	assert.NotNil(t, span)
	EndSpan(span, errors.New("boom"))
	assert.Empty(t, TraceID(ctx))
	assert.NoError(t, tr.Shutdown(context.Background()))
}
