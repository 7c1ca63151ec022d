package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.ObserveRound("age", OutcomeSealed, time.Millisecond)
	c.ObserveRound("age", OutcomeSealed, time.Millisecond)
	c.ObserveRound("age", OutcomeSkipped, time.Microsecond)
	c.SetValidators(2)
	c.SetHeight(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.rounds.WithLabelValues("age", OutcomeSealed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rounds.WithLabelValues("age", OutcomeSkipped)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.validators))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.height))

	_, err = New(reg)
	assert.Error(t, err, "registering twice must fail")
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveRound("random", OutcomeFailed, time.Second)
		c.SetValidators(1)
		c.SetHeight(1)
	})
}
