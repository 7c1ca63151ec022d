package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSealed  = "sealed"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Collector tracks sealing rounds. A nil *Collector is valid and records
// nothing.
type Collector struct {
	rounds     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	validators prometheus.Gauge
	height     prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		rounds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "posseal",
				Subsystem: "sealer",
				Name:      "rounds_total",
				Help:      "Sealing rounds by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "posseal",
				Subsystem: "sealer",
				Name:      "round_duration_seconds",
				Help:      "Time spent hashing, selecting and updating ages in one round",
				Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"strategy"},
		),
		validators: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "posseal",
			Subsystem: "registry",
			Name:      "validators",
			Help:      "Number of registered validators",
		}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "posseal",
			Subsystem: "chain",
			Name:      "height",
			Help:      "Number of blocks in the chain including genesis",
		}),
	}

	for _, col := range []prometheus.Collector{c.rounds, c.duration, c.validators, c.height} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) ObserveRound(strategy, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.rounds.WithLabelValues(strategy, outcome).Inc()
	c.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

func (c *Collector) SetValidators(n int) {
	if c == nil {
		return
	}
	c.validators.Set(float64(n))
}

func (c *Collector) SetHeight(n int) {
	if c == nil {
		return
	}
	c.height.Set(float64(n))
}
