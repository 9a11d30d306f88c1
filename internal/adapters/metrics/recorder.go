package metrics

import (
	"github.com/bnema/tempvc/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tempvc"

// Recorder implements ports.Recorder with Prometheus collectors.
type Recorder struct {
	channelsCreated    *prometheus.CounterVec
	channelsDeleted    prometheus.Counter
	deletionsScheduled prometheus.Counter
	deletionsCancelled prometheus.Counter
	failures           *prometheus.CounterVec
	tracked            prometheus.Gauge
}

// NewRecorder registers its collectors on reg. A nil reg uses a fresh registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Recorder{
		channelsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_created_total",
			Help:      "Temporary voice channels created, by trigger template.",
		}, []string{"template"}),
		channelsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_deleted_total",
			Help:      "Temporary voice channels deleted after their grace period.",
		}),
		deletionsScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletions_scheduled_total",
			Help:      "Grace-period deletions scheduled for empty channels.",
		}),
		deletionsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletions_cancelled_total",
			Help:      "Pending deletions cancelled because someone joined.",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Platform operations that failed, by operation and failure kind.",
		}, []string{"operation", "kind"}),
		tracked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_channels",
			Help:      "Temporary voice channels currently tracked.",
		}),
	}
}

func (r *Recorder) ChannelCreated(template domain.TriggerTemplate) {
	r.channelsCreated.WithLabelValues(template.DisplayName).Inc()
}

func (r *Recorder) ChannelDeleted() {
	r.channelsDeleted.Inc()
}

func (r *Recorder) DeletionScheduled() {
	r.deletionsScheduled.Inc()
}

func (r *Recorder) DeletionCancelled() {
	r.deletionsCancelled.Inc()
}

func (r *Recorder) OperationFailed(operation string, err error) {
	r.failures.WithLabelValues(operation, domain.ErrorKind(err)).Inc()
}

func (r *Recorder) TrackedChannels(n int) {
	r.tracked.Set(float64(n))
}
