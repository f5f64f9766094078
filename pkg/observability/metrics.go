package observability

import (
	"time"

	"github.com/aretw0/mvvm/pkg/command"
	"github.com/aretw0/mvvm/pkg/dispatch"
	"github.com/aretw0/mvvm/pkg/viewmodel"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mvvm"

// Metrics holds the collectors shared by every component of a runtime.
type Metrics struct {
	QueueDepth     prometheus.Gauge
	TaskWait       prometheus.Histogram
	TaskRun        prometheus.Histogram
	Tasks          *prometheus.CounterVec
	Unhandled      prometheus.Counter
	Busy           *prometheus.GaugeVec
	Background     *prometheus.CounterVec
	BackgroundTime *prometheus.HistogramVec
	Cancels        *prometheus.CounterVec
	Commands       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "main_queue_depth",
			Help:      "Operations waiting on the main loop when the last one was queued",
		}),
		TaskWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "main_task_wait_seconds",
			Help:      "Time operations spent queued before running on the main loop",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		TaskRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "main_task_run_seconds",
			Help:      "Time operations spent running on the main loop",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		Tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "main_tasks_total",
			Help:      "Operations executed on the main loop",
		}, []string{"outcome"}),
		Unhandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "main_unhandled_failures_total",
			Help:      "Posted operations that failed with no caller to report to",
		}),
		Busy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewmodel_busy",
			Help:      "1 while a view-model runs a background operation",
		}, []string{"viewmodel"}),
		Background: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewmodel_background_operations_total",
			Help:      "Background operations finished, by outcome",
		}, []string{"viewmodel", "outcome"}),
		BackgroundTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "viewmodel_background_duration_seconds",
			Help:      "Wall time of background operations including marshaling",
		}, []string{"viewmodel"}),
		Cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewmodel_cancellations_total",
			Help:      "Cancellation requests",
		}, []string{"viewmodel"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_executions_total",
			Help:      "Command executions, by outcome",
		}, []string{"command", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.QueueDepth, m.TaskWait, m.TaskRun, m.Tasks, m.Unhandled,
			m.Busy, m.Background, m.BackgroundTime, m.Cancels, m.Commands,
		)
	}
	return m
}

// LoopHooks records queue depth, latency and outcomes of main loop operations.
func (m *Metrics) LoopHooks() dispatch.Hooks {
	return dispatch.Hooks{
		OnQueued: func(depth int) {
			m.QueueDepth.Set(float64(depth))
		},
		OnDone: func(wait, run time.Duration, err error) {
			m.TaskWait.Observe(wait.Seconds())
			m.TaskRun.Observe(run.Seconds())
			m.Tasks.WithLabelValues(outcome(err)).Inc()
		},
		OnUnhandled: func(err error) {
			m.Unhandled.Inc()
		},
	}
}

// ViewModelHooks records busy state, background outcomes and cancellations
// under the given view-model name.
func (m *Metrics) ViewModelHooks(name string) viewmodel.Hooks {
	busy := m.Busy.WithLabelValues(name)
	cancels := m.Cancels.WithLabelValues(name)
	elapsed := m.BackgroundTime.WithLabelValues(name)
	return viewmodel.Hooks{
		OnBusyChanged: func(b bool) {
			if b {
				busy.Set(1)
			} else {
				busy.Set(0)
			}
		},
		OnCancel: func() {
			cancels.Inc()
		},
		OnBackgroundDone: func(d time.Duration, err error) {
			elapsed.Observe(d.Seconds())
			m.Background.WithLabelValues(name, outcome(err)).Inc()
		},
	}
}

// CommandHooks counts executions of the named command.
func (m *Metrics) CommandHooks(name string) command.Hooks {
	return command.Hooks{
		OnExecute: func(_ time.Duration, err error) {
			m.Commands.WithLabelValues(name, outcome(err)).Inc()
		},
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
