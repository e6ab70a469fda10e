package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors shared by the scheduler,
// connection pool, and message bus. Construct one with NewMetrics and
// register it with a prometheus.Registerer of the caller's choosing.
type Metrics struct {
	TasksInFlight     prometheus.Gauge
	TaskAttempts      *prometheus.CounterVec
	ToolCallDuration  *prometheus.HistogramVec
	PoolActiveClients prometheus.Gauge
	BusMessagesSent   prometheus.Counter
	BusMessagesDelivd prometheus.Counter
	BusMessagesFailed prometheus.Counter
	BusQueueDepth     *prometheus.GaugeVec
}

// NewMetrics constructs GenFlow's Prometheus collectors under the "genflow"
// namespace. It does not register them; call Register to do so.
func NewMetrics() *Metrics {
	return &Metrics{
		TasksInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "genflow",
			Subsystem: "scheduler",
			Name:      "tasks_in_flight",
			Help:      "Number of task units currently executing across all workflows.",
		}),
		TaskAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genflow",
			Subsystem: "scheduler",
			Name:      "task_attempts_total",
			Help:      "Task execution attempts, labeled by each attempt's outcome.",
		}, []string{"outcome"}),
		ToolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "genflow",
			Subsystem: "mcp",
			Name:      "tool_call_duration_seconds",
			Help:      "Tool-server round trip latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"server", "tool"}),
		PoolActiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "genflow",
			Subsystem: "mcp",
			Name:      "pool_active_clients",
			Help:      "Number of distinct tool-server connections currently held open by the pool.",
		}),
		BusMessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "genflow",
			Subsystem: "bus",
			Name:      "messages_sent_total",
			Help:      "Messages accepted onto the bus's ingress queue.",
		}),
		BusMessagesDelivd: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "genflow",
			Subsystem: "bus",
			Name:      "messages_delivered_total",
			Help:      "Messages successfully routed to a recipient queue.",
		}),
		BusMessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "genflow",
			Subsystem: "bus",
			Name:      "messages_failed_total",
			Help:      "Messages dropped because their recipient was not registered or its queue was full.",
		}),
		BusQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "genflow",
			Subsystem: "bus",
			Name:      "queue_depth",
			Help:      "Current number of queued messages, labeled by recipient agent id.",
		}, []string{"agent_id"}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.TasksInFlight, m.TaskAttempts, m.ToolCallDuration,
		m.PoolActiveClients, m.BusMessagesSent, m.BusMessagesDelivd,
		m.BusMessagesFailed, m.BusQueueDepth,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
