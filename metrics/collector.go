// Package metrics turns engine events into prometheus metrics.
package metrics

import (
	"sync"

	"github.com/mohitkumar/procflow/engine"
	"github.com/mohitkumar/procflow/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ engine.EventListener = new(Collector)

// Collector is an engine event listener. Metrics are registered on the
// Registerer handed to NewCollector.
type Collector struct {
	eventsTotal      *prometheus.CounterVec
	activityDuration *prometheus.HistogramVec
	activeProcesses  prometheus.Gauge
	assignments      *prometheus.CounterVec

	mu      sync.Mutex
	started map[string]model.WorkflowEvent
	active  map[string]struct{}
}

func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_events_total",
				Help:      "Total number of workflow events by type",
			},
			[]string{"type"},
		),
		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "activity_duration_seconds",
				Help:      "Time from activity start to completion or failure",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 30, 60, 300, 1800},
			},
			[]string{"activity", "status"},
		),
		activeProcesses: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "process_instances_active",
				Help:      "Process and sub-process instances started and not yet finished",
			},
		),
		assignments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_assignments_total",
				Help:      "Total number of activities assigned per agent",
			},
			[]string{"agent"},
		),
		started: make(map[string]model.WorkflowEvent),
		active:  make(map[string]struct{}),
	}
}

func (c *Collector) OnEvent(event model.WorkflowEvent) {
	c.eventsTotal.WithLabelValues(string(event.Type)).Inc()
	c.mu.Lock()
	defer c.mu.Unlock()
	switch event.Type {
	case model.PROCESS_STARTED:
		if _, ok := c.active[event.ProcessInstanceId]; !ok {
			c.active[event.ProcessInstanceId] = struct{}{}
			c.activeProcesses.Inc()
		}
	case model.PROCESS_COMPLETED, model.PROCESS_FAILED, model.PROCESS_CANCELED:
		if _, ok := c.active[event.ProcessInstanceId]; ok {
			delete(c.active, event.ProcessInstanceId)
			c.activeProcesses.Dec()
		}
	case model.ACTIVITY_ASSIGNED:
		c.assignments.WithLabelValues(event.AgentId).Inc()
	case model.ACTIVITY_STARTED:
		c.started[event.ActivityInstanceId] = event
	case model.ACTIVITY_COMPLETED, model.ACTIVITY_FAILED:
		start, ok := c.started[event.ActivityInstanceId]
		if !ok {
			return
		}
		delete(c.started, event.ActivityInstanceId)
		status := model.COMPLETED
		if event.Type == model.ACTIVITY_FAILED {
			status = model.FAILED
		}
		c.activityDuration.WithLabelValues(event.ActivityId, string(status)).
			Observe(event.Timestamp.Sub(start.Timestamp).Seconds())
	}
}
