package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/mohitkumar/procflow/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorOnEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("procflow", reg)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	events := []model.WorkflowEvent{
		{Type: model.PROCESS_STARTED, ProcessInstanceId: "p1", Timestamp: start},
		{Type: model.PROCESS_STARTED, ProcessInstanceId: "p2", Timestamp: start},
		{Type: model.ACTIVITY_ASSIGNED, ProcessInstanceId: "p1", ActivityId: "draft", ActivityInstanceId: "a1", AgentId: "writer", Timestamp: start},
		{Type: model.ACTIVITY_STARTED, ProcessInstanceId: "p1", ActivityId: "draft", ActivityInstanceId: "a1", AgentId: "writer", Timestamp: start},
		{Type: model.ACTIVITY_COMPLETED, ProcessInstanceId: "p1", ActivityId: "draft", ActivityInstanceId: "a1", AgentId: "writer", Timestamp: start.Add(2 * time.Second)},
		{Type: model.PROCESS_COMPLETED, ProcessInstanceId: "p1", Timestamp: start.Add(2 * time.Second)},
		{Type: model.PROCESS_COMPLETED, ProcessInstanceId: "never-started", Timestamp: start},
		{Type: model.ERROR, ProcessInstanceId: "p2", Timestamp: start},
	}
	for _, e := range events {
		c.OnEvent(e)
	}

	require.Equal(t, float64(2), testutil.ToFloat64(c.eventsTotal.WithLabelValues("PROCESS_STARTED")))
	require.Equal(t, float64(2), testutil.ToFloat64(c.eventsTotal.WithLabelValues("PROCESS_COMPLETED")))
	require.Equal(t, float64(1), testutil.ToFloat64(c.eventsTotal.WithLabelValues("ERROR")))
	require.Equal(t, float64(1), testutil.ToFloat64(c.activeProcesses))
	require.Equal(t, float64(1), testutil.ToFloat64(c.assignments.WithLabelValues("writer")))
	require.Equal(t, 1, testutil.CollectAndCount(c.activityDuration))

	expected := `
# HELP procflow_process_instances_active Process and sub-process instances started and not yet finished
# TYPE procflow_process_instances_active gauge
procflow_process_instances_active 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "procflow_process_instances_active"))
}

func TestCollectorsAreIsolated(t *testing.T) {
	first := NewCollector("procflow", prometheus.NewRegistry())
	second := NewCollector("procflow", prometheus.NewRegistry())
	first.OnEvent(model.WorkflowEvent{Type: model.ERROR})
	require.Equal(t, float64(0), testutil.ToFloat64(second.eventsTotal.WithLabelValues("ERROR")))
}
