package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActivityTransitions(t *testing.T) {
	a := &ActivityInstance{Id: "a1", Status: NOT_STARTED}

	require.NoError(t, a.SetStatus(WAITING))
	require.Nil(t, a.StartedAt)
	require.NoError(t, a.SetStatus(IN_PROGRESS))
	require.NotNil(t, a.StartedAt)
	started := *a.StartedAt
	require.NoError(t, a.SetStatus(COMPLETED))
	require.NotNil(t, a.CompletedAt)
	require.Equal(t, started, *a.StartedAt)

	err := a.SetStatus(IN_PROGRESS)
	require.Error(t, err)
	_, ok := err.(InvalidTransitionError)
	require.True(t, ok)
}

func TestActivityCancelOnlyBeforeStart(t *testing.T) {
	waiting := &ActivityInstance{Id: "a1", Status: WAITING}
	require.NoError(t, waiting.SetStatus(CANCELED))
	require.NotNil(t, waiting.CompletedAt)

	running := &ActivityInstance{Id: "a2", Status: IN_PROGRESS}
	require.Error(t, running.SetStatus(CANCELED))
	require.Error(t, (&ActivityInstance{Id: "a3", Status: NOT_STARTED}).SetStatus(COMPLETED))
}

func TestToStatus(t *testing.T) {
	st, err := ToStatus("in_progress")
	require.NoError(t, err)
	require.Equal(t, IN_PROGRESS, st)
	_, err = ToStatus("paused")
	require.Error(t, err)
}

func TestInstanceTreeNavigation(t *testing.T) {
	tree := NewInstanceTree()
	tree.RootId = "p1"
	tree.Processes["p1"] = &ProcessInstance{Id: "p1", ActivityOrder: []string{"a1"}, SubProcessInstances: []string{"p2"}}
	tree.Processes["p2"] = &ProcessInstance{Id: "p2", ParentId: "p1", ActivityOrder: []string{"a2", "a3"}}
	tree.Activities["a1"] = &ActivityInstance{Id: "a1", ProcessInstanceId: "p1"}
	tree.Activities["a2"] = &ActivityInstance{Id: "a2", ProcessInstanceId: "p2"}
	tree.Activities["a3"] = &ActivityInstance{Id: "a3", ProcessInstanceId: "p2"}

	var ids []string
	for _, a := range tree.ActivitiesUnder("p1") {
		ids = append(ids, a.Id)
	}
	require.Equal(t, []string{"a1", "a2", "a3"}, ids)
	require.Len(t, tree.ActivitiesUnder("p2"), 2)

	chain := tree.Ancestors("p2")
	require.Len(t, chain, 2)
	require.Equal(t, "p1", chain[1].Id)
	require.Len(t, tree.InstanceIds(), 5)
}

func TestInstanceTreeJsonRoundTrip(t *testing.T) {
	tree := NewInstanceTree()
	tree.RootId = "p1"
	now := Now()
	root := &ProcessInstance{
		Id:                "p1",
		ProcessId:         "P",
		Status:            IN_PROGRESS,
		Context: map[string]any{
			"x":      int64(42),
			"id":     int64(9007199254740993),
			"ratio":  0.25,
			"name":   "spring",
			"series": []any{int64(1), 2.5, map[string]any{"n": int64(-3)}},
		},
		ActivityInstances: map[string]string{"A": "a1"},
		ActivityOrder:     []string{"a1"},
		CreatedAt:         now,
		UpdatedAt:         now,
		StartedAt:         &now,
	}
	tree.Processes["p1"] = root
	tree.Activities["a1"] = &ActivityInstance{Id: "a1", ActivityId: "A", ProcessInstanceId: "p1", Status: COMPLETED,
		Context: map[string]any{"x": int64(42)}, AgentId: "agent-1", CreatedAt: now, UpdatedAt: now, StartedAt: &now, CompletedAt: &now}

	data, err := json.Marshal(tree)
	require.NoError(t, err)
	var decoded InstanceTree
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, tree, &decoded)
	require.Equal(t, int64(9007199254740993), decoded.Root().Context["id"])
}
