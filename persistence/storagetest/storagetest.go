// Package storagetest holds the behaviour every persistence.Storage backend
// must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohitkumar/procflow/model"
	"github.com/mohitkumar/procflow/persistence"
	"github.com/stretchr/testify/require"
)

// SampleTree builds a two level instance tree with a mix of statuses and
// context values that survive a JSON round trip unchanged.
func SampleTree(rootId string) *model.InstanceTree {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	started := created.Add(time.Minute)
	done := created.Add(2 * time.Minute)
	tree := model.NewInstanceTree()
	tree.RootId = rootId
	tree.Processes[rootId] = &model.ProcessInstance{
		Id:                  rootId,
		ProcessId:           "campaign-launch",
		FrameworkId:         "marketing",
		Status:              model.IN_PROGRESS,
		Context:             map[string]any{"budget": 250.5, "reach": int64(9007199254740993), "region": "emea", "tags": []any{"a", "b"}},
		ActivityInstances:   map[string]string{"define-audience": rootId + "-a1"},
		ActivityOrder:       []string{rootId + "-a1"},
		SubProcessInstances: []string{rootId + "-s1"},
		CreatedAt:           created,
		UpdatedAt:           started,
		StartedAt:           &started,
	}
	tree.Processes[rootId+"-s1"] = &model.ProcessInstance{
		Id:                rootId + "-s1",
		ProcessId:         "creative-review",
		FrameworkId:       "marketing",
		ParentId:          rootId,
		Status:            model.NOT_STARTED,
		Context:           map[string]any{},
		ActivityInstances: map[string]string{"review-creative": rootId + "-a2"},
		ActivityOrder:     []string{rootId + "-a2"},
		CreatedAt:         created,
		UpdatedAt:         created,
	}
	tree.Activities[rootId+"-a1"] = &model.ActivityInstance{
		Id:                rootId + "-a1",
		ActivityId:        "define-audience",
		ProcessInstanceId: rootId,
		Status:            model.COMPLETED,
		Context:           map[string]any{"audience": map[string]any{"size": int64(1200), "share": 0.4}},
		AgentId:           "segmenter",
		CreatedAt:         created,
		UpdatedAt:         done,
		StartedAt:         &started,
		CompletedAt:       &done,
	}
	tree.Activities[rootId+"-a2"] = &model.ActivityInstance{
		Id:                rootId + "-a2",
		ActivityId:        "review-creative",
		ProcessInstanceId: rootId + "-s1",
		Status:            model.WAITING,
		Context:           map[string]any{},
		AgentId:           "reviewer",
		CreatedAt:         created,
		UpdatedAt:         done,
	}
	return tree
}

// Run exercises a fresh storage returned by newStorage.
func Run(t *testing.T, newStorage func(t *testing.T) persistence.Storage) {
	tests := map[string]func(t *testing.T, st persistence.Storage){
		"save and load round trip": testRoundTrip,
		"save overwrites":          testOverwrite,
		"load unknown":             testLoadUnknown,
		"delete":                   testDelete,
		"list":                     testList,
		"loaded copy is detached":  testDetached,
	}
	for scenario, fn := range tests {
		t.Run(scenario, func(t *testing.T) {
			fn(t, newStorage(t))
		})
	}
}

func testRoundTrip(t *testing.T, st persistence.Storage) {
	ctx := context.Background()
	tree := SampleTree("run-1")
	require.NoError(t, st.SaveInstance(ctx, tree))
	loaded, err := st.LoadInstance(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, tree, loaded)
}

func testOverwrite(t *testing.T, st persistence.Storage) {
	ctx := context.Background()
	tree := SampleTree("run-1")
	require.NoError(t, st.SaveInstance(ctx, tree))
	tree.Root().Status = model.COMPLETED
	tree.Root().Context["x"] = int64(42)
	require.NoError(t, st.SaveInstance(ctx, tree))
	loaded, err := st.LoadInstance(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, model.COMPLETED, loaded.Root().Status)
	require.Equal(t, int64(42), loaded.Root().Context["x"])
}

func testLoadUnknown(t *testing.T, st persistence.Storage) {
	_, err := st.LoadInstance(context.Background(), "missing")
	require.True(t, errors.Is(err, persistence.ErrInstanceNotFound), "got %v", err)
}

func testDelete(t *testing.T, st persistence.Storage) {
	ctx := context.Background()
	require.NoError(t, st.SaveInstance(ctx, SampleTree("run-1")))
	require.NoError(t, st.DeleteInstance(ctx, "run-1"))
	_, err := st.LoadInstance(ctx, "run-1")
	require.True(t, errors.Is(err, persistence.ErrInstanceNotFound))
	require.NoError(t, st.DeleteInstance(ctx, "run-1"))
}

func testList(t *testing.T, st persistence.Storage) {
	ctx := context.Background()
	ids, err := st.ListInstances(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)
	for _, id := range []string{"run-b", "run-a", "run-c"} {
		require.NoError(t, st.SaveInstance(ctx, SampleTree(id)))
	}
	ids, err = st.ListInstances(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"run-a", "run-b", "run-c"}, ids)
}

func testDetached(t *testing.T, st persistence.Storage) {
	ctx := context.Background()
	tree := SampleTree("run-1")
	require.NoError(t, st.SaveInstance(ctx, tree))
	tree.Root().Context["later"] = true
	loaded, err := st.LoadInstance(ctx, "run-1")
	require.NoError(t, err)
	require.NotContains(t, loaded.Root().Context, "later")
	loaded.Root().Context["mutated"] = true
	again, err := st.LoadInstance(ctx, "run-1")
	require.NoError(t, err)
	require.NotContains(t, again.Root().Context, "mutated")
}
