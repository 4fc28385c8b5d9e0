package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTreeCloneIsDetached(t *testing.T) {
	tree := NewInstanceTree()
	tree.RootId = "p1"
	tree.Processes["p1"] = &ProcessInstance{
		Id:                "p1",
		Context:           map[string]any{"audience": map[string]any{"segments": []any{"smb"}}},
		ActivityInstances: map[string]string{"draft": "a1"},
		ActivityOrder:     []string{"a1"},
	}
	tree.Activities["a1"] = &ActivityInstance{Id: "a1", ProcessInstanceId: "p1", Status: NOT_STARTED, Context: map[string]any{}}

	c := tree.Clone()
	require.Equal(t, tree, c)

	c.Processes["p1"].Context["audience"].(map[string]any)["segments"].([]any)[0] = "enterprise"
	c.Processes["p1"].ActivityOrder[0] = "other"
	c.Processes["p1"].ActivityInstances["draft"] = "other"
	require.NoError(t, c.Activities["a1"].SetStatus(WAITING))
	c.Activities["a1"].Context["k"] = "v"

	orig := tree.Processes["p1"]
	require.Equal(t, "smb", orig.Context["audience"].(map[string]any)["segments"].([]any)[0])
	require.Equal(t, []string{"a1"}, orig.ActivityOrder)
	require.Equal(t, "a1", orig.ActivityInstances["draft"])
	require.Equal(t, NOT_STARTED, tree.Activities["a1"].Status)
	require.Empty(t, tree.Activities["a1"].Context)
}
