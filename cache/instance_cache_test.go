package cache

import (
	"testing"
	"time"

	"github.com/mohitkumar/procflow/model"
	"github.com/stretchr/testify/require"
)

func tree(id string, status model.Status) *model.InstanceTree {
	t := model.NewInstanceTree()
	t.RootId = id
	t.Processes[id] = &model.ProcessInstance{Id: id, Status: status}
	return t
}

func TestInstanceCache(t *testing.T) {
	ch := NewInstanceCache(time.Minute)
	ch.Put(tree("b", model.IN_PROGRESS))
	ch.Put(tree("a", model.IN_PROGRESS))

	got, ok := ch.Get("a")
	require.True(t, ok)
	require.Equal(t, "a", got.RootId)
	require.Equal(t, []string{"a", "b"}, ch.RootIds())
	require.Equal(t, 2, ch.Len())

	ch.Delete("a")
	_, ok = ch.Get("a")
	require.False(t, ok)
}

func TestTerminalTreesExpire(t *testing.T) {
	ch := NewInstanceCache(20 * time.Millisecond)
	ch.Put(tree("done", model.COMPLETED))
	ch.Put(tree("running", model.IN_PROGRESS))
	require.Eventually(t, func() bool {
		_, ok := ch.Get("done")
		return !ok
	}, time.Second, 5*time.Millisecond)
	_, ok := ch.Get("running")
	require.True(t, ok)
}

func TestNoTerminalExpiration(t *testing.T) {
	ch := NewInstanceCache(0)
	ch.Put(tree("done", model.FAILED))
	time.Sleep(10 * time.Millisecond)
	_, ok := ch.Get("done")
	require.True(t, ok)
}
