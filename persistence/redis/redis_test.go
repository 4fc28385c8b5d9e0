package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/mohitkumar/procflow/model"
	"github.com/mohitkumar/procflow/persistence"
	"github.com/mohitkumar/procflow/persistence/storagetest"
	"github.com/mohitkumar/procflow/util"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redisStorage) {
	t.Helper()
	mr := miniredis.RunT(t)
	st := NewRedisStorage(Config{Addrs: []string{mr.Addr()}, Namespace: "procflow"}, util.NewJsonEncoderDecoder[model.InstanceTree]())
	t.Cleanup(func() { st.Close() })
	return mr, st
}

func TestRedisStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) persistence.Storage {
		_, st := setupTestRedis(t)
		return st
	})
}

func TestRedisLayout(t *testing.T) {
	mr, st := setupTestRedis(t)
	require.NoError(t, st.SaveInstance(context.Background(), storagetest.SampleTree("run-1")))
	keys, err := mr.HKeys("procflow:PROCESS")
	require.NoError(t, err)
	require.Equal(t, []string{"run-1"}, keys)
	require.Contains(t, mr.HGet("procflow:PROCESS", "run-1"), `"rootId":"run-1"`)
}

func TestRedisUnavailable(t *testing.T) {
	mr, st := setupTestRedis(t)
	mr.Close()
	err := st.SaveInstance(context.Background(), storagetest.SampleTree("run-1"))
	require.Error(t, err)
	require.IsType(t, persistence.StorageLayerError{}, err)
}
