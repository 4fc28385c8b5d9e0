package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mohitkumar/procflow/model"
	"github.com/mohitkumar/procflow/persistence"
	"github.com/mohitkumar/procflow/persistence/storagetest"
	"github.com/mohitkumar/procflow/util"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T, root string) *fileStorage {
	t.Helper()
	st, err := NewFileStorage(root, util.NewIndentedJsonEncoderDecoder[model.InstanceTree]())
	require.NoError(t, err)
	return st
}

func TestFileStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) persistence.Storage {
		return newStorage(t, t.TempDir())
	})
}

func TestFileLayout(t *testing.T) {
	root := t.TempDir()
	st := newStorage(t, root)
	ctx := context.Background()
	require.NoError(t, st.SaveInstance(ctx, storagetest.SampleTree("run-1")))

	data, err := os.ReadFile(filepath.Join(root, "run-1", STATE_FILE))
	require.NoError(t, err)
	require.Contains(t, string(data), `"status": "IN_PROGRESS"`)
	require.Contains(t, string(data), `"createdAt": "2024-03-01T10:00:00Z"`)

	entries, err := os.ReadDir(filepath.Join(root, "run-1"))
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp")
	}

	// a second store over the same directory sees the state, as after a restart
	loaded, err := newStorage(t, root).LoadInstance(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, model.IN_PROGRESS, loaded.Root().Status)
}

func TestFileStorageRejectsBadIds(t *testing.T) {
	st := newStorage(t, t.TempDir())
	ctx := context.Background()
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		tree := storagetest.SampleTree("x")
		tree.RootId = id
		err := st.SaveInstance(ctx, tree)
		require.Error(t, err)
		var storageErr persistence.StorageLayerError
		require.True(t, errors.As(err, &storageErr))
	}
}

func TestFileStorageCorruptState(t *testing.T) {
	root := t.TempDir()
	st := newStorage(t, root)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "broken"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken", STATE_FILE), []byte("{"), 0o644))
	_, err := st.LoadInstance(context.Background(), "broken")
	var storageErr persistence.StorageLayerError
	require.True(t, errors.As(err, &storageErr))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty-dir"), 0o755))
	ids, err := st.ListInstances(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"broken"}, ids)
}

func TestNewFileStorageRequiresRoot(t *testing.T) {
	_, err := NewFileStorage(" ", util.NewJsonEncoderDecoder[model.InstanceTree]())
	require.Error(t, err)
}
