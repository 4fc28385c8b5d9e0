package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/mohitkumar/procflow/logger"
	"github.com/mohitkumar/procflow/model"
	"github.com/mohitkumar/procflow/persistence"
	"github.com/mohitkumar/procflow/util"
	"go.uber.org/zap"
)

const STATE_FILE string = "state.json"
const LOCK_FILE string = "state.lock"

var _ persistence.Storage = new(fileStorage)

// fileStorage writes <root>/<instance-id>/state.json. Writes go to a temp
// file that is renamed over the previous state; a lock file next to it
// serialises readers and writers across processes.
type fileStorage struct {
	root           string
	encoderDecoder util.EncoderDecoder[model.InstanceTree]
}

func NewFileStorage(root string, encoderDecoder util.EncoderDecoder[model.InstanceTree]) (*fileStorage, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("file storage: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("file storage: create %s: %w", root, err)
	}
	return &fileStorage{root: root, encoderDecoder: encoderDecoder}, nil
}

func (st *fileStorage) dir(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", persistence.StorageLayerError{Message: fmt.Sprintf("invalid instance id %q", id)}
	}
	return filepath.Join(st.root, id), nil
}

func (st *fileStorage) SaveInstance(_ context.Context, tree *model.InstanceTree) error {
	dir, err := st.dir(tree.RootId)
	if err != nil {
		return err
	}
	data, err := st.encoderDecoder.Encode(*tree)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error("error in creating state directory", zap.String("dir", dir), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	lock := flock.New(filepath.Join(dir, LOCK_FILE))
	if err := lock.Lock(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, STATE_FILE+".*.tmp")
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	tmpName := tmp.Name()
	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, filepath.Join(dir, STATE_FILE))
	}
	if err != nil {
		os.Remove(tmpName)
		logger.Error("error in saving state", zap.String("processInstance", tree.RootId), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (st *fileStorage) LoadInstance(_ context.Context, id string) (*model.InstanceTree, error) {
	dir, err := st.dir(id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, persistence.ErrInstanceNotFound
	}
	lock := flock.New(filepath.Join(dir, LOCK_FILE))
	if err := lock.RLock(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer lock.Unlock()

	data, err := os.ReadFile(filepath.Join(dir, STATE_FILE))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.ErrInstanceNotFound
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	tree, err := st.encoderDecoder.Decode(data)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: fmt.Sprintf("decode %s: %v", id, err)}
	}
	return tree, nil
}

func (st *fileStorage) DeleteInstance(_ context.Context, id string) error {
	dir, err := st.dir(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (st *fileStorage) ListInstances(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(st.root)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(st.root, entry.Name(), STATE_FILE)); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Warn("skipping unreadable state", zap.String("dir", entry.Name()), zap.Error(err))
			}
			continue
		}
		ids = append(ids, entry.Name())
	}
	sort.Strings(ids)
	return ids, nil
}
