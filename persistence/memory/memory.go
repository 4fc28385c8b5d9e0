package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mohitkumar/procflow/model"
	"github.com/mohitkumar/procflow/persistence"
	"github.com/mohitkumar/procflow/util"
)

var _ persistence.Storage = new(memoryStorage)

// memoryStorage keeps encoded snapshots so callers never share instance
// pointers with the store.
type memoryStorage struct {
	mu             sync.RWMutex
	states         map[string][]byte
	encoderDecoder util.EncoderDecoder[model.InstanceTree]
}

func NewMemoryStorage(encoderDecoder util.EncoderDecoder[model.InstanceTree]) *memoryStorage {
	return &memoryStorage{
		states:         make(map[string][]byte),
		encoderDecoder: encoderDecoder,
	}
}

func (ms *memoryStorage) SaveInstance(_ context.Context, tree *model.InstanceTree) error {
	data, err := ms.encoderDecoder.Encode(*tree)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.states[tree.RootId] = data
	return nil
}

func (ms *memoryStorage) LoadInstance(_ context.Context, id string) (*model.InstanceTree, error) {
	ms.mu.RLock()
	data, ok := ms.states[id]
	ms.mu.RUnlock()
	if !ok {
		return nil, persistence.ErrInstanceNotFound
	}
	tree, err := ms.encoderDecoder.Decode(data)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return tree, nil
}

func (ms *memoryStorage) DeleteInstance(_ context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.states, id)
	return nil
}

func (ms *memoryStorage) ListInstances(_ context.Context) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	ids := make([]string, 0, len(ms.states))
	for id := range ms.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
