package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohitkumar/procflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

var ErrInstanceNotFound = errors.New("instance not found")

const STORAGE_TYPE_FILE string = "file"
const STORAGE_TYPE_MEMORY string = "memory"
const STORAGE_TYPE_REDIS string = "redis"
const STORAGE_TYPE_SQL string = "sql"

// Storage keeps one full snapshot per top level process instance. Saving
// overwrites the previous snapshot; deleting an unknown id is not an error.
type Storage interface {
	SaveInstance(ctx context.Context, tree *model.InstanceTree) error
	LoadInstance(ctx context.Context, id string) (*model.InstanceTree, error)
	DeleteInstance(ctx context.Context, id string) error
	ListInstances(ctx context.Context) ([]string, error)
}
