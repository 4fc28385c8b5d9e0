package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mohitkumar/procflow/logger"
	"github.com/mohitkumar/procflow/model"
	"github.com/mohitkumar/procflow/persistence"
	"github.com/mohitkumar/procflow/util"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const PROCESS_KEY string = "PROCESS"

var _ persistence.Storage = new(redisStorage)

// redisStorage keeps every snapshot in one hash, <namespace>:PROCESS, keyed
// by root instance id.
type redisStorage struct {
	redisClient    rd.UniversalClient
	namespace      string
	encoderDecoder util.EncoderDecoder[model.InstanceTree]
}

func NewRedisStorage(conf Config, encoderDecoder util.EncoderDecoder[model.InstanceTree]) *redisStorage {
	redisClient := rd.NewUniversalClient(&rd.UniversalOptions{
		Addrs: conf.Addrs,
	})
	return NewRedisStorageWithClient(redisClient, conf.Namespace, encoderDecoder)
}

func NewRedisStorageWithClient(client rd.UniversalClient, namespace string, encoderDecoder util.EncoderDecoder[model.InstanceTree]) *redisStorage {
	return &redisStorage{
		redisClient:    client,
		namespace:      namespace,
		encoderDecoder: encoderDecoder,
	}
}

func (rs *redisStorage) getNamespaceKey(args ...string) string {
	return fmt.Sprintf("%s:%s", rs.namespace, strings.Join(args, ":"))
}

func (rs *redisStorage) SaveInstance(ctx context.Context, tree *model.InstanceTree) error {
	data, err := rs.encoderDecoder.Encode(*tree)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	key := rs.getNamespaceKey(PROCESS_KEY)
	if err := rs.redisClient.HSet(ctx, key, tree.RootId, string(data)).Err(); err != nil {
		logger.Error("error in saving process state", zap.String("processInstance", tree.RootId), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rs *redisStorage) LoadInstance(ctx context.Context, id string) (*model.InstanceTree, error) {
	key := rs.getNamespaceKey(PROCESS_KEY)
	value, err := rs.redisClient.HGet(ctx, key, id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.ErrInstanceNotFound
		}
		logger.Error("error in getting process state", zap.String("processInstance", id), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	tree, err := rs.encoderDecoder.Decode([]byte(value))
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return tree, nil
}

func (rs *redisStorage) DeleteInstance(ctx context.Context, id string) error {
	key := rs.getNamespaceKey(PROCESS_KEY)
	if err := rs.redisClient.HDel(ctx, key, id).Err(); err != nil {
		logger.Error("error in deleting process state", zap.String("processInstance", id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rs *redisStorage) ListInstances(ctx context.Context) ([]string, error) {
	ids, err := rs.redisClient.HKeys(ctx, rs.getNamespaceKey(PROCESS_KEY)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	sort.Strings(ids)
	return ids, nil
}

func (rs *redisStorage) Close() error {
	return rs.redisClient.Close()
}
