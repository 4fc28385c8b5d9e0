package sql

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mohitkumar/procflow/model"
	"github.com/mohitkumar/procflow/persistence"
	"github.com/mohitkumar/procflow/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// processState is one row per root process instance holding the full
// encoded instance tree.
type processState struct {
	InstanceId string `gorm:"primaryKey;size:64"`
	ProcessId  string `gorm:"index;size:255"`
	Status     string `gorm:"size:32"`
	State      []byte
	UpdatedAt  time.Time
}

func (processState) TableName() string {
	return "process_states"
}

var _ persistence.Storage = new(sqlStorage)

type sqlStorage struct {
	db             *gorm.DB
	encoderDecoder util.EncoderDecoder[model.InstanceTree]
}

// NewSqliteStorage opens (or creates) a SQLite database at dsn.
func NewSqliteStorage(dsn string, encoderDecoder util.EncoderDecoder[model.InstanceTree]) (*sqlStorage, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return NewSqlStorage(db, encoderDecoder)
}

func NewSqlStorage(db *gorm.DB, encoderDecoder util.EncoderDecoder[model.InstanceTree]) (*sqlStorage, error) {
	if err := db.AutoMigrate(&processState{}); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return &sqlStorage{db: db, encoderDecoder: encoderDecoder}, nil
}

func (ss *sqlStorage) SaveInstance(ctx context.Context, tree *model.InstanceTree) error {
	data, err := ss.encoderDecoder.Encode(*tree)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	row := processState{
		InstanceId: tree.RootId,
		State:      data,
		UpdatedAt:  model.Now(),
	}
	if root := tree.Root(); root != nil {
		row.ProcessId = root.ProcessId
		row.Status = string(root.Status)
	}
	err = ss.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (ss *sqlStorage) LoadInstance(ctx context.Context, id string) (*model.InstanceTree, error) {
	var row processState
	err := ss.db.WithContext(ctx).Where("instance_id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, persistence.ErrInstanceNotFound
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	tree, err := ss.encoderDecoder.Decode(row.State)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return tree, nil
}

func (ss *sqlStorage) DeleteInstance(ctx context.Context, id string) error {
	err := ss.db.WithContext(ctx).Where("instance_id = ?", id).Delete(&processState{}).Error
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (ss *sqlStorage) ListInstances(ctx context.Context) ([]string, error) {
	var ids []string
	err := ss.db.WithContext(ctx).Model(&processState{}).Order("instance_id").Pluck("instance_id", &ids).Error
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return ids, nil
}

// StatusOf reads the denormalised root status without decoding the state.
func (ss *sqlStorage) StatusOf(ctx context.Context, id string) (model.Status, error) {
	var row processState
	err := ss.db.WithContext(ctx).Select("status").Where("instance_id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", persistence.ErrInstanceNotFound
		}
		return "", persistence.StorageLayerError{Message: err.Error()}
	}
	return model.Status(row.Status), nil
}

func (ss *sqlStorage) Close() error {
	sqlDB, err := ss.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
