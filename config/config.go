package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mohitkumar/procflow/analytics"
	"github.com/mohitkumar/procflow/engine"
	"github.com/mohitkumar/procflow/persistence"
)

type StorageType string

const STORAGE_TYPE_FILE StorageType = StorageType(persistence.STORAGE_TYPE_FILE)
const STORAGE_TYPE_INMEM StorageType = StorageType(persistence.STORAGE_TYPE_MEMORY)
const STORAGE_TYPE_REDIS StorageType = StorageType(persistence.STORAGE_TYPE_REDIS)
const STORAGE_TYPE_SQL StorageType = StorageType(persistence.STORAGE_TYPE_SQL)

type Config struct {
	StorageType     StorageType
	FileConfig      FileStorageConfig
	RedisConfig     RedisStorageConfig
	SqlConfig       SqlStorageConfig
	DefinitionsPath string
	AgentsFile      string
	LogLevel        string
	Development     bool
	PollInterval    time.Duration
	EngineConfig    EngineConfig
	AnalyticsConfig analytics.DataCollectorConfig
	MetricsFile     string
}

type FileStorageConfig struct {
	StateDir string
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
}

type SqlStorageConfig struct {
	DSN string
}

type EngineConfig struct {
	BackoffInitial       time.Duration
	BackoffMax           time.Duration
	BlockedAlertAttempts int
	OnComplete           string
	OnFailure            string
	CacheExpiration      time.Duration
}

// Options converts the engine section into engine options.
func (c EngineConfig) Options() engine.Options {
	return engine.Options{
		BackoffInitial:       c.BackoffInitial,
		BackoffMax:           c.BackoffMax,
		BlockedAlertAttempts: c.BlockedAlertAttempts,
		OnComplete:           engine.ToStatehandler(c.OnComplete),
		OnFailure:            engine.ToStatehandler(c.OnFailure),
		CacheExpiration:      c.CacheExpiration,
	}
}

func (c Config) Validate() error {
	var errs []error
	switch c.StorageType {
	case STORAGE_TYPE_FILE:
		if c.FileConfig.StateDir == "" {
			errs = append(errs, errors.New("state dir is required for file storage"))
		}
	case STORAGE_TYPE_REDIS:
		if len(c.RedisConfig.Addrs) == 0 || c.RedisConfig.Addrs[0] == "" {
			errs = append(errs, errors.New("redis address is required for redis storage"))
		}
	case STORAGE_TYPE_SQL:
		if c.SqlConfig.DSN == "" {
			errs = append(errs, errors.New("dsn is required for sql storage"))
		}
	case STORAGE_TYPE_INMEM:
	default:
		errs = append(errs, fmt.Errorf("unknown storage type %s", c.StorageType))
	}
	if err := engine.ValidateStateHandler(c.EngineConfig.OnComplete); err != nil {
		errs = append(errs, fmt.Errorf("on complete: %w", err))
	}
	if err := engine.ValidateStateHandler(c.EngineConfig.OnFailure); err != nil {
		errs = append(errs, fmt.Errorf("on failure: %w", err))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.EngineConfig.BackoffMax < c.EngineConfig.BackoffInitial {
		errs = append(errs, errors.New("backoff max must not be lower than backoff initial"))
	}
	return errors.Join(errs...)
}
