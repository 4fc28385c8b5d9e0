package container

import (
	"fmt"
	"io"

	"github.com/mohitkumar/procflow/config"
	"github.com/mohitkumar/procflow/definition"
	"github.com/mohitkumar/procflow/interpreter"
	"github.com/mohitkumar/procflow/model"
	"github.com/mohitkumar/procflow/persistence"
	"github.com/mohitkumar/procflow/persistence/file"
	"github.com/mohitkumar/procflow/persistence/memory"
	rd "github.com/mohitkumar/procflow/persistence/redis"
	sqlstore "github.com/mohitkumar/procflow/persistence/sql"
	"github.com/mohitkumar/procflow/util"
)

type DIContiner struct {
	initialized    bool
	storage        persistence.Storage
	registry       *definition.Registry
	interpreter    *interpreter.Interpreter
	InstanceEncDec util.EncoderDecoder[model.InstanceTree]
}

func (p *DIContiner) setInitialized() {
	p.initialized = true
}

func NewDiContainer() *DIContiner {
	return &DIContiner{
		initialized: false,
	}
}

func (d *DIContiner) Init(conf config.Config) error {
	registry, err := definition.Load(conf.DefinitionsPath)
	if err != nil {
		return err
	}
	d.registry = registry
	d.interpreter = interpreter.NewInterpreter(registry)

	switch conf.StorageType {
	case config.STORAGE_TYPE_FILE:
		d.InstanceEncDec = util.NewIndentedJsonEncoderDecoder[model.InstanceTree]()
	default:
		d.InstanceEncDec = util.NewJsonEncoderDecoder[model.InstanceTree]()
	}

	storage, err := d.newStorage(conf)
	if err != nil {
		return err
	}
	d.storage = storage
	d.setInitialized()
	return nil
}

func (d *DIContiner) newStorage(conf config.Config) (persistence.Storage, error) {
	switch conf.StorageType {
	case config.STORAGE_TYPE_FILE:
		return file.NewFileStorage(conf.FileConfig.StateDir, d.InstanceEncDec)
	case config.STORAGE_TYPE_REDIS:
		rdConf := rd.Config{
			Addrs:     conf.RedisConfig.Addrs,
			Namespace: conf.RedisConfig.Namespace,
		}
		return rd.NewRedisStorage(rdConf, d.InstanceEncDec), nil
	case config.STORAGE_TYPE_SQL:
		return sqlstore.NewSqliteStorage(conf.SqlConfig.DSN, d.InstanceEncDec)
	case config.STORAGE_TYPE_INMEM:
		return memory.NewMemoryStorage(d.InstanceEncDec), nil
	}
	return nil, fmt.Errorf("unknown storage type %s", conf.StorageType)
}

func (d *DIContiner) GetStorage() persistence.Storage {
	if !d.initialized {
		panic("persistence not initalized")
	}
	return d.storage
}

func (d *DIContiner) GetRegistry() *definition.Registry {
	if !d.initialized {
		panic("definitions not initalized")
	}
	return d.registry
}

func (d *DIContiner) GetInterpreter() *interpreter.Interpreter {
	if !d.initialized {
		panic("definitions not initalized")
	}
	return d.interpreter
}

// Close releases storage connections for backends that hold any.
func (d *DIContiner) Close() error {
	if c, ok := d.storage.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
