package config

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kvapi-dev/kvapi/storage"
	"github.com/kvapi-dev/kvapi/storage/badgerstore"
	"github.com/kvapi-dev/kvapi/storage/model"
)

type storageConf struct {
	BackendType     backendType        `yaml:"backend"`
	Driver          storage.DriverType `yaml:"driver"`
	DataDir         string             `yaml:"data_dir"`
	DSN             string             `yaml:"dsn"`
	storage.DSNConf `yaml:",inline"`
	Debug           bool `yaml:"debug"`
}

type backendType string

// Supported storage backends
const (
	BackendTypeGorm   backendType = "gorm"
	BackendTypeBadger backendType = "badger"
	BackendTypeMemory backendType = "memory"
)

func (c *storageConf) validate() error {
	switch c.BackendType {
	case BackendTypeMemory:
		return nil
	case BackendTypeBadger:
		if c.DataDir == "" {
			return errors.New("error in storage conf: data_dir must be specified")
		}
		return nil
	case BackendTypeGorm, "":
		c.BackendType = BackendTypeGorm
	default:
		return errors.Errorf("error in storage conf: unknown backend '%s'", c.BackendType)
	}

	driver, err := storage.ParseDriver(string(c.Driver))
	if err != nil {
		return errors.WithMessage(err, "error in storage conf")
	}
	c.Driver = driver
	if c.Driver == storage.DriverSQLite {
		if c.DataDir == "" && c.DSN == "" {
			return errors.New("error in storage conf: data_dir must be specified")
		}
		return nil
	}
	if c.DSN == "" {
		c.DSN, err = storage.DSN(c.Driver, c.DSNConf)
	}
	return err
}

var defaultStorageConf = storageConf{
	BackendType: BackendTypeGorm,
	Driver:      storage.DriverSQLite,
	DSNConf: storage.DSNConf{
		User: "kvapi",
		Host: "localhost",
		DB:   "kvapi",
	},
	Debug: false,
}

// LoadStorageBackends loads and returns the storage backends for the passed
// config. The memory backend has no persister.
func LoadStorageBackends(c storageConf, hashing storage.Argon2idParams) (model.Backends, error) {
	var backs model.Backends
	switch c.BackendType {
	case BackendTypeMemory:
		backs.Hasher = storage.NewArgon2idHasher(hashing)
	case BackendTypeBadger:
		store, err := badgerstore.Open(c.DataDir)
		if err != nil {
			return model.Backends{}, err
		}
		backs.Persister = store
		backs.Hasher = storage.NewArgon2idHasher(hashing)
	default:
		cfg := storage.Config{
			Driver:    c.Driver,
			DSN:       c.DSN,
			DataDir:   c.DataDir,
			Debug:     c.Debug,
			UsersHash: hashing,
		}
		var err error
		if backs, err = storage.LoadStorageBackends(cfg); err != nil {
			return model.Backends{}, err
		}
	}
	log.WithField("backend", c.BackendType).Info("Loaded storage backend")
	return backs, nil
}
