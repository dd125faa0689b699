package config

import (
	"github.com/pkg/errors"

	"github.com/kvapi-dev/kvapi/internal/batch"
	"github.com/kvapi-dev/kvapi/storage"
	"github.com/kvapi-dev/kvapi/storage/model"
)

// apiConf holds API-related configuration
type apiConf struct {
	DevMode                bool                   `yaml:"dev_mode"`
	EnableReset            bool                   `yaml:"enable_reset"`
	DisablePublicEntries   bool                   `yaml:"disable_public_entries"`
	ValueMaxSize           int                    `yaml:"value_max_size"`
	PrivateDBMaxNumEntries int                    `yaml:"private_db_max_num_entries"`
	PrivateDBMaxSize       int64                  `yaml:"private_db_max_size"`
	BatchMaxSize           int                    `yaml:"batch_max_size"`
	Argon2idParams         storage.Argon2idParams `yaml:"password_hashing"`
}

var defaultLimits = model.DefaultLimits()

var defaultAPIConf = apiConf{
	ValueMaxSize:           defaultLimits.ValueMaxSize,
	PrivateDBMaxNumEntries: defaultLimits.PrivateDBMaxNumEntries,
	PrivateDBMaxSize:       defaultLimits.PrivateDBMaxSize,
	BatchMaxSize:           batch.DefaultMaxSize,
	Argon2idParams: storage.Argon2idParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      64,
		SaltLen:     32,
	},
}

func (c *apiConf) validate() error {
	if c.ValueMaxSize <= 0 {
		return errors.New("error in api conf: value_max_size must be positive")
	}
	if c.PrivateDBMaxNumEntries <= 0 {
		return errors.New("error in api conf: private_db_max_num_entries must be positive")
	}
	if c.PrivateDBMaxSize <= 0 {
		return errors.New("error in api conf: private_db_max_size must be positive")
	}
	if c.BatchMaxSize <= 0 {
		return errors.New("error in api conf: batch_max_size must be positive")
	}
	if c.EnableReset && !c.DevMode {
		return errors.New("error in api conf: enable_reset requires dev_mode")
	}
	return nil
}

// Limits returns the model.Limits configured by the api and sessions sections
func (conf Config) Limits() model.Limits {
	return model.Limits{
		ValueMaxSize:           conf.API.ValueMaxSize,
		PrivateDBMaxNumEntries: conf.API.PrivateDBMaxNumEntries,
		PrivateDBMaxSize:       conf.API.PrivateDBMaxSize,
		SessionMaxInactivity:   conf.Sessions.MaxInactivity.Duration(),
		DisablePublicEntries:   conf.API.DisablePublicEntries,
		DevMode:                conf.API.DevMode,
	}
}
