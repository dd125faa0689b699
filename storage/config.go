package storage

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// DriverType names a sql database driver usable by Storage
type DriverType string

// Supported sql drivers
const (
	DriverSQLite   DriverType = "sqlite"
	DriverMySQL    DriverType = "mysql"
	DriverPostgres DriverType = "postgres"
)

var supportedDrivers = []DriverType{
	DriverSQLite,
	DriverMySQL,
	DriverPostgres,
}

// sqliteFile is the database file created in the data dir
const sqliteFile = "kvapi.db"

// ParseDriver returns the DriverType for name; matching is case-insensitive
func ParseDriver(name string) (DriverType, error) {
	d := DriverType(strings.ToLower(strings.TrimSpace(name)))
	if !slices.Contains(supportedDrivers, d) {
		return "", errors.Errorf("unsupported driver '%s'", name)
	}
	return d, nil
}

// DSNConf holds the connection parameters a dsn is built from for the
// server-based drivers.
type DSNConf struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"db"`
	// SSLMode is only used by postgres; empty leaves the driver default
	SSLMode string `yaml:"ssl_mode"`
}

// DSN builds the connection string for driver from conf. Sqlite has no dsn,
// its database lives in the data dir.
func DSN(driver DriverType, conf DSNConf) (string, error) {
	switch driver {
	case DriverSQLite:
		return "", errors.Errorf("driver %s does not use dsn", driver)
	case DriverMySQL:
		if conf.Port == 0 {
			conf.Port = 3306
		}
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True",
			conf.User, conf.Password, conf.Host, conf.Port, conf.DB,
		), nil
	case DriverPostgres:
		if conf.Port == 0 {
			conf.Port = 5432
		}
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%d",
			conf.Host, conf.User, conf.Password, conf.DB, conf.Port,
		)
		if conf.SSLMode != "" {
			dsn += " sslmode=" + conf.SSLMode
		}
		return dsn, nil
	default:
		return "", errors.Errorf("unsupported driver '%s'", driver)
	}
}

// Config configures a gorm Storage
type Config struct {
	Driver DriverType `yaml:"driver"`
	// DSN is the connection string for mysql and postgres; for sqlite it
	// may point to the database file
	DSN string `yaml:"dsn"`
	// DataDir holds the sqlite database file if no DSN is set
	DataDir string `yaml:"data_dir"`
	// Debug logs every sql statement
	Debug bool `yaml:"debug"`
	// UsersHash are the argon2id parameters for user passwords
	UsersHash Argon2idParams
}

func (cfg Config) dialector() (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			if cfg.DataDir == "" {
				return nil, errors.New("sqlite needs either a dsn or a data dir")
			}
			dsn = filepath.Join(cfg.DataDir, sqliteFile)
		}
		// every write is persisted before it is acknowledged; wait for
		// locks instead of failing the write
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=5000&_journal_mode=WAL"
		}
		return sqlite.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(cfg.DSN), nil
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, errors.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Connect opens the database described by cfg
func Connect(cfg Config) (*gorm.DB, error) {
	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}
	logMode := logger.Silent
	if cfg.Debug {
		logMode = logger.Info
	}
	db, err := gorm.Open(
		dialector, &gorm.Config{
			Logger: logger.Default.LogMode(logMode),
		},
	)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite serializes writers anyway
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// LoadStorageBackends opens the database and returns the backends using it.
func LoadStorageBackends(cfg Config) (model.Backends, error) {
	warehouse, err := NewStorage(cfg)
	if err != nil {
		return model.Backends{}, err
	}
	return model.Backends{
		Persister: warehouse,
		Hasher:    warehouse.Hasher(),
	}, nil
}
