package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// Storage is a GORM-based model.Persister
type Storage struct {
	db         *gorm.DB
	userParams Argon2idParams
}

var models = []any{
	&model.User{},
	&model.Entry{},
}

// NewStorage creates a new GORM-based storage
func NewStorage(config Config) (*Storage, error) {
	db, err := Connect(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	return newStorage(db, config.UsersHash)
}

func newStorage(db *gorm.DB, params Argon2idParams) (*Storage, error) {
	// Auto migrate the schemas
	if err := db.AutoMigrate(models...); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	// Fill user hash params with defaults if zero values
	if params.Time == 0 {
		params = defaultArgon2idParams()
	}

	return &Storage{
		db:         db,
		userParams: params,
	}, nil
}

// Hasher returns the PasswordHasher configured for this storage
func (s *Storage) Hasher() *Argon2idHasher {
	return NewArgon2idHasher(s.userParams)
}

// Load implements the model.Persister interface
func (s *Storage) Load() (*model.Snapshot, error) {
	var snapshot model.Snapshot
	if err := s.db.Order("created_at").Find(&snapshot.Users).Error; err != nil {
		return nil, errors.Wrap(err, "could not load users")
	}
	if err := s.db.Find(&snapshot.Entries).Error; err != nil {
		return nil, errors.Wrap(err, "could not load entries")
	}
	return &snapshot, nil
}

// Reset implements the model.Persister interface
func (s *Storage) Reset() error {
	return s.db.Transaction(
		func(tx *gorm.DB) error {
			for _, m := range models {
				if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
					return err
				}
			}
			return nil
		},
	)
}

// Close implements the model.Persister interface
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
