package storage

import (
	"time"

	"gorm.io/gorm/clause"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// SetEntry implements the model.Persister interface by upserting the value
// for a (scope, key).
func (s *Storage) SetEntry(scope, key string, value []byte) error {
	kv := model.Entry{
		Scope:     scope,
		KeyHash:   model.IndexHash(key),
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().Unix(),
	}
	return s.db.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{
				{Name: "scope"},
				{Name: "key_hash"},
			},
			DoUpdates: clause.AssignmentColumns(
				[]string{
					"key",
					"value",
					"updated_at",
				},
			),
		},
	).Create(&kv).Error
}

// DeleteEntry implements the model.Persister interface. No error if it's
// missing.
func (s *Storage) DeleteEntry(scope, key string) error {
	return s.db.Where(
		map[string]any{
			"scope":    scope,
			"key_hash": model.IndexHash(key),
		},
	).Delete(&model.Entry{}).Error
}

// DeleteScope implements the model.Persister interface
func (s *Storage) DeleteScope(scope string) error {
	return s.db.Where(map[string]any{"scope": scope}).Delete(&model.Entry{}).Error
}
