package storage

import (
	"gorm.io/gorm/clause"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// SaveUser implements the model.Persister interface
func (s *Storage) SaveUser(u model.User) error {
	u.LoginHash = model.IndexHash(u.Login)
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&u).Error
}

// DeleteUser implements the model.Persister interface
func (s *Storage) DeleteUser(id string) error {
	return s.db.Where("id = ?", id).Delete(&model.User{}).Error
}
