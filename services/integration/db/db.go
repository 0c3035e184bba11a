package db

import (
	"github.com/stackpilot/stackpilot/services/integration/model"
	"gorm.io/gorm"
)

type Database struct {
	Orm *gorm.DB
}

func NewDatabase(orm *gorm.DB) Database {
	return Database{Orm: orm}
}

// Initialize creates the schema.
func (db Database) Initialize() error {
	return db.Orm.AutoMigrate(
		&model.CredentialSet{},
		&model.ServiceConnection{},
		&model.PlatformUser{},
		&model.CrossPlatformUser{},
	)
}
