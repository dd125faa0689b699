package main

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kvapi-dev/kvapi/storage"
	"github.com/kvapi-dev/kvapi/storage/badgerstore"
	"github.com/kvapi-dev/kvapi/storage/model"
)

// endpoint describes one side of a migration
type endpoint struct {
	Type string
	Dir  string
	DSN  string
}

func (e endpoint) open() (model.Persister, error) {
	switch e.Type {
	case "badger":
		if e.Dir == "" {
			return nil, errors.New("badger requires a directory")
		}
		store, err := badgerstore.Open(e.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		driver, err := storage.ParseDriver(e.Type)
		if err != nil {
			return nil, errors.Errorf("unsupported storage type '%s'", e.Type)
		}
		store, err := storage.NewStorage(
			storage.Config{
				Driver:  driver,
				DSN:     e.DSN,
				DataDir: e.Dir,
			},
		)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

type migrationStats struct {
	Users   int
	Entries int
}

// migrate copies all users and entries from src to dst. A non-empty dst is
// only written to if overwrite is set; existing records with the same keys
// are replaced.
func migrate(src, dst model.Persister, dryRun, overwrite bool) (migrationStats, error) {
	var stats migrationStats
	snapshot, err := src.Load()
	if err != nil {
		return stats, errors.WithMessage(err, "could not load source")
	}
	existing, err := dst.Load()
	if err != nil {
		return stats, errors.WithMessage(err, "could not load destination")
	}
	if !overwrite && (len(existing.Users) > 0 || len(existing.Entries) > 0) {
		return stats, errors.New("destination is not empty")
	}
	for _, u := range snapshot.Users {
		log.WithField("user", u.ID).Debug("migrating user")
		if !dryRun {
			if err = dst.SaveUser(u); err != nil {
				return stats, errors.WithMessagef(err, "could not migrate user '%s'", u.ID)
			}
		}
		stats.Users++
	}
	for _, e := range snapshot.Entries {
		if !dryRun {
			if err = dst.SetEntry(e.Scope, e.Key, e.Value); err != nil {
				return stats, errors.WithMessagef(err, "could not migrate entry '%s' of '%s'", e.Key, e.Scope)
			}
		}
		stats.Entries++
	}
	return stats, nil
}
