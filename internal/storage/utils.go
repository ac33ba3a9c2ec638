package storage

import "github.com/ignatij/apipulse/internal/log"

func InitStore(dbConnStr string) (*PostgresStore, error) {
	store, err := NewPostgresStore(dbConnStr)
	if err != nil {
		return nil, err
	}
	log.GetLogger().Debugf("Connected to postgres store")
	return store, nil
}
