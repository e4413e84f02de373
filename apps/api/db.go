package main

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/storage/database"
)

const dbSetupTimeout = time.Minute

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbSetupTimeout)
	defer cancel()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
