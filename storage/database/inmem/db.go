// Package inmemdb implements the core repositories in memory, for tests and local runs without PostgreSQL.
package inmemdb

import (
	"sync"

	"github.com/trezcool/classroom/core/session"
	"github.com/trezcool/classroom/core/user"
)

type (
	DB struct {
		user         *userTable
		sessionEvent *sessionEventTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	sessionEventTable struct {
		sync.RWMutex
		rows []session.Event
	}
)

func Open() *DB {
	return &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		sessionEvent: &sessionEventTable{},
	}
}
