// Package sqlxrepos implements the core repositories on PostgreSQL through sqlx.
package sqlxrepos

import (
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
)

// getExec returns the executor passed down by a service (usually a *sqlx.Tx) or the repository's DB.
func getExec(db *sqlx.DB, svcExec []core.DBExecutor) (sqlx.ExtContext, error) {
	if len(svcExec) == 0 || svcExec[0] == nil {
		return db, nil
	}
	exe, ok := svcExec[0].(sqlx.ExtContext)
	if !ok {
		return nil, errors.Errorf("unsupported executor %T", svcExec[0])
	}
	return exe, nil
}

// orderBy builds an ORDER BY clause, silently skipping fields absent from columns.
func orderBy(ordering []core.DBOrdering, columns map[string]string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	return strings.Join(clauses, ", ")
}
