// Package sqlxrepos implements the school repositories on PostgreSQL with jmoiron/sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

// repo is embedded by every repository of the package.
type repo struct {
	db *sqlx.DB
}

// getExec returns the transaction passed by a service, or the pool.
func (r repo) getExec(exec []core.DBExecutor) sqlx.ExtContext {
	if len(exec) > 0 && exec[0] != nil {
		ext, ok := exec[0].(sqlx.ExtContext)
		if !ok {
			panic(fmt.Sprintf("sqlxrepos: unsupported executor %T", exec[0]))
		}
		return ext
	}
	return r.db
}

// trapNoRowsErr maps "no rows" errors to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// selectIn runs query, an "IN (?)" query, with its args expanded for ext's driver.
func selectIn(ctx context.Context, ext sqlx.ExtContext, dest interface{}, query string, args ...interface{}) error {
	q, qArgs, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, ext, dest, ext.Rebind(q), qArgs...)
}

// link is a row of a two-column join table.
type link struct {
	Owner string `db:"owner"`
	Other string `db:"other"`
}

// loadLinks groups the "other" column of a join table by the owner IDs.
func loadLinks(ctx context.Context, ext sqlx.ExtContext, table, ownerCol, otherCol string, owners []string) (map[string][]string, error) {
	res := make(map[string][]string, len(owners))
	if len(owners) == 0 {
		return res, nil
	}
	var links []link
	q := fmt.Sprintf("SELECT %s AS owner, %s AS other FROM %s WHERE %s IN (?) ORDER BY %s",
		ownerCol, otherCol, table, ownerCol, otherCol)
	if err := selectIn(ctx, ext, &links, q, owners); err != nil {
		return nil, errors.Wrapf(err, "loading %s", table)
	}
	for _, l := range links {
		res[l.Owner] = append(res[l.Owner], l.Other)
	}
	return res, nil
}

// orderBy renders ordering as an ORDER BY clause, falling back to def.
// The fields must already be checked against the columns of the table.
func orderBy(ordering []core.DBOrdering, def string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + def
	}
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		list = append(list, ord.String())
	}
	return " ORDER BY " + strings.Join(list, ", ")
}

// where joins conditions with AND.
func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
