package db

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Queryer is satisfied by both *sql.DB and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func LogAndQuery(ctx context.Context, q Queryer, logger *zap.Logger, query string, args ...interface{}) (*sql.Rows, error) {
	logQuery(logger, query, args)
	return q.QueryContext(ctx, query, args...)
}

func LogAndQueryRow(ctx context.Context, q Queryer, logger *zap.Logger, query string, args ...interface{}) *sql.Row {
	logQuery(logger, query, args)
	return q.QueryRowContext(ctx, query, args...)
}

func LogAndExec(ctx context.Context, q Queryer, logger *zap.Logger, query string, args ...interface{}) (sql.Result, error) {
	logQuery(logger, query, args)
	return q.ExecContext(ctx, query, args...)
}

func logQuery(logger *zap.Logger, query string, args []interface{}) {
	logger.Debug("sql", zap.String("query", query), zap.Any("args", args))
}

// Rebind rewrites ? placeholders into $1, $2... for postgres. Queries for other
// drivers are returned as-is. Placeholders inside string literals are not
// special-cased, so queries must not contain literal question marks.
func Rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
