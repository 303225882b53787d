package sqlstore

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	mysqlDupEntry      = 1062
	pgUniqueViolation  = "23505"
	sqliteConstraint   = 19
	sqlitePrimaryMask  = 0xff
)

// isUniqueViolation reports whether err is a unique key conflict in any of
// the supported engines.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDupEntry
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	// modernc reports extended result codes; the low byte is the primary one
	var liteErr interface{ Code() int }
	if errors.As(err, &liteErr) {
		return liteErr.Code()&sqlitePrimaryMask == sqliteConstraint
	}
	return false
}
