package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// isDuplicateKey reports whether err is a MySQL unique-constraint
// violation (error 1062). Repositories translate it into ErrConflict so
// callers never depend on driver error codes.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
