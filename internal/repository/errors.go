package repository

import "errors"

// ErrNoRowsAffected is returned by updates that matched nothing.
var ErrNoRowsAffected = errors.New("no rows affected")
