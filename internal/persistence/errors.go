package persistence

import (
	"database/sql"
	"errors"
)

var (
	ErrNotFound             = errors.New("object not found")
	ErrNoTableInQuery       = errors.New("no table in query")
	ErrInvalidQuery         = errors.New("invalid entity query")
	ErrTableNotFound        = errors.New("table not found in model")
	ErrRelationshipNotFound = errors.New("relationship not found")
	ErrDatabaseNotInstalled = errors.New("database not installed")
	ErrNoModel              = errors.New("no model installed")
	ErrNoSession            = errors.New("no persistence session in context")
	ErrSessionClosed        = errors.New("session closed")
)

var sqlTxDone = sql.ErrTxDone
