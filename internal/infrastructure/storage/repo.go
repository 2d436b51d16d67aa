package storage

import (
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Repo provides a base for Squirrel-based repositories.
type Repo struct {
	DB  *sql.DB
	SQ  sq.StatementBuilderType
	Now func() time.Time
}

// NewRepo builds a repository base bound to the database dialect.
func NewRepo(db *DB) *Repo {
	return &Repo{
		DB:  db.SQL,
		SQ:  sq.StatementBuilder.PlaceholderFormat(db.Dialect.placeholders()),
		Now: time.Now,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}
