package database

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SavepointPrefix starts every generated savepoint name. A UUID may begin
// with a digit, which is not a valid leading identifier character.
const SavepointPrefix = "sp_"

// NewSavepointName returns a fresh savepoint identifier of the form
// sp_<32 hex chars>. Each nested scope gets its own name so scopes sharing a
// connection never roll back to each other's markers.
func NewSavepointName() string {
	return SavepointPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func createSavepointSQL(name string) string {
	return "SAVEPOINT " + pgx.Identifier{name}.Sanitize()
}

func rollbackToSavepointSQL(name string) string {
	return "ROLLBACK TO SAVEPOINT " + pgx.Identifier{name}.Sanitize()
}

const (
	commitSQL = "COMMIT"
	beginSQL  = "BEGIN"
)
