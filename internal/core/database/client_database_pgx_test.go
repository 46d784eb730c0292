package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/markdave123-py/ragdesk/internal/core"
)

func TestCreateUserErrMapsDuplicates(t *testing.T) {
	assert.NoError(t, createUserErr("ada@example.com", nil))

	dup := &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_email_key"}
	err := createUserErr("ada@example.com", dup)
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "ada@example.com")

	err = createUserErr("ada@example.com", errors.New("connection reset"))
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.NotErrorIs(t, err, core.ErrInvalidRequest)
}
