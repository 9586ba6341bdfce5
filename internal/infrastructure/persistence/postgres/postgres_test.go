package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

func TestErrorHelpers(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	check := &pgconn.PgError{Code: "23514"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(check))
	assert.True(t, IsCheckViolation(check))
	assert.True(t, IsNoRows(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("boom")))
}

func TestUnavailableIsRetryable(t *testing.T) {
	err := unavailable("FindEnthusiasmRecords", errors.New("connection reset"))

	assert.True(t, shared.IsRetryable(err))
	assert.ErrorIs(t, err, shared.ErrLedgerStoreUnavailable)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestMigrationsAreOrderedAndReversible(t *testing.T) {
	migrations := GetMigrations()

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}

	last := migrations[len(migrations)-1].UpSQL
	assert.True(t, strings.Contains(last, "WHERE point_type = 'enthusiasm'"),
		"ledger uniqueness must be scoped to enthusiasm records")
}
