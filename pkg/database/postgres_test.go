package database

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/edstack/academia-api/pkg/config"
)

func testDatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "academia",
		Password: "secret",
		Name:     "academia",
		SSLMode:  "disable",
	}
}

func TestBuildDSNAppliesLockTimeout(t *testing.T) {
	dsn := buildDSN(testDatabaseConfig(), 3*time.Second)
	assert.Contains(t, dsn, "options='-c lock_timeout=3000'")
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "dbname=academia")
}

func TestBuildDSNWithoutLockTimeout(t *testing.T) {
	dsn := buildDSN(testDatabaseConfig(), 0)
	assert.NotContains(t, dsn, "lock_timeout")
}

func TestUniqueConstraintDecodesViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "uq_slot_batch"})
	assert.Equal(t, "uq_slot_batch", UniqueConstraint(err))
	assert.Empty(t, UniqueConstraint(errors.New("plain failure")))
	assert.Empty(t, UniqueConstraint(nil))
}

func TestIsTransientCodes(t *testing.T) {
	assert.True(t, IsTransient(&pq.Error{Code: "40001"}))
	assert.True(t, IsTransient(&pq.Error{Code: "40P01"}))
	assert.True(t, IsTransient(&pq.Error{Code: "55P03"}))
	assert.False(t, IsTransient(&pq.Error{Code: "23505"}))
	assert.False(t, IsTransient(errors.New("plain failure")))
}
