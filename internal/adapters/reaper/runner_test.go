package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/ssogate/config"
)

func TestNewRunner_RequiresDB(t *testing.T) {
	_, err := NewRunner(RunnerOptions{Config: config.ReaperConfig{Interval: time.Minute}})
	assert.Error(t, err)
}

func TestNewRunner_RequiresInterval(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewRunner(RunnerOptions{DB: db})
	assert.Error(t, err)
}

func TestRunner_StopsOnCancel(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r, err := NewRunner(RunnerOptions{
		DB:     db,
		Config: config.ReaperConfig{Interval: time.Minute, NonceGrace: time.Hour, BatchSize: 10},
	})
	require.NoError(t, err)

	// The initial purge sees the cancelled context before reaching the database.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, r.Run(ctx))
}
