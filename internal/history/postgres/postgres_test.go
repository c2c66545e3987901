package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/frpdeck/internal/history"
)

func TestPostgresSinkIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	ctr, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	defer func() { _ = ctr.Terminate(ctx) }()

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sink, err := New(connStr)
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	now := time.Now().UTC()
	require.NoError(t, sink.Send(ctx, history.Event{Type: history.EventStart, OccurredAt: now, ProfileID: "p1", PID: 7}))
	require.NoError(t, sink.Send(ctx, history.Event{Type: history.EventStop, OccurredAt: now, ProfileID: "p1", PID: 7}))

	n, err := sink.Count(ctx, "p1", history.EventStart)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = sink.Count(ctx, "p1", history.EventStop)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewRejectsEmptyDSN(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
