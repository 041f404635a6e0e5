package clickhouse_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/storage"
	chstore "bar-replay-lab/internal/storage/clickhouse"
	"bar-replay-lab/internal/storage/migrations"
)

// setupTestClickhouse starts a ClickHouse container and applies the embedded
// migrations. The returned cleanup must be called after tests complete.
func setupTestClickhouse(t *testing.T) (*chstore.Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start clickhouse container")

	host, err := container.Host(ctx)
	require.NoError(t, err, "failed to get container host")

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err, "failed to get mapped port")

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())

	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	require.NoError(t, err, "failed to run migrations")

	cleanup := func() {
		conn.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return conn, cleanup
}

// sampleCurve builds millisecond-precision points; the equity_points column
// is DateTime64(3) so finer precision would not round-trip.
func sampleCurve() []domain.EquityPoint {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	return []domain.EquityPoint{
		{Timestamp: base, Equity: 1000, Position: 0, UnrealizedPnL: 0, RealizedPnL: 0},
		{Timestamp: base.Add(time.Hour), Equity: 1005, Position: 1, UnrealizedPnL: 5, RealizedPnL: 0},
		{Timestamp: base.Add(2 * time.Hour), Equity: 1010, Position: 0, UnrealizedPnL: 0, RealizedPnL: 10},
	}
}

func TestEquityStore_SaveGetRoundTrip(t *testing.T) {
	conn, cleanup := setupTestClickhouse(t)
	defer cleanup()

	store := chstore.NewEquityStore(conn)
	ctx := context.Background()

	want := sampleCurve()
	require.NoError(t, store.SaveEquityCurve(ctx, "run1", want))

	got, err := store.GetEquityCurve(ctx, "run1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i := range want {
		require.True(t, got[i].Timestamp.Equal(want[i].Timestamp),
			"point %d: expected ts %v, got %v", i, want[i].Timestamp, got[i].Timestamp)
		require.Equal(t, want[i].Equity, got[i].Equity, "point %d equity", i)
		require.Equal(t, want[i].Position, got[i].Position, "point %d position", i)
		require.Equal(t, want[i].UnrealizedPnL, got[i].UnrealizedPnL, "point %d unrealized", i)
		require.Equal(t, want[i].RealizedPnL, got[i].RealizedPnL, "point %d realized", i)
	}
}

func TestEquityStore_OrderedByTimestamp(t *testing.T) {
	conn, cleanup := setupTestClickhouse(t)
	defer cleanup()

	store := chstore.NewEquityStore(conn)
	ctx := context.Background()

	curve := sampleCurve()
	// Insert out of order; reads must come back sorted by ts.
	shuffled := []domain.EquityPoint{curve[2], curve[0], curve[1]}
	require.NoError(t, store.SaveEquityCurve(ctx, "run1", shuffled))

	got, err := store.GetEquityCurve(ctx, "run1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i := 1; i < len(got); i++ {
		require.True(t, got[i-1].Timestamp.Before(got[i].Timestamp),
			"points must be ordered by timestamp")
	}
}

func TestEquityStore_DuplicateID(t *testing.T) {
	conn, cleanup := setupTestClickhouse(t)
	defer cleanup()

	store := chstore.NewEquityStore(conn)
	ctx := context.Background()

	require.NoError(t, store.SaveEquityCurve(ctx, "run1", sampleCurve()))

	err := store.SaveEquityCurve(ctx, "run1", sampleCurve())
	require.ErrorIs(t, err, storage.ErrDuplicateID)
}

func TestEquityStore_NotFound(t *testing.T) {
	conn, cleanup := setupTestClickhouse(t)
	defer cleanup()

	store := chstore.NewEquityStore(conn)

	_, err := store.GetEquityCurve(context.Background(), "nonexistent")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
