package shared_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/apotek-erp/apotek-erp/internal/shared"
	_ "github.com/apotek-erp/apotek-erp/testing"
)

func newSequencer(t *testing.T) (*shared.Sequencer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewSequencer(client, "apotek:seq"), mr
}

func TestNextIncrementsPerPrefix(t *testing.T) {
	seq, _ := newSequencer(t)
	ctx := context.Background()

	first, err := seq.Next(ctx, "PO")
	require.NoError(t, err)
	require.Equal(t, "PO-000001", first)

	second, err := seq.Next(ctx, "PO")
	require.NoError(t, err)
	require.Equal(t, "PO-000002", second)

	// Other prefixes keep their own counters.
	other, err := seq.Next(ctx, "DSP")
	require.NoError(t, err)
	require.Equal(t, "DSP-000001", other)
}

func TestNextRequiresPrefix(t *testing.T) {
	seq, _ := newSequencer(t)
	_, err := seq.Next(context.Background(), "")
	require.Error(t, err)
}

func TestNextDatedScopesPerDay(t *testing.T) {
	seq, mr := newSequencer(t)
	ctx := context.Background()
	monday := time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC)
	tuesday := monday.Add(24 * time.Hour)

	first, err := seq.NextDated(ctx, "S", monday)
	require.NoError(t, err)
	require.Equal(t, "S-20250113-0001", first)

	second, err := seq.NextDated(ctx, "S", monday)
	require.NoError(t, err)
	require.Equal(t, "S-20250113-0002", second)

	// A new day starts a fresh counter.
	next, err := seq.NextDated(ctx, "S", tuesday)
	require.NoError(t, err)
	require.Equal(t, "S-20250114-0001", next)

	// Daily keys carry an expiry so stale counters get evicted.
	ttl := mr.TTL("apotek:seq:S:20250113")
	require.Equal(t, 48*time.Hour, ttl)
}

func TestNilSequencerFails(t *testing.T) {
	var seq *shared.Sequencer
	_, err := seq.Next(context.Background(), "PO")
	require.Error(t, err)
	_, err = seq.NextDated(context.Background(), "S", time.Now())
	require.Error(t, err)
}
