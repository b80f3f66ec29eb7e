package deliverystats

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestBatchUpdate_Add(t *testing.T) {
	b := NewBatchUpdate("Purchase")
	b.Add(true, 200)
	b.Add(false, 400)
	b.Add(false, 0)

	assert.Equal(t, int64(1), b.Delivered)
	assert.Equal(t, int64(2), b.Failed)
	assert.Equal(t, int64(3), b.Total())
	assert.Equal(t, 400, b.LastStatusCode, "a send without a response keeps the last status")
}

func TestBatchUpdate_Merge(t *testing.T) {
	a := NewBatchUpdate("Lead")
	a.Add(true, 200)

	b := NewBatchUpdate("Lead")
	b.Add(false, 500)
	b.Add(true, 200)

	a.Merge(b)
	assert.Equal(t, int64(2), a.Delivered)
	assert.Equal(t, int64(1), a.Failed)
	assert.Equal(t, 200, a.LastStatusCode)
}

func TestClient_FlushAndGetStats(t *testing.T) {
	_, rdb := setupTestRedis(t)
	ctx := context.Background()

	now := time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)
	client := NewClientFromRedis(rdb, "relay-1")
	client.now = fixedClock(now)

	batch := NewBatchUpdate("Purchase")
	batch.Add(true, 200)
	batch.Add(true, 200)
	batch.Add(false, 400)
	require.NoError(t, client.FlushBatch(ctx, batch))

	// An earlier hour on the same day counts toward the 24h window only.
	client.now = fixedClock(now.Add(-2 * time.Hour))
	earlier := NewBatchUpdate("Purchase")
	earlier.Add(true, 200)
	require.NoError(t, client.FlushBatch(ctx, earlier))

	client.now = fixedClock(now)
	stats, err := client.GetStats(ctx, "Purchase")
	require.NoError(t, err)

	assert.Equal(t, "Purchase", stats.EventName)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(3), stats.Delivered)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(3), stats.SentLastHour)
	assert.Equal(t, int64(4), stats.SentLast24h)
	assert.Equal(t, int64(4), stats.SentToday)
	assert.Equal(t, 200, stats.LastStatusCode)
	require.NotNil(t, stats.LastSentAt)
	assert.Contains(t, stats.RelayInstances, "relay-1")
	assert.InDelta(t, 0.75, stats.SuccessRate(), 0.0001)
}

func TestClient_FlushBatch_Empty(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	client := NewClientFromRedis(rdb, "relay-1")

	require.NoError(t, client.FlushBatch(context.Background(), NewBatchUpdate("Lead")))
	assert.Empty(t, mr.Keys())
}

func TestClient_FlushBatch_SetsExpiry(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	now := time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)
	client := NewClientFromRedis(rdb, "relay-1")
	client.now = fixedClock(now)

	batch := NewBatchUpdate("Lead")
	batch.Add(true, 200)
	require.NoError(t, client.FlushBatch(context.Background(), batch))

	assert.Equal(t, hourlyTTL, mr.TTL("capi:hourly:Lead:2024051014"))
	assert.Equal(t, dailyTTL, mr.TTL("capi:daily:Lead:20240510"))
	assert.Equal(t, time.Duration(0), mr.TTL("capi:stats:Lead"), "totals never expire")
}

// commandRecorder captures the command names of every pipeline sent.
type commandRecorder struct {
	names []string
}

func (r *commandRecorder) DialHook(next redis.DialHook) redis.DialHook { return next }

func (r *commandRecorder) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (r *commandRecorder) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			r.names = append(r.names, cmd.Name())
		}
		return next(ctx, cmds)
	}
}

func TestClient_FlushBatch_IsTransactional(t *testing.T) {
	_, rdb := setupTestRedis(t)
	rec := &commandRecorder{}
	rdb.AddHook(rec)
	client := NewClientFromRedis(rdb, "relay-1")

	batch := NewBatchUpdate("Lead")
	batch.Add(true, 200)
	require.NoError(t, client.FlushBatch(context.Background(), batch))

	require.NotEmpty(t, rec.names)
	assert.Equal(t, "multi", rec.names[0])
	assert.Equal(t, "exec", rec.names[len(rec.names)-1])
}

func TestClient_FlushBatch_FailureAppliesNothing(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	client := NewClientFromRedis(rdb, "relay-1")
	ctx := context.Background()

	batch := NewBatchUpdate("Lead")
	batch.Add(true, 200)
	batch.Add(false, 500)

	mr.SetError("server unavailable")
	require.Error(t, client.FlushBatch(ctx, batch))
	mr.SetError("")
	assert.Empty(t, mr.Keys())

	// Retrying the same batch lands it exactly once.
	require.NoError(t, client.FlushBatch(ctx, batch))
	stats, err := client.GetStats(ctx, "Lead")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Delivered)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestClient_GetStats_Unknown(t *testing.T) {
	_, rdb := setupTestRedis(t)
	client := NewClientFromRedis(rdb, "relay-1")

	stats, err := client.GetStats(context.Background(), "Nothing")
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Nil(t, stats.LastSentAt)
	assert.Zero(t, stats.SuccessRate())
}

func TestClient_ListEventNames(t *testing.T) {
	_, rdb := setupTestRedis(t)
	ctx := context.Background()
	client := NewClientFromRedis(rdb, "relay-1")

	for _, name := range []string{"Purchase", "AddToCart", "Lead"} {
		b := NewBatchUpdate(name)
		b.Add(true, 200)
		require.NoError(t, client.FlushBatch(ctx, b))
	}

	names, err := client.ListEventNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AddToCart", "Lead", "Purchase"}, names)

	all, err := client.GetAllStats(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "AddToCart", all[0].EventName)
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("not-a-url", "relay-1")
	assert.Error(t, err)
}

func TestNewClient_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient("redis://"+mr.Addr(), "relay-1")
	require.NoError(t, err)
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())
}
