// Package deliverystats provides Redis-backed delivery statistics for
// conversions forwarded to the Graph API.
//
// Several relay instances may write concurrently; any process (the relay,
// capictl) can read the aggregated view.
//
// Redis Key Structure:
//
//	capi:stats:{event_name}                - Hash with totals and the last delivery status
//	capi:hourly:{event_name}:{YYYYMMDDHH}  - Conversions sent in that hour (expires 48h)
//	capi:daily:{event_name}:{YYYYMMDD}     - Conversions sent that day (expires 7d)
//	capi:instances:{event_name}            - Hash of relay instance -> last seen timestamp
package deliverystats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statsPrefix     = "capi:stats:"
	hourlyPrefix    = "capi:hourly:"
	dailyPrefix     = "capi:daily:"
	instancesPrefix = "capi:instances:"

	hourlyTTL    = 48 * time.Hour
	dailyTTL     = 7 * 24 * time.Hour
	instancesTTL = 24 * time.Hour
)

// Stats is the aggregated delivery view for one Graph API event name.
type Stats struct {
	EventName        string            `json:"event_name"`
	Total            int64             `json:"total"`
	Delivered        int64             `json:"delivered"`
	Failed           int64             `json:"failed"`
	LastStatusCode   int               `json:"last_status_code,omitempty"`
	LastSentAt       *time.Time        `json:"last_sent_at,omitempty"`
	SentLastHour     int64             `json:"sent_last_hour"`
	SentLast24h      int64             `json:"sent_last_24h"`
	SentToday        int64             `json:"sent_today"`
	RelayInstances   map[string]string `json:"relay_instances,omitempty"`
	StatsRetrievedAt time.Time         `json:"stats_retrieved_at"`
}

// SuccessRate returns the delivered share of all sends, 0 when nothing was sent.
func (s *Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Delivered) / float64(s.Total)
}

// Client records and reads delivery statistics.
type Client struct {
	redis      *redis.Client
	instanceID string
	now        func() time.Time
}

// NewClient connects to Redis at redisURL.
// instanceID should be unique per relay instance (hostname, pod name, UUID).
func NewClient(redisURL string, instanceID string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewClientFromRedis(client, instanceID), nil
}

// NewClientFromRedis creates a client from an existing Redis connection.
func NewClientFromRedis(client *redis.Client, instanceID string) *Client {
	return &Client{
		redis:      client,
		instanceID: instanceID,
		now:        time.Now,
	}
}

// BatchUpdate accumulates delivery outcomes for one event name.
type BatchUpdate struct {
	EventName      string
	Delivered      int64
	Failed         int64
	LastStatusCode int
}

// NewBatchUpdate creates an empty accumulator for eventName.
func NewBatchUpdate(eventName string) *BatchUpdate {
	return &BatchUpdate{EventName: eventName}
}

// Add records one send outcome. statusCode is 0 when no response arrived.
func (b *BatchUpdate) Add(delivered bool, statusCode int) {
	if delivered {
		b.Delivered++
	} else {
		b.Failed++
	}
	if statusCode != 0 {
		b.LastStatusCode = statusCode
	}
}

// Merge folds other into b; other's status code wins when set.
func (b *BatchUpdate) Merge(other *BatchUpdate) {
	b.Delivered += other.Delivered
	b.Failed += other.Failed
	if other.LastStatusCode != 0 {
		b.LastStatusCode = other.LastStatusCode
	}
}

// Total returns the number of sends in the batch.
func (b *BatchUpdate) Total() int64 {
	return b.Delivered + b.Failed
}

// FlushBatch writes an accumulated batch to Redis in one MULTI/EXEC
// transaction. Either every counter moves or none does, so a collector that
// requeues a failed batch never counts it twice.
func (c *Client) FlushBatch(ctx context.Context, batch *BatchUpdate) error {
	total := batch.Total()
	if total == 0 {
		return nil
	}

	now := c.now()
	nowUnix := strconv.FormatInt(now.Unix(), 10)

	pipe := c.redis.TxPipeline()

	statsKey := statsPrefix + batch.EventName
	fields := map[string]interface{}{"last_sent_at": nowUnix}
	if batch.LastStatusCode != 0 {
		fields["last_status_code"] = strconv.Itoa(batch.LastStatusCode)
	}
	pipe.HSet(ctx, statsKey, fields)
	pipe.HIncrBy(ctx, statsKey, "total", total)
	pipe.HIncrBy(ctx, statsKey, "delivered", batch.Delivered)
	pipe.HIncrBy(ctx, statsKey, "failed", batch.Failed)

	hourlyKey := hourlyPrefix + batch.EventName + ":" + now.Format("2006010215")
	pipe.IncrBy(ctx, hourlyKey, total)
	pipe.Expire(ctx, hourlyKey, hourlyTTL)

	dailyKey := dailyPrefix + batch.EventName + ":" + now.Format("20060102")
	pipe.IncrBy(ctx, dailyKey, total)
	pipe.Expire(ctx, dailyKey, dailyTTL)

	instancesKey := instancesPrefix + batch.EventName
	pipe.HSet(ctx, instancesKey, c.instanceID, nowUnix)
	pipe.Expire(ctx, instancesKey, instancesTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to flush batch: %w", err)
	}
	return nil
}

// GetStats reads the current statistics for eventName.
func (c *Client) GetStats(ctx context.Context, eventName string) (*Stats, error) {
	now := c.now()

	pipe := c.redis.Pipeline()
	statsCmd := pipe.HGetAll(ctx, statsPrefix+eventName)

	hourlyCmds := make([]*redis.StringCmd, 24)
	for i := range hourlyCmds {
		t := now.Add(-time.Duration(i) * time.Hour)
		hourlyCmds[i] = pipe.Get(ctx, hourlyPrefix+eventName+":"+t.Format("2006010215"))
	}
	dailyCmd := pipe.Get(ctx, dailyPrefix+eventName+":"+now.Format("20060102"))
	instancesCmd := pipe.HGetAll(ctx, instancesPrefix+eventName)

	// Missing hourly keys surface as redis.Nil from Exec.
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	stats := &Stats{
		EventName:        eventName,
		RelayInstances:   make(map[string]string),
		StatsRetrievedAt: now,
	}

	if data, err := statsCmd.Result(); err == nil {
		stats.Total = parseInt(data["total"])
		stats.Delivered = parseInt(data["delivered"])
		stats.Failed = parseInt(data["failed"])
		stats.LastStatusCode = int(parseInt(data["last_status_code"]))
		if unix := parseInt(data["last_sent_at"]); unix > 0 {
			t := time.Unix(unix, 0)
			stats.LastSentAt = &t
		}
	}

	for i, cmd := range hourlyCmds {
		n, err := cmd.Int64()
		if err != nil {
			continue
		}
		if i == 0 {
			stats.SentLastHour = n
		}
		stats.SentLast24h += n
	}

	if n, err := dailyCmd.Int64(); err == nil {
		stats.SentToday = n
	}

	if instances, err := instancesCmd.Result(); err == nil {
		for instance, lastSeen := range instances {
			if unix, err := strconv.ParseInt(lastSeen, 10, 64); err == nil {
				stats.RelayInstances[instance] = time.Unix(unix, 0).UTC().Format(time.RFC3339)
			}
		}
	}

	return stats, nil
}

// ListEventNames returns every event name with recorded statistics, sorted.
func (c *Client) ListEventNames(ctx context.Context) ([]string, error) {
	var names []string

	iter := c.redis.Scan(ctx, 0, statsPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		if name := strings.TrimPrefix(iter.Val(), statsPrefix); name != "" {
			names = append(names, name)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan event names: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// GetAllStats returns statistics for every recorded event name.
func (c *Client) GetAllStats(ctx context.Context) ([]*Stats, error) {
	names, err := c.ListEventNames(ctx)
	if err != nil {
		return nil, err
	}

	all := make([]*Stats, 0, len(names))
	for _, name := range names {
		stats, err := c.GetStats(ctx, name)
		if err != nil {
			return nil, err
		}
		all = append(all, stats)
	}
	return all, nil
}

// Ping checks the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.redis.Close()
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
