package deliverystats

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Collector accumulates delivery outcomes in memory and flushes them to
// Redis periodically. Safe for concurrent use.
type Collector struct {
	client        *Client
	flushInterval time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	batches map[string]*BatchUpdate // event name -> batch

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCollector starts a collector that flushes every flushInterval.
func NewCollector(client *Client, flushInterval time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Collector{
		client:        client,
		flushInterval: flushInterval,
		logger:        logger,
		batches:       make(map[string]*BatchUpdate),
		ctx:           ctx,
		cancel:        cancel,
	}

	c.wg.Add(1)
	go c.flushLoop()

	return c
}

// Record accumulates one send outcome for eventName.
func (c *Collector) Record(eventName string, delivered bool, statusCode int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch, ok := c.batches[eventName]
	if !ok {
		batch = NewBatchUpdate(eventName)
		c.batches[eventName] = batch
	}
	batch.Add(delivered, statusCode)
}

func (c *Collector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.flush()
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

func (c *Collector) flush() {
	c.mu.Lock()
	batches := c.batches
	c.batches = make(map[string]*BatchUpdate)
	c.mu.Unlock()

	if len(batches) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	flushed := 0
	var sends int64

	for _, batch := range batches {
		if err := c.client.FlushBatch(ctx, batch); err != nil {
			c.logger.Error("failed to flush delivery stats batch",
				"event_name", batch.EventName,
				"sends", batch.Total(),
				"error", err,
			)
			c.requeue(batch)
			continue
		}
		flushed++
		sends += batch.Total()
	}

	if flushed > 0 {
		c.logger.Debug("flushed delivery stats",
			"event_names", flushed,
			"sends", sends,
		)
	}
}

// requeue merges a batch that failed to flush back for the next attempt.
func (c *Collector) requeue(batch *BatchUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.batches[batch.EventName]; ok {
		existing.Merge(batch)
		return
	}
	c.batches[batch.EventName] = batch
}

// FlushNow forces an immediate flush.
func (c *Collector) FlushNow() {
	c.flush()
}

// Stop stops the flush loop after a final flush.
func (c *Collector) Stop() {
	c.cancel()
	c.wg.Wait()
}

// Pending returns the number of unflushed sends per event name.
func (c *Collector) Pending() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := make(map[string]int64, len(c.batches))
	for name, batch := range c.batches {
		pending[name] = batch.Total()
	}
	return pending
}
