package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/zonectl/internal/topology"
)

// Health states reported for a shard.
const (
	StatusUnknown   = "unknown"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// ShardHealth tracks the reachability of a single registered shard.
// Thread-safe: Protected by HealthMonitor's mutex when accessed.
type ShardHealth struct {
	LastCheck        time.Time `json:"last_check"`   // Timestamp of the last probe attempt
	LastHealthy      time.Time `json:"last_healthy"` // Timestamp of the last successful probe
	ShardID          string    `json:"shard"`
	Status           string    `json:"status"` // One of StatusUnknown, StatusHealthy, StatusUnhealthy
	ConsecutiveFails int       `json:"consecutive_fails"`
}

// HealthMonitor periodically probes every registered shard and tracks
// whether it is reachable. A shard is marked unhealthy after maxFailures
// consecutive failed probes and healthy again after one success.
// Thread-safe: All methods are safe for concurrent access.
type HealthMonitor struct {
	shards      map[string]*ShardHealth
	probe       Prober
	logger      *zap.Logger
	interval    time.Duration
	timeout     time.Duration
	mu          sync.RWMutex
	maxFailures int
}

// NewHealthMonitor creates a monitor probing every interval with
// DialProber and a 2 second timeout per probe.
//
// Example:
//
//	monitor := NewHealthMonitor(10*time.Second, logger)
//	go monitor.Start(ctx, catalog.Shards)
func NewHealthMonitor(interval time.Duration, logger *zap.Logger) *HealthMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthMonitor{
		interval:    interval,
		timeout:     2 * time.Second,
		maxFailures: 3,
		shards:      make(map[string]*ShardHealth),
		probe:       DialProber(2 * time.Second),
		logger:      logger,
	}
}

// SetProber overrides the probe function. Useful for tests.
func (h *HealthMonitor) SetProber(p Prober) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probe = p
}

// Start probes the shards returned by provider immediately and then every
// interval until ctx is canceled. It blocks; run it in its own goroutine.
func (h *HealthMonitor) Start(ctx context.Context, provider func() []topology.Shard) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info("health monitor started", zap.Duration("interval", h.interval))
	h.checkAll(ctx, provider())

	for {
		select {
		case <-ticker.C:
			h.checkAll(ctx, provider())
		case <-ctx.Done():
			h.logger.Info("health monitor stopped")
			return nil
		}
	}
}

// checkAll probes every shard in shards and forgets shards no longer listed.
func (h *HealthMonitor) checkAll(ctx context.Context, shards []topology.Shard) {
	current := make(map[string]bool, len(shards))
	for _, s := range shards {
		current[s.ID] = true
		h.checkShard(ctx, s)
	}

	h.mu.Lock()
	for id := range h.shards {
		if !current[id] {
			delete(h.shards, id)
		}
	}
	h.mu.Unlock()
}

func (h *HealthMonitor) checkShard(ctx context.Context, shard topology.Shard) {
	h.mu.Lock()
	health, exists := h.shards[shard.ID]
	if !exists {
		health = &ShardHealth{ShardID: shard.ID, Status: StatusUnknown}
		h.shards[shard.ID] = health
	}
	probe := h.probe
	h.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
	err := probe(probeCtx, shard.Address)
	cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	health.LastCheck = time.Now()
	if err != nil {
		health.ConsecutiveFails++
		h.logger.Warn("shard probe failed",
			zap.String("shard", shard.ID),
			zap.Int("attempt", health.ConsecutiveFails),
			zap.Int("max_failures", h.maxFailures),
			zap.Error(err))
		if health.ConsecutiveFails >= h.maxFailures && health.Status != StatusUnhealthy {
			health.Status = StatusUnhealthy
			h.logger.Error("shard marked unhealthy", zap.String("shard", shard.ID))
		}
		return
	}

	if health.Status == StatusUnhealthy {
		h.logger.Info("shard recovered", zap.String("shard", shard.ID))
	}
	health.Status = StatusHealthy
	health.ConsecutiveFails = 0
	health.LastHealthy = health.LastCheck
}

// ShardHealth returns a copy of the shard's health record, or nil if the
// shard has not been probed yet.
func (h *HealthMonitor) ShardHealth(shardID string) *ShardHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	health, ok := h.shards[shardID]
	if !ok {
		return nil
	}
	cp := *health
	return &cp
}

// IsHealthy reports whether the shard's last state is healthy.
func (h *HealthMonitor) IsHealthy(shardID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	health, ok := h.shards[shardID]
	return ok && health.Status == StatusHealthy
}
