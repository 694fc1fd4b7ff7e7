package database

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Ping verifies the pool can still reach the server
func (db *PostgresDB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close releases every connection. Safe to call more than once.
func (db *PostgresDB) Close() error {
	if db.Pool == nil {
		log.Println("[DATABASE] Pool is already closed or was never initialized")
		return nil
	}

	log.Println("[DATABASE] Closing database connection pool...")
	db.Pool.Close()
	db.Pool = nil
	log.Println("[DATABASE] Connection pool closed successfully")

	return nil
}

// PoolStats is a snapshot of pgxpool statistics
type PoolStats struct {
	AcquireCount         int64
	AcquireDuration      time.Duration
	AcquiredConns        int32
	CanceledAcquireCount int64
	IdleConns            int32
	MaxConns             int32
	TotalConns           int32
}

// Stats returns the current pool statistics
func (db *PostgresDB) Stats() (*PoolStats, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	raw := db.Pool.Stat()
	return &PoolStats{
		AcquireCount:         raw.AcquireCount(),
		AcquireDuration:      raw.AcquireDuration(),
		AcquiredConns:        raw.AcquiredConns(),
		CanceledAcquireCount: raw.CanceledAcquireCount(),
		IdleConns:            raw.IdleConns(),
		MaxConns:             raw.MaxConns(),
		TotalConns:           raw.TotalConns(),
	}, nil
}

func calculateAvgDuration(totalDuration time.Duration, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return totalDuration / time.Duration(count)
}

// MonitorPoolHealth logs warnings about pool pressure until ctx is done.
// Run it in its own goroutine.
func (db *PostgresDB) MonitorPoolHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := db.Stats()
			if err != nil {
				log.Printf("[MONITOR] Failed to get stats: %v", err)
				continue
			}

			if stats.MaxConns > 0 {
				utilizationPct := float64(stats.AcquiredConns) / float64(stats.MaxConns) * 100
				if utilizationPct > 80 {
					log.Printf("[MONITOR] HIGH POOL UTILIZATION: %.1f%% (%d/%d)",
						utilizationPct, stats.AcquiredConns, stats.MaxConns)
				}
			}

			if avg := calculateAvgDuration(stats.AcquireDuration, stats.AcquireCount); avg > 100*time.Millisecond {
				log.Printf("[MONITOR] HIGH ACQUIRE LATENCY: %v", avg)
			}

		case <-ctx.Done():
			log.Println("[MONITOR] Stopping pool health monitoring")
			return
		}
	}
}
