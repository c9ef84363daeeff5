package store

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Monitor accumulates query counters for the lifetime of the process and
// logs slow queries and periodic stats snapshots. It sits off the request's
// critical path: observing a query is a handful of atomic adds.
type Monitor struct {
	logger        *slog.Logger
	slowThreshold time.Duration

	queries     atomic.Int64
	slowQueries atomic.Int64
	errors      atomic.Int64
	totalTime   atomic.Int64 // nanoseconds

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMonitor creates a Monitor. A slowThreshold of zero disables slow-query
// detection; a positive logInterval starts a goroutine that logs a stats
// snapshot until stop is called.
func NewMonitor(logger *slog.Logger, slowThreshold, logInterval time.Duration, stats func() PoolStats) *Monitor {
	m := &Monitor{
		logger:        logger,
		slowThreshold: slowThreshold,
		stopCh:        make(chan struct{}),
	}
	if logInterval > 0 && stats != nil {
		go m.logLoop(logInterval, stats)
	}
	return m
}

// observe records one executed statement. Slow queries are logged at WARN
// with the truncated SQL; the query itself is never failed or delayed.
func (m *Monitor) observe(sql string, elapsed time.Duration, err error) {
	m.queries.Add(1)
	m.totalTime.Add(int64(elapsed))
	if err != nil {
		m.errors.Add(1)
	}
	if m.slowThreshold > 0 && elapsed >= m.slowThreshold {
		m.slowQueries.Add(1)
		m.logger.Warn("slow query",
			"sql", truncateSQL(sql),
			"elapsed", elapsed,
			"threshold", m.slowThreshold,
		)
	}
}

// fill merges the monitor's counters into a stats snapshot.
func (m *Monitor) fill(stats *PoolStats) {
	queries := m.queries.Load()
	stats.Queries = queries
	stats.SlowQueries = m.slowQueries.Load()
	stats.Errors = m.errors.Load()
	if queries > 0 {
		stats.AverageQueryTime = time.Duration(m.totalTime.Load() / queries)
	}
}

// stop terminates the periodic logger. Safe to call more than once.
func (m *Monitor) stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) logLoop(interval time.Duration, stats func() PoolStats) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			s := stats()
			m.fill(&s)
			m.logger.Info("database pool stats",
				"total_connections", s.TotalConnections,
				"active_connections", s.ActiveConnections,
				"idle_connections", s.IdleConnections,
				"waiting_clients", s.WaitingClients,
				"queries", s.Queries,
				"slow_queries", s.SlowQueries,
				"errors", s.Errors,
				"average_query_time", s.AverageQueryTime,
			)
		}
	}
}
