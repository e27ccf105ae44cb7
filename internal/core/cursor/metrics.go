package cursor

import (
	"time"
)

// blockRecord holds timing data for a processed block.
type blockRecord struct {
	BlockNumber uint64
	ProcessedAt time.Time
}

// Metrics holds cursor performance data.
type Metrics struct {
	BlocksPerSecond  float64
	AverageBlockTime time.Duration
	LastBlock        uint64
	LastProcessedAt  time.Time
}

// MetricsCollector tracks cursor performance over a sliding window.
type MetricsCollector struct {
	windowSize int           // number of blocks to track
	blockTimes []blockRecord // ring buffer of block records
}

// NewMetricsCollector creates a new metrics collector with the given window size.
func NewMetricsCollector(windowSize int) *MetricsCollector {
	if windowSize < 2 {
		windowSize = 2
	}
	return &MetricsCollector{
		windowSize: windowSize,
		blockTimes: make([]blockRecord, 0, windowSize),
	}
}

// RecordBlock records timing for a processed block.
func (mc *MetricsCollector) RecordBlock(blockNumber uint64, processedAt time.Time) {
	record := blockRecord{
		BlockNumber: blockNumber,
		ProcessedAt: processedAt,
	}

	if len(mc.blockTimes) >= mc.windowSize {
		// Shift elements left, drop oldest
		copy(mc.blockTimes, mc.blockTimes[1:])
		mc.blockTimes[len(mc.blockTimes)-1] = record
	} else {
		mc.blockTimes = append(mc.blockTimes, record)
	}
}

// GetMetrics returns current metrics.
func (mc *MetricsCollector) GetMetrics() Metrics {
	var m Metrics
	if len(mc.blockTimes) == 0 {
		return m
	}

	last := mc.blockTimes[len(mc.blockTimes)-1]
	m.LastBlock = last.BlockNumber
	m.LastProcessedAt = last.ProcessedAt

	if len(mc.blockTimes) >= 2 {
		first := mc.blockTimes[0]
		duration := last.ProcessedAt.Sub(first.ProcessedAt)

		if duration > 0 {
			blockCount := float64(len(mc.blockTimes) - 1)
			m.BlocksPerSecond = blockCount / duration.Seconds()
			m.AverageBlockTime = time.Duration(float64(duration) / blockCount)
		}
	}

	return m
}

// Reset clears all collected metrics.
func (mc *MetricsCollector) Reset() {
	mc.blockTimes = mc.blockTimes[:0]
}
