package monitoring

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

const defaultHistorySize = 1000

// PerformanceTracker 保存最近的预测记录，用于计算滚动统计
type PerformanceTracker struct {
	mu          sync.RWMutex
	records     []PredictionRecord
	next        int
	full        bool
	total       int64
	positive    int64
	errorCounts map[string]int64
	startedAt   time.Time
}

// PredictionRecord 单次预测记录
type PredictionRecord struct {
	Probability float64       `json:"probability"`
	Class       int           `json:"class"`
	Duration    time.Duration `json:"duration"`
	Timestamp   time.Time     `json:"timestamp"`
}

// PerformanceMetrics 滚动窗口统计
type PerformanceMetrics struct {
	Total           int64            `json:"total"`
	Positive        int64            `json:"positive"`
	Errors          map[string]int64 `json:"errors"`
	Window          int              `json:"window"`
	PositiveRate    float64          `json:"positive_rate"`
	MeanProbability float64          `json:"mean_probability"`
	StdProbability  float64          `json:"std_probability"`
	LatencyP50      time.Duration    `json:"latency_p50"`
	LatencyP95      time.Duration    `json:"latency_p95"`
	Uptime          time.Duration    `json:"uptime"`
}

// NewPerformanceTracker 创建跟踪器，size 为滚动窗口大小
func NewPerformanceTracker(size int) *PerformanceTracker {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &PerformanceTracker{
		records:     make([]PredictionRecord, size),
		errorCounts: make(map[string]int64),
		startedAt:   time.Now(),
	}
}

// RecordPrediction 记录一次成功预测
func (pt *PerformanceTracker) RecordPrediction(record PredictionRecord) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.records[pt.next] = record
	pt.next = (pt.next + 1) % len(pt.records)
	if pt.next == 0 {
		pt.full = true
	}

	pt.total++
	if record.Class == 1 {
		pt.positive++
	}
}

// RecordError 记录一次失败预测
func (pt *PerformanceTracker) RecordError(kind string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.errorCounts[kind]++
}

// CalculateMetrics 计算当前窗口内的统计
func (pt *PerformanceTracker) CalculateMetrics() *PerformanceMetrics {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	metrics := &PerformanceMetrics{
		Total:    pt.total,
		Positive: pt.positive,
		Errors:   make(map[string]int64, len(pt.errorCounts)),
		Uptime:   time.Since(pt.startedAt),
	}
	for kind, n := range pt.errorCounts {
		metrics.Errors[kind] = n
	}

	window := pt.window()
	metrics.Window = len(window)
	if len(window) == 0 {
		return metrics
	}

	probabilities := make([]float64, len(window))
	latencies := make([]float64, len(window))
	positives := 0
	for i, record := range window {
		probabilities[i] = record.Probability
		latencies[i] = float64(record.Duration)
		if record.Class == 1 {
			positives++
		}
	}

	metrics.PositiveRate = float64(positives) / float64(len(window))
	metrics.MeanProbability, metrics.StdProbability = stat.MeanStdDev(probabilities, nil)
	if len(window) == 1 {
		metrics.StdProbability = 0
	}

	sort.Float64s(latencies)
	metrics.LatencyP50 = time.Duration(stat.Quantile(0.5, stat.Empirical, latencies, nil))
	metrics.LatencyP95 = time.Duration(stat.Quantile(0.95, stat.Empirical, latencies, nil))
	return metrics
}

// GetRecent 返回最近 limit 条记录，按时间从新到旧
func (pt *PerformanceTracker) GetRecent(limit int) []PredictionRecord {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	window := pt.window()
	if limit <= 0 || limit > len(window) {
		limit = len(window)
	}

	result := make([]PredictionRecord, 0, limit)
	for i := len(window) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, window[i])
	}
	return result
}

// Clear 清空窗口与计数
func (pt *PerformanceTracker) Clear() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.records = make([]PredictionRecord, len(pt.records))
	pt.next = 0
	pt.full = false
	pt.total = 0
	pt.positive = 0
	pt.errorCounts = make(map[string]int64)
	pt.startedAt = time.Now()
}

// window returns the recorded entries oldest first. Callers hold the lock.
func (pt *PerformanceTracker) window() []PredictionRecord {
	if !pt.full {
		out := make([]PredictionRecord, pt.next)
		copy(out, pt.records[:pt.next])
		return out
	}
	out := make([]PredictionRecord, 0, len(pt.records))
	out = append(out, pt.records[pt.next:]...)
	out = append(out, pt.records[:pt.next]...)
	return out
}
