package metrics

// Metrics collection for rig messages

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Direction of a recorded frame.
type Direction string

const (
	DirectionSend Direction = "SEND"
	DirectionRecv Direction = "RECV"
)

// Metric represents a single frame sent to or received from the rig
type Metric struct {
	Timestamp time.Time
	Direction Direction
	Type      string
	Bytes     int
	Success   bool
	Error     string
	Status    string
}

// Sink collects and aggregates metrics
type Sink struct {
	mu       sync.RWMutex
	metrics  []Metric
	summary  *Summary
	writer   *Writer
	writeErr error
}

func newSummary() *Summary {
	return &Summary{
		SizeBuckets: make(map[string]int),
		ByType:      make(map[string]*TypeStats),
	}
}

// Summary contains aggregated statistics
type Summary struct {
	TotalMessages  int
	Sent           int
	Received       int
	FailedSends    int
	NotConnected   int
	WriteFailures  int
	MinBytes       int
	MaxBytes       int
	AvgBytes       float64
	P50Bytes       float64
	P90Bytes       float64
	P95Bytes       float64
	P99Bytes       float64
	FirstTimestamp time.Time
	LastTimestamp  time.Time
	sizedCount     int
	SizeBuckets    map[string]int
	ByType         map[string]*TypeStats
}

// TypeStats contains statistics for a specific message type
type TypeStats struct {
	Count    int
	Sent     int
	Received int
	Failed   int
	Bytes    int
}

// NewSink creates a new metrics sink
func NewSink() *Sink {
	return &Sink{
		metrics: make([]Metric, 0),
		summary: newSummary(),
	}
}

// AttachWriter streams every recorded metric to w as well.
func (s *Sink) AttachWriter(w *Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Record records a new metric
func (s *Sink) Record(m Metric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, m)
	s.updateSummary(m)
	if s.writer != nil {
		if err := s.writer.WriteMetric(m); err != nil && s.writeErr == nil {
			s.writeErr = err
		}
	}
}

// WriteErr returns the first error hit while streaming to the attached writer.
func (s *Sink) WriteErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writeErr
}

// GetMetrics returns a copy of all recorded metrics
func (s *Sink) GetMetrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := make([]Metric, len(s.metrics))
	copy(metrics, s.metrics)
	return metrics
}

// GetSummary returns the aggregated summary
func (s *Sink) GetSummary() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return summarize(s.summary, s.metrics)
}

// Summarize builds a summary for metrics loaded from elsewhere, such as a
// message log read back with ReadMetricsCSV.
func Summarize(metrics []Metric) *Summary {
	s := &Sink{summary: newSummary()}
	for _, m := range metrics {
		s.updateSummary(m)
	}
	return summarize(s.summary, metrics)
}

func summarize(src *Summary, metrics []Metric) *Summary {
	// Deep copy so callers never share maps with the sink
	summary := *src
	summary.SizeBuckets = make(map[string]int)
	summary.ByType = make(map[string]*TypeStats, len(src.ByType))
	for t, stats := range src.ByType {
		copied := *stats
		summary.ByType[t] = &copied
	}

	percentiles, buckets := summarizeDistribution(metrics)
	summary.P50Bytes = percentiles[0]
	summary.P90Bytes = percentiles[1]
	summary.P95Bytes = percentiles[2]
	summary.P99Bytes = percentiles[3]
	for k, v := range buckets {
		summary.SizeBuckets[k] = v
	}
	return &summary
}

// updateSummary updates the summary statistics with a new metric
func (s *Sink) updateSummary(m Metric) {
	s.summary.TotalMessages++

	if s.summary.FirstTimestamp.IsZero() || m.Timestamp.Before(s.summary.FirstTimestamp) {
		s.summary.FirstTimestamp = m.Timestamp
	}
	if m.Timestamp.After(s.summary.LastTimestamp) {
		s.summary.LastTimestamp = m.Timestamp
	}

	switch m.Direction {
	case DirectionSend:
		s.summary.Sent++
		if !m.Success {
			s.summary.FailedSends++
			if strings.Contains(m.Error, "not connected") {
				s.summary.NotConnected++
			} else if m.Error != "" {
				s.summary.WriteFailures++
			}
		}
	case DirectionRecv:
		s.summary.Received++
	}

	if m.Success && m.Bytes > 0 {
		if s.summary.MinBytes == 0 || m.Bytes < s.summary.MinBytes {
			s.summary.MinBytes = m.Bytes
		}
		if m.Bytes > s.summary.MaxBytes {
			s.summary.MaxBytes = m.Bytes
		}
		s.summary.sizedCount++
		total := s.summary.AvgBytes * float64(s.summary.sizedCount-1)
		total += float64(m.Bytes)
		s.summary.AvgBytes = total / float64(s.summary.sizedCount)
	}

	key := m.Type
	if key == "" {
		key = "-"
	}
	stats, exists := s.summary.ByType[key]
	if !exists {
		stats = &TypeStats{}
		s.summary.ByType[key] = stats
	}
	stats.Count++
	if m.Direction == DirectionSend {
		stats.Sent++
	} else {
		stats.Received++
	}
	if m.Success {
		stats.Bytes += m.Bytes
	} else {
		stats.Failed++
	}
}

func summarizeDistribution(metrics []Metric) ([4]float64, map[string]int) {
	sizes := make([]float64, 0, len(metrics))
	buckets := make(map[string]int)

	for _, m := range metrics {
		if m.Success && m.Bytes > 0 {
			sizes = append(sizes, float64(m.Bytes))
			incrementBucket(buckets, m.Bytes)
		}
	}

	return computePercentiles(sizes), buckets
}

func incrementBucket(buckets map[string]int, size int) {
	switch {
	case size < 64:
		buckets["lt_64b"]++
	case size < 256:
		buckets["64_256b"]++
	case size < 1024:
		buckets["256b_1k"]++
	case size < 4096:
		buckets["1k_4k"]++
	default:
		buckets["gt_4k"]++
	}
}

func computePercentiles(values []float64) [4]float64 {
	var result [4]float64
	if len(values) == 0 {
		return result
	}
	sort.Float64s(values)
	result[0] = percentile(values, 0.50)
	result[1] = percentile(values, 0.90)
	result[2] = percentile(values, 0.95)
	result[3] = percentile(values, 0.99)
	return result
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
