package completion

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at         time.Time
	template   string
	durationMs int64
}

// StatsSnapshot aggregates latency samples.
type StatsSnapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
}

// StatsReport is the overall aggregate plus one aggregate per template.
type StatsReport struct {
	Overall    StatsSnapshot            `json:"overall"`
	ByTemplate map[string]StatsSnapshot `json:"by_template"`
}

// LLMStats keeps completion latencies for a rolling window.
type LLMStats struct {
	mu      sync.Mutex
	samples []sample
	window  time.Duration
	now     func() time.Time
}

func NewLLMStats(window time.Duration) *LLMStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LLMStats{
		samples: make([]sample, 0, 64),
		window:  window,
		now:     time.Now,
	}
}

func (s *LLMStats) Record(template string, durationMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		at:         now,
		template:   template,
		durationMs: max(durationMs, 0),
	})
}

func (s *LLMStats) Report() StatsReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	all := make([]int64, 0, len(s.samples))
	grouped := make(map[string][]int64)
	for _, sm := range s.samples {
		all = append(all, sm.durationMs)
		grouped[sm.template] = append(grouped[sm.template], sm.durationMs)
	}

	report := StatsReport{
		Overall:    summarize(all),
		ByTemplate: make(map[string]StatsSnapshot, len(grouped)),
	}
	for name, values := range grouped {
		report.ByTemplate[name] = summarize(values)
	}
	return report
}

func (s *LLMStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.at.Before(cutoff)
	})
}

func summarize(values []int64) StatsSnapshot {
	if len(values) == 0 {
		return StatsSnapshot{}
	}
	slices.Sort(values)
	var sum int64
	for _, v := range values {
		sum += v
	}
	return StatsSnapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
	}
}

// percentile interpolates linearly between closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	index := float64(len(sorted)-1) * pct / 100
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*weight
}
