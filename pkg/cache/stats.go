package cache

import (
	"sync/atomic"
	"time"
)

// Statistics counts cache activity. Hits and misses count ContentForETag
// lookups, the point where a 304 is answered from memory. When the cache
// was built WithMetrics every count is mirrored to Prometheus.
type Statistics struct {
	hits, misses, sets, evictions atomic.Int64
	size, peak                    atomic.Int64

	started time.Time
	export  *cacheMetrics
}

// NewStatistics returns zeroed statistics that start their uptime now.
func NewStatistics() *Statistics {
	return &Statistics{started: time.Now()}
}

func (s *Statistics) Hit() {
	s.hits.Add(1)
	if s.export != nil {
		s.export.recordHit()
	}
}

func (s *Statistics) Miss() {
	s.misses.Add(1)
	if s.export != nil {
		s.export.recordMiss()
	}
}

func (s *Statistics) Set() {
	s.sets.Add(1)
	if s.export != nil {
		s.export.recordSet()
	}
}

func (s *Statistics) Eviction() {
	s.evictions.Add(1)
	if s.export != nil {
		s.export.recordEviction()
	}
}

// UpdateSize records the current entry count and raises the peak.
func (s *Statistics) UpdateSize(n int64) {
	s.size.Store(n)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if s.export != nil {
		s.export.updateSize(int(n))
	}
}

func (s *Statistics) Hits() int64        { return s.hits.Load() }
func (s *Statistics) Misses() int64      { return s.misses.Load() }
func (s *Statistics) Sets() int64        { return s.sets.Load() }
func (s *Statistics) Evictions() int64   { return s.evictions.Load() }
func (s *Statistics) CurrentSize() int64 { return s.size.Load() }

// MaxSize is the most entries held at once.
func (s *Statistics) MaxSize() int64 { return s.peak.Load() }

// HitRatio is hits / (hits + misses), 0 before the first lookup.
func (s *Statistics) HitRatio() float64 {
	hits, misses := s.Hits(), s.Misses()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func (s *Statistics) Uptime() time.Duration { return time.Since(s.started) }

// StatsSummary is a point-in-time copy of Statistics.
type StatsSummary struct {
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Sets        int64         `json:"sets"`
	Evictions   int64         `json:"evictions"`
	CurrentSize int64         `json:"current_size"`
	MaxSize     int64         `json:"max_size"`
	HitRatio    float64       `json:"hit_ratio"`
	Uptime      time.Duration `json:"uptime"`
}

func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Hits:        s.Hits(),
		Misses:      s.Misses(),
		Sets:        s.Sets(),
		Evictions:   s.Evictions(),
		CurrentSize: s.CurrentSize(),
		MaxSize:     s.MaxSize(),
		HitRatio:    s.HitRatio(),
		Uptime:      s.Uptime(),
	}
}
