package cache

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// VisitedFilter remembers URLs already extracted during a task so the
// enrichment loop does not fetch the same page twice. Scoped per task,
// so a small filter is plenty.
type VisitedFilter struct {
	filter *bloom.BloomFilter
	mu     sync.RWMutex
}

// NewVisitedFilter creates a filter sized for expectedItems URLs at the
// given false positive rate (e.g. 10_000 and 0.001).
func NewVisitedFilter(expectedItems uint, fpRate float64) *VisitedFilter {
	return &VisitedFilter{
		filter: bloom.NewWithEstimates(expectedItems, fpRate),
	}
}

func (f *VisitedFilter) Add(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(url)
}

func (f *VisitedFilter) Seen(url string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(url)
}

func (f *VisitedFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.ClearAll()
}
