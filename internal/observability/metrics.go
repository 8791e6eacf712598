package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	crawl        CrawlCounters
}

// CrawlCounters tracks discovery efficiency: how many pages and items were fetched
// for how many candidates. Tag filtering happens client-side, so the ratio is expected
// to be low.
type CrawlCounters struct {
	Runs         int64 `json:"runs"`
	PagesFetched int64 `json:"pages_fetched"`
	ItemsScanned int64 `json:"items_scanned"`
	Candidates   int64 `json:"candidates"`
	Truncated    int64 `json:"truncated"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests map[string]int64 `json:"requests"`
	Errors   map[string]int64 `json:"errors"`
	Crawl    CrawlCounters    `json:"crawl"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordCrawl adds the totals of one finished crawl run.
func (m *Metrics) RecordCrawl(pages, items, candidates int, truncated bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crawl.Runs++
	m.crawl.PagesFetched += int64(pages)
	m.crawl.ItemsScanned += int64(items)
	m.crawl.Candidates += int64(candidates)
	if truncated {
		m.crawl.Truncated++
	}
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Requests: make(map[string]int64, len(m.requestCount)),
		Errors:   make(map[string]int64, len(m.errorCount)),
		Crawl:    m.crawl,
	}
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
