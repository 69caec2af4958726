package metrics

import (
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const shardCount = 32

type shard struct {
	mu     sync.RWMutex
	series map[string]*series
}

// Collector aggregates outcomes into metric series. It is safe for concurrent use.
type Collector struct {
	shards [shardCount]*shard

	// submetrics is fixed at construction and read without locking.
	submetrics map[string][]Key

	// targets caches, per exact sample key, every series the sample updates.
	targets sync.Map // map[string][]*series

	attempts  atomic.Int64
	failures  atomic.Int64
	dropped   atomic.Int64
	cancelled atomic.Int64

	breakdownMu sync.Mutex
	errorsByTag map[string]int
	statuses    map[string]map[string]int

	start atomic.Int64
}

// Totals are run-wide counters cheap enough to poll for progress output.
type Totals struct {
	Attempts  int64
	Failures  int64
	Dropped   int64
	Cancelled int64
}

// NewCollector creates a Collector. Each submetric key is pre-registered so
// it appears in snapshots even before any sample matches it.
func NewCollector(submetrics ...Key) *Collector {
	c := &Collector{
		submetrics:  make(map[string][]Key),
		errorsByTag: make(map[string]int),
		statuses:    make(map[string]map[string]int),
	}
	for i := range c.shards {
		c.shards[i] = &shard{series: make(map[string]*series)}
	}
	seen := map[string]bool{}
	for _, k := range submetrics {
		typ, ok := TypeOf(k.Name)
		if !ok {
			continue
		}
		str := k.String()
		if seen[str] {
			continue
		}
		seen[str] = true
		if len(k.Tags) > 0 {
			c.submetrics[k.Name] = append(c.submetrics[k.Name], NewKey(k.Name, k.Tags))
		}
		c.seriesFor(NewKey(k.Name, k.Tags), typ)
	}
	c.Start()
	return c
}

// Start marks the beginning of the measured run; counter rates are computed from it.
func (c *Collector) Start() {
	c.start.Store(time.Now().UnixNano())
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(time.Unix(0, c.start.Load()))
}

// Record expands an outcome into metric samples.
func (c *Collector) Record(o Outcome) {
	tags := o.sampleTags()

	switch o.Kind {
	case KindCapacityExceeded:
		c.dropped.Add(1)
		c.add(MetricDroppedIterations, tags, sample{})
		return
	case KindCancelled:
		c.cancelled.Add(1)
		c.add(MetricCancelledIterations, tags, sample{})
		return
	}

	failed := o.Kind == KindRequestFailed
	c.attempts.Add(1)
	if failed {
		c.failures.Add(1)
		c.recordFailure(o)
	}

	c.add(MetricHTTPReqs, tags, sample{})
	c.add(MetricCounterByTag, tags, sample{})
	c.add(MetricIterations, tags, sample{})
	c.add(MetricHTTPReqDuration, tags, sample{value: o.Duration})
	c.add(MetricHTTPReqFailed, tags, sample{hit: failed})

	for name, passed := range o.Checks {
		checkTags := make(map[string]string, len(tags)+1)
		for k, v := range tags {
			checkTags[k] = v
		}
		checkTags[TagCheck] = name
		c.add(MetricChecks, checkTags, sample{hit: passed})
	}
}

// Totals returns run-wide attempt counters.
func (c *Collector) Totals() Totals {
	return Totals{
		Attempts:  c.attempts.Load(),
		Failures:  c.failures.Load(),
		Dropped:   c.dropped.Load(),
		Cancelled: c.cancelled.Load(),
	}
}

// Snapshot returns an immutable copy of every series.
func (c *Collector) Snapshot() Snapshot {
	elapsed := c.Elapsed()
	snap := Snapshot{Elapsed: elapsed, Metrics: make(map[string]Aggregate)}

	var all []*series
	for _, sh := range c.shards {
		sh.mu.RLock()
		for _, s := range sh.series {
			all = append(all, s)
		}
		sh.mu.RUnlock()
	}
	for _, s := range all {
		snap.Metrics[s.str] = s.aggregate(elapsed)
	}

	c.breakdownMu.Lock()
	if len(c.errorsByTag) > 0 {
		snap.Errors = make(map[string]int, len(c.errorsByTag))
		for k, v := range c.errorsByTag {
			snap.Errors[k] = v
		}
	}
	snap.Statuses = flattenStatuses(c.statuses)
	c.breakdownMu.Unlock()

	return snap
}

func (c *Collector) recordFailure(o Outcome) {
	label := ErrorLabel(o.Err, o.StatusCode)
	code := "error"
	if o.StatusCode > 0 {
		code = strconv.Itoa(o.StatusCode)
	}
	c.breakdownMu.Lock()
	defer c.breakdownMu.Unlock()
	c.errorsByTag[label]++
	byCode, ok := c.statuses[o.Scenario]
	if !ok {
		byCode = make(map[string]int)
		c.statuses[o.Scenario] = byCode
	}
	byCode[code]++
}

func (c *Collector) add(name string, tags map[string]string, v sample) {
	for _, s := range c.resolve(name, tags) {
		s.observe(v)
	}
}

// resolve returns the exact series for (name, tags), the bare metric series
// and every registered submetric the tags satisfy.
func (c *Collector) resolve(name string, tags map[string]string) []*series {
	exact := NewKey(name, tags)
	str := exact.String()
	if cached, ok := c.targets.Load(str); ok {
		return cached.([]*series)
	}

	typ, _ := TypeOf(name)
	targets := []*series{c.seriesFor(exact, typ)}
	if len(tags) > 0 {
		targets = append(targets, c.seriesFor(Key{Name: name}, typ))
	}
	for _, sub := range c.submetrics[name] {
		if sub.Matches(tags) && sub.String() != str {
			targets = append(targets, c.seriesFor(sub, typ))
		}
	}
	actual, _ := c.targets.LoadOrStore(str, targets)
	return actual.([]*series)
}

func (c *Collector) seriesFor(key Key, typ MetricType) *series {
	str := key.String()
	sh := c.shards[shardIndex(str)]

	sh.mu.RLock()
	s, ok := sh.series[str]
	sh.mu.RUnlock()
	if ok {
		return s
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s, ok = sh.series[str]; ok {
		return s
	}
	s = newSeries(key, typ)
	sh.series[str] = s
	return s
}

func shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}
