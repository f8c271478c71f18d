package search

import (
	"context"
	"fmt"
	"math"
	"path"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/finding-sync/internal/findings"
	"github.com/scan-io-git/finding-sync/pkg/shared/config"
	"github.com/scan-io-git/finding-sync/pkg/shared/errors"
)

var (
	baseDay    = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	severities = []string{"BLOCKER", "CRITICAL", "MAJOR", "MINOR", "INFO"}
	types      = []string{"BUG", "VULNERABILITY", "CODE_SMELL"}
)

// fakeServer emulates the capped search endpoint over an in-memory population.
type fakeServer struct {
	mu          sync.Mutex
	items       []findings.Finding
	max         int
	delay       time.Duration
	failPage    int
	requests    []Request
	facets      []Facet
	inFlight    int
	maxInFlight int
	// zone reads date bounds as days in the server timezone, as the real endpoint does.
	zone *time.Location
	// hidden facet values are left out of facet responses.
	hidden string
}

func (s *fakeServer) serverDay(t time.Time) time.Time {
	if s.zone == nil {
		return Day(t)
	}
	return Day(t.In(s.zone))
}

// boundDay parses a date bound the way it is sent on the wire, in the server timezone.
func (s *fakeServer) boundDay(t time.Time) time.Time {
	if s.zone == nil {
		return Day(t)
	}
	d, _ := time.ParseInLocation(dayLayout, Day(t).Format(dayLayout), s.zone)
	return d
}

func (s *fakeServer) match(f Filter, it findings.Finding) bool {
	day := s.serverDay(it.CreatedAt)
	if !f.CreatedAfter.IsZero() && day.Before(s.boundDay(f.CreatedAfter)) {
		return false
	}
	if !f.CreatedBefore.IsZero() && day.After(s.boundDay(f.CreatedBefore)) {
		return false
	}
	return in(f.Severities, it.Severity) && in(f.Types, it.Type) &&
		in(f.Directories, path.Dir(it.Path)) && in(f.Statuses, it.Status)
}

func in(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func (s *fakeServer) matching(f Filter, order Order) []findings.Finding {
	var out []findings.Finding
	for _, it := range s.items {
		if s.match(f, it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		switch order {
		case OrderOldestFirst:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		case OrderNewestFirst:
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (s *fakeServer) SearchPage(ctx context.Context, req Request) (Page, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.failPage != 0 && req.Page == s.failPage {
		return Page{}, errors.NewTransportError("GET", "api/issues/search", 503, fmt.Errorf("unavailable"))
	}
	if (req.Page-1)*req.PageSize >= s.max {
		return Page{}, errors.NewOverflowError((req.Page-1)*req.PageSize, s.max)
	}

	all := s.matching(req.Filter, req.Order)
	from := (req.Page - 1) * req.PageSize
	to := from + req.PageSize
	if from > len(all) {
		from = len(all)
	}
	if to > len(all) {
		to = len(all)
	}
	return Page{Findings: all[from:to], Total: len(all), Index: req.Page, Size: req.PageSize}, nil
}

func (s *fakeServer) Facet(ctx context.Context, f Filter, facet Facet) ([]FacetValue, error) {
	s.mu.Lock()
	s.facets = append(s.facets, facet)
	s.mu.Unlock()

	counts := map[string]int{}
	for _, it := range s.matching(f, OrderDefault) {
		switch facet {
		case FacetSeverities:
			counts[it.Severity]++
		case FacetTypes:
			counts[it.Type]++
		case FacetDirectories:
			counts[path.Dir(it.Path)]++
		case FacetStatuses:
			counts[it.Status]++
		}
	}
	var out []FacetValue
	for v, c := range counts {
		if v == s.hidden {
			continue
		}
		out = append(out, FacetValue{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

func population(n int, shape func(i int, c *findings.Common)) []findings.Finding {
	out := make([]findings.Finding, 0, n)
	for i := 0; i < n; i++ {
		c := findings.Common{
			Key:       fmt.Sprintf("AX%05d", i),
			Severity:  severities[i%len(severities)],
			Type:      types[i%len(types)],
			Status:    "OPEN",
			Path:      fmt.Sprintf("src/dir%d/file%d.go", i%7, i),
			CreatedAt: baseDay.Add(time.Duration(i%24) * time.Hour),
		}
		if shape != nil {
			shape(i, &c)
		}
		out = append(out, findings.NewIssue(c, findings.IssueData{}))
	}
	return out
}

func newTraverser(s *fakeServer, limits config.Search, opts ...Option) *Traverser {
	opts = append([]Option{WithLimits(limits)}, opts...)
	return NewTraverser(s, hclog.NewNullLogger(), opts...)
}

func assertNoEmptyIntervals(t *testing.T, s *fakeServer) {
	t.Helper()
	for _, r := range s.requests {
		if r.Filter.HasDateBounds() {
			assert.False(t, r.Filter.CreatedAfter.After(r.Filter.CreatedBefore), "empty interval queried: %s", r.Filter.String())
		}
	}
}

func TestTraverseUnderLimitMatchesSingleFetch(t *testing.T) {
	s := &fakeServer{items: population(95, nil), max: 100}
	tr := newTraverser(s, config.Search{MaxResults: 100, PageSize: 10, Threads: 4})

	got, err := tr.Traverse(context.Background(), Filter{Project: "p"})
	require.NoError(t, err)
	require.Len(t, got, 95)
	for _, it := range s.items {
		assert.Contains(t, got, it.Key)
	}
	assert.Len(t, s.requests, 10)
	assert.Empty(t, s.facets)
}

func TestTraverseEmptyResult(t *testing.T) {
	s := &fakeServer{max: 100}
	tr := newTraverser(s, config.Search{MaxResults: 100, PageSize: 10})

	got, err := tr.Traverse(context.Background(), Filter{Project: "p"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, s.requests, 1)
}

func TestTraverseOverflowBisectsDates(t *testing.T) {
	items := population(15000, func(i int, c *findings.Common) {
		c.CreatedAt = baseDay.AddDate(0, 0, i%30).Add(time.Duration(i%24) * time.Hour)
	})
	s := &fakeServer{items: items, max: 10000}
	tr := newTraverser(s, config.Search{MaxResults: 10000, PageSize: 500, Threads: 8})

	got, err := tr.Traverse(context.Background(), Filter{Project: "p"})
	require.NoError(t, err)
	assert.Len(t, got, 15000)

	var oldest, newest int
	for _, r := range s.requests {
		if r.PageSize == 1 {
			switch r.Order {
			case OrderOldestFirst:
				oldest++
			case OrderNewestFirst:
				newest++
			}
		}
	}
	assert.Equal(t, 1, oldest)
	assert.Equal(t, 1, newest)
	assert.Empty(t, s.facets)
	assertNoEmptyIntervals(t, s)
}

func TestTraverseSingleDayFallsBackToSeverities(t *testing.T) {
	s := &fakeServer{items: population(250, nil), max: 100}
	tr := newTraverser(s, config.Search{MaxResults: 100, PageSize: 10})

	got, err := tr.Traverse(context.Background(), Filter{Project: "p"})
	require.NoError(t, err)
	assert.Len(t, got, 250)
	assert.Equal(t, []Facet{FacetSeverities}, s.facets)
}

func TestTraverseFallbackOrder(t *testing.T) {
	items := population(300, func(i int, c *findings.Common) {
		c.Severity = "MAJOR"
	})
	s := &fakeServer{items: items, max: 50}
	tr := newTraverser(s, config.Search{MaxResults: 50, PageSize: 10})

	got, err := tr.Traverse(context.Background(), Filter{Project: "p"})
	require.NoError(t, err)
	assert.Len(t, got, 300)
	require.GreaterOrEqual(t, len(s.facets), 3)
	assert.Equal(t, FacetSeverities, s.facets[0])
	assert.Equal(t, FacetTypes, s.facets[1])
	assert.Equal(t, FacetDirectories, s.facets[2])
	assertNoEmptyIntervals(t, s)
}

func TestTraverseExhaustedPartitionsFails(t *testing.T) {
	items := population(120, func(i int, c *findings.Common) {
		c.Severity, c.Type, c.Path = "MAJOR", "BUG", fmt.Sprintf("src/file%d.go", i)
	})
	s := &fakeServer{items: items, max: 50}
	tr := newTraverser(s, config.Search{MaxResults: 50, PageSize: 10})

	_, err := tr.Traverse(context.Background(), Filter{Project: "p"})
	require.Error(t, err)
	assert.True(t, errors.IsOverflow(err))
	assert.Contains(t, err.Error(), "cannot be partitioned further")
}

func TestTraverseTransportErrorAborts(t *testing.T) {
	s := &fakeServer{items: population(95, nil), max: 100, failPage: 4}
	cache := findings.NewCache()
	tr := newTraverser(s, config.Search{MaxResults: 100, PageSize: 10}, WithCache(cache))

	got, err := tr.Traverse(context.Background(), Filter{Project: "p"})
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.IsTransport(err))
	assert.Equal(t, 0, cache.Len())
}

func TestTraverseBoundsConcurrency(t *testing.T) {
	s := &fakeServer{items: population(95, nil), max: 100, delay: 5 * time.Millisecond}
	tr := newTraverser(s, config.Search{MaxResults: 100, PageSize: 10, Threads: 3})

	got, err := tr.Traverse(context.Background(), Filter{Project: "p"})
	require.NoError(t, err)
	assert.Len(t, got, 95)
	assert.LessOrEqual(t, s.maxInFlight, 3)
}

func TestTraverseFillsCache(t *testing.T) {
	s := &fakeServer{items: population(30, nil), max: 100}
	cache := findings.NewCache()
	tr := newTraverser(s, config.Search{MaxResults: 100, PageSize: 10}, WithCache(cache))

	_, err := tr.Traverse(context.Background(), Filter{Project: "p"})
	require.NoError(t, err)
	assert.Equal(t, 30, cache.Len())
}

func TestHotspotStrategiesSplitOnStatus(t *testing.T) {
	items := population(150, func(i int, c *findings.Common) {
		if i%2 == 0 {
			c.Status = "TO_REVIEW"
		} else {
			c.Status = "REVIEWED"
		}
	})
	s := &fakeServer{items: items, max: 100}
	tr := newTraverser(s, config.Search{MaxResults: 100, PageSize: 10}, WithStrategies(HotspotStrategies()...))

	got, err := tr.Traverse(context.Background(), Filter{Project: "p"})
	require.NoError(t, err)
	assert.Len(t, got, 150)
}

func bisectionLevels(t *testing.T, d *DateBisection, f Filter) int {
	parts, err := d.Split(context.Background(), f, 0)
	require.NoError(t, err)
	if len(parts) == 0 {
		return 1
	}
	deepest := 0
	for _, p := range parts {
		require.False(t, p.CreatedAfter.After(p.CreatedBefore))
		if l := bisectionLevels(t, d, p); l > deepest {
			deepest = l
		}
	}
	return deepest + 1
}

func TestDateBisectionTerminatesLogarithmically(t *testing.T) {
	d := NewDateBisection(nil)
	for _, n := range []int{1, 2, 3, 5, 16, 17, 100, 365} {
		f := Filter{CreatedAfter: baseDay, CreatedBefore: baseDay.AddDate(0, 0, n-1)}
		levels := bisectionLevels(t, d, f)
		bound := int(math.Ceil(math.Log2(float64(n)))) + 1
		assert.LessOrEqual(t, levels, bound, "interval of %d days", n)
	}
}

func TestDateBisectionTwoDays(t *testing.T) {
	d := NewDateBisection(nil)
	parts, err := d.Split(context.Background(), Filter{CreatedAfter: baseDay, CreatedBefore: baseDay.AddDate(0, 0, 1)}, 0)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, baseDay, parts[0].CreatedAfter)
	assert.Equal(t, baseDay, parts[0].CreatedBefore)
	assert.Equal(t, baseDay.AddDate(0, 0, 1), parts[1].CreatedAfter)
	assert.Equal(t, baseDay.AddDate(0, 0, 1), parts[1].CreatedBefore)
}

func TestFacetPartitionSkipsEmptyValues(t *testing.T) {
	items := population(10, func(i int, c *findings.Common) { c.Severity = "MAJOR" })
	s := &fakeServer{items: items, max: 100}
	p := NewFacetPartition(s, FacetSeverities)

	parts, err := p.Split(context.Background(), Filter{Project: "p"}, 10)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, []string{"MAJOR"}, parts[0].Severities)

	parts, err = p.Split(context.Background(), parts[0], 10)
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestTraverseServerTimezoneKeepsBoundaryDays(t *testing.T) {
	zone := time.FixedZone("CET", 3600)
	first := time.Date(2024, time.January, 1, 0, 30, 0, 0, zone)
	items := population(30, func(i int, c *findings.Common) {
		c.Severity, c.Type = "MAJOR", "BUG"
		c.CreatedAt = first.AddDate(0, 0, i%3)
	})
	s := &fakeServer{items: items, max: 15, zone: zone}
	tr := newTraverser(s, config.Search{MaxResults: 15, PageSize: 5})

	got, err := tr.Traverse(context.Background(), Filter{Project: "p"})
	require.NoError(t, err)
	assert.Len(t, got, 30)
	assert.Empty(t, s.facets)
	for _, r := range s.requests {
		if r.Filter.HasDateBounds() {
			assert.Equal(t, zone, r.Filter.CreatedAfter.Location())
		}
	}
}

func TestDayKeepsLocation(t *testing.T) {
	zone := time.FixedZone("CET", 3600)
	got := Day(time.Date(2024, time.March, 2, 0, 30, 0, 0, zone))
	assert.Equal(t, "2024-03-02", got.Format(dayLayout))
	assert.Equal(t, zone, got.Location())
}

func TestDateBisectionAcrossOffsetChange(t *testing.T) {
	winter := time.FixedZone("CET", 3600)
	summer := time.FixedZone("CEST", 7200)
	d := NewDateBisection(nil)
	f := Filter{
		CreatedAfter:  time.Date(2024, time.March, 30, 0, 0, 0, 0, winter),
		CreatedBefore: time.Date(2024, time.March, 31, 0, 0, 0, 0, summer),
	}

	parts, err := d.Split(context.Background(), f, 0)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "2024-03-30", parts[0].CreatedBefore.Format(dayLayout))
	assert.Equal(t, "2024-03-31", parts[1].CreatedAfter.Format(dayLayout))
}

func TestFacetPartitionRejectsIncompleteFacet(t *testing.T) {
	items := population(12, func(i int, c *findings.Common) {
		if i%4 == 0 {
			c.Path = "pom.xml"
		}
	})
	s := &fakeServer{items: items, max: 100, hidden: "."}
	p := NewFacetPartition(s, FacetDirectories)

	parts, err := p.Split(context.Background(), Filter{Project: "p"}, 12)
	require.Error(t, err)
	assert.Nil(t, parts)
	assert.Contains(t, err.Error(), "directories facet covers 9 of 12 results")
}

func TestTraverseFailsWhenFacetMissesResults(t *testing.T) {
	items := population(120, func(i int, c *findings.Common) {
		c.Severity, c.Type = "MAJOR", "BUG"
		if i%10 == 0 {
			c.Path = "pom.xml"
		}
	})
	s := &fakeServer{items: items, max: 50, hidden: "."}
	tr := newTraverser(s, config.Search{MaxResults: 50, PageSize: 10})

	got, err := tr.Traverse(context.Background(), Filter{Project: "p"})
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "directories facet covers 108 of 120 results")
}
