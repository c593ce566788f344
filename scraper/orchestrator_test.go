package scraper

import (
	"context"
	"sort"
	"sync"
	"testing"

	"flatsync/config"
	"flatsync/models"

	"github.com/google/uuid"
)

type memStore struct {
	mu      sync.Mutex
	records map[int64]*models.ListingDetail
}

func newMemStore() *memStore {
	return &memStore{records: make(map[int64]*models.ListingDetail)}
}

func (s *memStore) seed(codes ...int64) {
	for _, code := range codes {
		c := code
		s.records[code] = &models.ListingDetail{ID: uuid.New(), Code: &c}
	}
}

func (s *memStore) GetByCodes(ctx context.Context, codes []int64) (map[int64]*models.ListingDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]*models.ListingDetail)
	for _, code := range codes {
		if rec, ok := s.records[code]; ok {
			out[code] = rec
		}
	}
	return out, nil
}

func (s *memStore) SaveBatch(ctx context.Context, inserts, updates []*models.ListingDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range inserts {
		s.records[*rec.Code] = rec
	}
	for _, rec := range updates {
		s.records[*rec.Code] = rec
	}
	return nil
}

func (s *memStore) DeleteCodesNotIn(ctx context.Context, keep []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keepSet := make(map[int64]struct{}, len(keep))
	for _, code := range keep {
		keepSet[code] = struct{}{}
	}
	var deleted []int64
	for code := range s.records {
		if _, ok := keepSet[code]; !ok {
			deleted = append(deleted, code)
			delete(s.records, code)
		}
	}
	return deleted, nil
}

func (s *memStore) ListCodes(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var codes []int64
	for code := range s.records {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes, nil
}

func (s *memStore) CountListings(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records)), nil
}

func testConfig(links ...string) *config.Config {
	return &config.Config{
		Crawl: config.CrawlConfig{
			Links:             links,
			DetailURLTemplate: "https://example.com/object/{code}/",
			PageConcurrency:   2,
			DetailConcurrency: 4,
			SaveBatchSize:     2,
		},
	}
}

func TestRunCrawlFullCycle(t *testing.T) {
	pages := &fakePageFetcher{pages: map[string]map[int]fakePage{
		"link-a": {1: {codes: []int64{1, 2, 3}, total: 3}},
	}}
	details := &fakeDetailFetcher{}

	store := newMemStore()
	store.seed(1, 99) // 1 is re-seen this run, 99 vanished upstream

	o := NewOrchestrator(testConfig("link-a"), pages, details, store, nil)
	codes, err := o.RunCrawl(context.Background())
	if err != nil {
		t.Fatalf("RunCrawl error: %v", err)
	}

	want := []int64{1, 2, 3}
	if len(codes) != len(want) {
		t.Fatalf("stored codes = %v, want %v", codes, want)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("stored codes = %v, want %v", codes, want)
		}
	}
	if _, ok := store.records[99]; ok {
		t.Error("vanished code 99 survived the delete sweep")
	}
}

func TestRunCrawlKeepsFailedDetailFetches(t *testing.T) {
	pages := &fakePageFetcher{pages: map[string]map[int]fakePage{
		"link-a": {1: {codes: []int64{1, 2}, total: 2}},
	}}
	// Code 2 was discovered but its detail page is temporarily broken.
	details := &fakeDetailFetcher{failFor: map[int64]bool{2: true}}

	store := newMemStore()
	store.seed(2)

	o := NewOrchestrator(testConfig("link-a"), pages, details, store, nil)
	if _, err := o.RunCrawl(context.Background()); err != nil {
		t.Fatalf("RunCrawl error: %v", err)
	}

	if _, ok := store.records[2]; !ok {
		t.Error("code 2 was deleted even though discovery saw it this run")
	}
}

func TestRunCrawlSkipsWhenPaused(t *testing.T) {
	pages := &fakePageFetcher{pages: map[string]map[int]fakePage{}}
	store := newMemStore()

	o := NewOrchestrator(testConfig("link-a"), pages, &fakeDetailFetcher{}, store, nil)
	o.SetPaused(true)

	codes, err := o.RunCrawl(context.Background())
	if err != nil {
		t.Fatalf("RunCrawl error: %v", err)
	}
	if codes != nil {
		t.Errorf("paused run returned codes %v", codes)
	}
	if pages.callCount() != 0 {
		t.Error("paused run still fetched pages")
	}
}

func TestRunCrawlFailsWithoutLinks(t *testing.T) {
	o := NewOrchestrator(testConfig(" "), &fakePageFetcher{}, &fakeDetailFetcher{}, newMemStore(), nil)
	if _, err := o.RunCrawl(context.Background()); err == nil {
		t.Fatal("expected error for blank link set")
	}
}

func TestRunCrawlEmptyDiscoveryLeavesStoreAlone(t *testing.T) {
	// All page fetches fail: zero codes discovered, no deletes.
	pages := &fakePageFetcher{pages: map[string]map[int]fakePage{}}
	store := newMemStore()
	store.seed(1, 2)

	o := NewOrchestrator(testConfig("link-a"), pages, &fakeDetailFetcher{}, store, nil)
	codes, err := o.RunCrawl(context.Background())
	if err != nil {
		t.Fatalf("RunCrawl error: %v", err)
	}

	if len(codes) != 2 {
		t.Errorf("stored codes = %v, want the two seeded codes untouched", codes)
	}
}
