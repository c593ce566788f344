package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flatsync/models"
	"flatsync/storage"

	"github.com/google/uuid"
)

type fakeListingStore struct {
	listings   []*models.ListingDetail
	lastFilter storage.SearchFilter
}

func (s *fakeListingStore) Search(ctx context.Context, f storage.SearchFilter) ([]*models.ListingDetail, int, error) {
	s.lastFilter = f
	return s.listings, len(s.listings), nil
}

func (s *fakeListingStore) GetByCode(ctx context.Context, code int64) (*models.ListingDetail, error) {
	for _, l := range s.listings {
		if l.Code != nil && *l.Code == code {
			return l, nil
		}
	}
	return nil, nil
}

type fakeOps struct {
	enqueued []models.CommandType
	runs     []models.CrawlRun
	logs     map[int64][]models.CrawlLog
	failNext bool
}

func (o *fakeOps) EnqueueCommand(cmd models.CommandType) error {
	if o.failNext {
		return fmt.Errorf("ops store down")
	}
	o.enqueued = append(o.enqueued, cmd)
	return nil
}

func (o *fakeOps) RecentRuns(limit int) ([]models.CrawlRun, error) {
	return o.runs, nil
}

func (o *fakeOps) RunLogs(runID int64, limit int) ([]models.CrawlLog, error) {
	return o.logs[runID], nil
}

func listingFixture(code int64) *models.ListingDetail {
	c := code
	title := fmt.Sprintf("flat %d", code)
	return &models.ListingDetail{ID: uuid.New(), Code: &c, Title: &title}
}

func newTestServer(store ListingStore, ops OpsReader) *httptest.Server {
	return httptest.NewServer(NewRouter(NewHandler(store, ops)))
}

func TestListListings(t *testing.T) {
	store := &fakeListingStore{listings: []*models.ListingDetail{
		listingFixture(1), listingFixture(2),
	}}
	srv := newTestServer(store, &fakeOps{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/listings?min_price_usd=300&sort_by=price_usd&desc=true&limit=10")
	if err != nil {
		t.Fatalf("GET /api/listings: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body listingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Total != 2 || len(body.Listings) != 2 {
		t.Errorf("got total=%d listings=%d, want 2 and 2", body.Total, len(body.Listings))
	}

	f := store.lastFilter
	if f.MinPriceUSD == nil || *f.MinPriceUSD != 300 {
		t.Error("min_price_usd query param not applied")
	}
	if f.SortBy != "price_usd" || !f.Descending || f.Limit != 10 {
		t.Errorf("filter = %+v, sort params not applied", f)
	}
}

func TestListListingsRejectsBadParams(t *testing.T) {
	srv := newTestServer(&fakeListingStore{}, &fakeOps{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/listings?code=abc")
	if err != nil {
		t.Fatalf("GET /api/listings: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetListing(t *testing.T) {
	store := &fakeListingStore{listings: []*models.ListingDetail{listingFixture(42)}}
	srv := newTestServer(store, &fakeOps{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/listings/42")
	if err != nil {
		t.Fatalf("GET /api/listings/42: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got models.ListingDetail
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Code == nil || *got.Code != 42 {
		t.Errorf("got code %v, want 42", got.Code)
	}
}

func TestGetListingNotFound(t *testing.T) {
	srv := newTestServer(&fakeListingStore{}, &fakeOps{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/listings/404404")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestTriggerCrawl(t *testing.T) {
	ops := &fakeOps{}
	srv := newTestServer(&fakeListingStore{}, ops)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/crawl", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/crawl: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if len(ops.enqueued) != 1 || ops.enqueued[0] != models.CmdCrawlNow {
		t.Errorf("enqueued = %v, want [crawl_now]", ops.enqueued)
	}
}

func TestListRuns(t *testing.T) {
	ops := &fakeOps{runs: []models.CrawlRun{
		{ID: 1, StartedAt: time.Now().UTC(), Status: models.RunStatusCompleted, Inserted: 5},
	}}
	srv := newTestServer(&fakeListingStore{}, ops)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/runs")
	if err != nil {
		t.Fatalf("GET /api/runs: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var runs []models.CrawlRun
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(runs) != 1 || runs[0].Inserted != 5 {
		t.Errorf("runs = %+v, want the seeded run", runs)
	}
}

func TestListRunLogs(t *testing.T) {
	runID := int64(7)
	ops := &fakeOps{logs: map[int64][]models.CrawlLog{
		runID: {
			{ID: 1, RunID: &runID, Timestamp: time.Now().UTC(), Level: models.LogLevelInfo, Message: "crawl run started"},
			{ID: 2, RunID: &runID, Timestamp: time.Now().UTC(), Level: models.LogLevelWarn, Message: "liveness: code 9 looks delisted"},
		},
	}}
	srv := newTestServer(&fakeListingStore{}, ops)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/runs/7/logs")
	if err != nil {
		t.Fatalf("GET /api/runs/7/logs: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var logs []models.CrawlLog
	if err := json.NewDecoder(resp.Body).Decode(&logs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(logs) != 2 || logs[1].Level != models.LogLevelWarn {
		t.Errorf("logs = %+v, want the two seeded entries", logs)
	}
}

func TestListRunLogsRejectsBadID(t *testing.T) {
	srv := newTestServer(&fakeListingStore{}, &fakeOps{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/runs/seven/logs")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
