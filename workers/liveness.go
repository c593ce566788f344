// Package workers holds background loops that run beside the crawl
// schedule.
package workers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flatsync/models"
	"flatsync/storage"

	"github.com/PuerkitoBio/goquery"
)

// LivenessWorker spot-checks stale listings between crawl runs. A listing
// the crawler has not touched in a while gets a cheap HEAD request, then a
// GET whose body is checked for the embedded state script. Candidates for
// delisting are only reported; the delete sweep of the next full crawl is
// the single authority that removes rows.
type LivenessWorker struct {
	store       *storage.PostgresStore
	ops         *storage.OpsStore
	client      *http.Client
	urlTemplate string
	triggerCh   chan struct{}
}

func NewLivenessWorker(store *storage.PostgresStore, ops *storage.OpsStore, client *http.Client, urlTemplate string) *LivenessWorker {
	// Checks run on a non-following copy of the client. A redirect away
	// from an object page is itself the delist signal, so the raw 3xx must
	// reach the status checks below.
	checker := &http.Client{
		Timeout:   client.Timeout,
		Transport: client.Transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &LivenessWorker{
		store:       store,
		ops:         ops,
		client:      checker,
		urlTemplate: urlTemplate,
		triggerCh:   make(chan struct{}, 1),
	}
}

// Trigger causes the worker to run immediately
func (w *LivenessWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the liveness loop.
func (w *LivenessWorker) Run(ctx context.Context, staleAfter time.Duration, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Liveness worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, staleAfter, batchSize)
		case <-w.triggerCh:
			log.Println("Liveness worker triggered manually")
			w.processBatch(ctx, staleAfter, batchSize)
		}
	}
}

func (w *LivenessWorker) processBatch(ctx context.Context, staleAfter time.Duration, batchSize int) {
	codes, err := w.store.StaleCodes(ctx, staleAfter, batchSize)
	if err != nil {
		log.Printf("Liveness: query error: %v", err)
		return
	}
	if len(codes) == 0 {
		return
	}

	log.Printf("Liveness: checking %d stale listings", len(codes))

	var checked, gone int
	for _, code := range codes {
		if ctx.Err() != nil {
			return
		}

		live, err := w.check(ctx, code)
		checked++
		if err != nil {
			log.Printf("Liveness: check code=%d failed: %v", code, err)
			continue
		}
		if !live {
			gone++
			log.Printf("Liveness: code=%d looks delisted", code)
			if w.ops != nil {
				w.ops.Log(nil, models.LogLevelWarn, fmt.Sprintf("liveness: code %d looks delisted", code))
			}
		}

		time.Sleep(500 * time.Millisecond)
	}

	if gone > 0 {
		log.Printf("Liveness: checked %d, %d delist candidates", checked, gone)
	}
}

// check reports whether the listing page still exists upstream. A page that
// answers 200 but carries no state script is treated as gone; the site
// serves a generic shell for removed objects.
func (w *LivenessWorker) check(ctx context.Context, code int64) (bool, error) {
	pageURL := strings.ReplaceAll(w.urlTemplate, "{code}", strconv.FormatInt(code, 10))

	status, err := w.head(ctx, pageURL)
	if err == nil {
		switch {
		case status == http.StatusNotFound || status == http.StatusGone:
			return false, nil
		case status >= 300 && status < 400:
			return false, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := w.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return false, nil
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return true, nil
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return false, err
	}
	return doc.Find(`script#__NEXT_DATA__`).Length() > 0, nil
}

func (w *LivenessWorker) head(ctx context.Context, pageURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, pageURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
