package scraper

import (
	"context"
	"log"
	"strings"
	"sync"

	"flatsync/models"
)

// tailPageSize is the fixed item count of every index page after the first.
// Page 1 may be larger; the upstream serves it with its own size.
const tailPageSize = 30

// Discoverer walks the configured listing links and accumulates the set of
// listing codes visible in the current run.
type Discoverer struct {
	pages       PageFetcher
	concurrency int
}

func NewDiscoverer(pages PageFetcher, concurrency int) *Discoverer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Discoverer{pages: pages, concurrency: concurrency}
}

// CollectCodes fetches page 1 of every usable base link, derives the number
// of remaining pages from the reported total, and fetches pages 2..N under a
// bounded pool. A failed page 1 skips its link; a failed tail page only
// loses that page's codes for this run.
func (d *Discoverer) CollectCodes(ctx context.Context, links []string) (*CodeSet, error) {
	codes := NewCodeSet()

	for _, link := range dedupeLinks(links) {
		if err := ctx.Err(); err != nil {
			return codes, err
		}

		first, err := d.pages.FetchPage(ctx, link, 1)
		if err != nil {
			log.Printf("[warn] discovery: page 1 of %s failed: %v", link, err)
			continue
		}

		addCodes(codes, first.Items)

		totalCount := first.Pagination.TotalCount
		firstCount := len(first.Items)
		if totalCount <= firstCount {
			continue
		}

		remaining := totalCount - firstCount
		morePages := (remaining + tailPageSize - 1) / tailPageSize
		totalPages := 1 + morePages

		d.fetchTailPages(ctx, link, totalPages, codes)
	}

	return codes, ctx.Err()
}

func (d *Discoverer) fetchTailPages(ctx context.Context, link string, totalPages int, codes *CodeSet) {
	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup

	for page := 2; page <= totalPages; page++ {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(page int) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := d.pages.FetchPage(ctx, link, page)
			if err != nil {
				log.Printf("[warn] discovery: page %d of %s failed: %v", page, link, err)
				return
			}
			addCodes(codes, res.Items)
		}(page)
	}

	wg.Wait()
}

func addCodes(codes *CodeSet, items []models.ListingSummary) {
	for _, it := range items {
		if it.Code != nil {
			codes.Add(*it.Code)
		}
	}
}

// dedupeLinks drops blank entries and repeated links, order preserved.
func dedupeLinks(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	var out []string
	for _, link := range links {
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, link)
	}
	return out
}
