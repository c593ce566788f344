package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"flatsync/models"
	"flatsync/parse"
)

// PageResult is one decoded listing-index page.
type PageResult struct {
	Items      []models.ListingSummary
	Pagination models.PaginationInfo
}

// PageFetcher fetches one listing-index page for a base link.
type PageFetcher interface {
	FetchPage(ctx context.Context, baseLink string, page int) (*PageResult, error)
}

// ListingPageClient fetches and decodes listing-index pages over HTTP.
type ListingPageClient struct {
	client *http.Client
}

func NewListingPageClient(client *http.Client) *ListingPageClient {
	return &ListingPageClient{client: client}
}

func (c *ListingPageClient) FetchPage(ctx context.Context, baseLink string, page int) (*PageResult, error) {
	pageURL, err := WithPage(baseLink, page)
	if err != nil {
		return nil, fmt.Errorf("build page url: %w", err)
	}

	html, err := fetchHTML(ctx, c.client, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	payload, ok := parse.ExtractStateJSON(html)
	if !ok {
		return nil, fmt.Errorf("no state block in %s", pageURL)
	}

	items, pagination, err := parse.ParseListingPage(payload)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	return &PageResult{Items: items, Pagination: pagination}, nil
}

// WithPage rewrites or appends the page query parameter on a base link.
func WithPage(baseLink string, page int) (string, error) {
	u, err := url.Parse(baseLink)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
