package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"flatsync/models"
	"flatsync/parse"
)

// CodePlaceholder must appear in the detail URL template.
const CodePlaceholder = "{code}"

// DetailFetcher fetches and decodes one listing's detail page by code.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, code int64) (*models.ListingDetail, error)
}

// DetailPageClient fetches detail pages over HTTP using a templated URL.
type DetailPageClient struct {
	client      *http.Client
	urlTemplate string
}

func NewDetailPageClient(client *http.Client, urlTemplate string) *DetailPageClient {
	return &DetailPageClient{client: client, urlTemplate: urlTemplate}
}

// DetailURL expands the template for one code.
func (c *DetailPageClient) DetailURL(code int64) string {
	return strings.ReplaceAll(c.urlTemplate, CodePlaceholder, strconv.FormatInt(code, 10))
}

func (c *DetailPageClient) FetchDetail(ctx context.Context, code int64) (*models.ListingDetail, error) {
	detailURL := c.DetailURL(code)

	html, err := fetchHTML(ctx, c.client, detailURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", detailURL, err)
	}

	payload, ok := parse.ExtractStateJSON(html)
	if !ok {
		return nil, fmt.Errorf("no state block in %s", detailURL)
	}

	detail, err := parse.ParseObjectPage(payload)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", detailURL, err)
	}

	// A record without a code cannot be reconciled, so this is a parse
	// failure rather than a usable result.
	if detail.Code == nil {
		return nil, fmt.Errorf("decoded record for %s has no code", detailURL)
	}

	return detail, nil
}
