package httputil

import (
	"net/http"
	"net/url"
	"time"
)

type Clients struct {
	Upstream *http.Client // for the listing site, optionally proxied
	API      *http.Client // direct, for everything else
}

// NewClients builds the shared HTTP clients. proxyURL may be empty; a value
// that does not parse is ignored rather than failing startup.
func NewClients(proxyURL string) *Clients {
	transport := &http.Transport{
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 64,
		IdleConnTimeout:     90 * time.Second,
	}

	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}

	upstream := &http.Client{
		Timeout:   15 * time.Second,
		Transport: transport,
	}

	return &Clients{
		Upstream: upstream,
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}
