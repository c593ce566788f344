package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestWorker(srv *httptest.Server) *LivenessWorker {
	return NewLivenessWorker(nil, nil, srv.Client(), srv.URL+"/object/{code}/")
}

func TestCheckLivePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><script id="__NEXT_DATA__" type="application/json">{}</script></body></html>`))
	}))
	defer srv.Close()

	live, err := newTestWorker(srv).check(context.Background(), 100)
	if err != nil {
		t.Fatalf("check error: %v", err)
	}
	if !live {
		t.Error("page with the state script reported as delisted")
	}
}

func TestCheckShellPageWithoutStateScript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>nothing to see</p></body></html>`))
	}))
	defer srv.Close()

	live, err := newTestWorker(srv).check(context.Background(), 100)
	if err != nil {
		t.Fatalf("check error: %v", err)
	}
	if live {
		t.Error("generic shell page without the state script reported as live")
	}
}

func TestCheckNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	live, err := newTestWorker(srv).check(context.Background(), 100)
	if err != nil {
		t.Fatalf("check error: %v", err)
	}
	if live {
		t.Error("404 reported as live")
	}
}

func TestCheckRedirectMeansDelisted(t *testing.T) {
	// Removed objects redirect to a search page. The worker's client must
	// see the raw 302 instead of following it into a 200.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			w.Write([]byte(`<html><body>search results</body></html>`))
			return
		}
		http.Redirect(w, r, "/search", http.StatusFound)
	}))
	defer srv.Close()

	live, err := newTestWorker(srv).check(context.Background(), 100)
	if err != nil {
		t.Fatalf("check error: %v", err)
	}
	if live {
		t.Error("delist redirect reported as live")
	}
}
