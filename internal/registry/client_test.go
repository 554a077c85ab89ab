package registry

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/Masterminds/semver/v3"

	"factorio-mods-cli/internal/mods"
)

// newTestClient points a Client at an httptest.Server, whitelisting its
// host for the duration of the test.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	srvURL, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parsing server URL: %v", err)
	}

	c, err := NewClientWithBaseURL(
		&http.Client{Transport: srv.Client().Transport},
		srv.URL+"/", srv.URL+"/mods", srv.URL+"/login",
		[]string{srvURL.Hostname()},
	)
	if err != nil {
		t.Fatalf("NewClientWithBaseURL: %v", err)
	}

	return c, srv
}

func TestClientGetParsesModAndReleases(t *testing.T) {
	const body = `{
		"name": "boblibrary",
		"owner": "Bobingabout",
		"title": "Bob's Functions Library mod",
		"summary": "summary",
		"releases": [
			{
				"version": "0.2.02",
				"download_url": "/download/boblibrary/abc",
				"file_name": "boblibrary_0.2.2.zip",
				"file_size": 1234,
				"sha1": "deadbeef",
				"info_json": {
					"name": "boblibrary",
					"factorio_version": "1.1",
					"dependencies": ["base >= 1.0.0", "? stdlib"]
				}
			}
		]
	}`

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})

	m, err := c.Get(t.Context(), "boblibrary")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m.Name != "boblibrary" || len(m.Releases) != 1 {
		t.Fatalf("unexpected mod: %+v", m)
	}
	if m.Releases[0].Version.String() != "0.2.2" {
		t.Errorf("release version = %s, want 0.2.2 (normalized)", m.Releases[0].Version.String())
	}
	if len(m.Releases[0].Info.Dependencies) != 2 {
		t.Errorf("expected 2 parsed dependencies, got %d", len(m.Releases[0].Info.Dependencies))
	}
}

func TestClientGetNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := c.Get(t.Context(), "nonexistent")
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindNotFound {
		t.Fatalf("expected NotFound error, got %v", err)
	}
}

func TestClientRejectsNonWhitelistedHost(t *testing.T) {
	c, err := NewClient(nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	err = c.getJSON(t.Context(), "https://evil.example.com/api/mods/foo/full", &struct{}{})
	if err == nil {
		t.Fatal("expected error for non-whitelisted host")
	}
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindNotWhitelistedHost {
		t.Errorf("expected NotWhitelistedHost error, got %v", err)
	}
}

func TestClientSearchFollowsPagination(t *testing.T) {
	var srv *httptest.Server
	page := 0

	c, srv2 := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		page++
		if page == 1 {
			_, _ = w.Write([]byte(`{"pagination":{"links":{"next":"` + srv.URL + `/mods?page=2"}},"results":[{"id":1,"name":"a","title":"A"}]}`))
		} else {
			_, _ = w.Write([]byte(`{"pagination":{"links":{}},"results":[{"id":2,"name":"b","title":"B"}]}`))
		}
	})
	srv = srv2

	var names []string
	err := c.Search(t.Context(), SearchOptions{Query: ""}, func(r SearchResult) error {
		names = append(names, string(r.Name))
		return nil
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("unexpected search results: %v", names)
	}
}

func TestClientDownloadRejectsContentLengthMismatch(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("short body"))
	})

	release := mods.Release{
		Version:     semver.MustParse("1.0.0"),
		DownloadURL: "/download/foo/abc",
		FileSize:    1234,
	}

	body, err := c.Download(t.Context(), release, mods.UserCredentials{}, "")
	if err == nil {
		_ = body.Close()
		t.Fatal("expected a Content-Length mismatch error")
	}
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindMalformedResponse {
		t.Fatalf("expected MalformedResponse error, got %v", err)
	}
}

func TestClientDownloadAcceptsMatchingContentLength(t *testing.T) {
	const want = "exactly seventeen"
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte(want))
	})

	release := mods.Release{
		Version:     semver.MustParse("1.0.0"),
		DownloadURL: "/download/foo/abc",
		FileSize:    uint64(len(want)),
	}

	body, err := c.Download(t.Context(), release, mods.UserCredentials{}, "")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer func() { _ = body.Close() }()

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(got) != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestClientSearchStopsOn404(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	var calls int
	err := c.Search(t.Context(), SearchOptions{Query: "nonexistent"}, func(r SearchResult) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Search should absorb 404 as empty results, got error: %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no results, got %d", calls)
	}
}
