// Package registry implements a typed HTTP client for the Factorio Mod
// Portal: metadata lookups, paginated search, login, and ranged release
// downloads, all restricted to a small host allowlist the way the
// reference client enforces it via a custom redirect policy.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"factorio-mods-cli/internal/mods"
)

var defaultWhitelistedHosts = map[string]bool{
	"mods.factorio.com":      true,
	"auth.factorio.com":      true,
	"mods-data.factorio.com": true,
}

const (
	defaultBaseURL  = "https://mods.factorio.com/"
	defaultModsURL  = "https://mods.factorio.com/api/mods"
	defaultLoginURL = "https://auth.factorio.com/api-login"
)

// Client is a restricted HTTP client for the Mod Portal: every request
// goes through a host-allowlist check, and redirects off the allowlist
// are refused rather than followed.
type Client struct {
	http     *http.Client
	baseURL  string
	modsURL  string
	loginURL string
	hosts    map[string]bool
}

// NewClient builds a Client restricted to the production Mod Portal
// hosts. A nil base allows the default transport (10s dial timeout,
// HTTP/2) to be used.
func NewClient(base *http.Client) (*Client, error) {
	return newClient(base, defaultBaseURL, defaultModsURL, defaultLoginURL, nil)
}

// NewClientWithBaseURL builds a Client pointed at an alternate portal
// (a mirror, or an httptest.Server in tests), whitelisting extraHosts
// alongside the production hosts.
func NewClientWithBaseURL(base *http.Client, baseURL, modsURL, loginURL string, extraHosts []string) (*Client, error) {
	return newClient(base, baseURL, modsURL, loginURL, extraHosts)
}

func newClient(base *http.Client, baseURL, modsURL, loginURL string, extraHosts []string) (*Client, error) {
	inner := base
	if inner == nil {
		inner = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
			Timeout: 30 * time.Second,
		}
	}

	hosts := make(map[string]bool, len(defaultWhitelistedHosts)+len(extraHosts))
	for h := range defaultWhitelistedHosts {
		hosts[h] = true
	}
	for _, h := range extraHosts {
		hosts[h] = true
	}

	inner.CheckRedirect = func(req *http.Request, _ []*http.Request) error {
		if !hosts[req.URL.Hostname()] {
			return errNotWhitelistedHost(req.URL.String())
		}
		return nil
	}

	return &Client{http: inner, baseURL: baseURL, modsURL: modsURL, loginURL: loginURL, hosts: hosts}, nil
}

// send executes req, rejecting non-whitelisted hosts up front and
// translating non-2xx responses (including a 401 login-failure body)
// into typed errors.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if !c.hosts[req.URL.Hostname()] {
		return nil, errNotWhitelistedHost(req.URL.String())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if werr, ok := err.(*url.Error); ok {
			if inner, ok := werr.Unwrap().(*Error); ok {
				return nil, inner
			}
		}
		return nil, errHTTP(req.URL.String(), err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return resp, nil

	case http.StatusUnauthorized:
		defer func() { _ = resp.Body.Close() }()
		var failure loginFailureResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&failure); err != nil {
			return nil, errLoginFailure("unauthorized")
		}
		return nil, errLoginFailure(failure.Message)

	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, errNotFound(req.URL.String())

	case http.StatusFound:
		_ = resp.Body.Close()
		return nil, errNotWhitelistedHost(req.URL.String())

	default:
		_ = resp.Body.Close()
		return nil, errStatusCode(req.URL.String(), resp.StatusCode)
	}
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errParse(rawURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		return errMalformedResponse(rawURL, fmt.Sprintf("unexpected Content-Type %q", ct))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 32<<20)).Decode(out); err != nil {
		return errHTTP(rawURL, err)
	}
	return nil
}

// Get fetches full metadata (including every release ever published)
// for the named mod.
func (c *Client) Get(ctx context.Context, name mods.Name) (mods.Mod, error) {
	u := c.modsURL + "/" + url.PathEscape(string(name)) + "/full"

	var wire wireMod
	if err := c.getJSON(ctx, u, &wire); err != nil {
		return mods.Mod{}, err
	}

	m, err := wire.toMod()
	if err != nil {
		return mods.Mod{}, fmt.Errorf("decoding mod %q: %w", name, err)
	}
	return m, nil
}

// Search streams matches for opts, following the response's
// pagination.links.next until it is absent or the server responds 404.
// visit is called once per result in portal order; returning an error
// from visit stops iteration and that error is returned from Search.
func (c *Client) Search(ctx context.Context, opts SearchOptions, visit func(SearchResult) error) error {
	order := opts.Order
	if order == "" {
		order = DefaultSearchOrder
	}
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = 25
	}

	q := url.Values{}
	q.Set("q", opts.Query)
	q.Set("tags", strings.Join(opts.Tags, ","))
	q.Set("order", string(order))
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("page", "1")

	next := c.modsURL + "?" + q.Encode()

	for next != "" {
		var page searchResponse
		if err := c.getJSON(ctx, next, &page); err != nil {
			if rerr, ok := err.(*Error); ok && rerr.Kind == KindNotFound {
				return nil
			}
			return err
		}

		for _, r := range page.Results {
			owner, err := stringOrSlice(r.Owner)
			if err != nil {
				return fmt.Errorf("parsing search result owner: %w", err)
			}
			tags, err := stringOrSlice(r.Tags)
			if err != nil {
				return fmt.Errorf("parsing search result tags: %w", err)
			}
			if err := visit(SearchResult{
				Name:           mods.Name(r.Name),
				Title:          r.Title,
				Owner:          owner,
				Summary:        r.Summary,
				Tags:           tags,
				DownloadsCount: r.DownloadsCount,
			}); err != nil {
				return err
			}
		}

		next = page.Pagination.Links.Next
	}

	return nil
}

// Login exchanges a username and password for service credentials via
// the auth server's login endpoint.
func (c *Client) Login(ctx context.Context, username, password string) (mods.UserCredentials, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return mods.UserCredentials{}, errSerialize(c.loginURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return mods.UserCredentials{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var tokens []string
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&tokens); err != nil || len(tokens) == 0 {
		return mods.UserCredentials{}, errMalformedResponse(c.loginURL, "expected a one-element JSON array containing the token")
	}

	return mods.UserCredentials{Username: username, Token: tokens[0]}, nil
}

// downloadURL builds the authenticated, query-string-signed URL for a
// release's packaged zip.
func (c *Client) downloadURL(release mods.Release, creds mods.UserCredentials) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", errParse(c.baseURL, err)
	}
	rel, err := url.Parse(release.DownloadURL)
	if err != nil {
		return "", errParse(release.DownloadURL, err)
	}
	full := u.ResolveReference(rel)
	q := full.Query()
	q.Set("username", creds.Username)
	q.Set("token", creds.Token)
	full.RawQuery = q.Encode()
	return full.String(), nil
}

// GetFileSize returns the release's total byte size, as reported by the
// server in response to a single-byte ranged request, without
// downloading the rest of the file.
func (c *Client) GetFileSize(ctx context.Context, release mods.Release, creds mods.UserCredentials) (uint64, error) {
	dlURL, err := c.downloadURL(release, creds)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dlURL, nil)
	if err != nil {
		return 0, errParse(dlURL, err)
	}
	req.Header.Set("Range", "bytes=0-0")
	req.Header.Set("Accept", "application/zip")

	resp, err := c.send(req)
	if err != nil {
		return 0, err
	}
	defer func() { _, _ = io.Copy(io.Discard, resp.Body); _ = resp.Body.Close() }()

	contentRange := resp.Header.Get("Content-Range")
	if contentRange == "" {
		if resp.ContentLength > 0 {
			return uint64(resp.ContentLength), nil
		}
		return 0, errMalformedResponse(dlURL, "no Content-Range header in ranged response")
	}

	idx := strings.LastIndexByte(contentRange, '/')
	if idx < 0 || idx == len(contentRange)-1 {
		return 0, errMalformedResponse(dlURL, fmt.Sprintf("unparseable Content-Range %q", contentRange))
	}
	total, err := strconv.ParseUint(contentRange[idx+1:], 10, 64)
	if err != nil {
		return 0, errMalformedResponse(dlURL, fmt.Sprintf("unparseable Content-Range %q", contentRange))
	}

	if release.FileSize != 0 && total != release.FileSize {
		return 0, errMalformedResponse(dlURL, fmt.Sprintf("mod file has incorrect size %d bytes, expected %d bytes", total, release.FileSize))
	}

	return total, nil
}

// Download issues a GET for release's packaged zip with the given Range
// header (e.g. "bytes=8192-"), verifying the response is
// application/zip. The caller owns the returned body and must close it.
func (c *Client) Download(ctx context.Context, release mods.Release, creds mods.UserCredentials, rangeHeader string) (io.ReadCloser, error) {
	dlURL, err := c.downloadURL(release, creds)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dlURL, nil)
	if err != nil {
		return nil, errParse(dlURL, err)
	}
	req.Header.Set("Accept", "application/zip")
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && ct != "application/zip" && !strings.HasPrefix(ct, "application/zip;") {
		_ = resp.Body.Close()
		return nil, errMalformedResponse(dlURL, fmt.Sprintf("unexpected Content-Type %q", ct))
	}

	// A Range request's Content-Length only covers the requested span,
	// not the whole file, so the size check only applies to an
	// unranged (full-file) download.
	if rangeHeader == "" && release.FileSize != 0 && resp.ContentLength >= 0 && uint64(resp.ContentLength) != release.FileSize {
		_ = resp.Body.Close()
		return nil, errMalformedResponse(dlURL, fmt.Sprintf("mod file has incorrect size %d bytes, expected %d bytes", resp.ContentLength, release.FileSize))
	}

	return resp.Body, nil
}
