package registry

import (
	"context"
	"io"

	"factorio-mods-cli/internal/mods"
)

// releaseFetcher adapts Client.Download to rangedzip.Fetcher for one
// release/credentials pair.
type releaseFetcher struct {
	client  *Client
	release mods.Release
	creds   mods.UserCredentials
}

func (f releaseFetcher) Fetch(ctx context.Context, rangeHeader string) (io.ReadCloser, error) {
	return f.client.Download(ctx, f.release, f.creds, rangeHeader)
}

// ReleaseFetcher returns a rangedzip.Fetcher bound to one release,
// suitable for passing to rangedzip.NewReader.
func (c *Client) ReleaseFetcher(release mods.Release, creds mods.UserCredentials) interface {
	Fetch(ctx context.Context, rangeHeader string) (io.ReadCloser, error)
} {
	return releaseFetcher{client: c, release: release, creds: creds}
}
